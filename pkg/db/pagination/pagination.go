package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidCursor = errors.New("invalid_page_token")

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

// Cursor identifies the boundary row of a page. Timestamp is the sort key in
// RFC3339Nano; NullTimestamp marks a boundary row whose sort key is null.
type Cursor struct {
	ID            string `json:"id,omitempty"`
	Timestamp     string `json:"ts,omitempty"`
	NullTimestamp bool   `json:"null_ts,omitempty"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token"`
	HasMore       bool   `json:"has_more"`
}

// Boundary is a decoded Cursor.
type Boundary struct {
	ID        int64
	Timestamp *time.Time
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, ErrInvalidCursor
	}

	return &cursor, nil
}

// NewCursor builds a cursor for a row keyed by (ts, id).
func NewCursor(id int64, ts *time.Time) Cursor {
	cursor := Cursor{ID: strconv.FormatInt(id, 10)}
	if ts == nil {
		cursor.NullTimestamp = true
		return cursor
	}
	cursor.Timestamp = ts.UTC().Format(time.RFC3339Nano)
	return cursor
}

// ParseBoundary decodes a page token. An empty token yields nil.
func ParseBoundary(token string) (*Boundary, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	cursor, err := DecodeCursor(token)
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(strings.TrimSpace(cursor.ID), 10, 64)
	if err != nil || id == 0 {
		return nil, ErrInvalidCursor
	}
	boundary := &Boundary{ID: id}
	if cursor.NullTimestamp {
		return boundary, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, cursor.Timestamp)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	ts = ts.UTC()
	boundary.Timestamp = &ts
	return boundary, nil
}

// BuildCursorPageInfo expects data fetched with limit+1 rows.
func BuildCursorPageInfo[T any](data []*T, limit int32, extractCursor func(*T) string) *PageInfo {
	if len(data) == 0 {
		return &PageInfo{HasMore: false}
	}

	hasMore := false
	if len(data) > int(limit) {
		hasMore = true
		data = data[:limit]
	}

	pageInfo := &PageInfo{HasMore: hasMore}
	if hasMore {
		pageInfo.NextPageToken = extractCursor(data[len(data)-1])
	}

	return pageInfo
}

// LikeEscapeChar is the escape character EscapeLike uses.
const LikeEscapeChar = "!"

// EscapeLike escapes LIKE wildcards so a query matches literally. Use with
// ESCAPE '!'.
func EscapeLike(value string) string {
	replacer := strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)
	return replacer.Replace(value)
}

// ContainsPattern returns an escaped %value% pattern for LOWER(column) LIKE.
// The value is folded the way the dialect's LOWER folds: sqlite's built-in
// LOWER maps ASCII letters only, so non-ASCII letters there match with their
// exact case.
func ContainsPattern(dialect, value string) string {
	return "%" + EscapeLike(FoldCase(dialect, value)) + "%"
}

// FoldCase lowercases value the way LOWER() does on the given dialect.
func FoldCase(dialect, value string) string {
	if dialect != "sqlite" {
		return strings.ToLower(value)
	}
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, value)
}
