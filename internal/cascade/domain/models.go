package domain

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// Step is one leaf-first delete of a cascade. Where is evaluated with the
// named argument @account bound to the account id and must select exactly
// the rows the step owns, so the same predicate doubles as the orphan probe.
type Step struct {
	Name  string
	Table string
	Where string
}

func (s Step) Args(accountID snowflake.ID) []any {
	return []any{sql.Named("account", accountID)}
}

type StepResult struct {
	Name string `json:"name"`
	Rows int64  `json:"rows"`
}

type DeleteResult struct {
	AccountID snowflake.ID `json:"account_id"`
	Atomic    bool         `json:"atomic"`
	Steps     []StepResult `json:"steps"`
}

func (r *DeleteResult) TotalRows() int64 {
	var total int64
	for _, step := range r.Steps {
		total += step.Rows
	}
	return total
}

// StepError reports a cascade that stopped part way. Without a transaction
// the Completed steps stay deleted; retrying the whole cascade is safe.
type StepError struct {
	Step       string
	Completed  []string
	RolledBack bool
	Err        error
}

func (e *StepError) Error() string {
	state := "completed steps kept"
	if e.RolledBack {
		state = "rolled back"
	}
	return fmt.Sprintf("cascade step %s failed after [%s] (%s): %v",
		e.Step, strings.Join(e.Completed, ","), state, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Report holds remaining row counts per dependent table.
type Report struct {
	AccountID snowflake.ID     `json:"account_id"`
	Counts    map[string]int64 `json:"counts"`
}

func (r *Report) Clean() bool {
	return len(r.Dirty()) == 0
}

// Dirty lists tables that still hold rows, sorted.
func (r *Report) Dirty() []string {
	var dirty []string
	for table, count := range r.Counts {
		if count > 0 {
			dirty = append(dirty, table)
		}
	}
	sort.Strings(dirty)
	return dirty
}
