package repository

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/chatdesk/internal/cascade/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Table and column names come from the fixed step list, never from input.

func (r *repo) DeleteWhere(ctx context.Context, db *gorm.DB, table, where string, args ...any) (int64, error) {
	result := db.WithContext(ctx).Exec(fmt.Sprintf("DELETE FROM %s WHERE %s", table, where), args...)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) CountWhere(ctx context.Context, db *gorm.DB, table, where string, args ...any) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Raw(fmt.Sprintf("SELECT COUNT(1) FROM %s WHERE %s", table, where), args...).
		Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) Exists(ctx context.Context, db *gorm.DB, table string, accountID, id snowflake.ID) (bool, error) {
	count, err := r.CountWhere(ctx, db, table, "id = ? AND account_id = ?", id, accountID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) NullOut(ctx context.Context, db *gorm.DB, table, column string, accountID, id snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).Exec(
		fmt.Sprintf("UPDATE %s SET %s = NULL WHERE account_id = ? AND %s = ?", table, column, column),
		accountID, id,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
