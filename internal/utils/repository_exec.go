package utils

import (
	"database/sql"
	"errors"
	"fmt"
)

type ExecType int

const (
	ExecInsert ExecType = iota
	ExecUpsert
)

var ErrNoRowsAffected = errors.New("no rows affected")

// CheckExec validates the outcome of a write. Upserts must touch a row; plain inserts
// only need to succeed.
func CheckExec(result sql.Result, err error, execType ExecType) error {
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}
	if execType == ExecInsert {
		return nil
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNoRowsAffected
	}
	return nil
}
