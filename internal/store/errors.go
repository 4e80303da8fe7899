package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/ballot/internal/model"
)

// translate maps driver errors onto the model taxonomy. SQLite errors are
// flattened into the message so no driver type leaks past the store.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}

	var me *model.Error
	if errors.As(err, &me) {
		return err
	}

	if errors.Is(err, sql.ErrNoRows) {
		return model.NewError(model.KindNotFound, op, "no matching row")
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return model.WrapError(model.KindUnavailable, op, err)
	}

	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrConstraint:
			return model.NewError(model.KindConstraint, op, se.Error())
		default:
			return model.NewError(model.KindUnavailable, op, se.Error())
		}
	}

	return model.NewError(model.KindUnavailable, op, err.Error())
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY failure.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
		se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
