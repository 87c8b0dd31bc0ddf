package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the repositories translate into domain errors.
const (
	codeInvalidText         = "22P02"
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
)

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func isUniqueViolation(err error) bool { return hasCode(err, codeUniqueViolation) }

// isMissingReference reports errors that mean a referenced row does not
// exist: a malformed id that cannot be cast to uuid, or a dangling foreign key.
func isMissingReference(err error) bool {
	return hasCode(err, codeInvalidText) || hasCode(err, codeForeignKeyViolation)
}
