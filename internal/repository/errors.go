package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"storefront/pkg/apierror"
)

// Postgres SQLSTATE codes the store reacts to.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
	pgInvalidTextRepr     = "22P02"
	pgStringTooLong       = "22001"
	pgNumericOutOfRange   = "22003"
)

// translateError converts a driver error into one of the API failure kinds.
// Errors that are already API errors pass through; anything unrecognised is
// wrapped with op and ends up as an internal failure at the boundary.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			field := constraintField(pgErr.TableName, pgErr.ConstraintName)
			conflict := apierror.Wrap(err, apierror.CodeConflict, field+" already exists", http.StatusConflict)
			conflict.Details = field
			return conflict
		case pgForeignKeyViolation:
			return apierror.Wrap(err, apierror.CodeBadRequest, "foreign key constraint violation", http.StatusBadRequest)
		case pgNotNullViolation, pgCheckViolation, pgInvalidTextRepr, pgStringTooLong, pgNumericOutOfRange:
			return apierror.Wrap(err, apierror.CodeBadRequest, "invalid database query", http.StatusBadRequest)
		}

		// Class 08 is connection exceptions, 57P0x is admin/crash shutdown.
		if strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P0") {
			return apierror.Wrap(err, apierror.CodeUnavailable, "database service unavailable", http.StatusServiceUnavailable)
		}

		return apierror.Wrap(err, apierror.CodeBadRequest, "database error: "+pgErr.Code, http.StatusBadRequest)
	}

	if isUnavailable(err) {
		return apierror.Wrap(err, apierror.CodeUnavailable, "database service unavailable", http.StatusServiceUnavailable)
	}

	return fmt.Errorf("%s: %w", op, err)
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func isUnavailable(err error) bool {
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	if pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// constraintField recovers the column name from constraints named
// <table>_<column>_key, the Postgres default for UNIQUE.
func constraintField(table string, constraint string) string {
	field := strings.TrimSuffix(constraint, "_key")
	if table != "" {
		field = strings.TrimPrefix(field, table+"_")
	}
	if field == "" || field == constraint {
		return "field"
	}

	return field
}

// notFound keeps the domain sentinel reachable through errors.Is while the
// message stays the one rendered to clients.
func notFound(sentinel error, resource string) error {
	return apierror.Wrap(sentinel, apierror.CodeNotFound, resource+" not found", http.StatusNotFound)
}
