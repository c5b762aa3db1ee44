// Package pgerr turns postgres errors into structured log fields.
package pgerr

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Code returns the SQLSTATE of a postgres error anywhere in err's chain.
func Code(err error) string {
	if pgErr, ok := errors.AsType[*pgconn.PgError](err); ok && pgErr != nil {
		return strings.TrimSpace(pgErr.Code)
	}
	return ""
}

// Fields returns fields followed by zap.Error(err) and, when err came from
// the server, its code, constraint and table.
func Fields(err error, fields ...zap.Field) []zap.Field {
	out := append(fields[:len(fields):len(fields)], zap.Error(err))
	pgErr, ok := errors.AsType[*pgconn.PgError](err)
	if !ok || pgErr == nil {
		return out
	}
	out = append(out, zap.String("pg_code", Code(err)))
	if name := strings.TrimSpace(pgErr.ConstraintName); name != "" {
		out = append(out, zap.String("pg_constraint", name))
	}
	if name := strings.TrimSpace(pgErr.TableName); name != "" {
		out = append(out, zap.String("pg_table", name))
	}
	return out
}
