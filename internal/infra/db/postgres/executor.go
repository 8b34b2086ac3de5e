package postgres

import (
	"context"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
)

// dbtx is satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type dbtx interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

func execSQL(ctx context.Context, db dbtx, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return db.Exec(ctx, sql, args...)
}

func pickRow(ctx context.Context, db dbtx, sql string, args ...interface{}) pgx.Row {
	return db.QueryRow(ctx, sql, args...)
}
