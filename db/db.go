package db

import (
	"context"
	"database/sql"
	"log"
)

// Statement helpers that log every query. They return errors instead of
// panicking so a failed query for one follower cannot take down a whole
// poll cycle.

func LogAndQuery(ctx context.Context, db *sql.DB, query string, args ...interface{}) (*sql.Rows, error) {
	log.Println(query, args)

	return db.QueryContext(ctx, query, args...)
}

func LogAndQueryRow(ctx context.Context, db *sql.DB, query string, args ...interface{}) *sql.Row {
	log.Println(query, args)

	return db.QueryRowContext(ctx, query, args...)
}

func LogAndExec(ctx context.Context, db *sql.DB, query string, args ...interface{}) (sql.Result, error) {
	log.Println(query, args)

	return db.ExecContext(ctx, query, args...)
}
