package client

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/surgekit/surge"
)

// Args builds positional query arguments from the session, so feeder
// attributes can parameterize statements. A nil Args runs the statement
// without arguments.
type Args func(sess *surge.Session) []any

// PostgresQuery returns an action that runs a query against the pool and
// drains the rows. The caller owns the pool and is responsible for closing
// it. A rowKey other than "" stores the number of returned rows into the
// session under that key.
func PostgresQuery(pool *pgxpool.Pool, sql string, args Args, rowKey string) surge.Action {
	return func(ctx context.Context, sess *surge.Session) error {
		var argv []any
		if args != nil {
			argv = args(sess)
		}
		rows, err := pool.Query(ctx, sql, argv...)
		if err != nil {
			return fmt.Errorf("client: query: %w", err)
		}
		defer rows.Close()
		count := 0
		for rows.Next() {
			count++
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("client: rows: %w", err)
		}
		if rowKey != "" {
			sess.Set(rowKey, count)
		}
		return nil
	}
}

// PostgresExec returns an action that executes a statement (INSERT, UPDATE,
// DELETE) against the pool.
func PostgresExec(pool *pgxpool.Pool, sql string, args Args) surge.Action {
	return func(ctx context.Context, sess *surge.Session) error {
		var argv []any
		if args != nil {
			argv = args(sess)
		}
		if _, err := pool.Exec(ctx, sql, argv...); err != nil {
			return fmt.Errorf("client: exec: %w", err)
		}
		return nil
	}
}
