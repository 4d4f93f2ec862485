package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// QueryObserver receives the outcome of every statement run through a
// traced pool. op is the leading SQL keyword in lower case.
type QueryObserver func(op string, took time.Duration, err error)

type queryStartKey struct{}

type queryStart struct {
	at  time.Time
	sql string
}

type queryTracer struct {
	logger  zerolog.Logger
	slow    time.Duration
	observe QueryObserver
	now     func() time.Time
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{at: t.now(), sql: data.SQL})
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	took := t.now().Sub(start.at)
	op := statementKind(start.sql)

	if t.observe != nil {
		t.observe(op, took, data.Err)
	}
	if t.slow > 0 && took >= t.slow {
		t.logger.Warn().
			Str("op", op).
			Dur("took", took).
			Str("sql", compactSQL(start.sql, 200)).
			Int64("rows", data.CommandTag.RowsAffected()).
			Msg("slow query")
	}
}

func statementKind(sql string) string {
	s := strings.TrimSpace(sql)
	if i := strings.IndexAny(s, " \t\n("); i > 0 {
		s = s[:i]
	}
	s = strings.ToLower(s)
	switch s {
	case "select", "insert", "update", "delete", "with", "begin", "commit", "rollback":
		return s
	case "":
		return "unknown"
	default:
		return "other"
	}
}

// compactSQL folds whitespace and truncates to max bytes for logging.
func compactSQL(sql string, max int) string {
	s := strings.Join(strings.Fields(sql), " ")
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
