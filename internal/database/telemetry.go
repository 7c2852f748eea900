package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracedPool wraps a DatabasePool and records one span per statement.
// Spans are no-ops unless a tracer provider has been installed, so the
// wrapper is safe to use with telemetry disabled.
type TracedPool struct {
	pool   DatabasePool
	logger *logrus.Logger
}

func NewTracedPool(pool DatabasePool, logger *logrus.Logger) *TracedPool {
	return &TracedPool{pool: pool, logger: logger}
}

func (p *TracedPool) tracer() trace.Tracer {
	return otel.Tracer("covnet/database")
}

func (p *TracedPool) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	ctx, span := p.tracer().Start(ctx, "db.query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.system", "postgresql")))
	defer span.End()

	start := time.Now()
	rows, err := p.pool.Query(ctx, sql, args...)
	p.record(span, "query", start, err)
	return rows, err
}

func (p *TracedPool) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	ctx, span := p.tracer().Start(ctx, "db.query_row",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.system", "postgresql")))
	defer span.End()

	start := time.Now()
	row := p.pool.QueryRow(ctx, sql, args...)
	p.record(span, "query_row", start, nil)
	return row
}

func (p *TracedPool) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	ctx, span := p.tracer().Start(ctx, "db.exec",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.system", "postgresql")))
	defer span.End()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, sql, args...)
	p.record(span, "exec", start, err)
	return tag, err
}

func (p *TracedPool) record(span trace.Span, op string, start time.Time, err error) {
	elapsed := time.Since(start)
	span.SetAttributes(attribute.Int64("db.duration_ms", elapsed.Milliseconds()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if p.logger != nil {
		p.logger.WithFields(logrus.Fields{
			"operation":   op,
			"duration_ms": elapsed.Milliseconds(),
		}).Debug("Database statement completed")
	}
}
