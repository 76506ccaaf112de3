package telemetry

import (
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	dbSystemKey    = "db.system"
	dbTableKey     = "db.table"
	dbOperationKey = "db.operation"
	dbStatementKey = "db.statement"

	maxStatementLength = 500

	spanKey  = "otel:span"
	startKey = "otel:startTime"
)

// DBSystem maps a configured driver name to the db.system attribute value.
func DBSystem(driver string) string {
	if driver == "sqlite" {
		return "sqlite"
	}
	return "postgresql"
}

// GORMTracingPlugin returns a GORM plugin that opens a span around every
// query, create, update, delete and raw statement.
func GORMTracingPlugin(dbSystem string) gorm.Plugin {
	return &tracingPlugin{
		tracer: otel.Tracer("gorm"),
		system: dbSystem,
	}
}

type tracingPlugin struct {
	tracer trace.Tracer
	system string
}

func (p *tracingPlugin) Name() string {
	return "telemetry:tracing"
}

func (p *tracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	registrations := []struct {
		name string
		err  error
	}{
		{"before_query", cb.Query().Before("gorm:query").Register("telemetry:before_query", p.before("SELECT"))},
		{"after_query", cb.Query().After("gorm:query").Register("telemetry:after_query", p.after)},
		{"before_create", cb.Create().Before("gorm:create").Register("telemetry:before_create", p.before("INSERT"))},
		{"after_create", cb.Create().After("gorm:create").Register("telemetry:after_create", p.after)},
		{"before_update", cb.Update().Before("gorm:update").Register("telemetry:before_update", p.before("UPDATE"))},
		{"after_update", cb.Update().After("gorm:update").Register("telemetry:after_update", p.after)},
		{"before_delete", cb.Delete().Before("gorm:delete").Register("telemetry:before_delete", p.before("DELETE"))},
		{"after_delete", cb.Delete().After("gorm:delete").Register("telemetry:after_delete", p.after)},
		{"before_raw", cb.Raw().Before("gorm:raw").Register("telemetry:before_raw", p.before("RAW"))},
		{"after_raw", cb.Raw().After("gorm:raw").Register("telemetry:after_raw", p.after)},
		{"before_row", cb.Row().Before("gorm:row").Register("telemetry:before_row", p.before("ROW"))},
		{"after_row", cb.Row().After("gorm:row").Register("telemetry:after_row", p.after)},
	}
	for _, r := range registrations {
		if r.err != nil {
			return fmt.Errorf("failed to register %s callback: %w", r.name, r.err)
		}
	}
	return nil
}

func (p *tracingPlugin) before(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			return
		}

		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}

		_, span := p.tracer.Start(ctx, "db."+strings.ToLower(operation),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String(dbSystemKey, p.system),
				attribute.String(dbTableKey, table),
				attribute.String(dbOperationKey, operation),
			),
		)

		db.InstanceSet(spanKey, span)
		db.InstanceSet(startKey, time.Now())
	}
}

func (p *tracingPlugin) after(db *gorm.DB) {
	raw, ok := db.InstanceGet(spanKey)
	if !ok {
		return
	}
	span, ok := raw.(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	if startRaw, ok := db.InstanceGet(startKey); ok {
		if start, ok := startRaw.(time.Time); ok {
			span.SetAttributes(attribute.Int64("db.duration_ms", time.Since(start).Milliseconds()))
		}
	}

	// Statements carry bind placeholders only; values never reach the span.
	if sql := db.Statement.SQL.String(); sql != "" {
		if len(sql) > maxStatementLength {
			sql = sql[:maxStatementLength] + "... (truncated)"
		}
		span.SetAttributes(attribute.String(dbStatementKey, sql))
	}

	if db.RowsAffected > 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.RowsAffected))
	}

	if db.Error != nil && db.Error != gorm.ErrRecordNotFound {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}
}
