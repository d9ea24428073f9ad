package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool          // include bound variables in db.statement (dev only)
	SlowQueryThresh time.Duration // default: 200ms
	DBName          string
}

// DBTracingPlugin registers otelgorm plus slow query annotation callbacks.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a new database tracing plugin.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBTracingPlugin{config: cfg, logger: logger}
}

type queryStartKey struct{}

// operations are the gorm callback chains that get timing hooks
var operations = []string{"create", "query", "update", "delete", "row", "raw"}

// registerHooks installs before and after around gorm's own callback for op,
// named <prefix>before_<op> and <prefix>after_<op>.
func registerHooks(db *gorm.DB, op, prefix string, before, after func(*gorm.DB)) error {
	anchor := "gorm:" + op
	beforeName, afterName := prefix+"before_"+op, prefix+"after_"+op
	cb := db.Callback()
	switch op {
	case "create":
		return errors.Join(cb.Create().Before(anchor).Register(beforeName, before), cb.Create().After(anchor).Register(afterName, after))
	case "query":
		return errors.Join(cb.Query().Before(anchor).Register(beforeName, before), cb.Query().After(anchor).Register(afterName, after))
	case "update":
		return errors.Join(cb.Update().Before(anchor).Register(beforeName, before), cb.Update().After(anchor).Register(afterName, after))
	case "delete":
		return errors.Join(cb.Delete().Before(anchor).Register(beforeName, before), cb.Delete().After(anchor).Register(afterName, after))
	case "row":
		return errors.Join(cb.Row().Before(anchor).Register(beforeName, before), cb.Row().After(anchor).Register(afterName, after))
	case "raw":
		return errors.Join(cb.Raw().Before(anchor).Register(beforeName, before), cb.Raw().After(anchor).Register(afterName, after))
	}
	return fmt.Errorf("telemetry: unknown gorm operation %q", op)
}

// Register installs otelgorm and the slow query callbacks on db.
func (p *DBTracingPlugin) Register(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBName)}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	for _, op := range operations {
		if err := registerHooks(db, op, "inventoz_timing:", markQueryStart, p.annotateSpan); err != nil {
			return err
		}
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
	)
	return nil
}

func markQueryStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

// annotateSpan adds rows affected, errors and a slow query marker to the active span
func (p *DBTracingPlugin) annotateSpan(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(start); elapsed > p.config.SlowQueryThresh {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
		))
	}
}
