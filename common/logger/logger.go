package logger

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/trace"

	"cadence.app/outreach/core/config"
)

// Setup installs the process-wide slog default. Production ships records
// through the OTel log bridge when an exporter is configured and writes
// JSON to stdout otherwise. Development writes text at debug level.
func Setup(cfg config.Config) {
	level := slog.LevelInfo
	if cfg.IsDevelopment() {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var base slog.Handler
	switch {
	case cfg.IsProduction() && cfg.OTel.Enabled():
		// The bridge reads trace ids from ctx itself.
		base = otelslog.NewHandler(cfg.OTel.ServiceName, otelslog.WithLoggerProvider(global.GetLoggerProvider()))
		slog.SetDefault(slog.New(&TraceHandler{Handler: base, skipTraceIDs: true}))
		return
	case cfg.IsProduction():
		base = slog.NewJSONHandler(os.Stdout, opts)
	default:
		base = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(NewTraceHandler(base)))
}

// TraceHandler tags records with the active trace and the LogFields stored
// in ctx.
type TraceHandler struct {
	slog.Handler
	skipTraceIDs bool
}

func NewTraceHandler(h slog.Handler) *TraceHandler {
	return &TraceHandler{Handler: h}
}

func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.skipTraceIDs {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			r.AddAttrs(
				slog.String("trace_id", sc.TraceID().String()),
				slog.String("span_id", sc.SpanID().String()),
			)
		}
	}
	r.AddAttrs(GetLogFields(ctx).attrs()...)
	return h.Handler.Handle(ctx, r)
}

func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceHandler{Handler: h.Handler.WithAttrs(attrs), skipTraceIDs: h.skipTraceIDs}
}

func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{Handler: h.Handler.WithGroup(name), skipTraceIDs: h.skipTraceIDs}
}
