package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/trace"
)

// OTelHandler writes every record to the wrapped handler and mirrors it to the
// global OpenTelemetry logger provider.
type OTelHandler struct {
	handler slog.Handler
	logger  log.Logger
	attrs   []log.KeyValue
}

func NewOTelHandler(handler slog.Handler, scope string) *OTelHandler {
	return &OTelHandler{
		handler: handler,
		logger:  global.GetLoggerProvider().Logger(scope),
	}
}

func (h *OTelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *OTelHandler) Handle(ctx context.Context, record slog.Record) error {
	if err := h.handler.Handle(ctx, record); err != nil {
		return err
	}

	logRecord := log.Record{}
	logRecord.SetTimestamp(record.Time)
	logRecord.SetBody(log.StringValue(record.Message))
	logRecord.SetSeverity(severity(record.Level))
	logRecord.SetSeverityText(record.Level.String())

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()
		logRecord.AddAttributes(
			log.String("trace_id", spanCtx.TraceID().String()),
			log.String("span_id", spanCtx.SpanID().String()),
		)
	}

	logRecord.AddAttributes(h.attrs...)
	record.Attrs(func(attr slog.Attr) bool {
		logRecord.AddAttributes(convertAttr(attr))
		return true
	})

	h.logger.Emit(ctx, logRecord)
	return nil
}

func (h *OTelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	converted := make([]log.KeyValue, 0, len(h.attrs)+len(attrs))
	converted = append(converted, h.attrs...)
	for _, attr := range attrs {
		converted = append(converted, convertAttr(attr))
	}
	return &OTelHandler{
		handler: h.handler.WithAttrs(attrs),
		logger:  h.logger,
		attrs:   converted,
	}
}

func (h *OTelHandler) WithGroup(name string) slog.Handler {
	return &OTelHandler{
		handler: h.handler.WithGroup(name),
		logger:  h.logger,
		attrs:   h.attrs,
	}
}

func severity(level slog.Level) log.Severity {
	switch {
	case level >= slog.LevelError:
		return log.SeverityError
	case level >= slog.LevelWarn:
		return log.SeverityWarn
	case level >= slog.LevelInfo:
		return log.SeverityInfo
	default:
		return log.SeverityDebug
	}
}

func convertAttr(attr slog.Attr) log.KeyValue {
	value := attr.Value.Resolve()
	switch value.Kind() {
	case slog.KindBool:
		return log.Bool(attr.Key, value.Bool())
	case slog.KindInt64:
		return log.Int64(attr.Key, value.Int64())
	case slog.KindFloat64:
		return log.Float64(attr.Key, value.Float64())
	default:
		return log.String(attr.Key, value.String())
	}
}
