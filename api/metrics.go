package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tasksSpanName    = "api.tasks.list"
	tasksEventName   = "tasks.request.metrics"
	tasksEventDomain = "planner"
)

// taskRequestMetrics collects per-request timings for the task list route and
// emits them once, both as an otel span event and as a structured log entry.
type taskRequestMetrics struct {
	logger *log.Logger
	span   trace.Span
	start  time.Time

	authDuration   time.Duration
	fetchDuration  time.Duration
	encodeDuration time.Duration
	filtered       bool
	stale          bool
	tasksReturned  int
	errorStage     string
}

func newTaskRequestMetrics(ctx context.Context, logger *log.Logger) (*taskRequestMetrics, context.Context) {
	tracer := otel.Tracer("planner-api/api")
	spanCtx, span := tracer.Start(ctx, tasksSpanName)
	return &taskRequestMetrics{logger: logger, span: span, start: time.Now()}, spanCtx
}

func (m *taskRequestMetrics) ObserveAuth(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.authDuration = duration
}

func (m *taskRequestMetrics) ObserveFetch(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.fetchDuration = duration
}

func (m *taskRequestMetrics) ObserveEncode(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.encodeDuration = duration
}

func (m *taskRequestMetrics) SetFiltered(filtered bool) {
	m.filtered = filtered
}

func (m *taskRequestMetrics) SetStale(stale bool) {
	m.stale = stale
}

func (m *taskRequestMetrics) SetTasksReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.tasksReturned = count
}

func (m *taskRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= 500:
		return "ERROR", 17
	case status >= 400:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

// Log finalizes the request span and emits the observability event. It must
// be called exactly once per request.
func (m *taskRequestMetrics) Log(status int, err error) {
	if m == nil || m.span == nil {
		return
	}

	totalMs := durationToMillis(time.Since(m.start))
	attrs := []attribute.KeyValue{
		attribute.String("http.route", "/api/tasks"),
		attribute.Int("http.status_code", status),
		attribute.Float64("planner.tasks.total_ms", totalMs),
		attribute.Bool("planner.tasks.filtered", m.filtered),
		attribute.Bool("planner.tasks.stale", m.stale),
		attribute.Int("planner.tasks.tasks_returned", m.tasksReturned),
	}
	if m.authDuration > 0 {
		attrs = append(attrs, attribute.Float64("planner.tasks.auth_ms", durationToMillis(m.authDuration)))
	}
	if m.fetchDuration > 0 {
		attrs = append(attrs, attribute.Float64("planner.tasks.fetch_ms", durationToMillis(m.fetchDuration)))
	}
	if m.encodeDuration > 0 {
		attrs = append(attrs, attribute.Float64("planner.tasks.encode_ms", durationToMillis(m.encodeDuration)))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("planner.tasks.error_stage", m.errorStage))
	}

	severityText, severityNumber := severityForStatus(status, err)
	eventAttrs := append([]attribute.KeyValue{
		attribute.String("event.name", tasksEventName),
		attribute.String("event.domain", tasksEventDomain),
		attribute.String("severity_text", severityText),
		attribute.Int("severity_number", severityNumber),
	}, attrs...)
	if err != nil {
		eventAttrs = append(eventAttrs, attribute.String("error.message", err.Error()))
	}

	m.span.SetAttributes(attrs...)
	m.span.AddEvent("observability.event", trace.WithAttributes(eventAttrs...))
	if err != nil || status >= 500 {
		description := "request failed"
		if err != nil {
			description = err.Error()
		}
		m.span.SetStatus(codes.Error, description)
	} else {
		m.span.SetStatus(codes.Ok, "")
	}
	m.span.End()

	if m.logger == nil {
		return
	}
	logAttrs := map[string]any{
		"http.route":                   "/api/tasks",
		"http.status_code":             status,
		"planner.tasks.total_ms":       totalMs,
		"planner.tasks.filtered":       m.filtered,
		"planner.tasks.stale":          m.stale,
		"planner.tasks.tasks_returned": m.tasksReturned,
	}
	if m.authDuration > 0 {
		logAttrs["planner.tasks.auth_ms"] = durationToMillis(m.authDuration)
	}
	if m.fetchDuration > 0 {
		logAttrs["planner.tasks.fetch_ms"] = durationToMillis(m.fetchDuration)
	}
	if m.encodeDuration > 0 {
		logAttrs["planner.tasks.encode_ms"] = durationToMillis(m.encodeDuration)
	}
	if m.errorStage != "" {
		logAttrs["planner.tasks.error_stage"] = m.errorStage
	}
	fields := log.Fields{
		"event.name":      tasksEventName,
		"event.domain":    tasksEventDomain,
		"severity_text":   severityText,
		"severity_number": severityNumber,
		"attributes":      logAttrs,
	}
	if err != nil {
		fields["error.message"] = err.Error()
	}
	if spanContext := m.span.SpanContext(); spanContext.IsValid() {
		fields["trace_id"] = spanContext.TraceID().String()
		fields["span_id"] = spanContext.SpanID().String()
	}
	m.logger.WithFields(fields).Info("observability.event")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
