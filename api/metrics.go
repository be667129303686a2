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
	boardTracerName  = "board-api"
	boardEventName   = "board.snapshot"
	boardEventDomain = "board"
	boardRoute       = "/api/board"
)

// boardRequestMetrics collects per-request timings for the board snapshot
// endpoint and emits them both as a trace span and a structured log line.
type boardRequestMetrics struct {
	logger         *log.Logger
	span           trace.Span
	start          time.Time
	authDuration   time.Duration
	loadDuration   time.Duration
	encodeDuration time.Duration
	queryProvided  bool
	tasksVisible   int
	errorStage     string
}

func newBoardRequestMetrics(ctx context.Context, logger *log.Logger) (*boardRequestMetrics, context.Context) {
	spanCtx, span := otel.Tracer(boardTracerName).Start(ctx, boardEventName)
	return &boardRequestMetrics{
		logger: logger,
		span:   span,
		start:  time.Now(),
	}, spanCtx
}

func (m *boardRequestMetrics) ObserveAuth(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.authDuration = duration
}

func (m *boardRequestMetrics) ObserveLoad(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.loadDuration = duration
}

func (m *boardRequestMetrics) ObserveEncode(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.encodeDuration = duration
}

func (m *boardRequestMetrics) SetQueryProvided(provided bool) {
	m.queryProvided = provided
}

func (m *boardRequestMetrics) SetTasksVisible(count int) {
	if count < 0 {
		count = 0
	}
	m.tasksVisible = count
}

func (m *boardRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *boardRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	if m.span != nil {
		attrs := []attribute.KeyValue{
			attribute.String("http.route", boardRoute),
			attribute.Int("http.status_code", status),
			attribute.Bool("board.query_provided", m.queryProvided),
			attribute.Int("board.tasks_visible", m.tasksVisible),
		}
		if m.errorStage != "" {
			attrs = append(attrs, attribute.String("board.error_stage", m.errorStage))
		}
		m.span.SetAttributes(attrs...)
		if err != nil {
			m.span.RecordError(err)
			m.span.SetStatus(codes.Error, err.Error())
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"event.name":     boardEventName,
		"event.domain":   boardEventDomain,
		"route":          boardRoute,
		"status":         status,
		"total_ms":       durationToMillis(time.Since(m.start)),
		"query_provided": m.queryProvided,
		"tasks_visible":  m.tasksVisible,
	}
	if m.authDuration > 0 {
		fields["auth_ms"] = durationToMillis(m.authDuration)
	}
	if m.loadDuration > 0 {
		fields["load_ms"] = durationToMillis(m.loadDuration)
	}
	if m.encodeDuration > 0 {
		fields["encode_ms"] = durationToMillis(m.encodeDuration)
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	m.logger.WithFields(fields).Info("board.request.metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
