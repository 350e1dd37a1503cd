package log

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/paperlane/paperlane/pkg/requestid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// StructuredLogger logs the lifecycle of a named operation: start, intermediate steps and outcome.
//
//	tracer := logger.WithContext(ctx).Operation("submit_document").WithUUID("document_id", id).Build()
//	tracer.Step("claimed").Log()
//	tracer.Success().WithString("job_id", jobID).Log()
type StructuredLogger struct {
	name  string
	level zapcore.Level
}

// NewDebugLogger returns a logger that writes steps and successes at debug level.
// Errors are always written at error level.
func NewDebugLogger(name string) *StructuredLogger {
	return &StructuredLogger{name: name, level: zapcore.DebugLevel}
}

// NewInfoLogger is like NewDebugLogger but steps and successes are written at info level.
func NewInfoLogger(name string) *StructuredLogger {
	return &StructuredLogger{name: name, level: zapcore.InfoLevel}
}

type ContextLogger struct {
	parent *StructuredLogger
	fields []zap.Field
}

func (s *StructuredLogger) WithContext(ctx context.Context) *ContextLogger {
	fields := []zap.Field{}
	if reqID := requestid.FromContext(ctx); reqID != "" {
		fields = append(fields, zap.String("request_id", reqID))
	}
	return &ContextLogger{parent: s, fields: fields}
}

func (c *ContextLogger) Operation(name string) *OperationBuilder {
	fields := make([]zap.Field, 0, len(c.fields)+4)
	fields = append(fields, c.fields...)
	fields = append(fields, zap.String("operation", name))
	return &OperationBuilder{parent: c.parent, operation: name, fields: fields}
}

type OperationBuilder struct {
	parent    *StructuredLogger
	operation string
	fields    []zap.Field
}

func (b *OperationBuilder) WithString(key, value string) *OperationBuilder {
	b.fields = append(b.fields, zap.String(key, value))
	return b
}

func (b *OperationBuilder) WithStringPtr(key string, value *string) *OperationBuilder {
	if value != nil {
		b.fields = append(b.fields, zap.String(key, *value))
	}
	return b
}

func (b *OperationBuilder) WithInt(key string, value int) *OperationBuilder {
	b.fields = append(b.fields, zap.Int(key, value))
	return b
}

func (b *OperationBuilder) WithBool(key string, value bool) *OperationBuilder {
	b.fields = append(b.fields, zap.Bool(key, value))
	return b
}

func (b *OperationBuilder) WithUUID(key string, value uuid.UUID) *OperationBuilder {
	b.fields = append(b.fields, zap.String(key, value.String()))
	return b
}

func (b *OperationBuilder) WithParam(key string, value any) *OperationBuilder {
	b.fields = append(b.fields, zap.Any(key, value))
	return b
}

func (b *OperationBuilder) Build() *OperationTracer {
	t := &OperationTracer{
		logger: zap.L().Named(b.parent.name).WithOptions(zap.AddCallerSkip(1)),
		level:  b.parent.level,
		fields: b.fields,
		start:  time.Now(),
	}
	if ce := t.logger.Check(t.level, "operation started"); ce != nil {
		ce.Write(t.fields...)
	}
	return t
}

type OperationTracer struct {
	logger *zap.Logger
	level  zapcore.Level
	fields []zap.Field
	start  time.Time
}

func (t *OperationTracer) Step(name string) *Event {
	return t.event(t.level, "operation step", zap.String("step", name))
}

func (t *OperationTracer) Success() *Event {
	return t.event(t.level, "operation succeeded", zap.Duration("duration", time.Since(t.start)))
}

func (t *OperationTracer) Warn(reason string) *Event {
	return t.event(zapcore.WarnLevel, "operation warning", zap.String("reason", reason))
}

func (t *OperationTracer) Error(err error) *Event {
	return t.event(zapcore.ErrorLevel, "operation failed", zap.Error(err), zap.Duration("duration", time.Since(t.start)))
}

func (t *OperationTracer) event(level zapcore.Level, msg string, extra ...zap.Field) *Event {
	fields := make([]zap.Field, 0, len(t.fields)+len(extra)+2)
	fields = append(fields, t.fields...)
	fields = append(fields, extra...)
	return &Event{logger: t.logger, level: level, msg: msg, fields: fields}
}

// Event is a single log line. Nothing is written until Log is called.
type Event struct {
	logger *zap.Logger
	level  zapcore.Level
	msg    string
	fields []zap.Field
}

func (e *Event) WithString(key, value string) *Event {
	e.fields = append(e.fields, zap.String(key, value))
	return e
}

func (e *Event) WithInt(key string, value int) *Event {
	e.fields = append(e.fields, zap.Int(key, value))
	return e
}

func (e *Event) WithBool(key string, value bool) *Event {
	e.fields = append(e.fields, zap.Bool(key, value))
	return e
}

func (e *Event) WithUUID(key string, value uuid.UUID) *Event {
	e.fields = append(e.fields, zap.String(key, value.String()))
	return e
}

func (e *Event) WithParam(key string, value any) *Event {
	e.fields = append(e.fields, zap.Any(key, value))
	return e
}

func (e *Event) Log() {
	if ce := e.logger.Check(e.level, e.msg); ce != nil {
		ce.Write(e.fields...)
	}
}
