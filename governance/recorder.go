package governance

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fedgovio/fedgov/types"
)

// =============================================================================
// 📜 Provenance recording
// =============================================================================

// Record is one provenance entry describing a governance mutation.
type Record struct {
	Operation    string
	Kind         string
	GovernanceID uuid.UUID
	Version      int
	Actor        uuid.UUID
}

// Recorder receives a Record for every successful mutation. The production
// deployment forwards these to the provenance graph; the default
// implementation writes structured log lines.
type Recorder interface {
	Record(ctx context.Context, rec Record)
}

// LogRecorder logs provenance records through zap.
type LogRecorder struct {
	logger *zap.Logger
}

// NewLogRecorder creates a log-backed recorder.
func NewLogRecorder(logger *zap.Logger) *LogRecorder {
	return &LogRecorder{logger: logger.With(zap.String("component", "provenance"))}
}

// Record writes the provenance entry as a structured log line.
func (r *LogRecorder) Record(ctx context.Context, rec Record) {
	fields := []zap.Field{
		zap.String("operation", rec.Operation),
		zap.String("kind", rec.Kind),
		zap.String("governance_id", rec.GovernanceID.String()),
		zap.Int("version", rec.Version),
	}
	if rec.Actor != uuid.Nil {
		fields = append(fields, zap.String("actor", rec.Actor.String()))
	}
	if traceID, ok := types.TraceID(ctx); ok {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	r.logger.Info("governance mutation", fields...)
}
