package engine

import (
	"time"

	"go.uber.org/zap"
)

// StageEvent is a structured telemetry record for one engine stage. Events
// are collected on the result for persistence and mirrored to the logger;
// downstream layers treat them as data, not free text.
type StageEvent struct {
	Stage      string         `json:"stage"`
	DurationMS int64          `json:"duration_ms"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// track runs fn, captures its metadata as a StageEvent, and appends it to
// events. The closure style keeps stage timing and logging in one place.
func track(events *[]StageEvent, stage string, fn func() map[string]any) {
	start := time.Now()
	meta := fn()
	ev := StageEvent{
		Stage:      stage,
		DurationMS: time.Since(start).Milliseconds(),
		Metadata:   meta,
	}
	*events = append(*events, ev)

	fields := []zap.Field{zap.String("stage", stage), zap.Int64("duration_ms", ev.DurationMS)}
	for k, v := range meta {
		fields = append(fields, zap.Any(k, v))
	}
	zap.L().Debug("engine: stage complete", fields...)
}
