package recorder

import (
	"context"

	"StagePlanner/internal/model"
)

// NoopRecorder is a no-op implementation used when no database is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) SavePlan(_ context.Context, _ *model.Plan) error { return nil }
func (n *NoopRecorder) LatestPlan(_ context.Context, _ string) (*model.Plan, error) {
	return nil, ErrNotFound
}
func (n *NoopRecorder) RecordZoneCheck(_ context.Context, _ *ZoneCheck) error { return nil }
func (n *NoopRecorder) LastZone(_ context.Context, _ string) (*ZoneCheck, error) {
	return nil, ErrNotFound
}
func (n *NoopRecorder) Close() error { return nil }
