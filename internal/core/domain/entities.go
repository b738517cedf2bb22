package domain

import (
	"time"
)

// PointSetInfo describes a stored point set without its points.
type PointSetInfo struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Count      int            `json:"count"`
	Bounds     *Bounds        `json:"bounds,omitempty"`
	SourceID   string         `json:"source_id,omitempty"`   // set when derived by sampling
	IntervalKm float64        `json:"interval_km,omitempty"` // spacing the set was sampled at
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	// RequestKey deduplicates creates issued by retried callers.
	RequestKey string `json:"-"`
}

// StoredPointSet is a persisted point set with its points.
type StoredPointSet struct {
	PointSetInfo
	Points *PointSet `json:"points"`
}

// SamplingKind distinguishes the two sampling operations.
type SamplingKind string

const (
	// SamplingGrid generates a synthetic grid over a Bounds.
	SamplingGrid SamplingKind = "grid"
	// SamplingDownsample keeps at most one point per cell of a stored set.
	SamplingDownsample SamplingKind = "downsample"
)

// SamplingResult is the outcome of a grid or downsample run.
type SamplingResult struct {
	Kind         SamplingKind `json:"kind"`
	Grid         Grid         `json:"grid"`
	IntervalKm   float64      `json:"interval_km"`
	InputPoints  int          `json:"input_points"`
	OutputPoints int          `json:"output_points"`
	SourceID     string       `json:"source_id,omitempty"`
	ResultID     string       `json:"result_id,omitempty"` // set when the result was persisted
	Points       *PointSet    `json:"points"`
}

// SamplingEvent is published after a sampling run completes.
type SamplingEvent struct {
	Kind         SamplingKind `json:"kind"`
	SourceID     string       `json:"source_id,omitempty"`
	ResultID     string       `json:"result_id,omitempty"`
	Bounds       Bounds       `json:"bounds"`
	IntervalKm   float64      `json:"interval_km"`
	Rows         int          `json:"rows"`
	Cols         int          `json:"cols"`
	InputPoints  int          `json:"input_points"`
	OutputPoints int          `json:"output_points"`
	Time         time.Time    `json:"time"`
}

// NewSamplingEvent summarizes r for publication.
func NewSamplingEvent(r *SamplingResult) *SamplingEvent {
	return &SamplingEvent{
		Kind:         r.Kind,
		SourceID:     r.SourceID,
		ResultID:     r.ResultID,
		Bounds:       r.Grid.Bounds,
		IntervalKm:   r.IntervalKm,
		Rows:         r.Grid.Rows,
		Cols:         r.Grid.Cols,
		InputPoints:  r.InputPoints,
		OutputPoints: r.OutputPoints,
		Time:         time.Now().UTC(),
	}
}
