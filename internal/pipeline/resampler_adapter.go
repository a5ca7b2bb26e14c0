package pipeline

import (
	"github.com/aristath/epochscript/internal/queue"
	"github.com/aristath/epochscript/internal/resample"
)

// ResamplerAdapter adapts resample.Resampler's resample.AssetTable/Bucket
// shapes onto pipeline.IResampler's identically-shaped but distinctly-named
// AssetTable/Bucket types, so the orchestrator depends only on the pipeline
// package's own interfaces (spec §6).
type ResamplerAdapter struct {
	Resampler *resample.Resampler
}

// NewResamplerAdapter wraps r as a pipeline.IResampler.
func NewResamplerAdapter(r *resample.Resampler) *ResamplerAdapter {
	return &ResamplerAdapter{Resampler: r}
}

// Build implements IResampler.
func (a *ResamplerAdapter) Build(base []AssetTable, progress *queue.ProgressReporter) ([]Bucket, error) {
	in := make([]resample.AssetTable, len(base))
	for i, at := range base {
		in[i] = resample.AssetTable{Asset: at.Asset, Table: at.Table}
	}

	buckets, err := a.Resampler.Build(in, progress)
	if err != nil {
		return nil, err
	}

	out := make([]Bucket, len(buckets))
	for i, b := range buckets {
		out[i] = Bucket{Timeframe: b.Timeframe, Asset: b.Asset, Table: b.Table}
	}
	return out, nil
}
