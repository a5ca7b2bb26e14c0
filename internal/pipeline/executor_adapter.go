package pipeline

import (
	"fmt"

	"github.com/aristath/epochscript/internal/domain"
	"github.com/aristath/epochscript/internal/registry"
)

// DemoExecutorAdapter adapts registry.DemoExecutor's single-table Execute
// method onto the nested-map IDataFlowOrchestrator.ExecutePipeline contract
// (spec §6), running the compiled program independently over every
// (timeframe, asset) table. It generates no reports or event markers: the
// demo executor models compiler-internal node types only, not report/marker
// producing transforms (see registry.DemoExecutor's own doc comment).
type DemoExecutorAdapter struct {
	executor *registry.DemoExecutor
}

// NewDemoExecutorAdapter builds an IDataFlowOrchestrator around a compiled
// program using the demo executor.
func NewDemoExecutorAdapter(program *domain.CompiledProgram) *DemoExecutorAdapter {
	return &DemoExecutorAdapter{executor: registry.NewDemoExecutor(program)}
}

// ExecutePipeline implements IDataFlowOrchestrator.
func (a *DemoExecutorAdapter) ExecutePipeline(in TimeframeAssetTables) (TimeframeAssetTables, error) {
	out := make(TimeframeAssetTables, len(in))
	for tf, assets := range in {
		outAssets := make(map[string]*domain.Table, len(assets))
		for assetId, table := range assets {
			transformed, err := a.executor.Execute(table)
			if err != nil {
				return nil, fmt.Errorf("pipeline: execute %s/%s: %w", tf, assetId, err)
			}
			outAssets[assetId] = transformed
		}
		out[tf] = outAssets
	}
	return out, nil
}

// GetGeneratedReports implements IDataFlowOrchestrator.
func (a *DemoExecutorAdapter) GetGeneratedReports() []Report { return nil }

// GetGeneratedEventMarkers implements IDataFlowOrchestrator.
func (a *DemoExecutorAdapter) GetGeneratedEventMarkers() []EventMarker { return nil }
