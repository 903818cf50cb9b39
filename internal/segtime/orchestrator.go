package segtime

import (
	"context"
	"log"
	"sync"

	"github.com/Evan-Ewald-Richardson/TREES/internal/overlay"
	"github.com/Evan-Ewald-Richardson/TREES/internal/shared/wire"
)

// Orchestrator fans segment-time requests out per track. Each track has an
// independent result slot: one track failing clears only that track, and a
// result from a superseded round is discarded by the generation check in
// the track manager.
type Orchestrator struct {
	source Source
	tracks *overlay.Manager
	wg     sync.WaitGroup
}

func NewOrchestrator(source Source, tracks *overlay.Manager) *Orchestrator {
	return &Orchestrator{source: source, tracks: tracks}
}

// RecalcAll recomputes segment times for every loaded track. With no
// confirmed gates it clears every result and issues no requests; otherwise
// one independent request per non-empty track is started and the call
// returns without waiting for them.
func (o *Orchestrator) RecalcAll(ctx context.Context, gates []wire.GatePayload, bufferM float64) {
	if len(gates) == 0 {
		o.tracks.ClearAllSegmentTimes()
		return
	}

	for _, target := range o.tracks.BeginRecalc() {
		o.wg.Add(1)
		go func(target overlay.RecalcTarget) {
			defer o.wg.Done()
			segments, err := o.source.SegmentTimes(ctx, target.Points, gates, bufferM)
			if err != nil {
				log.Printf("segment times for track %s failed: %v", target.ID, err)
				o.tracks.SetSegmentTimes(target.ID, target.Generation, []wire.SegmentResult{})
				return
			}
			o.tracks.SetSegmentTimes(target.ID, target.Generation, segments)
		}(target)
	}
}

// Wait blocks until every in-flight request has completed.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}
