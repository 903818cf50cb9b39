// Package overlay manages the set of loaded tracks, their selection state,
// and the per-track segment-time result slots.
package overlay

import (
	"sync"

	"github.com/Evan-Ewald-Richardson/TREES/internal/render"
	"github.com/Evan-Ewald-Richardson/TREES/internal/shared/wire"

	"github.com/google/uuid"
)

// palette colors are assigned round-robin in load order.
var palette = []string{
	"#e6194b", "#3cb44b", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#808000",
}

// Track is one loaded track. SegmentTimes is filled in asynchronously by
// the recompute orchestrator; generation guards stale writes.
type Track struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	Points       []wire.Point         `json:"points"`
	Color        string               `json:"color"`
	Selected     bool                 `json:"selected"`
	SegmentTimes []wire.SegmentResult `json:"segment_times"`

	generation uint64
}

// Manager owns the track collection.
type Manager struct {
	mu        sync.Mutex
	tracks    []*Track
	byID      map[string]*Track
	nextColor int
}

func NewManager() *Manager {
	return &Manager{byID: map[string]*Track{}}
}

// Add loads a track and selects it. Zero-point tracks are allowed; they
// are never drawn and never sent for recomputation.
func (m *Manager) Add(name string, points []wire.Point) Track {
	m.mu.Lock()
	defer m.mu.Unlock()

	trk := &Track{
		ID:       uuid.NewString(),
		Name:     name,
		Points:   append([]wire.Point(nil), points...),
		Color:    palette[m.nextColor%len(palette)],
		Selected: true,
	}
	m.nextColor++
	m.tracks = append(m.tracks, trk)
	m.byID[trk.ID] = trk
	return snapshotTrack(trk)
}

// Toggle flips a track's selection and reports the new state.
func (m *Manager) Toggle(id string) (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	trk, ok := m.byID[id]
	if !ok {
		return false, false
	}
	trk.Selected = !trk.Selected
	return trk.Selected, true
}

// Remove deletes a track; a removed track is also dropped from the
// selection set and can no longer receive segment-time writes.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	trk, ok := m.byID[id]
	if !ok {
		return false
	}
	delete(m.byID, id)
	for i, candidate := range m.tracks {
		if candidate == trk {
			m.tracks = append(m.tracks[:i], m.tracks[i+1:]...)
			break
		}
	}
	return true
}

// Clear removes every track.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracks = nil
	m.byID = map[string]*Track{}
	m.nextColor = 0
}

// All returns copies of every track in load order.
func (m *Manager) All() []Track {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Track, 0, len(m.tracks))
	for _, trk := range m.tracks {
		out = append(out, snapshotTrack(trk))
	}
	return out
}

// Views returns the drawable tracks: selected with at least one point.
func (m *Manager) Views() []render.TrackView {
	m.mu.Lock()
	defer m.mu.Unlock()
	var views []render.TrackView
	for _, trk := range m.tracks {
		if !trk.Selected || len(trk.Points) == 0 {
			continue
		}
		points := make([]wire.LatLon, len(trk.Points))
		for i, pt := range trk.Points {
			points[i] = wire.LatLon{Lat: pt.Lat, Lon: pt.Lon}
		}
		views = append(views, render.TrackView{
			ID:     trk.ID,
			Name:   trk.Name,
			Color:  trk.Color,
			Points: points,
		})
	}
	return views
}

// RecalcTarget is a track snapshot handed to the recompute orchestrator.
// Generation identifies the recompute round that produced it.
type RecalcTarget struct {
	ID         string
	Points     []wire.Point
	Generation uint64
}

// BeginRecalc bumps every track's generation and returns targets for the
// tracks that have points. Any in-flight result from an earlier round is
// invalidated by the bump.
func (m *Manager) BeginRecalc() []RecalcTarget {
	m.mu.Lock()
	defer m.mu.Unlock()
	var targets []RecalcTarget
	for _, trk := range m.tracks {
		trk.generation++
		if len(trk.Points) == 0 {
			continue
		}
		targets = append(targets, RecalcTarget{
			ID:         trk.ID,
			Points:     append([]wire.Point(nil), trk.Points...),
			Generation: trk.generation,
		})
	}
	return targets
}

// SetSegmentTimes stores a recompute result. The write is dropped when the
// track is gone or a newer round has started since the result's snapshot.
func (m *Manager) SetSegmentTimes(id string, generation uint64, results []wire.SegmentResult) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	trk, ok := m.byID[id]
	if !ok || trk.generation != generation {
		return false
	}
	trk.SegmentTimes = results
	return true
}

// ClearAllSegmentTimes empties every track's result and invalidates all
// in-flight recompute rounds.
func (m *Manager) ClearAllSegmentTimes() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, trk := range m.tracks {
		trk.generation++
		trk.SegmentTimes = []wire.SegmentResult{}
	}
}

func snapshotTrack(trk *Track) Track {
	out := *trk
	out.Points = append([]wire.Point(nil), trk.Points...)
	out.SegmentTimes = append([]wire.SegmentResult(nil), trk.SegmentTimes...)
	return out
}
