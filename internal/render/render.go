// Package render mirrors the editing model onto map primitives. It is the
// only writer of the rendered set: callers hand it the current model and it
// clears and redraws one category at a time, so the rendered state is
// always a pure function of the model.
package render

import (
	"fmt"
	"sync"

	"github.com/Evan-Ewald-Richardson/TREES/internal/shared/wire"
)

type Category string

const (
	CategoryGates       Category = "gates"
	CategoryCheckpoints Category = "checkpoints"
	CategoryTracks      Category = "tracks"
)

const (
	fillStart       = "#34a853"
	fillEnd         = "#ea4335"
	fillCheckpoint  = "#4363d8"
	borderConfirmed = "#202124"
	borderPending   = "#fbbc05"
)

// Marker is a rendered point primitive.
type Marker struct {
	ID        string   `json:"id"`
	Category  Category `json:"category"`
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
	Fill      string   `json:"fill"`
	Border    string   `json:"border"`
	Label     string   `json:"label"`
	Draggable bool     `json:"draggable"`
}

// Polyline is a rendered line primitive.
type Polyline struct {
	ID       string        `json:"id"`
	Category Category      `json:"category"`
	Points   []wire.LatLon `json:"points"`
	Color    string        `json:"color"`
}

// Bounds is a lat/lon bounding box accumulator.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
	valid  bool
}

func (b *Bounds) Extend(lat, lon float64) {
	if !b.valid {
		b.MinLat, b.MaxLat = lat, lat
		b.MinLon, b.MaxLon = lon, lon
		b.valid = true
		return
	}
	if lat < b.MinLat {
		b.MinLat = lat
	}
	if lat > b.MaxLat {
		b.MaxLat = lat
	}
	if lon < b.MinLon {
		b.MinLon = lon
	}
	if lon > b.MaxLon {
		b.MaxLon = lon
	}
}

func (b *Bounds) Valid() bool { return b.valid }

// GateView is the per-pair input to gate and checkpoint reconciliation.
type GateView struct {
	PairID      int
	Name        string
	Start       GateMarker
	End         GateMarker
	Checkpoints []wire.LatLon
	Editing     bool
}

// GateMarker is one gate of a pair as the renderer needs to see it.
type GateMarker struct {
	Lat       float64
	Lon       float64
	Confirmed bool
}

// TrackView is a drawable track: already filtered to selected tracks with
// at least one point.
type TrackView struct {
	ID     string
	Name   string
	Color  string
	Points []wire.LatLon
}

// Snapshot is the complete rendered state in stable order.
type Snapshot struct {
	Markers   []Marker   `json:"markers"`
	Polylines []Polyline `json:"polylines"`
	Viewport  *Bounds    `json:"viewport,omitempty"`
}

// Notifier receives the full snapshot after every reconcile pass.
type Notifier func(Snapshot)

// Reconciler owns all rendered primitives, grouped by category.
type Reconciler struct {
	mu        sync.Mutex
	markers   map[Category][]Marker
	polylines map[Category][]Polyline
	viewport  *Bounds
	notify    Notifier
}

func NewReconciler(notify Notifier) *Reconciler {
	return &Reconciler{
		markers:   map[Category][]Marker{},
		polylines: map[Category][]Polyline{},
		notify:    notify,
	}
}

// SyncGates replaces every gate marker with markers derived from the given
// pairs. A gate is draggable while its pair is unconfirmed or being edited;
// confirmed, non-editing gates are locked.
func (r *Reconciler) SyncGates(pairs []GateView) {
	r.mu.Lock()
	markers := make([]Marker, 0, len(pairs)*2)
	for _, pair := range pairs {
		markers = append(markers,
			gateMarker(pair, pair.Start, true),
			gateMarker(pair, pair.End, false),
		)
	}
	r.markers[CategoryGates] = markers
	r.mu.Unlock()
	r.notifyChanged()
}

// SyncCheckpoints replaces every checkpoint marker. Checkpoint labels keep
// the pair's ordering since the sequence is race-relevant.
func (r *Reconciler) SyncCheckpoints(pairs []GateView) {
	r.mu.Lock()
	var markers []Marker
	for _, pair := range pairs {
		for i, cp := range pair.Checkpoints {
			markers = append(markers, Marker{
				ID:       fmt.Sprintf("cp-%d-%d", pair.PairID, i+1),
				Category: CategoryCheckpoints,
				Lat:      cp.Lat,
				Lon:      cp.Lon,
				Fill:     fillCheckpoint,
				Border:   borderConfirmed,
				Label:    fmt.Sprintf("%s CP %d", pair.Name, i+1),
			})
		}
	}
	r.markers[CategoryCheckpoints] = markers
	r.mu.Unlock()
	r.notifyChanged()
}

// SyncTracks replaces every track polyline and refits the viewport to the
// union of the drawn tracks' bounds, accumulated in render order. No drawn
// tracks leaves the viewport unset.
func (r *Reconciler) SyncTracks(tracks []TrackView) {
	r.mu.Lock()
	lines := make([]Polyline, 0, len(tracks))
	var bounds Bounds
	for _, trk := range tracks {
		points := make([]wire.LatLon, len(trk.Points))
		copy(points, trk.Points)
		lines = append(lines, Polyline{
			ID:       "track-" + trk.ID,
			Category: CategoryTracks,
			Points:   points,
			Color:    trk.Color,
		})
		for _, pt := range trk.Points {
			bounds.Extend(pt.Lat, pt.Lon)
		}
	}
	r.polylines[CategoryTracks] = lines
	if bounds.Valid() {
		r.viewport = &bounds
	} else {
		r.viewport = nil
	}
	r.mu.Unlock()
	r.notifyChanged()
}

// Snapshot returns a copy of the rendered state in category order.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

func (r *Reconciler) snapshot() Snapshot {
	snap := Snapshot{Markers: []Marker{}, Polylines: []Polyline{}}
	for _, cat := range []Category{CategoryGates, CategoryCheckpoints, CategoryTracks} {
		snap.Markers = append(snap.Markers, r.markers[cat]...)
		snap.Polylines = append(snap.Polylines, r.polylines[cat]...)
	}
	if r.viewport != nil {
		vp := *r.viewport
		snap.Viewport = &vp
	}
	return snap
}

func (r *Reconciler) notifyChanged() {
	if r.notify == nil {
		return
	}
	r.mu.Lock()
	snap := r.snapshot()
	r.mu.Unlock()
	r.notify(snap)
}

func gateMarker(pair GateView, gate GateMarker, isStart bool) Marker {
	suffix := "end"
	fill := fillEnd
	if isStart {
		suffix = "start"
		fill = fillStart
	}
	border := borderPending
	if gate.Confirmed {
		border = borderConfirmed
	}
	return Marker{
		ID:        fmt.Sprintf("gate-%d-%s", pair.PairID, suffix),
		Category:  CategoryGates,
		Lat:       gate.Lat,
		Lon:       gate.Lon,
		Fill:      fill,
		Border:    border,
		Label:     pair.Name,
		Draggable: !gate.Confirmed || pair.Editing,
	}
}
