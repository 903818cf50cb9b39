// Package editor implements the course/gate editing state machine: a
// mutable model of gates, checkpoints, and custom names, kept in sync with
// the rendered map state and the per-track segment-time results.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Evan-Ewald-Richardson/TREES/internal/overlay"
	"github.com/Evan-Ewald-Richardson/TREES/internal/render"
	"github.com/Evan-Ewald-Richardson/TREES/internal/segtime"
	"github.com/Evan-Ewald-Richardson/TREES/internal/shared/wire"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const defaultBufferM = 10

var (
	ErrPairNotFound  = errors.New("gate pair not found")
	ErrGateNotFound  = errors.New("gate not found")
	ErrGateLocked    = errors.New("gate is confirmed and not being edited")
	ErrTrackNotFound = errors.New("track not found")
)

// Backend is the remote API the editing session depends on: course
// re-hydration, course creation on save, the courses grid, and the
// leaderboard for the active course.
type Backend interface {
	GetCourse(ctx context.Context, id int) (wire.Course, error)
	CreateCourse(ctx context.Context, draft CourseDraft) (wire.Course, error)
	CoursesSummary(ctx context.Context) ([]wire.CourseSummary, error)
	Leaderboard(ctx context.Context, courseID int) (wire.Leaderboard, error)
}

// CourseDraft is the flattened, persistable form of the editing model:
// confirmed pairs only.
type CourseDraft struct {
	Name        string             `json:"name"`
	BufferM     int                `json:"buffer_m"`
	Gates       []wire.GatePayload `json:"gates"`
	CreatedBy   string             `json:"created_by,omitempty"`
	Description string             `json:"description,omitempty"`
}

// Session is one course editing session. Gates, checkpoints, and custom
// names are the only mutable state; pairs are always derived on read.
type Session struct {
	ID string

	mu          sync.Mutex
	gates       []Gate
	checkpoints map[int][]wire.LatLon
	names       map[int]string
	bufferM     float64
	courseID    int
	creating    bool
	leaderboard *wire.Leaderboard
	coursesGrid []wire.CourseSummary

	renderer *render.Reconciler
	tracks   *overlay.Manager
	recalc   *segtime.Orchestrator
	backend  Backend

	gridInFlight atomic.Bool
	background   sync.WaitGroup
}

func NewSession(source segtime.Source, backend Backend, notify render.Notifier) *Session {
	tracks := overlay.NewManager()
	return &Session{
		ID:          uuid.NewString(),
		checkpoints: map[int][]wire.LatLon{},
		names:       map[int]string{},
		bufferM:     defaultBufferM,
		renderer:    render.NewReconciler(notify),
		tracks:      tracks,
		recalc:      segtime.NewOrchestrator(source, tracks),
		backend:     backend,
	}
}

// Pairs returns the current derived gate pairs.
func (s *Session) Pairs() []GatePair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pairsLocked()
}

// Gates returns the flat gate collection, lone gates included.
func (s *Session) Gates() []Gate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Gate(nil), s.gates...)
}

// AddPair creates a new unconfirmed pair at the smallest free pair id and
// puts it into edit mode, displacing any other editable pair.
func (s *Session) AddPair(start, end wire.LatLon) GatePair {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.displaceEditingLocked(0)
	pairID := NextPairID(s.gates)
	s.gates = append(s.gates,
		Gate{ID: uuid.NewString(), PairID: pairID, Type: GateStart, Lat: start.Lat, Lon: start.Lon, Editing: true},
		Gate{ID: uuid.NewString(), PairID: pairID, Type: GateEnd, Lat: end.Lat, Lon: end.Lon, Editing: true},
	)
	s.redrawGatesLocked()

	pair, _ := lo.Find(s.pairsLocked(), func(p GatePair) bool { return p.PairID == pairID })
	return pair
}

// MoveGate is the drag path: it mutates coordinates directly and, by
// design of the drag contract, triggers neither a redraw nor a recompute.
func (s *Session) MoveGate(gateID string, lat, lon float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.gates {
		if s.gates[i].ID != gateID {
			continue
		}
		if s.gates[i].Confirmed && !s.pairEditingLocked(s.gates[i].PairID) {
			return ErrGateLocked
		}
		s.gates[i].Lat = lat
		s.gates[i].Lon = lon
		return nil
	}
	return ErrGateNotFound
}

// AddCheckpoint appends a waypoint to a pair's ordered checkpoint
// sequence.
func (s *Session) AddCheckpoint(pairID int, pt wire.LatLon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.pairExistsLocked(pairID) {
		return ErrPairNotFound
	}
	s.checkpoints[pairID] = append(s.checkpoints[pairID], pt)
	s.renderer.SyncCheckpoints(gateViews(s.pairsLocked()))
	return nil
}

// StartEditing puts one pair into edit mode. Any other pair still in edit
// mode is forced out of it, and un-confirmed if it was not fully
// confirmed, clamping the session back to at most one editable pair.
func (s *Session) StartEditing(pairID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.pairExistsLocked(pairID) {
		return ErrPairNotFound
	}
	s.displaceEditingLocked(pairID)
	for i := range s.gates {
		if s.gates[i].PairID == pairID {
			s.gates[i].Editing = true
		}
	}
	s.redrawGatesLocked()
	return nil
}

// SaveAndConfirmPair confirms both gates of a pair, stores its custom
// name, then redraws, recomputes segment times, and refreshes the
// leaderboard for the active course.
func (s *Session) SaveAndConfirmPair(pairID int, customName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.pairExistsLocked(pairID) {
		return ErrPairNotFound
	}
	for i := range s.gates {
		if s.gates[i].PairID == pairID {
			s.gates[i].Confirmed = true
			s.gates[i].Editing = false
		}
	}
	if customName != "" {
		s.names[pairID] = customName
	}
	s.redrawGatesLocked()
	s.recalcLocked()
	s.refreshLeaderboardLocked()
	return nil
}

// RemovePair deletes a pair's gates, checkpoints, and custom name in any
// state, then redraws and recomputes.
func (s *Session) RemovePair(pairID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gates = lo.Filter(s.gates, func(g Gate, _ int) bool { return g.PairID != pairID })
	delete(s.checkpoints, pairID)
	delete(s.names, pairID)
	s.redrawGatesLocked()
	s.recalcLocked()
}

// StartNewCourse clears the gate model and enters the Creating state.
// Loaded tracks are course-independent and survive.
func (s *Session) StartNewCourse() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetCourseLocked()
	s.creating = true
}

// DeselectCourse returns to Viewing, discarding unsaved gates.
func (s *Session) DeselectCourse() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetCourseLocked()
	s.creating = false
}

// SetBuffer changes the crossing tolerance and recomputes.
func (s *Session) SetBuffer(bufferM float64) error {
	if bufferM <= 0 {
		return fmt.Errorf("buffer must be positive, got %v", bufferM)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bufferM = bufferM
	s.recalcLocked()
	return nil
}

// LoadCourse is the single re-hydration path: it fetches the persisted
// course and atomically replaces the whole gate model with its confirmed
// gates, leaving nothing of the previous course behind.
func (s *Session) LoadCourse(ctx context.Context, courseID int) error {
	course, err := s.backend.GetCourse(ctx, courseID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	gates := make([]Gate, 0, len(course.Gates)*2)
	checkpoints := map[int][]wire.LatLon{}
	names := map[int]string{}
	for _, g := range course.Gates {
		gates = append(gates,
			Gate{ID: uuid.NewString(), PairID: g.PairID, Name: g.Name, Type: GateStart, Lat: g.Start.Lat, Lon: g.Start.Lon, Confirmed: true},
			Gate{ID: uuid.NewString(), PairID: g.PairID, Name: g.Name, Type: GateEnd, Lat: g.End.Lat, Lon: g.End.Lon, Confirmed: true},
		)
		if len(g.Checkpoints) > 0 {
			checkpoints[g.PairID] = append([]wire.LatLon(nil), g.Checkpoints...)
		}
		if g.Name != "" {
			names[g.PairID] = g.Name
		}
	}

	s.gates = gates
	s.checkpoints = checkpoints
	s.names = names
	s.courseID = course.ID
	if course.BufferM > 0 {
		s.bufferM = float64(course.BufferM)
	}
	s.creating = false

	s.redrawGatesLocked()
	s.recalcLocked()
	s.refreshLeaderboardLocked()
	return nil
}

// SaveCourse flattens the editing model to its persisted form (confirmed
// pairs only) and creates the course through the backend.
func (s *Session) SaveCourse(ctx context.Context, name, description, createdBy string) (wire.Course, error) {
	s.mu.Lock()
	if name == "" {
		s.mu.Unlock()
		return wire.Course{}, errors.New("course name is required")
	}
	gates := s.confirmedPayloadLocked()
	if len(gates) == 0 {
		s.mu.Unlock()
		return wire.Course{}, errors.New("at least one confirmed gate pair is required")
	}
	draft := CourseDraft{
		Name:        name,
		BufferM:     int(s.bufferM),
		Gates:       gates,
		CreatedBy:   createdBy,
		Description: description,
	}
	s.mu.Unlock()

	course, err := s.backend.CreateCourse(ctx, draft)
	if err != nil {
		return wire.Course{}, err
	}

	s.mu.Lock()
	s.courseID = course.ID
	s.creating = false
	s.mu.Unlock()
	return course, nil
}

// ConfirmedGatePayload is the wire form of the confirmed pairs.
func (s *Session) ConfirmedGatePayload() []wire.GatePayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmedPayloadLocked()
}

// AddTrack loads a track overlay and recomputes segment times.
func (s *Session) AddTrack(name string, points []wire.Point) overlay.Track {
	trk := s.tracks.Add(name, points)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redrawTracksLocked()
	s.recalcLocked()
	return trk
}

// ToggleTrack flips a track's visibility and redraws the track layer.
func (s *Session) ToggleTrack(id string) error {
	if _, ok := s.tracks.Toggle(id); !ok {
		return ErrTrackNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redrawTracksLocked()
	return nil
}

// RemoveTrack deletes a track and redraws the track layer.
func (s *Session) RemoveTrack(id string) error {
	if !s.tracks.Remove(id) {
		return ErrTrackNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redrawTracksLocked()
	return nil
}

// Tracks returns every loaded track with its latest segment times.
func (s *Session) Tracks() []overlay.Track {
	return s.tracks.All()
}

// RefreshCoursesGrid fetches the courses summary. A second call while one
// is in flight is a no-op, preventing duplicate concurrent list fetches.
func (s *Session) RefreshCoursesGrid(ctx context.Context) bool {
	if !s.gridInFlight.CompareAndSwap(false, true) {
		return false
	}
	defer s.gridInFlight.Store(false)

	summary, err := s.backend.CoursesSummary(ctx)
	if err != nil {
		return true
	}
	s.mu.Lock()
	s.coursesGrid = summary
	s.mu.Unlock()
	return true
}

// CoursesGrid returns the last fetched courses summary.
func (s *Session) CoursesGrid() []wire.CourseSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]wire.CourseSummary(nil), s.coursesGrid...)
}

// State is a full snapshot of the session for clients.
type State struct {
	ID             string               `json:"id"`
	CreatingCourse bool                 `json:"creating_course"`
	CourseID       int                  `json:"course_id"`
	BufferM        float64              `json:"buffer_m"`
	Gates          []Gate               `json:"gates"`
	Pairs          []GatePair           `json:"pairs"`
	Tracks         []overlay.Track      `json:"tracks"`
	Leaderboard    *wire.Leaderboard    `json:"leaderboard,omitempty"`
	Render         render.Snapshot      `json:"render"`
}

func (s *Session) State() State {
	tracks := s.tracks.All()
	snap := s.renderer.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	state := State{
		ID:             s.ID,
		CreatingCourse: s.creating,
		CourseID:       s.courseID,
		BufferM:        s.bufferM,
		Gates:          append([]Gate(nil), s.gates...),
		Pairs:          s.pairsLocked(),
		Tracks:         tracks,
		Render:         snap,
	}
	if s.leaderboard != nil {
		board := *s.leaderboard
		state.Leaderboard = &board
	}
	return state
}

// WaitBackground blocks until async recomputes and refreshes settle.
func (s *Session) WaitBackground() {
	s.recalc.Wait()
	s.background.Wait()
}

func (s *Session) pairsLocked() []GatePair {
	return GatePairs(s.gates, s.checkpoints, s.names)
}

func (s *Session) pairExistsLocked(pairID int) bool {
	return lo.SomeBy(s.pairsLocked(), func(p GatePair) bool { return p.PairID == pairID })
}

func (s *Session) pairEditingLocked(pairID int) bool {
	return lo.SomeBy(s.gates, func(g Gate) bool { return g.PairID == pairID && g.Editing })
}

// displaceEditingLocked enforces editing exclusivity: every pair other
// than keep leaves edit mode, and loses its confirmation unless it was
// fully confirmed.
func (s *Session) displaceEditingLocked(keep int) {
	for _, pair := range s.pairsLocked() {
		if pair.PairID == keep || !pair.Editing {
			continue
		}
		for i := range s.gates {
			if s.gates[i].PairID != pair.PairID {
				continue
			}
			s.gates[i].Editing = false
			if !pair.Confirmed {
				s.gates[i].Confirmed = false
			}
		}
	}
	// Lone gates in edit mode are displaced the same way.
	for i := range s.gates {
		if s.gates[i].PairID != keep && s.gates[i].Editing && !s.pairExistsLocked(s.gates[i].PairID) {
			s.gates[i].Editing = false
			s.gates[i].Confirmed = false
		}
	}
}

func (s *Session) resetCourseLocked() {
	s.gates = nil
	s.checkpoints = map[int][]wire.LatLon{}
	s.names = map[int]string{}
	s.bufferM = defaultBufferM
	s.courseID = 0
	s.leaderboard = nil
	s.redrawGatesLocked()
	s.recalcLocked()
}

func (s *Session) redrawGatesLocked() {
	views := gateViews(s.pairsLocked())
	s.renderer.SyncGates(views)
	s.renderer.SyncCheckpoints(views)
}

func (s *Session) redrawTracksLocked() {
	s.renderer.SyncTracks(s.tracks.Views())
}

func (s *Session) recalcLocked() {
	s.recalc.RecalcAll(context.Background(), s.confirmedPayloadLocked(), s.bufferM)
}

func (s *Session) confirmedPayloadLocked() []wire.GatePayload {
	confirmed := lo.Filter(s.pairsLocked(), func(p GatePair, _ int) bool { return p.Confirmed })
	return lo.Map(confirmed, func(p GatePair, _ int) wire.GatePayload {
		return wire.GatePayload{
			PairID:      p.PairID,
			Name:        p.Name,
			Start:       wire.LatLon{Lat: p.Start.Lat, Lon: p.Start.Lon},
			End:         wire.LatLon{Lat: p.End.Lat, Lon: p.End.Lon},
			Checkpoints: append([]wire.LatLon(nil), p.Checkpoints...),
		}
	})
}

func (s *Session) refreshLeaderboardLocked() {
	if s.backend == nil || s.courseID == 0 {
		return
	}
	courseID := s.courseID
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		board, err := s.backend.Leaderboard(context.Background(), courseID)
		if err != nil {
			return
		}
		s.mu.Lock()
		if s.courseID == courseID {
			s.leaderboard = &board
		}
		s.mu.Unlock()
	}()
}

func gateViews(pairs []GatePair) []render.GateView {
	return lo.Map(pairs, func(p GatePair, _ int) render.GateView {
		return render.GateView{
			PairID:      p.PairID,
			Name:        p.Name,
			Start:       render.GateMarker{Lat: p.Start.Lat, Lon: p.Start.Lon, Confirmed: p.Start.Confirmed},
			End:         render.GateMarker{Lat: p.End.Lat, Lon: p.End.Lon, Confirmed: p.End.Confirmed},
			Checkpoints: p.Checkpoints,
			Editing:     p.Editing,
		}
	})
}
