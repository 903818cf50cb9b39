package segtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Evan-Ewald-Richardson/TREES/internal/overlay"
	"github.com/Evan-Ewald-Richardson/TREES/internal/shared/wire"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu    sync.Mutex
	calls int
	fn    func(points []wire.Point) ([]wire.SegmentResult, error)
}

func (f *fakeSource) SegmentTimes(_ context.Context, points []wire.Point, _ []wire.GatePayload, _ float64) ([]wire.SegmentResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(points)
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func somePoints(lat float64) []wire.Point {
	return []wire.Point{{Lat: lat, Lon: -123.0}}
}

var someGates = []wire.GatePayload{{
	PairID: 1,
	Name:   "Gate Pair 1",
	Start:  wire.LatLon{Lat: 49.0, Lon: -123.0},
	End:    wire.LatLon{Lat: 49.1, Lon: -123.0},
}}

func TestRecalcAllNoConfirmedGates(t *testing.T) {
	tracks := overlay.NewManager()
	trk := tracks.Add("ride", somePoints(49.0))
	require.True(t, tracks.SetSegmentTimes(trk.ID, 0, []wire.SegmentResult{{Segment: "stale"}}))

	source := &fakeSource{fn: func([]wire.Point) ([]wire.SegmentResult, error) {
		t.Fatal("no request may be issued with zero confirmed gates")
		return nil, nil
	}}
	o := NewOrchestrator(source, tracks)

	o.RecalcAll(context.Background(), nil, 10)
	o.Wait()

	assert.Equal(t, 0, source.callCount())
	assert.Empty(t, tracks.All()[0].SegmentTimes)
}

func TestRecalcAllPerTrackFailureIsolation(t *testing.T) {
	tracks := overlay.NewManager()
	good := tracks.Add("good", somePoints(49.0))
	bad := tracks.Add("bad", somePoints(50.0))

	source := &fakeSource{fn: func(points []wire.Point) ([]wire.SegmentResult, error) {
		if points[0].Lat == 50.0 {
			return nil, errors.New("boom")
		}
		return []wire.SegmentResult{{Segment: "Gate Pair 1", TimeSec: 42, Completed: true, Valid: true}}, nil
	}}
	o := NewOrchestrator(source, tracks)

	o.RecalcAll(context.Background(), someGates, 10)
	o.Wait()

	byID := map[string]overlay.Track{}
	for _, trk := range tracks.All() {
		byID[trk.ID] = trk
	}
	require.Len(t, byID[good.ID].SegmentTimes, 1)
	assert.Equal(t, 42, byID[good.ID].SegmentTimes[0].TimeSec)
	assert.Empty(t, byID[bad.ID].SegmentTimes, "failing track clears only itself")
}

func TestRecalcAllSkipsEmptyTracks(t *testing.T) {
	tracks := overlay.NewManager()
	tracks.Add("empty", nil)

	source := &fakeSource{fn: func([]wire.Point) ([]wire.SegmentResult, error) {
		return []wire.SegmentResult{}, nil
	}}
	o := NewOrchestrator(source, tracks)

	o.RecalcAll(context.Background(), someGates, 10)
	o.Wait()
	assert.Equal(t, 0, source.callCount())
}

func TestRecalcAllStaleRoundDiscarded(t *testing.T) {
	tracks := overlay.NewManager()
	trk := tracks.Add("ride", somePoints(49.0))

	release := make(chan struct{})
	source := &fakeSource{fn: func([]wire.Point) ([]wire.SegmentResult, error) {
		<-release
		return []wire.SegmentResult{{Segment: "slow", TimeSec: 1, Completed: true}}, nil
	}}
	o := NewOrchestrator(source, tracks)

	// First round stalls in flight; a second round supersedes it.
	o.RecalcAll(context.Background(), someGates, 10)
	fast := NewOrchestrator(&fakeSource{fn: func([]wire.Point) ([]wire.SegmentResult, error) {
		return []wire.SegmentResult{{Segment: "fresh", TimeSec: 2, Completed: true}}, nil
	}}, tracks)
	fast.RecalcAll(context.Background(), someGates, 10)
	fast.Wait()

	close(release)
	o.Wait()

	results := tracks.All()[0].SegmentTimes
	require.Len(t, results, 1)
	assert.Equal(t, "fresh", results[0].Segment, "stale completion must not overwrite newer result")
	_ = trk
}

func TestClientAgainstHTTPContract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/segment-times", r.URL.Path)
		var req struct {
			Points  []wire.Point       `json:"points"`
			Gates   []wire.GatePayload `json:"gates"`
			BufferM float64            `json:"buffer_m"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Gates, 1)
		assert.Equal(t, 10.0, req.BufferM)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"segments": []wire.SegmentResult{{Segment: "Gate Pair 1", TimeSec: 7, Completed: true, Valid: true}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	segments, err := client.SegmentTimes(context.Background(), somePoints(49.0), someGates, 10)
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, 7, segments[0].TimeSec)
}

func TestClientNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.SegmentTimes(context.Background(), somePoints(49.0), someGates, 10)
	require.Error(t, err)
}
