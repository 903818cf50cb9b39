package gpx

import (
	"fmt"
	"math"

	"github.com/Evan-Ewald-Richardson/TREES/internal/shared/geo"
	"github.com/Evan-Ewald-Richardson/TREES/internal/shared/wire"
)

type timedHit struct {
	index int
	ms    float64
}

// pointsNearWithTime returns every timestamped point within radiusM of the
// target. Untimed points never count as gate crossings.
func pointsNearWithTime(points []wire.Point, target wire.LatLon, radiusM float64) []timedHit {
	var hits []timedHit
	for i, pt := range points {
		if pt.Time == nil {
			continue
		}
		if geo.WithinRadius(pt.Lat, pt.Lon, target.Lat, target.Lon, radiusM) {
			hits = append(hits, timedHit{index: i, ms: float64(pt.Time.UnixMilli())})
		}
	}
	return hits
}

func passThroughBetween(points []wire.Point, target wire.LatLon, start, end int, radiusM float64) bool {
	for i := start; i <= end; i++ {
		if geo.WithinRadius(points[i].Lat, points[i].Lon, target.Lat, target.Lon, radiusM) {
			return true
		}
	}
	return false
}

func checkpointsValidBetween(points []wire.Point, checkpoints []wire.LatLon, start, end int, radiusM float64) bool {
	for _, cp := range checkpoints {
		if !passThroughBetween(points, cp, start, end, radiusM) {
			return false
		}
	}
	return true
}

// ComputeSegmentTimes evaluates each gate pair against the track. For a
// pair, the fastest start/end crossing combination wins, subject to the end
// crossing coming after the start in track order. Checkpoints must all be
// touched between the chosen crossings; missing one marks the segment
// invalid but keeps its time.
func ComputeSegmentTimes(points []wire.Point, gates []wire.GatePayload, bufferM float64) []wire.SegmentResult {
	results := make([]wire.SegmentResult, 0, len(gates))
	for _, gate := range gates {
		name := gate.Name
		if name == "" {
			name = fmt.Sprintf("Pair %d", gate.PairID)
		}

		starts := pointsNearWithTime(points, gate.Start, bufferM)
		ends := pointsNearWithTime(points, gate.End, bufferM)
		if len(starts) == 0 || len(ends) == 0 {
			results = append(results, wire.SegmentResult{Segment: name})
			continue
		}

		bestSeconds := math.Inf(1)
		bestStart, bestEnd := -1, -1
		for _, s := range starts {
			for _, e := range ends {
				if e.index <= s.index {
					continue
				}
				delta := (e.ms - s.ms) / 1000.0
				if delta <= 0 || delta >= bestSeconds {
					continue
				}
				bestSeconds = delta
				bestStart, bestEnd = s.index, e.index
			}
		}
		if bestStart < 0 {
			results = append(results, wire.SegmentResult{Segment: name})
			continue
		}

		results = append(results, wire.SegmentResult{
			Segment:   name,
			TimeSec:   int(math.Round(bestSeconds)),
			Completed: true,
			Valid:     checkpointsValidBetween(points, gate.Checkpoints, bestStart, bestEnd, bufferM),
		})
	}
	return results
}
