// Package wire holds the JSON shapes shared between the HTTP API and the
// editing engine's segment-time client, so the two sides cannot drift.
package wire

import (
	"encoding/json"
	"time"
)

// LatLon is a bare coordinate.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Point is a single track point. Elevation and timestamp are optional and
// serialize as null when absent.
type Point struct {
	Lat  float64    `json:"lat"`
	Lon  float64    `json:"lon"`
	Ele  *float64   `json:"ele"`
	Time *time.Time `json:"time"`
}

// GatePayload is one gate pair in the course/segment-times wire format.
type GatePayload struct {
	PairID      int      `json:"pairId"`
	Name        string   `json:"name"`
	Start       LatLon   `json:"start"`
	End         LatLon   `json:"end"`
	Checkpoints []LatLon `json:"checkpoints,omitempty"`
}

// Track is a named point sequence as returned by upload and import
// endpoints.
type Track struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// SegmentResult is the outcome for one gate pair. A segment that was not
// completed serializes its time as the string "N/A" to stay compatible
// with stored leaderboard rows.
type SegmentResult struct {
	Segment   string
	TimeSec   int
	Completed bool
	Valid     bool
}

type segmentResultJSON struct {
	Segment string          `json:"segment"`
	TimeSec json.RawMessage `json:"timeSec"`
	Valid   bool            `json:"valid"`
}

func (s SegmentResult) MarshalJSON() ([]byte, error) {
	out := segmentResultJSON{Segment: s.Segment, Valid: s.Valid}
	if s.Completed {
		raw, err := json.Marshal(s.TimeSec)
		if err != nil {
			return nil, err
		}
		out.TimeSec = raw
	} else {
		out.TimeSec = json.RawMessage(`"N/A"`)
	}
	return json.Marshal(out)
}

func (s *SegmentResult) UnmarshalJSON(data []byte) error {
	var in segmentResultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	s.Segment = in.Segment
	s.Valid = in.Valid
	s.Completed = false
	s.TimeSec = 0
	var sec int
	if err := json.Unmarshal(in.TimeSec, &sec); err == nil {
		s.TimeSec = sec
		s.Completed = true
	}
	return nil
}

// FirstPlace is the current leader of a course.
type FirstPlace struct {
	Username     string `json:"username"`
	TotalTimeSec int    `json:"total_time_sec"`
}

// CourseSummary is a course plus its leaderboard headline.
type CourseSummary struct {
	Course
	LeaderboardCount int         `json:"leaderboard_count"`
	FirstPlace       *FirstPlace `json:"first_place"`
}

// LeaderboardEntry is one stored result.
type LeaderboardEntry struct {
	ID           int             `json:"id"`
	Username     string          `json:"username"`
	TotalTimeSec int             `json:"total_time_sec"`
	Segments     []SegmentResult `json:"segments"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Leaderboard is the ordered board for one course.
type Leaderboard struct {
	CourseID int                `json:"course_id"`
	Entries  []LeaderboardEntry `json:"entries"`
}

// Course is the persisted course as exposed by the API.
type Course struct {
	ID          int           `json:"id"`
	Name        string        `json:"name"`
	BufferM     int           `json:"buffer_m"`
	Gates       []GatePayload `json:"gates"`
	GateCount   int           `json:"gate_count"`
	CreatedBy   string        `json:"created_by,omitempty"`
	Description string        `json:"description,omitempty"`
	ImageURL    string        `json:"image_url,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}
