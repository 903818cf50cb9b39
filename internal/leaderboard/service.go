package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/Evan-Ewald-Richardson/TREES/internal/db"
	"github.com/Evan-Ewald-Richardson/TREES/internal/gpx"
	"github.com/Evan-Ewald-Richardson/TREES/internal/shared/wire"
	"github.com/Evan-Ewald-Richardson/TREES/internal/stream"

	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
)

var (
	ErrCourseNotFound = errors.New("course not found")
	ErrNoGates        = errors.New("course has no gates")
	ErrIncompleteRun  = errors.New("run did not complete every segment")
)

const maxUsernameLen = 40

type Service struct {
	db  db.Querier
	hub *stream.Hub
}

func NewService(db db.Querier, hub *stream.Hub) *Service {
	return &Service{db: db, hub: hub}
}

// SubmitResult reports what happened to a submission: the board row that now
// stands for the rider, and whether this run set or improved it.
type SubmitResult struct {
	Entry    wire.LeaderboardEntry `json:"entry"`
	Improved bool                  `json:"improved"`
}

// Submit scores a recorded ride against the course gates and keeps the
// rider's best time. Runs that miss a gate or a checkpoint are rejected
// rather than stored.
func (s *Service) Submit(ctx context.Context, courseID int, username string, points []wire.Point) (SubmitResult, error) {
	username = strings.TrimSpace(username)
	if len(username) > maxUsernameLen {
		username = username[:maxUsernameLen]
	}

	var gatesJSON string
	var bufferM int
	err := s.db.QueryRow(ctx,
		`SELECT gates_json, buffer_m FROM courses WHERE id=$1`, courseID,
	).Scan(&gatesJSON, &bufferM)
	if err != nil {
		return SubmitResult{}, ErrCourseNotFound
	}

	var gates []wire.GatePayload
	if gatesJSON != "" {
		if err := json.Unmarshal([]byte(gatesJSON), &gates); err != nil {
			return SubmitResult{}, err
		}
	}
	if len(gates) == 0 {
		return SubmitResult{}, ErrNoGates
	}

	results := gpx.ComputeSegmentTimes(points, gates, float64(bufferM))
	if lo.SomeBy(results, func(r wire.SegmentResult) bool { return !r.Completed }) {
		return SubmitResult{}, ErrIncompleteRun
	}
	total := lo.SumBy(results, func(r wire.SegmentResult) int { return r.TimeSec })

	segmentsJSON, err := json.Marshal(results)
	if err != nil {
		return SubmitResult{}, err
	}

	entry := wire.LeaderboardEntry{
		Username:     username,
		TotalTimeSec: total,
		Segments:     results,
	}

	var existingID, existingTotal int
	err = s.db.QueryRow(ctx,
		`SELECT id, total_time_sec FROM leaderboard_entries WHERE course_id=$1 AND username=$2`,
		courseID, username,
	).Scan(&existingID, &existingTotal)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		row := s.db.QueryRow(ctx, `
			INSERT INTO leaderboard_entries (course_id, username, total_time_sec, segment_times_json)
			VALUES ($1,$2,$3,$4)
			RETURNING id, created_at
		`, courseID, username, total, string(segmentsJSON))
		if err := row.Scan(&entry.ID, &entry.CreatedAt); err != nil {
			return SubmitResult{}, err
		}
	case err != nil:
		return SubmitResult{}, err
	case total < existingTotal:
		row := s.db.QueryRow(ctx, `
			UPDATE leaderboard_entries
			SET total_time_sec=$2, segment_times_json=$3, created_at=now()
			WHERE id=$1
			RETURNING created_at
		`, existingID, total, string(segmentsJSON))
		if err := row.Scan(&entry.CreatedAt); err != nil {
			return SubmitResult{}, err
		}
		entry.ID = existingID
	default:
		// prior run stands
		prior, err := s.entry(ctx, existingID)
		if err != nil {
			return SubmitResult{}, err
		}
		return SubmitResult{Entry: prior}, nil
	}

	if s.hub != nil {
		s.hub.Publish(stream.CourseTopic(courseID), "leaderboard_update", entry)
	}
	return SubmitResult{Entry: entry, Improved: true}, nil
}

// Board returns a course's entries ordered fastest first.
func (s *Service) Board(ctx context.Context, courseID int) (wire.Leaderboard, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, username, total_time_sec, segment_times_json, created_at
		FROM leaderboard_entries WHERE course_id=$1
		ORDER BY total_time_sec ASC, created_at ASC
	`, courseID)
	if err != nil {
		return wire.Leaderboard{}, err
	}
	defer rows.Close()

	board := wire.Leaderboard{CourseID: courseID, Entries: []wire.LeaderboardEntry{}}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return wire.Leaderboard{}, err
		}
		board.Entries = append(board.Entries, entry)
	}
	return board, nil
}

func (s *Service) entry(ctx context.Context, id int) (wire.LeaderboardEntry, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, username, total_time_sec, segment_times_json, created_at
		FROM leaderboard_entries WHERE id=$1
	`, id)
	return scanEntry(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (wire.LeaderboardEntry, error) {
	var entry wire.LeaderboardEntry
	var segmentsJSON string
	if err := row.Scan(&entry.ID, &entry.Username, &entry.TotalTimeSec, &segmentsJSON, &entry.CreatedAt); err != nil {
		return wire.LeaderboardEntry{}, err
	}
	if segmentsJSON != "" {
		if err := json.Unmarshal([]byte(segmentsJSON), &entry.Segments); err != nil {
			return wire.LeaderboardEntry{}, err
		}
	}
	return entry, nil
}
