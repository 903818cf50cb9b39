package course

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Evan-Ewald-Richardson/TREES/internal/db"
	"github.com/Evan-Ewald-Richardson/TREES/internal/shared/wire"
)

var ErrNotFound = errors.New("course not found")

const defaultBufferM = 10

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// CreateInput is the request body for a new course.
type CreateInput struct {
	Name        string             `json:"name"`
	BufferM     int                `json:"buffer_m"`
	Gates       []wire.GatePayload `json:"gates"`
	CreatedBy   string             `json:"created_by"`
	Description string             `json:"description"`
	ImageURL    string             `json:"image_url"`
}

func (s *Service) Create(ctx context.Context, input CreateInput) (wire.Course, error) {
	if input.BufferM <= 0 {
		input.BufferM = defaultBufferM
	}
	gatesJSON, err := json.Marshal(input.Gates)
	if err != nil {
		return wire.Course{}, err
	}

	out := wire.Course{
		Name:        input.Name,
		BufferM:     input.BufferM,
		Gates:       input.Gates,
		GateCount:   len(input.Gates),
		CreatedBy:   input.CreatedBy,
		Description: input.Description,
		ImageURL:    input.ImageURL,
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO courses (name, buffer_m, gates_json, created_by, description, image_url)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at
	`, input.Name, input.BufferM, string(gatesJSON), input.CreatedBy, input.Description, input.ImageURL)
	if err := row.Scan(&out.ID, &out.CreatedAt); err != nil {
		return wire.Course{}, err
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id int) (wire.Course, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, buffer_m, gates_json, COALESCE(created_by,''), COALESCE(description,''), COALESCE(image_url,''), created_at
		FROM courses WHERE id=$1
	`, id)
	course, err := scanCourse(row)
	if err != nil {
		return wire.Course{}, ErrNotFound
	}
	return course, nil
}

func (s *Service) List(ctx context.Context) ([]wire.Course, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, buffer_m, gates_json, COALESCE(created_by,''), COALESCE(description,''), COALESCE(image_url,''), created_at
		FROM courses ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []wire.Course
	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, course)
	}
	return courses, nil
}

// Delete removes a course and its leaderboard entries.
func (s *Service) Delete(ctx context.Context, id int) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM leaderboard_entries WHERE course_id=$1`, id); err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM courses WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Summary lists courses with their leaderboard headline: entry count and
// the current first place.
func (s *Service) Summary(ctx context.Context) ([]wire.CourseSummary, error) {
	courses, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]wire.CourseSummary, 0, len(courses))
	for _, course := range courses {
		summary := wire.CourseSummary{Course: course}
		if err := s.db.QueryRow(ctx,
			`SELECT COUNT(*) FROM leaderboard_entries WHERE course_id=$1`, course.ID,
		).Scan(&summary.LeaderboardCount); err != nil {
			return nil, err
		}

		if summary.LeaderboardCount > 0 {
			var first wire.FirstPlace
			err := s.db.QueryRow(ctx, `
				SELECT username, total_time_sec FROM leaderboard_entries
				WHERE course_id=$1 ORDER BY total_time_sec ASC LIMIT 1
			`, course.ID).Scan(&first.Username, &first.TotalTimeSec)
			if err != nil {
				return nil, err
			}
			summary.FirstPlace = &first
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// SetImageURL records a freshly uploaded course image.
func (s *Service) SetImageURL(ctx context.Context, id int, url string) error {
	tag, err := s.db.Exec(ctx, `UPDATE courses SET image_url=$2 WHERE id=$1`, id, url)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCourse(row rowScanner) (wire.Course, error) {
	var course wire.Course
	var gatesJSON string
	if err := row.Scan(&course.ID, &course.Name, &course.BufferM, &gatesJSON,
		&course.CreatedBy, &course.Description, &course.ImageURL, &course.CreatedAt); err != nil {
		return wire.Course{}, err
	}
	if gatesJSON != "" {
		if err := json.Unmarshal([]byte(gatesJSON), &course.Gates); err != nil {
			return wire.Course{}, err
		}
	}
	course.GateCount = len(course.Gates)
	return course, nil
}
