package users

import (
	"context"
	"errors"

	"github.com/Evan-Ewald-Richardson/TREES/internal/db"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("not allowed")
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// Profile assembles a rider's standings and authored courses. Rank is
// position by best time within each course, ties broken by submission
// order.
func (s *Service) Profile(ctx context.Context, name string) (Profile, error) {
	profile := Profile{Name: name, Ranks: []CourseRank{}, CreatedCourses: []CreatedCourse{}}

	rows, err := s.db.Query(ctx, `
		SELECT le.id, le.course_id, c.name, le.total_time_sec, le.created_at,
		       (SELECT COUNT(*) + 1 FROM leaderboard_entries b
		        WHERE b.course_id = le.course_id
		          AND (b.total_time_sec < le.total_time_sec
		               OR (b.total_time_sec = le.total_time_sec AND b.created_at < le.created_at)))
		FROM leaderboard_entries le
		JOIN courses c ON c.id = le.course_id
		WHERE le.username = $1
		ORDER BY c.name
	`, name)
	if err != nil {
		return Profile{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var rank CourseRank
		if err := rows.Scan(&rank.EntryID, &rank.CourseID, &rank.CourseName,
			&rank.TotalTimeSec, &rank.RecordedAt, &rank.Rank); err != nil {
			return Profile{}, err
		}
		profile.Ranks = append(profile.Ranks, rank)
	}

	created, err := s.db.Query(ctx, `
		SELECT id, name, created_at FROM courses
		WHERE created_by = $1
		ORDER BY id
	`, name)
	if err != nil {
		return Profile{}, err
	}
	defer created.Close()

	for created.Next() {
		var course CreatedCourse
		if err := created.Scan(&course.ID, &course.Name, &course.CreatedAt); err != nil {
			return Profile{}, err
		}
		profile.CreatedCourses = append(profile.CreatedCourses, course)
	}

	return profile, nil
}

// DeleteEntry removes a leaderboard entry. Owners can delete their own
// rows; the super user can delete anyone's.
func (s *Service) DeleteEntry(ctx context.Context, entryID int, name string, super bool) error {
	var tagSQL string
	var args []any
	if super {
		tagSQL = `DELETE FROM leaderboard_entries WHERE id=$1`
		args = []any{entryID}
	} else {
		tagSQL = `DELETE FROM leaderboard_entries WHERE id=$1 AND username=$2`
		args = []any{entryID, name}
	}
	tag, err := s.db.Exec(ctx, tagSQL, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCourse removes a course the rider created, along with its
// leaderboard. The super user may delete any course.
func (s *Service) DeleteCourse(ctx context.Context, courseID int, name string, super bool) error {
	if !super {
		var createdBy string
		err := s.db.QueryRow(ctx,
			`SELECT COALESCE(created_by,'') FROM courses WHERE id=$1`, courseID,
		).Scan(&createdBy)
		if err != nil {
			return ErrNotFound
		}
		if createdBy != name {
			return ErrForbidden
		}
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM leaderboard_entries WHERE course_id=$1`, courseID); err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM courses WHERE id=$1`, courseID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
