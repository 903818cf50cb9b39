package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
)

var errUsers = errors.New("users error")

func newUsersMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestProfile(t *testing.T) {
	mock := newUsersMock(t)

	now := time.Now()
	mock.ExpectQuery(`SELECT le.id, le.course_id, c.name, le.total_time_sec, le.created_at`).
		WithArgs("evan").
		WillReturnRows(pgxmock.NewRows([]string{"id", "course_id", "name", "total_time_sec", "created_at", "rank"}).
			AddRow(11, 1, "A-Line", 95, now, 2).
			AddRow(12, 3, "Schleyer", 140, now, 1))
	mock.ExpectQuery(`SELECT id, name, created_at FROM courses`).
		WithArgs("evan").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "created_at"}).
			AddRow(3, "Schleyer", now))

	svc := NewService(mock)
	profile, err := svc.Profile(context.Background(), "evan")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if len(profile.Ranks) != 2 || profile.Ranks[0].Rank != 2 || profile.Ranks[1].CourseName != "Schleyer" {
		t.Fatalf("unexpected ranks: %+v", profile.Ranks)
	}
	if len(profile.CreatedCourses) != 1 || profile.CreatedCourses[0].ID != 3 {
		t.Fatalf("unexpected created courses: %+v", profile.CreatedCourses)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestProfileEmpty(t *testing.T) {
	mock := newUsersMock(t)

	mock.ExpectQuery(`SELECT le.id, le.course_id, c.name, le.total_time_sec, le.created_at`).
		WithArgs("nobody").
		WillReturnRows(pgxmock.NewRows([]string{"id", "course_id", "name", "total_time_sec", "created_at", "rank"}))
	mock.ExpectQuery(`SELECT id, name, created_at FROM courses`).
		WithArgs("nobody").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "created_at"}))

	svc := NewService(mock)
	profile, err := svc.Profile(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.Ranks == nil || profile.CreatedCourses == nil {
		t.Fatalf("empty profile should serialize as empty lists")
	}
}

func TestDeleteEntryOwner(t *testing.T) {
	mock := newUsersMock(t)

	mock.ExpectExec(`DELETE FROM leaderboard_entries WHERE id=\$1 AND username=\$2`).
		WithArgs(11, "evan").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	svc := NewService(mock)
	if err := svc.DeleteEntry(context.Background(), 11, "evan", false); err != nil {
		t.Fatalf("delete entry: %v", err)
	}

	mock.ExpectExec(`DELETE FROM leaderboard_entries WHERE id=\$1 AND username=\$2`).
		WithArgs(12, "evan").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	if err := svc.DeleteEntry(context.Background(), 12, "evan", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteEntrySuper(t *testing.T) {
	mock := newUsersMock(t)

	mock.ExpectExec(`DELETE FROM leaderboard_entries WHERE id=\$1$`).
		WithArgs(11).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	svc := NewService(mock)
	if err := svc.DeleteEntry(context.Background(), 11, "admin", true); err != nil {
		t.Fatalf("delete entry as super: %v", err)
	}
}

func TestDeleteCourseOwner(t *testing.T) {
	mock := newUsersMock(t)

	mock.ExpectQuery(`SELECT COALESCE\(created_by,''\) FROM courses`).
		WithArgs(3).
		WillReturnRows(pgxmock.NewRows([]string{"created_by"}).AddRow("evan"))
	mock.ExpectExec(`DELETE FROM leaderboard_entries WHERE course_id=\$1`).
		WithArgs(3).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))
	mock.ExpectExec(`DELETE FROM courses WHERE id=\$1`).
		WithArgs(3).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	svc := NewService(mock)
	if err := svc.DeleteCourse(context.Background(), 3, "evan", false); err != nil {
		t.Fatalf("delete course: %v", err)
	}
}

func TestDeleteCourseNotOwner(t *testing.T) {
	mock := newUsersMock(t)

	mock.ExpectQuery(`SELECT COALESCE\(created_by,''\) FROM courses`).
		WithArgs(3).
		WillReturnRows(pgxmock.NewRows([]string{"created_by"}).AddRow("someone-else"))

	svc := NewService(mock)
	if err := svc.DeleteCourse(context.Background(), 3, "evan", false); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestDeleteCourseSuperSkipsOwnership(t *testing.T) {
	mock := newUsersMock(t)

	mock.ExpectExec(`DELETE FROM leaderboard_entries WHERE course_id=\$1`).
		WithArgs(3).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM courses WHERE id=\$1`).
		WithArgs(3).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	svc := NewService(mock)
	if err := svc.DeleteCourse(context.Background(), 3, "admin", true); err != nil {
		t.Fatalf("delete course as super: %v", err)
	}
}

func TestDeleteCourseMissing(t *testing.T) {
	mock := newUsersMock(t)

	mock.ExpectQuery(`SELECT COALESCE\(created_by,''\) FROM courses`).
		WithArgs(99).
		WillReturnError(errUsers)

	svc := NewService(mock)
	if err := svc.DeleteCourse(context.Background(), 99, "evan", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
