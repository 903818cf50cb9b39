package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"

	"github.com/Evan-Ewald-Richardson/TREES/internal/shared/wire"
	"github.com/Evan-Ewald-Richardson/TREES/internal/stream"
)

var errBoard = errors.New("leaderboard error")

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

// straightRun walks north one gate-width per 10 seconds, so a course gated
// at the first and last point takes 90 seconds.
func straightRun() []wire.Point {
	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	points := make([]wire.Point, 10)
	for i := range points {
		ts := base.Add(time.Duration(i) * 10 * time.Second)
		points[i] = wire.Point{Lat: 49.0 + float64(i)*0.001, Lon: -123.0, Time: &ts}
	}
	return points
}

func runGatesJSON(t *testing.T) string {
	t.Helper()
	raw, err := json.Marshal([]wire.GatePayload{{
		PairID: 1,
		Name:   "Top to Bottom",
		Start:  wire.LatLon{Lat: 49.0, Lon: -123.0},
		End:    wire.LatLon{Lat: 49.009, Lon: -123.0},
	}})
	if err != nil {
		t.Fatalf("marshal gates: %v", err)
	}
	return string(raw)
}

func expectCourse(mock pgxmock.PgxPoolIface, courseID int, gatesJSON string) {
	mock.ExpectQuery(`SELECT gates_json, buffer_m FROM courses`).
		WithArgs(courseID).
		WillReturnRows(pgxmock.NewRows([]string{"gates_json", "buffer_m"}).AddRow(gatesJSON, 10))
}

func TestSubmitNewEntry(t *testing.T) {
	mock := newMock(t)

	expectCourse(mock, 1, runGatesJSON(t))
	mock.ExpectQuery(`SELECT id, total_time_sec FROM leaderboard_entries`).
		WithArgs(1, "evan").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO leaderboard_entries`).
		WithArgs(1, "evan", 90, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(11, time.Now()))

	hub := stream.NewHub(nil)
	sub := hub.Subscribe(stream.CourseTopic(1))
	defer hub.Unsubscribe(sub)

	svc := NewService(mock, hub)
	result, err := svc.Submit(context.Background(), 1, "evan", straightRun())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Improved || result.Entry.TotalTimeSec != 90 || result.Entry.ID != 11 {
		t.Fatalf("unexpected result: %+v", result)
	}

	select {
	case msg := <-sub.Send:
		var ev stream.Event
		if err := json.Unmarshal(msg, &ev); err != nil || ev.Event != "leaderboard_update" {
			t.Fatalf("unexpected event: %s", msg)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("expected leaderboard_update broadcast")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSubmitImprovesBestTime(t *testing.T) {
	mock := newMock(t)

	expectCourse(mock, 1, runGatesJSON(t))
	mock.ExpectQuery(`SELECT id, total_time_sec FROM leaderboard_entries`).
		WithArgs(1, "evan").
		WillReturnRows(pgxmock.NewRows([]string{"id", "total_time_sec"}).AddRow(11, 120))
	mock.ExpectQuery(`UPDATE leaderboard_entries`).
		WithArgs(11, 90, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	svc := NewService(mock, nil)
	result, err := svc.Submit(context.Background(), 1, "evan", straightRun())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Improved || result.Entry.ID != 11 || result.Entry.TotalTimeSec != 90 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSubmitSlowerRunKeepsExisting(t *testing.T) {
	mock := newMock(t)

	expectCourse(mock, 1, runGatesJSON(t))
	mock.ExpectQuery(`SELECT id, total_time_sec FROM leaderboard_entries`).
		WithArgs(1, "evan").
		WillReturnRows(pgxmock.NewRows([]string{"id", "total_time_sec"}).AddRow(11, 60))
	mock.ExpectQuery(`SELECT id, username, total_time_sec, segment_times_json, created_at`).
		WithArgs(11).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "total_time_sec", "segment_times_json", "created_at"}).
			AddRow(11, "evan", 60, `[{"segment":"Top to Bottom","timeSec":60,"valid":true}]`, time.Now()))

	svc := NewService(mock, nil)
	result, err := svc.Submit(context.Background(), 1, "evan", straightRun())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Improved {
		t.Fatalf("slower run must not improve the board")
	}
	if result.Entry.TotalTimeSec != 60 {
		t.Fatalf("expected existing best to stand, got %+v", result.Entry)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSubmitRejectsIncompleteRun(t *testing.T) {
	mock := newMock(t)

	// gates nowhere near the run
	raw, _ := json.Marshal([]wire.GatePayload{{
		PairID: 1,
		Start:  wire.LatLon{Lat: 10.0, Lon: 10.0},
		End:    wire.LatLon{Lat: 11.0, Lon: 11.0},
	}})
	expectCourse(mock, 1, string(raw))

	svc := NewService(mock, nil)
	_, err := svc.Submit(context.Background(), 1, "evan", straightRun())
	if !errors.Is(err, ErrIncompleteRun) {
		t.Fatalf("expected ErrIncompleteRun, got %v", err)
	}
}

func TestSubmitCourseMissingOrGateless(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT gates_json, buffer_m FROM courses`).
		WithArgs(99).
		WillReturnError(pgx.ErrNoRows)

	svc := NewService(mock, nil)
	if _, err := svc.Submit(context.Background(), 99, "evan", straightRun()); !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("expected ErrCourseNotFound, got %v", err)
	}

	expectCourse(mock, 1, `[]`)
	if _, err := svc.Submit(context.Background(), 1, "evan", straightRun()); !errors.Is(err, ErrNoGates) {
		t.Fatalf("expected ErrNoGates, got %v", err)
	}
}

func TestSubmitTruncatesUsername(t *testing.T) {
	mock := newMock(t)

	long := "a-rider-name-well-past-the-forty-character-column-limit"
	expectCourse(mock, 1, runGatesJSON(t))
	mock.ExpectQuery(`SELECT id, total_time_sec FROM leaderboard_entries`).
		WithArgs(1, long[:maxUsernameLen]).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO leaderboard_entries`).
		WithArgs(1, long[:maxUsernameLen], 90, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(1, time.Now()))

	svc := NewService(mock, nil)
	result, err := svc.Submit(context.Background(), 1, long, straightRun())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(result.Entry.Username) != maxUsernameLen {
		t.Fatalf("expected truncated username, got %q", result.Entry.Username)
	}
}

func TestBoardOrderingAndDecode(t *testing.T) {
	mock := newMock(t)

	now := time.Now()
	mock.ExpectQuery(`SELECT id, username, total_time_sec, segment_times_json, created_at`).
		WithArgs(1).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "total_time_sec", "segment_times_json", "created_at"}).
			AddRow(2, "faster", 80, `[{"segment":"Top to Bottom","timeSec":80,"valid":true}]`, now).
			AddRow(1, "slower", 95, `[{"segment":"Top to Bottom","timeSec":95,"valid":true}]`, now))

	svc := NewService(mock, nil)
	board, err := svc.Board(context.Background(), 1)
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	if len(board.Entries) != 2 || board.Entries[0].Username != "faster" {
		t.Fatalf("unexpected board: %+v", board)
	}
	if len(board.Entries[0].Segments) != 1 || !board.Entries[0].Segments[0].Completed {
		t.Fatalf("segments not decoded: %+v", board.Entries[0].Segments)
	}
}

func TestBoardQueryError(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT id, username, total_time_sec, segment_times_json, created_at`).
		WithArgs(1).
		WillReturnError(errBoard)

	svc := NewService(mock, nil)
	if _, err := svc.Board(context.Background(), 1); err == nil {
		t.Fatalf("expected error")
	}
}
