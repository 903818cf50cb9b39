package users

import "time"

// CourseRank is one leaderboard standing on a rider's profile.
type CourseRank struct {
	CourseID     int       `json:"course_id"`
	CourseName   string    `json:"course_name"`
	Rank         int       `json:"rank"`
	TotalTimeSec int       `json:"total_time_sec"`
	EntryID      int       `json:"entry_id"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// CreatedCourse is a course the rider authored.
type CreatedCourse struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Profile struct {
	Name           string          `json:"name"`
	Ranks          []CourseRank    `json:"ranks"`
	CreatedCourses []CreatedCourse `json:"created_courses"`
}
