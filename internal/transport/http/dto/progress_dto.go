package dto

import "time"

type LectureProgressResponse struct {
	LectureID int64     `json:"lecture_id"`
	Viewed    bool      `json:"viewed"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CourseProgressResponse struct {
	Completed bool                      `json:"completed"`
	Lectures  []LectureProgressResponse `json:"lectures"`
}
