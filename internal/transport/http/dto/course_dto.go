package dto

import "time"

type CourseCreateRequest struct {
	Title    string `json:"title"`
	Category string `json:"category"`
}

type CourseUpdateRequest struct {
	Title        *string `json:"title,omitempty"`
	Subtitle     *string `json:"subtitle,omitempty"`
	Description  *string `json:"description,omitempty"`
	Category     *string `json:"category,omitempty"`
	Level        *string `json:"level,omitempty"`
	Price        *int64  `json:"price,omitempty"`
	ThumbnailKey *string `json:"thumbnail_key,omitempty"`
}

type CoursePublishRequest struct {
	Published bool `json:"published"`
}

type CourseResponse struct {
	ID           int64     `json:"id"`
	CreatorID    int64     `json:"creator_id"`
	Title        string    `json:"title"`
	Subtitle     *string   `json:"subtitle,omitempty"`
	Description  *string   `json:"description,omitempty"`
	Category     string    `json:"category"`
	Level        string    `json:"level"`
	Price        int64     `json:"price"`
	ThumbnailKey *string   `json:"thumbnail_key,omitempty"`
	Published    bool      `json:"published"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type CourseListResponse struct {
	Courses []CourseResponse `json:"courses"`
}

type CourseViewResponse struct {
	Course   CourseResponse    `json:"course"`
	Lectures []LectureResponse `json:"lectures"`
}

type LectureCreateRequest struct {
	Title string `json:"title"`
}

type LectureUpdateRequest struct {
	Title     *string `json:"title,omitempty"`
	VideoKey  *string `json:"video_key,omitempty"`
	IsPreview *bool   `json:"is_preview,omitempty"`
	Position  *int    `json:"position,omitempty"`
}

type LectureResponse struct {
	ID        int64   `json:"id"`
	CourseID  int64   `json:"course_id"`
	Title     string  `json:"title"`
	VideoKey  *string `json:"video_key,omitempty"`
	IsPreview bool    `json:"is_preview"`
	Position  int     `json:"position"`
}

type LectureListResponse struct {
	Lectures []LectureResponse `json:"lectures"`
}

type DeleteResponse struct {
	OK bool `json:"ok"`
}
