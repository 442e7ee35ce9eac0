package models

import "time"

// ContentType enumerates learning material formats.
type ContentType string

const (
	ContentTypeVideo    ContentType = "VIDEO"
	ContentTypePDF      ContentType = "PDF"
	ContentTypeDocument ContentType = "DOCUMENT"
	ContentTypeLink     ContentType = "LINK"
)

// Content is a piece of learning material, optionally attached to a course.
type Content struct {
	ID              string      `db:"id" json:"id"`
	Title           string      `db:"title" json:"title"`
	Type            ContentType `db:"type" json:"type"`
	DurationMinutes *int        `db:"duration_minutes" json:"durationMinutes,omitempty"`
	CourseID        *string     `db:"course_id" json:"courseId,omitempty"`
	UploadedAt      time.Time   `db:"uploaded_at" json:"uploadedAt"`
}

// ContentFilter provides filters for listing contents.
type ContentFilter struct {
	Type     ContentType
	CourseID string
	Search   string
	Page     int
	PageSize int
}
