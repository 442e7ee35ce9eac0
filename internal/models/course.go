package models

import (
	"time"

	"github.com/noah-isme/lms-admin-api/internal/registration"
)

// CourseLifecycle describes whether a course is taught yet, independent of registration.
type CourseLifecycle string

const (
	CourseLifecycleUpcoming   CourseLifecycle = "UPCOMING"
	CourseLifecycleInProgress CourseLifecycle = "IN_PROGRESS"
	CourseLifecycleCompleted  CourseLifecycle = "COMPLETED"
)

// Course is a catalogue entry with its registration window and capacity.
type Course struct {
	ID                  string    `db:"id" json:"id"`
	Title               string    `db:"title" json:"title"`
	Category            string    `db:"category" json:"category"`
	Instructor          string    `db:"instructor" json:"instructor"`
	Credits             int       `db:"credits" json:"credits"`
	Description         string    `db:"description" json:"description"`
	RegistrationStart   time.Time `db:"registration_start" json:"registrationStart"`
	RegistrationEnd     time.Time `db:"registration_end" json:"registrationEnd"`
	StartDate           time.Time `db:"start_date" json:"startDate"`
	EndDate             time.Time `db:"end_date" json:"endDate"`
	MaxParticipants     int       `db:"max_participants" json:"maxParticipants"`
	CurrentParticipants int       `db:"current_participants" json:"currentParticipants"`
	CreatedAt           time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time `db:"updated_at" json:"updatedAt"`
}

// Window projects the registration-relevant fields.
func (c Course) Window() registration.Window {
	return registration.Window{
		Start:               c.RegistrationStart,
		End:                 c.RegistrationEnd,
		MaxParticipants:     c.MaxParticipants,
		CurrentParticipants: c.CurrentParticipants,
	}
}

// Lifecycle classifies the teaching period relative to now. Both dates are inclusive.
func (c Course) Lifecycle(now time.Time) CourseLifecycle {
	switch {
	case now.Before(c.StartDate):
		return CourseLifecycleUpcoming
	case now.After(c.EndDate):
		return CourseLifecycleCompleted
	default:
		return CourseLifecycleInProgress
	}
}

// CourseView is a course with states derived at a reference instant.
type CourseView struct {
	Course
	RegistrationState registration.State `json:"registrationState"`
	Lifecycle         CourseLifecycle    `json:"lifecycle"`
	RemainingSeats    int                `json:"remainingSeats"`
}

// NewCourseView derives the view fields for now.
func NewCourseView(c Course, now time.Time) CourseView {
	w := c.Window()
	return CourseView{
		Course:            c,
		RegistrationState: registration.Classify(w, now),
		Lifecycle:         c.Lifecycle(now),
		RemainingSeats:    w.RemainingSeats(),
	}
}

// CourseFilter provides filters for listing courses.
type CourseFilter struct {
	Category  string
	Search    string
	State     registration.State
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// RegistrationStatus is the advisory answer for a single course.
type RegistrationStatus struct {
	CourseID       string                    `json:"courseId"`
	State          registration.State        `json:"state"`
	Admitted       bool                      `json:"admitted"`
	Reason         registration.DenialReason `json:"reason,omitempty"`
	RemainingSeats int                       `json:"remainingSeats"`
	EvaluatedAt    time.Time                 `json:"evaluatedAt"`
}
