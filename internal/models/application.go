package models

import "time"

// ApplicationStatus represents the lifecycle of a course application.
type ApplicationStatus string

const (
	ApplicationStatusPending   ApplicationStatus = "PENDING"
	ApplicationStatusApproved  ApplicationStatus = "APPROVED"
	ApplicationStatusRejected  ApplicationStatus = "REJECTED"
	ApplicationStatusCompleted ApplicationStatus = "COMPLETED"
	ApplicationStatusCancelled ApplicationStatus = "CANCELLED"
)

// HoldsSeat reports whether an application in this status occupies course capacity.
func (s ApplicationStatus) HoldsSeat() bool {
	switch s {
	case ApplicationStatusPending, ApplicationStatusApproved, ApplicationStatusCompleted:
		return true
	default:
		return false
	}
}

var applicationTransitions = map[ApplicationStatus][]ApplicationStatus{
	ApplicationStatusPending:  {ApplicationStatusApproved, ApplicationStatusRejected, ApplicationStatusCancelled},
	ApplicationStatusApproved: {ApplicationStatusCompleted, ApplicationStatusCancelled},
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	for _, allowed := range applicationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Application is a user's registration for a course.
type Application struct {
	ID          string            `db:"id" json:"id"`
	CourseID    string            `db:"course_id" json:"courseId"`
	UserID      string            `db:"user_id" json:"userId"`
	Status      ApplicationStatus `db:"status" json:"status"`
	AppliedAt   time.Time         `db:"applied_at" json:"appliedAt"`
	DecidedAt   *time.Time        `db:"decided_at" json:"decidedAt,omitempty"`
	CompletedAt *time.Time        `db:"completed_at" json:"completedAt,omitempty"`
}

// ApplicationDetail enriches Application with course info.
type ApplicationDetail struct {
	Application
	CourseTitle    string `db:"course_title" json:"courseTitle"`
	CourseCategory string `db:"course_category" json:"courseCategory"`
}

// ApplicationFilter provides filters for listing applications.
type ApplicationFilter struct {
	UserID    string
	CourseID  string
	Status    ApplicationStatus
	Page      int
	PageSize  int
	SortOrder string
}
