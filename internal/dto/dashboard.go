package dto

import "time"

// DashboardSummary is the headline card set on the admin home screen.
type DashboardSummary struct {
	TotalCourses   int       `json:"totalCourses"`
	OpenCourses    int       `json:"openCourses"`
	ActiveCourses  int       `json:"activeCourses"`
	TotalStudents  int       `json:"totalStudents"`
	CompletionRate float64   `json:"completionRate"`
	GeneratedAt    time.Time `json:"generatedAt"`
}
