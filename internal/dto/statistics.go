package dto

// MonthlyCount is one bar of a monthly series. Month is formatted YYYY-MM.
type MonthlyCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// MonthlyRate is one point of a monthly percentage series.
type MonthlyRate struct {
	Month     string  `json:"month"`
	Rate      float64 `json:"rate"`
	Completed int     `json:"completed"`
	Decided   int     `json:"decided"`
}

// CategoryBreakdown groups courses and enrollments by category.
type CategoryBreakdown struct {
	Category    string `db:"category" json:"category"`
	Courses     int    `db:"courses" json:"courses"`
	Enrollments int    `db:"enrollments" json:"enrollments"`
}

// EnrollmentSeries is the monthly enrollment chart payload.
type EnrollmentSeries struct {
	Months []MonthlyCount `json:"months"`
	Total  int            `json:"total"`
}

// CompletionSeries is the monthly completion-rate chart payload.
type CompletionSeries struct {
	Months []MonthlyRate `json:"months"`
}
