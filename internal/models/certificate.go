package models

import "time"

// CertificateStatus captures the rendering lifecycle of a certificate.
type CertificateStatus string

const (
	CertificateStatusPending CertificateStatus = "PENDING"
	CertificateStatusIssued  CertificateStatus = "ISSUED"
	CertificateStatusFailed  CertificateStatus = "FAILED"
)

// Certificate is a completion certificate issued for a completed application.
type Certificate struct {
	ID             string            `db:"id" json:"id"`
	SerialNumber   string            `db:"serial_number" json:"serialNumber"`
	ApplicationID  string            `db:"application_id" json:"applicationId"`
	StudentName    string            `db:"student_name" json:"studentName"`
	CourseTitle    string            `db:"course_title" json:"courseTitle"`
	CompletionDate time.Time         `db:"completion_date" json:"completionDate"`
	Grade          string            `db:"grade" json:"grade"`
	Status         CertificateStatus `db:"status" json:"status"`
	FilePath       *string           `db:"file_path" json:"-"`
	IssuedAt       *time.Time        `db:"issued_at" json:"issuedAt,omitempty"`
	ErrorMessage   *string           `db:"error_message" json:"errorMessage,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"createdAt"`
}

// CertificateFilter provides filters for listing certificates.
type CertificateFilter struct {
	Search   string
	Status   CertificateStatus
	Page     int
	PageSize int
}
