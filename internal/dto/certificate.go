package dto

import "time"

// CertificateLink is a signed, expiring download link for an issued certificate.
type CertificateLink struct {
	CertificateID string    `json:"certificateId"`
	Token         string    `json:"token"`
	URL           string    `json:"url"`
	ExpiresAt     time.Time `json:"expiresAt"`
}
