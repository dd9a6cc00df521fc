package domain

import (
	"encoding/json"
	"time"
)

// VerificationStatus es el estado de un intento de verificación facial.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
	VerificationRevision VerificationStatus = "revision"
)

// VerificationAttempt registra un envío de verificación y su resultado.
// Los puntajes son nil cuando no se pudieron determinar.
type VerificationAttempt struct {
	ID               string             `json:"id"`
	UserID           string             `json:"user_id"`
	DocumentFrontURL string             `json:"document_front_url"`
	DocumentBackURL  *string            `json:"document_back_url,omitempty"`
	SelfieURL        string             `json:"selfie_url"`
	SimilarityScore  *float64           `json:"similarity_score"`
	LivenessScore    *float64           `json:"liveness_score"`
	Status           VerificationStatus `json:"status"`
	Provider         string             `json:"provider"`
	Metadata         json.RawMessage    `json:"metadata,omitempty"`
	ReviewedBy       *string            `json:"reviewed_by,omitempty"`
	ReviewedAt       *time.Time         `json:"reviewed_at,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// Reviewable indica si el intento todavía espera una decisión manual.
func (a VerificationAttempt) Reviewable() bool {
	return a.Status == VerificationRevision || a.Status == VerificationPending
}
