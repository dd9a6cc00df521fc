package email

import (
	"context"
	"errors"
	"fmt"
)

// ErrSenderDisabled indica que no hay transporte de correo configurado.
var ErrSenderDisabled = errors.New("email sender disabled")

// Estados de verificación que cambian el contenido del correo.
const (
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// VerificationNotice es lo que se le comunica al usuario sobre su intento de verificación.
type VerificationNotice struct {
	FirstName      string
	VerificationID string
	Status         string
	NextStep       string
}

// Sender define la interfaz para envío de notificaciones por correo.
type Sender interface {
	SendVerificationResult(ctx context.Context, toEmail string, notice VerificationNotice) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendVerificationResult(_ context.Context, _ string, _ VerificationNotice) error {
	if s.reason == "" {
		return ErrSenderDisabled
	}
	return fmt.Errorf("%w: %s", ErrSenderDisabled, s.reason)
}
