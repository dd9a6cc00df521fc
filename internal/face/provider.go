// Package face define el contrato con proveedores de reconocimiento facial y la
// lógica que decide si un documento y una selfie pertenecen a la misma persona.
package face

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNoFaceDetected      = errors.New("no face detected")
	ErrUnsupportedProvider = errors.New("unsupported face provider")
	ErrProviderTimeout     = errors.New("face provider timeout")
	ErrProviderUnavailable = errors.New("face provider unavailable")
)

// UnsupportedProviderError indica que se pidió un proveedor no configurado.
type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("face provider %q not implemented", e.Provider)
}

func (e *UnsupportedProviderError) Is(target error) bool {
	return target == ErrUnsupportedProvider
}

// Attributes son los atributos extendidos que el proveedor devuelve cuando se los pide.
type Attributes struct {
	QualityForRecognition string    `json:"qualityForRecognition,omitempty"`
	Blur                  *Blur     `json:"blur,omitempty"`
	HeadPose              *HeadPose `json:"headPose,omitempty"`
}

type Blur struct {
	BlurLevel string  `json:"blurLevel"`
	Value     float64 `json:"value"`
}

type HeadPose struct {
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
	Yaw   float64 `json:"yaw"`
}

// DetectedFace es un rostro detectado. Raw conserva la respuesta original para auditoría.
type DetectedFace struct {
	FaceID     string          `json:"faceId"`
	Attributes *Attributes     `json:"faceAttributes,omitempty"`
	Raw        json.RawMessage `json:"-"`
}

// Comparison es el resultado de comparar dos rostros.
type Comparison struct {
	Confidence  float64         `json:"confidence"`
	IsIdentical bool            `json:"isIdentical"`
	Raw         json.RawMessage `json:"-"`
}

// DetectOptions controla qué devuelve una detección.
type DetectOptions struct {
	WithAttributes bool
}

// Provider es la capacidad mínima que necesitamos de un proveedor de reconocimiento facial.
type Provider interface {
	Name() string
	DetectFaces(ctx context.Context, imageURL string, opts DetectOptions) ([]DetectedFace, error)
	CompareFaces(ctx context.Context, faceID1, faceID2 string) (Comparison, error)
}
