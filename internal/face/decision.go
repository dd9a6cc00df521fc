package face

import "strings"

const (
	DefaultConfidenceThreshold = 0.7
	DefaultRejectQuality       = "low"

	livenessLowBlur   = 0.9
	livenessOtherBlur = 0.5
)

// Thresholds son los valores que deciden la aprobación.
type Thresholds struct {
	// MinConfidence debe ser superado estrictamente para aprobar.
	MinConfidence float64
	// RejectQuality es el nivel de calidad de la selfie que corta el flujo antes de comparar.
	RejectQuality string
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinConfidence: DefaultConfidenceThreshold,
		RejectQuality: DefaultRejectQuality,
	}
}

// Approves indica si la confianza de la comparación alcanza para aprobar.
func (t Thresholds) Approves(confidence float64) bool {
	return confidence > t.MinConfidence
}

// RejectsQuality indica si la calidad de la selfie es la del nivel descartado.
// Una calidad ausente no se descarta.
func (t Thresholds) RejectsQuality(attrs *Attributes) bool {
	if attrs == nil || t.RejectQuality == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(attrs.QualityForRecognition), t.RejectQuality)
}

// LivenessFromBlur aproxima la prueba de vida con el nivel de desenfoque de la selfie.
// No es una detección de vida real.
func LivenessFromBlur(attrs *Attributes) float64 {
	if attrs != nil && attrs.Blur != nil && strings.EqualFold(attrs.Blur.BlurLevel, "low") {
		return livenessLowBlur
	}
	return livenessOtherBlur
}
