package face

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const lowQualityReason = "low image quality"

// Result es la decisión del verificador sobre un documento y una selfie.
type Result struct {
	Approved   bool
	Similarity float64
	Liveness   float64
	Metadata   map[string]any
}

// Verifier compara el rostro del documento con el de la selfie usando un Provider.
type Verifier struct {
	provider   Provider
	thresholds Thresholds
	logger     *zap.Logger
}

func NewVerifier(provider Provider, thresholds Thresholds, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		provider:   provider,
		thresholds: thresholds,
		logger:     logger,
	}
}

// Verify detecta ambos rostros en paralelo, aplica el filtro de calidad y, si pasa, los compara.
func (v *Verifier) Verify(ctx context.Context, documentURL, selfieURL string) (Result, error) {
	if v.provider == nil {
		return Result{}, errors.New("verifier has no provider")
	}

	var documentFace, selfieFace DetectedFace
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		face, err := v.detectOne(gctx, documentURL, DetectOptions{}, "document")
		documentFace = face
		return err
	})
	g.Go(func() error {
		face, err := v.detectOne(gctx, selfieURL, DetectOptions{WithAttributes: true}, "selfie")
		selfieFace = face
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	if v.thresholds.RejectsQuality(selfieFace.Attributes) {
		v.logger.Info("selfie rejected by quality gate",
			zap.String("provider", v.provider.Name()),
			zap.String("quality", selfieFace.Attributes.QualityForRecognition),
		)
		return Result{
			Approved:   false,
			Similarity: 0,
			Liveness:   0,
			Metadata: map[string]any{
				"error": lowQualityReason,
				"face1": rawOrNil(documentFace.Raw),
				"face2": rawOrNil(selfieFace.Raw),
			},
		}, nil
	}

	comparison, err := v.provider.CompareFaces(ctx, documentFace.FaceID, selfieFace.FaceID)
	if err != nil {
		return Result{}, fmt.Errorf("compare faces: %w", err)
	}

	return Result{
		Approved:   v.thresholds.Approves(comparison.Confidence),
		Similarity: comparison.Confidence,
		Liveness:   LivenessFromBlur(selfieFace.Attributes),
		Metadata: map[string]any{
			"face1":        rawOrNil(documentFace.Raw),
			"face2":        rawOrNil(selfieFace.Raw),
			"verification": rawOrNil(comparison.Raw),
		},
	}, nil
}

func (v *Verifier) detectOne(ctx context.Context, imageURL string, opts DetectOptions, label string) (DetectedFace, error) {
	faces, err := v.provider.DetectFaces(ctx, imageURL, opts)
	if err != nil {
		return DetectedFace{}, fmt.Errorf("detect %s face: %w", label, err)
	}
	if len(faces) == 0 {
		return DetectedFace{}, fmt.Errorf("%w in %s", ErrNoFaceDetected, label)
	}
	return faces[0], nil
}

func rawOrNil(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
