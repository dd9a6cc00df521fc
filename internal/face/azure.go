package face

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	AzureProviderName = "azure"

	azureDetectionModel   = "detection_03"
	azureRecognitionModel = "recognition_04"
	azureAttributes       = "qualityForRecognition,blur,headPose"
)

// AzureClient implementa Provider contra Azure Face API v1.0.
type AzureClient struct {
	endpoint string
	key      string
	timeout  time.Duration
	client   *http.Client
	logger   *zap.Logger
}

func NewAzureClient(endpoint, key string, timeout time.Duration, httpClient *http.Client, logger *zap.Logger) *AzureClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AzureClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		key:      key,
		timeout:  timeout,
		client:   httpClient,
		logger:   logger,
	}
}

func (c *AzureClient) Name() string {
	return AzureProviderName
}

func (c *AzureClient) DetectFaces(ctx context.Context, imageURL string, opts DetectOptions) ([]DetectedFace, error) {
	q := url.Values{}
	q.Set("returnFaceId", "true")
	q.Set("returnFaceLandmarks", "false")
	q.Set("detectionModel", azureDetectionModel)
	q.Set("recognitionModel", azureRecognitionModel)
	if opts.WithAttributes {
		q.Set("returnFaceAttributes", azureAttributes)
	}

	body, err := c.post(ctx, "/face/v1.0/detect?"+q.Encode(), map[string]string{"url": imageURL})
	if err != nil {
		return nil, err
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("%w: unmarshal detect response: %v", ErrProviderUnavailable, err)
	}
	faces := make([]DetectedFace, 0, len(raws))
	for _, raw := range raws {
		var f DetectedFace
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("%w: unmarshal face: %v", ErrProviderUnavailable, err)
		}
		f.Raw = raw
		faces = append(faces, f)
	}
	return faces, nil
}

func (c *AzureClient) CompareFaces(ctx context.Context, faceID1, faceID2 string) (Comparison, error) {
	body, err := c.post(ctx, "/face/v1.0/verify", map[string]string{
		"faceId1": faceID1,
		"faceId2": faceID2,
	})
	if err != nil {
		return Comparison{}, err
	}

	var cmp Comparison
	if err := json.Unmarshal(body, &cmp); err != nil {
		return Comparison{}, fmt.Errorf("%w: unmarshal verify response: %v", ErrProviderUnavailable, err)
	}
	cmp.Raw = body
	return cmp, nil
}

// post hace un POST JSON acotado por el timeout del cliente y clasifica los errores.
func (c *AzureClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.endpoint+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.classify(callCtx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.classify(callCtx, err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(respBody, &apiErr)
		c.logger.Warn("azure face error",
			zap.Int("status", resp.StatusCode),
			zap.String("path", path),
			zap.String("code", apiErr.Error.Code),
			zap.String("message", apiErr.Error.Message),
		)
		return nil, fmt.Errorf("%w: status=%d code=%s", ErrProviderUnavailable, resp.StatusCode, apiErr.Error.Code)
	}
	return respBody, nil
}

// classify distingue timeouts (del contexto de la llamada o del transporte) del resto de fallas.
func (c *AzureClient) classify(callCtx context.Context, err error) error {
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %v", ErrProviderTimeout, c.timeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrProviderTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}
