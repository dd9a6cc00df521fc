package storage

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

const cloudinaryBaseURL = "https://api.cloudinary.com/v1_1"

// CloudinaryStore sube archivos con upload firmado a Cloudinary.
type CloudinaryStore struct {
	baseURL   string
	cloudName string
	apiKey    string
	apiSecret string
	folder    string
	client    *http.Client
	now       func() time.Time
}

func NewCloudinaryStore(cloudName, apiKey, apiSecret, folder string, httpClient *http.Client) (*CloudinaryStore, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("cloudinary credentials are required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &CloudinaryStore{
		baseURL:   cloudinaryBaseURL,
		cloudName: cloudName,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		folder:    strings.Trim(folder, "/"),
		client:    httpClient,
		now:       time.Now,
	}, nil
}

func (s *CloudinaryStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	// Cloudinary agrega la extensión según el formato detectado.
	publicID := strings.TrimSuffix(cleaned, path.Ext(cleaned))
	if s.folder != "" {
		publicID = s.folder + "/" + publicID
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	timestamp := strconv.FormatInt(s.now().Unix(), 10)
	form := url.Values{}
	form.Set("file", "data:"+contentType+";base64,"+base64.StdEncoding.EncodeToString(data))
	form.Set("api_key", s.apiKey)
	form.Set("public_id", publicID)
	form.Set("overwrite", "true")
	form.Set("timestamp", timestamp)
	form.Set("signature", s.sign(map[string]string{
		"overwrite": "true",
		"public_id": publicID,
		"timestamp": timestamp,
	}))

	endpoint := fmt.Sprintf("%s/%s/auto/upload", s.baseURL, s.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", ErrStorage, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: do request: %v", ErrStorage, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrStorage, err)
	}

	var out struct {
		SecureURL string `json:"secure_url"`
		URL       string `json:"url"`
		Error     struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: unmarshal response (status=%d): %v", ErrStorage, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: cloudinary status=%d: %s", ErrStorage, resp.StatusCode, out.Error.Message)
	}
	if out.Error.Message != "" {
		return "", fmt.Errorf("%w: cloudinary: %s", ErrStorage, out.Error.Message)
	}
	if out.SecureURL != "" {
		return out.SecureURL, nil
	}
	if out.URL != "" {
		return out.URL, nil
	}
	return "", fmt.Errorf("%w: cloudinary returned no url", ErrStorage)
}

// sign arma la firma SHA-1 de Cloudinary: parámetros ordenados, unidos con &, más el secreto.
func (s *CloudinaryStore) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "&") + s.apiSecret))
	return fmt.Sprintf("%x", sum)
}
