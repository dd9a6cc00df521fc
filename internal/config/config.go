package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	StorageDriverLocal      = "local"
	StorageDriverCloudinary = "cloudinary"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort      string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL   string `env:"DATABASE_URL,required,notEmpty"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	JWTSecret     string `env:"JWT_SECRET"`
	JWTIssuer     string `env:"JWT_ISSUER" envDefault:"pampapro"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	NATSURL string `env:"NATS_URL"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"PampaPro"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	Storage      StorageConfig
	Face         FaceConfig
	Verification VerificationConfig
}

// StorageConfig define dónde se guardan las imágenes y documentos subidos.
type StorageConfig struct {
	Driver              string `env:"STORAGE_DRIVER" envDefault:"local"`
	Dir                 string `env:"STORAGE_DIR" envDefault:"./uploads"`
	CloudinaryCloudName string `env:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `env:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `env:"CLOUDINARY_API_SECRET"`
	CloudinaryFolder    string `env:"CLOUDINARY_FOLDER"`
}

// FaceConfig agrupa el proveedor de reconocimiento facial y sus umbrales.
type FaceConfig struct {
	Provider            string        `env:"FACE_API_PROVIDER" envDefault:"azure"`
	AzureEndpoint       string        `env:"AZURE_FACE_ENDPOINT"`
	AzureKey            string        `env:"AZURE_FACE_KEY"`
	ConfidenceThreshold float64       `env:"FACE_CONFIDENCE_THRESHOLD" envDefault:"0.7"`
	RejectQuality       string        `env:"FACE_REJECT_QUALITY" envDefault:"low"`
	Timeout             time.Duration `env:"FACE_PROVIDER_TIMEOUT" envDefault:"20s"`
}

// VerificationConfig limita cuántos intentos puede enviar un usuario por ventana.
type VerificationConfig struct {
	RateWindow time.Duration `env:"VERIFICATION_RATE_WINDOW" envDefault:"1h"`
	RateMax    int           `env:"VERIFICATION_RATE_MAX" envDefault:"5"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate revisa valores que env no puede validar por sí solo.
func (c *Config) Validate() error {
	if c.Face.ConfidenceThreshold < 0 || c.Face.ConfidenceThreshold > 1 {
		return fmt.Errorf("FACE_CONFIDENCE_THRESHOLD must be within [0,1], got %v", c.Face.ConfidenceThreshold)
	}
	if strings.TrimSpace(c.Face.Provider) == "" {
		return errors.New("FACE_API_PROVIDER must not be empty")
	}
	if c.Face.Timeout <= 0 {
		return fmt.Errorf("FACE_PROVIDER_TIMEOUT must be positive, got %s", c.Face.Timeout)
	}
	switch c.Storage.Driver {
	case StorageDriverLocal:
	case StorageDriverCloudinary:
		if c.Storage.CloudinaryCloudName == "" || c.Storage.CloudinaryAPIKey == "" || c.Storage.CloudinaryAPISecret == "" {
			return errors.New("cloudinary storage requires CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	return nil
}
