package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/biocapture/internal/artifact"
	"github.com/lehigh-university-libraries/biocapture/internal/gemini"
	"github.com/lehigh-university-libraries/biocapture/internal/models"
	"github.com/lehigh-university-libraries/biocapture/internal/ollama"
	"github.com/lehigh-university-libraries/biocapture/internal/openai"
	"github.com/lehigh-university-libraries/biocapture/internal/providers"
)

// ErrDisabled is returned by NewService when the provider is "none"
var ErrDisabled = errors.New("feedback provider disabled")

// ErrMalformedReport is returned when the model response cannot be parsed
var ErrMalformedReport = errors.New("malformed quality report")

// Options selects and configures the LLM behind the feedback service
type Options struct {
	Provider      string
	Model         string
	Temperature   float64
	Timeout       time.Duration
	GeminiAPIKey  string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OllamaURL     string
}

// Service produces quality reports for captured artifacts
type Service struct {
	provider    providers.Provider
	name        string
	model       string
	temperature float64
	timeout     time.Duration
}

// NewService builds a feedback service for the configured provider
func NewService(opts Options) (*Service, error) {
	name := opts.Provider
	if name == "" {
		name = os.Getenv("FEEDBACK_PROVIDER")
		if name == "" {
			name = "gemini"
		}
	}

	var p providers.Provider
	switch name {
	case "gemini":
		p = gemini.New(opts.GeminiAPIKey)
	case "openai":
		p = openai.New(opts.OpenAIAPIKey, opts.OpenAIBaseURL)
	case "ollama":
		p = ollama.New(opts.OllamaURL)
	case "none":
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}

	model := opts.Model
	if model == "" {
		model = DefaultModel(name)
	}

	return NewWithProvider(p, name, model, opts.Temperature, opts.Timeout), nil
}

// NewWithProvider wraps an already constructed provider
func NewWithProvider(p providers.Provider, name, model string, temperature float64, timeout time.Duration) *Service {
	return &Service{
		provider:    p,
		name:        name,
		model:       model,
		temperature: temperature,
		timeout:     timeout,
	}
}

// DefaultModel returns the model used when none is configured
func DefaultModel(provider string) string {
	switch provider {
	case "gemini":
		if model := os.Getenv("GEMINI_MODEL"); model != "" {
			return model
		}
		return "gemini-2.5-flash"
	case "openai":
		if model := os.Getenv("OPENAI_MODEL"); model != "" {
			return model
		}
		return "gpt-4o"
	case "ollama":
		if model := os.Getenv("OLLAMA_MODEL"); model != "" {
			return model
		}
		return "mistral-small3.2:24b"
	default:
		return ""
	}
}

// Provider returns the provider name
func (s *Service) Provider() string { return s.name }

// Model returns the model name
func (s *Service) Model() string { return s.model }

// ImageQuality returns a general image-quality report for a camera photo
func (s *Service) ImageQuality(ctx context.Context, dataURI string) (*models.ImageQualityReport, error) {
	raw, err := s.analyze(ctx, imageQualityPrompt, dataURI)
	if err != nil {
		return nil, err
	}

	var report models.ImageQualityReport
	if err := decodeReport(raw, &report); err != nil {
		return nil, err
	}
	if err := checkScore(report.QualityScore); err != nil {
		return nil, err
	}
	slog.Debug("Image quality report", "score", report.QualityScore, "blur", report.BlurLevel, "lighting", report.LightingCondition)
	return &report, nil
}

// FingerprintQuality returns an NFIQ 2.0 style report for a scanner capture
func (s *Service) FingerprintQuality(ctx context.Context, dataURI string) (*models.FingerprintQualityReport, error) {
	raw, err := s.analyze(ctx, fingerprintQualityPrompt, dataURI)
	if err != nil {
		return nil, err
	}

	var report models.FingerprintQualityReport
	if err := decodeReport(raw, &report); err != nil {
		return nil, err
	}
	if err := checkScore(report.NFIQScore); err != nil {
		return nil, err
	}
	slog.Debug("Fingerprint quality report", "nfiq", report.NFIQScore)
	return &report, nil
}

func (s *Service) analyze(ctx context.Context, prompt, dataURI string) (string, error) {
	mimeType, data, err := artifact.DecodeDataURI(dataURI)
	if err != nil {
		return "", err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := s.provider.ExtractText(ctx, providers.Config{
		Model:       s.model,
		Temperature: s.temperature,
		Prompt:      prompt,
		Images:      []providers.Image{{MIMEType: mimeType, Data: data}},
		JSON:        true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to analyze image with %s: %w", s.name, err)
	}
	slog.Info("Quality analysis complete", "provider", s.name, "model", s.model, "bytes", len(data), "duration", time.Since(start))
	return raw, nil
}

// decodeReport strips markdown fences the models like to add and decodes JSON
func decodeReport(response string, v any) error {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	if start, end := strings.Index(response, "{"), strings.LastIndex(response, "}"); start >= 0 && end > start {
		response = response[start : end+1]
	}

	if err := json.Unmarshal([]byte(response), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}
	return nil
}

func checkScore(score float64) error {
	if score < 0 || score > 100 {
		return fmt.Errorf("%w: score %v outside 0-100", ErrMalformedReport, score)
	}
	return nil
}
