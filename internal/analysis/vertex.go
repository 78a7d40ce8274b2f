package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	pkgerrors "github.com/angelmondragon/docreview-backend/pkg/errors"
)

const (
	defaultModel     = "gemini-1.5-pro"
	defaultMaxTokens = 500
	defaultTimeout   = 30 * time.Second
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// VertexConfig configures the Gemini model on Vertex AI.
type VertexConfig struct {
	ProjectID       string
	Region          string
	Model           string
	MaxOutputTokens int
	Timeout         time.Duration
}

// VertexAnalyzer analyses documents with a Gemini model.
type VertexAnalyzer struct {
	model   contentGenerator
	client  *genai.Client
	timeout time.Duration
}

// NewVertexAnalyzer dials Vertex AI with application default credentials.
func NewVertexAnalyzer(ctx context.Context, cfg VertexConfig) (*VertexAnalyzer, error) {
	if cfg.ProjectID == "" || cfg.Region == "" {
		return nil, fmt.Errorf("vertex analyzer: project id and region are required")
	}

	client, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	name := cfg.Model
	if name == "" {
		name = defaultModel
	}
	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	model := client.GenerativeModel(name)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: genai.Ptr[int32](int32(maxTokens)),
		Temperature:     genai.Ptr[float32](0.2),
	}

	a := newVertexAnalyzer(model, cfg.Timeout)
	a.client = client
	return a, nil
}

func newVertexAnalyzer(model contentGenerator, timeout time.Duration) *VertexAnalyzer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &VertexAnalyzer{model: model, timeout: timeout}
}

func (a *VertexAnalyzer) Analyze(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.model.GenerateContent(ctx, genai.Text(BuildPrompt(req)))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "analysis request failed")
	}

	text := extractText(resp)
	if text == "" {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, ErrEmptyAnalysis, "analysis returned no text")
	}
	return text, nil
}

// Close releases the underlying client.
func (a *VertexAnalyzer) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			break
		}
	}
	return strings.TrimSpace(b.String())
}
