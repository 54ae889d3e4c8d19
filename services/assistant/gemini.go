package assistantsvc

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/assistant"
)

// GeminiModel answers chat messages with a Gemini model.
type GeminiModel struct {
	client *genai.Client
	model  string
}

var _ assistant.Model = (*GeminiModel)(nil)

func NewGeminiModel(ctx context.Context, apiKey, model string) (*GeminiModel, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrap(err, "creating gemini client")
	}
	return &GeminiModel{client: client, model: model}, nil
}

// NewModelFromConfig returns nil (the assistant is disabled) when no API key is configured.
func NewModelFromConfig(conf *core.Config, logger core.Logger) assistant.Model {
	if conf.Gemini.APIKey == "" {
		return nil
	}
	m, err := NewGeminiModel(context.Background(), conf.Gemini.APIKey, conf.Gemini.Model)
	if err != nil {
		logger.Error("assistantsvc.NewModelFromConfig", err)
		return nil
	}
	return m
}

func (m *GeminiModel) Reply(ctx context.Context, instruction, message string) (string, error) {
	gm := m.client.GenerativeModel(m.model)
	gm.SystemInstruction = genai.NewUserContent(genai.Text(instruction))

	resp, err := gm.GenerateContent(ctx, genai.Text(message))
	if err != nil {
		return "", errors.Wrap(err, "generating content")
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				sb.WriteString(string(txt))
			}
		}
		break // first candidate only
	}
	if sb.Len() == 0 {
		return "", errors.New("empty response")
	}
	return sb.String(), nil
}

func (m *GeminiModel) Close() error {
	return m.client.Close()
}
