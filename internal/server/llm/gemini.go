package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/wilvurson/ai-chat/internal/common"
)

// GeminiGenerator calls the Gemini API. Persisted turn roles map directly to
// genai roles, so the assembled history is forwarded as-is.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, history []Message, newUserText string) (string, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		var role genai.Role = genai.RoleUser
		if m.Role == "model" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}
	contents = append(contents, genai.NewContentFromText(newUserText, genai.RoleUser))

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrProvider, err)
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty response", common.ErrProvider)
	}

	return text, nil
}
