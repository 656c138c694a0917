package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type geminiGenerator struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

type geminiDialogue struct {
	Dialogue []Line `json:"dialogue"`
}

// NewGeminiGenerator returns a backend using the Gemini API with a
// structured response schema, so the reply is JSON rather than free text.
func NewGeminiGenerator(ctx context.Context, apiKey, modelName string, maxTokens int, temperature float64) (Generator, func() error, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(float32(temperature))
	if maxTokens > 0 {
		model.SetMaxOutputTokens(int32(maxTokens))
	}
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction)},
	}
	model.ResponseSchema = &genai.Schema{
		Type:        genai.TypeObject,
		Description: "The generated exam interview",
		Properties: map[string]*genai.Schema{
			"dialogue": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"speaker": {
							Type:        genai.TypeString,
							Description: "EXAMINER or CANDIDATE",
						},
						"text": {
							Type:        genai.TypeString,
							Description: "Text spoken in this turn",
						},
					},
				},
			},
		},
	}

	return &geminiGenerator{client: client, model: model}, client.Close, nil
}

func (g *geminiGenerator) Generate(ctx context.Context, req Request) ([]Line, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(buildPrompt(req.Topic, req.Difficulty)))
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("gemini returned no candidates")
	}

	var out geminiDialogue
	for _, part := range resp.Candidates[0].Content.Parts {
		txt, ok := part.(genai.Text)
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(txt), &out); err != nil {
			return nil, fmt.Errorf("decode gemini dialogue: %w", err)
		}
	}

	lines := make([]Line, 0, len(out.Dialogue))
	for _, ln := range out.Dialogue {
		if ln.Text == "" {
			continue
		}
		if !ln.Speaker.Valid() {
			ln.Speaker = RoleCandidate
		}
		lines = append(lines, ln)
	}
	if len(lines) == 0 {
		lines = fallbackDialogue(req.Topic)
	}
	return lines, nil
}
