// Package scoring evaluates interview transcripts through an OpenAI
// chat completion and decodes the fixed five-category score schema.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"nexusagent/internal/domain"
)

const systemPrompt = "You are a professional interviewer analyzing a mock interview. " +
	"Your task is to evaluate the candidate based on structured categories."

const promptTemplate = `You are an AI interviewer analyzing a mock interview. Evaluate the candidate based on structured categories. Be thorough and detailed in your analysis. Don't be lenient with the candidate. If there are mistakes or areas for improvement, point them out.
Transcript:
%s

Score the candidate from 0 to 100 in the following areas. Do not add categories other than the ones provided:
- **Communication Skills**: Clarity, articulation, structured responses.
- **Technical Knowledge**: Understanding of key concepts for the role.
- **Problem-Solving**: Ability to analyze problems and propose solutions.
- **Cultural & Role Fit**: Alignment with company values and job role.
- **Confidence & Clarity**: Confidence in responses, engagement, and clarity.

Respond with a single JSON object:
{"totalScore": number, "categoryScores": {"Communication Skills": number, "Technical Knowledge": number, "Problem-Solving": number, "Cultural & Role Fit": number, "Confidence & Clarity": number}, "strengths": [string], "areasForImprovement": [string], "finalAssessment": string}`

// Client scores transcripts via the OpenAI chat API. One API call per
// Score invocation, no retries.
type Client struct {
	client *openai.Client
	model  string
}

// New builds a scoring client. baseURL is optional and supports
// OpenAI-compatible gateways.
func New(apiKey, baseURL, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Client{client: openai.NewClientWithConfig(cfg), model: model}
}

// Score evaluates a formatted transcript document.
func (c *Client) Score(ctx context.Context, transcriptDoc string) (domain.ScoreResult, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(promptTemplate, transcriptDoc)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return domain.ScoreResult{}, fmt.Errorf("scoring request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.ScoreResult{}, fmt.Errorf("scoring returned no choices")
	}

	result, err := decodeResult(resp.Choices[0].Message.Content)
	if err != nil {
		return domain.ScoreResult{}, err
	}
	return result, nil
}

func decodeResult(content string) (domain.ScoreResult, error) {
	content = strings.TrimSpace(content)
	// Some models wrap JSON in a fenced block despite the response format.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var result domain.ScoreResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &result); err != nil {
		return domain.ScoreResult{}, fmt.Errorf("failed to decode score result: %w", err)
	}
	if err := normalize(&result); err != nil {
		return domain.ScoreResult{}, err
	}
	return result, nil
}

// normalize enforces the fixed category set and the 0..100 range.
func normalize(result *domain.ScoreResult) error {
	scores := make(map[string]float64, 5)
	for _, category := range domain.FeedbackCategories() {
		score, ok := result.CategoryScores[category]
		if !ok {
			return fmt.Errorf("score result missing category %q", category)
		}
		scores[category] = clamp(score)
	}
	result.CategoryScores = scores
	result.TotalScore = clamp(result.TotalScore)
	return nil
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
