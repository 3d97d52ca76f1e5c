package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/davydenko-ucu/lesson-subscription-api/internal/models"
	"github.com/rs/zerolog"
)

const systemPrompt = `You are an expert educator creating daily microlearning lessons. Generate lessons in JSON format with this exact structure:
{
  "subject": "Brief lesson title",
  "new_info": ["Bullet point 1", "Bullet point 2", "Bullet point 3"],
  "review": ["Review point 1 from previous lessons", "Review point 2"],
  "exercise": {
    "prompt": "A practical exercise question or task",
    "expected_answer": "Brief answer or rubric for evaluation"
  }
}

Requirements:
- Keep new_info to 3-5 concise bullet points
- Review should reference concepts from previous lessons
- Exercise should be practical and actionable
- All content should be appropriate for daily microlearning (5-10 minutes)`

const retryReminder = "\n\nIMPORTANT: You must respond with valid JSON only. Fix any JSON syntax errors."

const temperature = 0.7

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Temperature float64 `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// OpenAIClient generates structured lesson content through the chat
// completions API.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	log        zerolog.Logger
}

func NewOpenAIClient(
	apiKey, baseURL, model string,
	httpClient *http.Client,
	logger zerolog.Logger,
) *OpenAIClient {
	logger = logger.With().Str("component", "OpenAIClient").Logger()
	return &OpenAIClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		log:        logger,
	}
}

// Generate produces today's lesson for a topic. Malformed model output
// is retried once with a stricter reminder before failing hard.
func (c *OpenAIClient) Generate(
	ctx context.Context,
	topic, previousSummary, difficultyTrend string,
) (models.Generation, error) {
	userPrompt := fmt.Sprintf(
		"Topic: %s\n\nPrevious Lessons Summary:\n%s\n\nDifficulty Feedback Trend: %s\n\n"+
			"Generate today's lesson in the exact JSON format specified.",
		topic, previousSummary, difficultyTrend,
	)

	gen, err := c.attempt(ctx, userPrompt)
	if err == nil {
		return gen, nil
	}

	c.log.Warn().Err(err).Ctx(ctx).Str("topic", topic).Msg("malformed lesson output, retrying once")
	gen, retryErr := c.attempt(ctx, userPrompt+retryReminder)
	if retryErr != nil {
		return models.Generation{}, fmt.Errorf("generate lesson: %w", retryErr)
	}
	return gen, nil
}

func (c *OpenAIClient) attempt(ctx context.Context, userPrompt string) (models.Generation, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: temperature,
	}
	reqBody.ResponseFormat.Type = "json_object"

	b, err := json.Marshal(reqBody)
	if err != nil {
		return models.Generation{}, err
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(b),
	)
	if err != nil {
		return models.Generation{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.Generation{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return models.Generation{}, errors.New("openai: unexpected status " + resp.Status)
	}

	var respBody chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return models.Generation{}, err
	}
	if len(respBody.Choices) == 0 {
		return models.Generation{}, errors.New("openai: empty response")
	}

	var content models.LessonContent
	if err := json.Unmarshal([]byte(respBody.Choices[0].Message.Content), &content); err != nil {
		return models.Generation{}, fmt.Errorf("decode lesson content: %w", err)
	}
	if err := validateContent(content); err != nil {
		return models.Generation{}, err
	}

	model := respBody.Model
	if model == "" {
		model = c.model
	}

	return models.Generation{
		Content:   content,
		Model:     model,
		TokensIn:  respBody.Usage.PromptTokens,
		TokensOut: respBody.Usage.CompletionTokens,
	}, nil
}

func validateContent(content models.LessonContent) error {
	if content.Subject == "" {
		return errors.New("lesson content: missing subject")
	}
	if len(content.NewInfo) < 3 || len(content.NewInfo) > 5 {
		return fmt.Errorf("lesson content: new_info must have 3-5 items, got %d", len(content.NewInfo))
	}
	if content.Exercise.Prompt == "" || content.Exercise.ExpectedAnswer == "" {
		return errors.New("lesson content: incomplete exercise")
	}
	return nil
}
