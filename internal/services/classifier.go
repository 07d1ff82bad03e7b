package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"ewaste-backend/internal/models"

	"github.com/sashabaranov/go-openai"
)

const classifierPrompt = `You verify photos for an e-waste collection service.
Look at the image and answer with a JSON object only:
{"containsWaste": bool, "wasteType": string, "amount": number, "confidence": number}
containsWaste is true only when the photo shows electronic waste (phones, laptops,
batteries, cables, appliances, circuit boards). wasteType is a short category name.
amount is the estimated weight in kilograms. confidence is between 0 and 1.`

// ImageClassifier asks a vision model whether a photo shows e-waste.
type ImageClassifier struct {
	client *openai.Client
	model  string
}

func NewImageClassifier(apiKey, model string) *ImageClassifier {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &ImageClassifier{client: openai.NewClient(apiKey), model: model}
}

func (c *ImageClassifier) Classify(ctx context.Context, image []byte, contentType string) (*models.Classification, error) {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(image))

	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: classifierPrompt,
				},
				{
					Role: openai.ChatMessageRoleUser,
					MultiContent: []openai.ChatMessagePart{
						{
							Type: openai.ChatMessagePartTypeText,
							Text: "Classify this photo.",
						},
						{
							Type: openai.ChatMessagePartTypeImageURL,
							ImageURL: &openai.ChatMessageImageURL{
								URL:    dataURL,
								Detail: openai.ImageURLDetailLow,
							},
						},
					},
				},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			MaxTokens: 150,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("classification request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("classification returned no choices")
	}

	return ParseClassification(resp.Choices[0].Message.Content)
}

// ParseClassification decodes the model's JSON answer, tolerating a surrounding
// markdown code fence.
func ParseClassification(content string) (*models.Classification, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var result models.Classification
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("failed to parse classification %q: %w", content, err)
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return nil, fmt.Errorf("classification confidence %v out of range", result.Confidence)
	}
	if result.Amount < 0 {
		result.Amount = 0
	}
	return &result, nil
}
