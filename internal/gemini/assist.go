package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Assist wraps the stateless text utilities of the studio: each call is one
// request against the generate-content API, no conversation state is kept.
type Assist struct {
	cfg    Config
	logger *zap.Logger

	clientMu sync.Mutex
	client   *genai.Client
}

// NewAssist creates the helper service.
func NewAssist(cfg Config, logger *zap.Logger) *Assist {
	return &Assist{cfg: cfg, logger: logger}
}

// ensureClient builds the genai client on first use. The routes above this
// service run concurrently, so init is serialized; a failed init is retried
// on the next call.
func (a *Assist) ensureClient(ctx context.Context) (*genai.Client, error) {
	a.clientMu.Lock()
	defer a.clientMu.Unlock()
	if a.client != nil {
		return a.client, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  a.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	a.client = c
	return a.client, nil
}

// Summarize condenses text into a short summary.
func (a *Assist) Summarize(ctx context.Context, text string) (string, error) {
	prompt := "Summarize the following text concisely, keeping the key points:\n\n" + text
	return a.generateText(ctx, prompt)
}

// Translate renders text into the target language.
func (a *Assist) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	prompt := fmt.Sprintf("Translate the following text to %s. Reply with the translation only:\n\n%s", targetLanguage, text)
	return a.generateText(ctx, prompt)
}

// Sentiment classifies text as positive, negative or neutral with a short
// justification.
func (a *Assist) Sentiment(ctx context.Context, text string) (string, error) {
	prompt := "Classify the sentiment of the following text as positive, negative or neutral and explain briefly:\n\n" + text
	return a.generateText(ctx, prompt)
}

// OCR extracts the text visible in an image.
func (a *Assist) OCR(ctx context.Context, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", errors.New("empty image payload")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	client, err := a.ensureClient(ctx)
	if err != nil {
		return "", err
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, mimeType),
			genai.NewPartFromText("Extract all text visible in this image. Reply with the extracted text only."),
		}, genai.RoleUser),
	}
	resp, err := client.Models.GenerateContent(ctx, a.cfg.Model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("ocr request: %w", err)
	}
	return responseText(resp)
}

func (a *Assist) generateText(ctx context.Context, prompt string) (string, error) {
	client, err := a.ensureClient(ctx)
	if err != nil {
		return "", err
	}
	resp, err := client.Models.GenerateContent(ctx, a.cfg.Model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("empty model response")
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("model returned no text")
	}
	return text, nil
}
