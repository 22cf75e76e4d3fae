package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"codequill/internal/logger"
	"codequill/internal/models"

	"go.uber.org/zap"
)

// AIService — прокси к внешней функции генерации текста.
// Один запрос — один полный ответ, без стриминга и без ретраев.
type AIService struct {
	Endpoint   string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

func NewAIService(endpoint, apiKey, model string) *AIService {
	return &AIService{
		Endpoint:   endpoint,
		APIKey:     apiKey,
		Model:      model,
		HTTPClient: &http.Client{},
	}
}

// GenerationTemplate — заготовка промпта для ассистента в редакторе.
type GenerationTemplate struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
	Category    string `json:"category"`
}

// Templates возвращает каталог шаблонов генерации.
func (s *AIService) Templates() []GenerationTemplate {
	return []GenerationTemplate{
		{
			ID:          "blog-intro",
			Name:        "Blog Introduction",
			Description: "Generate an engaging introduction for your blog post",
			Prompt:      "Write an engaging introduction for a blog post about",
			Category:    "intro",
		},
		{
			ID:          "tech-explanation",
			Name:        "Technical Explanation",
			Description: "Explain complex technical concepts simply",
			Prompt:      "Explain this technical concept in simple terms",
			Category:    "section",
		},
		{
			ID:          "code-tutorial",
			Name:        "Code Tutorial",
			Description: "Create step-by-step coding tutorials",
			Prompt:      "Create a step-by-step tutorial for",
			Category:    "blog",
		},
		{
			ID:          "conclusion",
			Name:        "Conclusion",
			Description: "Write a strong conclusion that summarizes key points",
			Prompt:      "Write a compelling conclusion that summarizes",
			Category:    "conclusion",
		},
		{
			ID:          "list-article",
			Name:        "List Article",
			Description: "Generate listicle content with multiple points",
			Prompt:      "Create a comprehensive list article about",
			Category:    "blog",
		},
	}
}

type generateRequest struct {
	Prompt   string              `json:"prompt"`
	Template *GenerationTemplate `json:"template,omitempty"`
	Model    string              `json:"model"`
}

type generateResponse struct {
	GeneratedText string `json:"generatedText"`
	Error         string `json:"error"`
}

// Generate отправляет промпт внешнему сервису и возвращает готовый текст.
// Не-2xx ответы — ошибка; поле error из ответа отдаётся дословно.
func (s *AIService) Generate(ctx context.Context, prompt string, template *GenerationTemplate) (string, error) {
	log := logger.WithCtx(ctx)

	if s.Endpoint == "" {
		return "", fmt.Errorf("%w: генерация не настроена", models.ErrRemoteUnavailable)
	}
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: пустой промпт", models.ErrValidation)
	}

	data, err := json.Marshal(generateRequest{
		Prompt:   prompt,
		Template: template,
		Model:    s.Model,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewBuffer(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		log.Error("AI-сервис недоступен", zap.Error(err))
		return "", fmt.Errorf("%w: %v", models.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	var res generateResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&res)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("AI-сервис вернул ошибку",
			zap.Int("status", resp.StatusCode),
			zap.String("error", res.Error),
		)
		if decodeErr == nil && res.Error != "" {
			return "", fmt.Errorf("%w: %s", models.ErrRemoteUnavailable, res.Error)
		}
		return "", fmt.Errorf("%w: не удалось сгенерировать текст", models.ErrRemoteUnavailable)
	}

	if decodeErr != nil {
		return "", fmt.Errorf("%w: %v", models.ErrRemoteUnavailable, decodeErr)
	}

	log.Info("Текст сгенерирован", zap.Int("length", len(res.GeneratedText)))
	return res.GeneratedText, nil
}

// TemplateByID возвращает шаблон по идентификатору, nil если не найден.
func (s *AIService) TemplateByID(id string) *GenerationTemplate {
	for _, t := range s.Templates() {
		if t.ID == id {
			return &t
		}
	}
	return nil
}
