package handlers

import (
	"encoding/json"
	"net/http"

	"codequill/internal/logger"
	"codequill/internal/metrics"
	"codequill/internal/services"
	"codequill/internal/utils/helpers"

	"go.uber.org/zap"
)

type AIHandler struct {
	svc       *services.AIService
	collector *metrics.Collector
}

func NewAIHandler(svc *services.AIService, collector *metrics.Collector) *AIHandler {
	return &AIHandler{svc: svc, collector: collector}
}

type generateRequest struct {
	Prompt     string `json:"prompt"`
	TemplateID string `json:"template_id,omitempty"`
}

type generateResponse struct {
	GeneratedText string `json:"generated_text"`
}

// Generate godoc
// @Summary Сгенерировать текст для редактора
// @Tags ai
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param input body generateRequest true "Промпт и необязательный шаблон"
// @Success 200 {object} generateResponse
// @Failure 502 {string} string "AI-сервис недоступен"
// @Router /api/ai/generate [post]
func (h *AIHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		helpers.Error(w, http.StatusBadRequest, "Невалидный JSON")
		return
	}

	var template *services.GenerationTemplate
	if req.TemplateID != "" {
		template = h.svc.TemplateByID(req.TemplateID)
		if template == nil {
			helpers.Error(w, http.StatusBadRequest, "Неизвестный шаблон: "+req.TemplateID)
			return
		}
	}

	text, err := h.svc.Generate(r.Context(), req.Prompt, template)
	if h.collector != nil {
		h.collector.RecordAIGeneration(err == nil)
	}
	if err != nil {
		logger.WithCtx(r.Context()).Warn("Ошибка генерации текста", zap.Error(err))
		helpers.ErrorFrom(w, err)
		return
	}

	helpers.JSON(w, http.StatusOK, generateResponse{GeneratedText: text})
}

// Templates godoc
// @Summary Каталог шаблонов генерации
// @Tags ai
// @Produce json
// @Success 200 {array} services.GenerationTemplate
// @Router /api/ai/templates [get]
func (h *AIHandler) Templates(w http.ResponseWriter, r *http.Request) {
	helpers.JSON(w, http.StatusOK, h.svc.Templates())
}
