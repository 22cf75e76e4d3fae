package handlers

import (
	"encoding/json"
	"net/http"

	"codequill/internal/metrics"
	"codequill/internal/models"
	"codequill/internal/services"
	"codequill/internal/utils/helpers"
)

// AdminHandler обслуживает очередь модерации.
type AdminHandler struct {
	svc       services.ArticleService
	collector *metrics.Collector
}

func NewAdminHandler(svc services.ArticleService, collector *metrics.Collector) *AdminHandler {
	return &AdminHandler{svc: svc, collector: collector}
}

// Review godoc
// @Summary Очередь модерации по статусу
// @Tags admin
// @Security ApiKeyAuth
// @Param status query string false "submitted|published|rejected (по умолчанию submitted)"
// @Success 200 {array} models.Article
// @Router /api/admin/articles [get]
func (h *AdminHandler) Review(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.StatusSubmitted
	}
	limit, offset := pagination(r, 20)

	list, err := h.svc.GetModerationQueue(r.Context(), status, limit, offset)
	if err != nil {
		helpers.ErrorFrom(w, err)
		return
	}

	helpers.JSON(w, http.StatusOK, list)
}

// Approve godoc
// @Summary Одобрить статью (submitted -> published)
// @Tags admin
// @Security ApiKeyAuth
// @Param id path int true "ID статьи"
// @Success 200 {object} models.Article
// @Failure 403 {string} string "Не админ"
// @Failure 409 {string} string "Статья не в статусе submitted"
// @Router /api/admin/articles/{id}/approve [post]
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := articleID(w, r)
	if !ok {
		return
	}

	article, err := h.svc.Approve(r.Context(), actorFromCtx(r.Context()), id)
	if err != nil {
		helpers.ErrorFrom(w, err)
		return
	}

	if h.collector != nil {
		h.collector.RecordTransition(models.StatusPublished)
	}
	helpers.JSON(w, http.StatusOK, article)
}

// Reject godoc
// @Summary Отклонить статью (submitted -> rejected)
// @Tags admin
// @Security ApiKeyAuth
// @Accept json
// @Param id path int true "ID статьи"
// @Param body body models.RejectArticleRequest false "Причина отклонения"
// @Success 200 {object} models.Article
// @Failure 403 {string} string "Не админ"
// @Failure 409 {string} string "Статья не в статусе submitted"
// @Router /api/admin/articles/{id}/reject [post]
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := articleID(w, r)
	if !ok {
		return
	}

	var req models.RejectArticleRequest
	// тело опционально
	_ = json.NewDecoder(r.Body).Decode(&req)

	article, err := h.svc.Reject(r.Context(), actorFromCtx(r.Context()), id, req.Reason)
	if err != nil {
		helpers.ErrorFrom(w, err)
		return
	}

	if h.collector != nil {
		h.collector.RecordTransition(models.StatusRejected)
	}
	helpers.JSON(w, http.StatusOK, article)
}
