package handlers

import (
	"net/http"

	"codequill/internal/logger"
	"codequill/internal/storage"
	"codequill/internal/utils/helpers"

	"go.uber.org/zap"
)

const maxCoverSize = 5 << 20 // 5 МБ

type UploadHandler struct {
	covers *storage.CoverStorage
}

func NewUploadHandler(covers *storage.CoverStorage) *UploadHandler {
	return &UploadHandler{covers: covers}
}

// UploadCover godoc
// @Summary Загрузить обложку статьи
// @Tags uploads
// @Security ApiKeyAuth
// @Accept multipart/form-data
// @Produce json
// @Param cover formData file true "Файл обложки (png/jpeg/webp, до 5 МБ)"
// @Success 201 {object} map[string]string
// @Failure 400 {string} string "Неверный файл"
// @Router /api/uploads/cover [post]
func (h *UploadHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
	if h.covers == nil {
		helpers.Error(w, http.StatusServiceUnavailable, "Хранилище обложек не настроено")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCoverSize)
	if err := r.ParseMultipartForm(maxCoverSize); err != nil {
		helpers.Error(w, http.StatusBadRequest, "Файл слишком большой")
		return
	}

	file, header, err := r.FormFile("cover")
	if err != nil {
		helpers.Error(w, http.StatusBadRequest, "Файл не передан")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	url, err := h.covers.Upload(r.Context(), file, header.Size, contentType)
	if err != nil {
		logger.WithCtx(r.Context()).Error("Ошибка загрузки обложки", zap.Error(err))
		helpers.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	helpers.JSON(w, http.StatusCreated, map[string]string{"url": url})
}
