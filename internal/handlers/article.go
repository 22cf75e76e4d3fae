package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"codequill/internal/logger"
	"codequill/internal/metrics"
	"codequill/internal/models"
	"codequill/internal/services"
	"codequill/internal/utils/helpers"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type ArticleHandler struct {
	svc       services.ArticleService
	collector *metrics.Collector
}

func NewArticleHandler(svc services.ArticleService, collector *metrics.Collector) *ArticleHandler {
	return &ArticleHandler{svc: svc, collector: collector}
}

// articleResponse дополняет статью действиями, доступными актору.
type articleResponse struct {
	*models.Article
	AllowedActions []models.ArticleAction `json:"allowed_actions,omitempty"`
}

func (h *ArticleHandler) respondArticle(w http.ResponseWriter, r *http.Request, status int, a *models.Article) {
	actor := actorFromCtx(r.Context())
	helpers.JSON(w, status, articleResponse{
		Article:        a,
		AllowedActions: models.AllowedActions(a.Status, actor.Role, actor.ID == a.AuthorID),
	})
}

// Create godoc
// @Summary Создать черновик статьи
// @Tags articles
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param body body models.CreateArticleRequest true "Данные статьи"
// @Success 201 {object} models.Article
// @Failure 400 {string} string "Ошибка валидации"
// @Router /api/articles [post]
func (h *ArticleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WithCtx(r.Context()).Warn("ошибка декодирования JSON при создании статьи", zap.Error(err))
		helpers.Error(w, http.StatusBadRequest, "Невалидный JSON")
		return
	}

	actor := actorFromCtx(r.Context())
	article, err := h.svc.CreateDraft(r.Context(), actor.ID, req)
	if err != nil {
		helpers.ErrorFrom(w, err)
		return
	}

	h.respondArticle(w, r, http.StatusCreated, article)
}

// Update godoc
// @Summary Обновить свой черновик
// @Tags articles
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param id path int true "ID статьи"
// @Param body body models.CreateArticleRequest true "Данные статьи"
// @Success 200 {object} models.Article
// @Failure 409 {string} string "Статья уже не в статусе draft"
// @Router /api/articles/{id} [patch]
func (h *ArticleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := articleID(w, r)
	if !ok {
		return
	}

	var req models.CreateArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		helpers.Error(w, http.StatusBadRequest, "Невалидный JSON")
		return
	}

	article, err := h.svc.UpdateDraft(r.Context(), actorFromCtx(r.Context()), id, req)
	if err != nil {
		helpers.ErrorFrom(w, err)
		return
	}

	h.respondArticle(w, r, http.StatusOK, article)
}

// Submit godoc
// @Summary Отправить черновик на модерацию
// @Tags articles
// @Security ApiKeyAuth
// @Param id path int true "ID статьи"
// @Success 200 {object} models.Article
// @Failure 403 {string} string "Не автор"
// @Failure 409 {string} string "Недопустимый переход"
// @Router /api/articles/{id}/submit [post]
func (h *ArticleHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := articleID(w, r)
	if !ok {
		return
	}

	article, err := h.svc.Submit(r.Context(), actorFromCtx(r.Context()), id)
	if err != nil {
		helpers.ErrorFrom(w, err)
		return
	}

	if h.collector != nil {
		h.collector.RecordTransition(models.StatusSubmitted)
	}
	h.respondArticle(w, r, http.StatusOK, article)
}

// Like godoc
// @Summary Поставить или снять лайк
// @Tags articles
// @Security ApiKeyAuth
// @Param id path int true "ID статьи"
// @Success 200 {object} models.LikeResult
// @Router /api/articles/{id}/like [post]
func (h *ArticleHandler) Like(w http.ResponseWriter, r *http.Request) {
	id, ok := articleID(w, r)
	if !ok {
		return
	}

	res, err := h.svc.Like(r.Context(), actorFromCtx(r.Context()), id)
	if err != nil {
		helpers.ErrorFrom(w, err)
		return
	}

	helpers.JSON(w, http.StatusOK, res)
}

// GetByID godoc
// @Summary Статья по ID (просмотр засчитывается)
// @Tags articles
// @Param id path int true "ID статьи"
// @Success 200 {object} models.Article
// @Failure 404 {string} string "Не найдено"
// @Router /api/articles/{id} [get]
func (h *ArticleHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := articleID(w, r)
	if !ok {
		return
	}

	article, err := h.svc.View(r.Context(), id)
	if err != nil {
		helpers.ErrorFrom(w, err)
		return
	}

	h.respondArticle(w, r, http.StatusOK, article)
}

// GetBySlug godoc
// @Summary Статья по слагу
// @Tags articles
// @Param slug path string true "Слаг статьи"
// @Success 200 {object} models.Article
// @Failure 404 {string} string "Не найдено"
// @Router /api/articles/slug/{slug} [get]
func (h *ArticleHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	article, err := h.svc.ViewBySlug(r.Context(), slug)
	if err != nil {
		helpers.ErrorFrom(w, err)
		return
	}

	h.respondArticle(w, r, http.StatusOK, article)
}

// GetAll godoc
// @Summary Лента опубликованных статей
// @Tags articles
// @Param tag query string false "Фильтр по тегу"
// @Param limit query int false "Размер страницы"
// @Param offset query int false "Смещение"
// @Success 200 {array} models.Article
// @Router /api/articles [get]
func (h *ArticleHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 20)
	tag := r.URL.Query().Get("tag")

	list, err := h.svc.GetPublished(r.Context(), limit, offset, tag)
	if err != nil {
		helpers.ErrorFrom(w, err)
		return
	}

	helpers.JSON(w, http.StatusOK, list)
}

// Trending godoc
// @Summary Трендовые статьи
// @Tags articles
// @Param limit query int false "Размер выборки"
// @Success 200 {array} models.Article
// @Router /api/articles/trending [get]
func (h *ArticleHandler) Trending(w http.ResponseWriter, r *http.Request) {
	limit, _ := pagination(r, 10)

	list, err := h.svc.GetTrending(r.Context(), limit)
	if err != nil {
		helpers.ErrorFrom(w, err)
		return
	}

	helpers.JSON(w, http.StatusOK, list)
}

// Mine godoc
// @Summary Мои статьи (все статусы)
// @Tags articles
// @Security ApiKeyAuth
// @Success 200 {array} models.Article
// @Router /api/articles/mine [get]
func (h *ArticleHandler) Mine(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 20)
	actor := actorFromCtx(r.Context())

	list, err := h.svc.GetByAuthor(r.Context(), actor.ID, limit, offset)
	if err != nil {
		helpers.ErrorFrom(w, err)
		return
	}

	helpers.JSON(w, http.StatusOK, list)
}

// GetComments godoc
// @Summary Комментарии статьи
// @Tags comments
// @Param id path int true "ID статьи"
// @Success 200 {array} models.Comment
// @Router /api/articles/{id}/comments [get]
func (h *ArticleHandler) GetComments(w http.ResponseWriter, r *http.Request) {
	id, ok := articleID(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r, 50)

	list, err := h.svc.GetComments(r.Context(), id, limit, offset)
	if err != nil {
		helpers.ErrorFrom(w, err)
		return
	}

	helpers.JSON(w, http.StatusOK, list)
}

// AddComment godoc
// @Summary Добавить комментарий
// @Tags comments
// @Security ApiKeyAuth
// @Accept json
// @Param id path int true "ID статьи"
// @Success 201 {object} models.Comment
// @Router /api/articles/{id}/comments [post]
func (h *ArticleHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	id, ok := articleID(w, r)
	if !ok {
		return
	}

	type reqT struct {
		Body string `json:"body"`
	}
	var req reqT
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		helpers.Error(w, http.StatusBadRequest, "Невалидный JSON")
		return
	}

	comment, err := h.svc.AddComment(r.Context(), actorFromCtx(r.Context()), id, req.Body)
	if err != nil {
		helpers.ErrorFrom(w, err)
		return
	}

	helpers.JSON(w, http.StatusCreated, comment)
}

func articleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		helpers.Error(w, http.StatusBadRequest, "Неверный ID статьи")
		return 0, false
	}
	return id, true
}
