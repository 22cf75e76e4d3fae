package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"codequill/internal/logger"
	"codequill/internal/models"
	"codequill/internal/repository"
	"codequill/internal/utils"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// Actor — кто выполняет действие: идентичность и роль из JWT.
// ID == 0 означает анонимного актора.
type Actor struct {
	ID   int
	Role string
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// EventPublisher шлёт события модерации во внешнюю шину. Может быть nil.
type EventPublisher interface {
	PublishArticleEvent(ctx context.Context, event string, a *models.Article)
}

type ArticleService interface {
	CreateDraft(ctx context.Context, authorID int, req models.CreateArticleRequest) (*models.Article, error)
	UpdateDraft(ctx context.Context, actor Actor, id int64, req models.CreateArticleRequest) (*models.Article, error)
	Submit(ctx context.Context, actor Actor, id int64) (*models.Article, error)
	Approve(ctx context.Context, actor Actor, id int64) (*models.Article, error)
	Reject(ctx context.Context, actor Actor, id int64, reason string) (*models.Article, error)
	Like(ctx context.Context, actor Actor, id int64) (*models.LikeResult, error)
	View(ctx context.Context, id int64) (*models.Article, error)
	ViewBySlug(ctx context.Context, slug string) (*models.Article, error)
	GetPublished(ctx context.Context, limit, offset int, tag string) ([]*models.Article, error)
	GetTrending(ctx context.Context, limit int) ([]*models.Article, error)
	GetByAuthor(ctx context.Context, authorID, limit, offset int) ([]*models.Article, error)
	GetModerationQueue(ctx context.Context, status string, limit, offset int) ([]*models.Article, error)
	AddComment(ctx context.Context, actor Actor, articleID int64, body string) (*models.Comment, error)
	GetComments(ctx context.Context, articleID int64, limit, offset int) ([]*models.Comment, error)
}

type articleService struct {
	repo   repository.ArticleRepo
	events EventPublisher
	policy *bluemonday.Policy
}

func NewArticleService(repo repository.ArticleRepo, events EventPublisher) ArticleService {
	p := bluemonday.UGCPolicy()
	p.AllowElements("img")
	p.AllowAttrs("src", "alt").OnElements("img")
	return &articleService{repo: repo, events: events, policy: p}
}

// renderHTML переводит markdown в HTML и прогоняет через санитайзер.
// Парсер одноразовый, на каждый вызов создаётся заново.
func (s *articleService) renderHTML(md string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	unsafe := markdown.ToHTML([]byte(md), p, renderer)
	return string(s.policy.SanitizeBytes(unsafe))
}

func (s *articleService) validateContent(req *models.CreateArticleRequest) error {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return fmt.Errorf("%w: пустой заголовок", models.ErrValidation)
	}
	if utf8.RuneCountInString(title) > 255 {
		return fmt.Errorf("%w: заголовок длиннее 255 символов", models.ErrValidation)
	}
	if strings.TrimSpace(req.BodyMarkdown) == "" {
		return fmt.Errorf("%w: пустой текст статьи", models.ErrValidation)
	}
	if len(req.Tags) > models.MaxArticleTags {
		return fmt.Errorf("%w: максимум %d тегов", models.ErrValidation, models.MaxArticleTags)
	}
	return nil
}

func (s *articleService) CreateDraft(ctx context.Context, authorID int, req models.CreateArticleRequest) (*models.Article, error) {
	log := logger.WithCtx(ctx)
	log.Info("Создание черновика",
		zap.Int("author_id", authorID),
		zap.String("title", strings.TrimSpace(req.Title)),
		zap.Int("tags_count", len(req.Tags)),
	)

	if err := s.validateContent(&req); err != nil {
		log.Warn("Валидация не пройдена", zap.Error(err))
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	a := &models.Article{
		AuthorID:     authorID,
		Title:        title,
		Slug:         utils.Slugify(title),
		BodyMarkdown: req.BodyMarkdown,
		BodyHTML:     s.renderHTML(req.BodyMarkdown),
		CoverImage:   strPtr(req.CoverImage),
		Tags:         normalizeTags(req.Tags),
		Status:       models.StatusDraft,
	}

	created, err := s.repo.Create(ctx, a)
	if err != nil {
		log.Error("Ошибка создания черновика (repo)", zap.Error(err))
		return nil, err
	}

	log.Info("Черновик создан", zap.Int64("id", created.ID), zap.String("slug", created.Slug))
	return created, nil
}

func (s *articleService) UpdateDraft(ctx context.Context, actor Actor, id int64, req models.CreateArticleRequest) (*models.Article, error) {
	log := logger.WithCtx(ctx)
	log.Info("Обновление черновика", zap.Int64("id", id))

	if err := s.validateContent(&req); err != nil {
		log.Warn("Валидация не пройдена", zap.Error(err))
		return nil, err
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, models.ErrNotFound
	}
	if a.AuthorID != actor.ID {
		return nil, models.ErrForbidden
	}

	title := strings.TrimSpace(req.Title)
	a.Title = title
	a.Slug = utils.Slugify(title)
	a.BodyMarkdown = req.BodyMarkdown
	a.BodyHTML = s.renderHTML(req.BodyMarkdown)
	a.CoverImage = strPtr(req.CoverImage)
	a.Tags = normalizeTags(req.Tags)

	ok, err := s.repo.UpdateDraft(ctx, a)
	if err != nil {
		log.Error("Ошибка обновления черновика (repo)", zap.Int64("id", id), zap.Error(err))
		return nil, err
	}
	if !ok {
		// статья уже не в draft
		return nil, models.ErrPreconditionFailed
	}

	updated, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	stripAuthorEmail(updated)
	return updated, nil
}

// Submit переводит draft -> submitted. Только автор, минимум один тег.
func (s *articleService) Submit(ctx context.Context, actor Actor, id int64) (*models.Article, error) {
	log := logger.WithCtx(ctx)
	log.Info("Отправка статьи на модерацию", zap.Int64("id", id))

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, models.ErrNotFound
	}
	if a.AuthorID != actor.ID {
		return nil, models.ErrForbidden
	}
	if len(a.Tags) == 0 {
		return nil, fmt.Errorf("%w: добавьте хотя бы один тег", models.ErrValidation)
	}

	ok, err := s.repo.UpdateStatus(ctx, id, models.StatusDraft, models.StatusSubmitted, nil)
	if err != nil {
		log.Error("Ошибка перевода в submitted (repo)", zap.Int64("id", id), zap.Error(err))
		return nil, err
	}
	if !ok {
		log.Warn("Недопустимый переход в submitted", zap.Int64("id", id), zap.String("status", a.Status))
		return nil, models.ErrPreconditionFailed
	}

	log.Info("Статья отправлена на модерацию", zap.Int64("id", id))
	submitted, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	stripAuthorEmail(submitted)
	return submitted, nil
}

// Approve переводит submitted -> published и ставит published_at.
func (s *articleService) Approve(ctx context.Context, actor Actor, id int64) (*models.Article, error) {
	log := logger.WithCtx(ctx)
	log.Info("Публикация статьи", zap.Int64("id", id), zap.Int("admin_id", actor.ID))

	if !actor.IsAdmin() {
		return nil, models.ErrForbidden
	}

	ok, err := s.repo.UpdateStatus(ctx, id, models.StatusSubmitted, models.StatusPublished, nil)
	if err != nil {
		log.Error("Ошибка публикации (repo)", zap.Int64("id", id), zap.Error(err))
		return nil, err
	}
	if !ok {
		if _, gerr := s.repo.GetByID(ctx, id); gerr != nil {
			return nil, models.ErrNotFound
		}
		return nil, models.ErrPreconditionFailed
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.events != nil {
		s.events.PublishArticleEvent(ctx, "article.published", a)
	}

	log.Info("Статья опубликована", zap.Int64("id", id), zap.String("slug", a.Slug))
	return a, nil
}

// Reject переводит submitted -> rejected и сохраняет причину.
func (s *articleService) Reject(ctx context.Context, actor Actor, id int64, reason string) (*models.Article, error) {
	log := logger.WithCtx(ctx)
	log.Info("Отклонение статьи", zap.Int64("id", id), zap.Int("admin_id", actor.ID))

	if !actor.IsAdmin() {
		return nil, models.ErrForbidden
	}

	if strings.TrimSpace(reason) == "" {
		reason = "No reason provided"
	}

	ok, err := s.repo.UpdateStatus(ctx, id, models.StatusSubmitted, models.StatusRejected, &reason)
	if err != nil {
		log.Error("Ошибка отклонения (repo)", zap.Int64("id", id), zap.Error(err))
		return nil, err
	}
	if !ok {
		if _, gerr := s.repo.GetByID(ctx, id); gerr != nil {
			return nil, models.ErrNotFound
		}
		return nil, models.ErrPreconditionFailed
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.events != nil {
		s.events.PublishArticleEvent(ctx, "article.rejected", a)
	}

	log.Info("Статья отклонена", zap.Int64("id", id))
	return a, nil
}

// Like — toggle лайка. Двойной вызов возвращает счётчик к исходному значению.
func (s *articleService) Like(ctx context.Context, actor Actor, id int64) (*models.LikeResult, error) {
	if actor.ID == 0 {
		return nil, models.ErrNotAuthenticated
	}

	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, models.ErrNotFound
	}

	res, err := s.repo.ToggleLike(ctx, id, actor.ID)
	if err != nil {
		logger.WithCtx(ctx).Error("Ошибка toggle лайка (repo)", zap.Int64("id", id), zap.Error(err))
		return nil, err
	}
	return res, nil
}

// View возвращает статью и засчитывает просмотр опубликованной.
func (s *articleService) View(ctx context.Context, id int64) (*models.Article, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, models.ErrNotFound
	}
	if a.Status == models.StatusPublished {
		if err := s.repo.IncrementViews(ctx, id); err != nil {
			logger.WithCtx(ctx).Warn("Не удалось засчитать просмотр", zap.Int64("id", id), zap.Error(err))
		} else {
			a.ViewsCount++
		}
	}
	stripAuthorEmail(a)
	return a, nil
}

func (s *articleService) ViewBySlug(ctx context.Context, slug string) (*models.Article, error) {
	a, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, models.ErrNotFound
	}
	return s.View(ctx, a.ID)
}

func (s *articleService) GetPublished(ctx context.Context, limit, offset int, tag string) ([]*models.Article, error) {
	list, err := s.repo.GetByStatus(ctx, models.StatusPublished, limit, offset, tag)
	if err != nil {
		return nil, err
	}
	stripAuthorEmail(list...)
	return list, nil
}

func (s *articleService) GetTrending(ctx context.Context, limit int) ([]*models.Article, error) {
	list, err := s.repo.GetTrending(ctx, limit)
	if err != nil {
		return nil, err
	}
	stripAuthorEmail(list...)
	return list, nil
}

func (s *articleService) GetByAuthor(ctx context.Context, authorID, limit, offset int) ([]*models.Article, error) {
	list, err := s.repo.GetByAuthor(ctx, authorID, limit, offset)
	if err != nil {
		return nil, err
	}
	stripAuthorEmail(list...)
	return list, nil
}

func (s *articleService) GetModerationQueue(ctx context.Context, status string, limit, offset int) ([]*models.Article, error) {
	switch status {
	case models.StatusSubmitted, models.StatusPublished, models.StatusRejected:
	default:
		return nil, fmt.Errorf("%w: неизвестный статус %q", models.ErrValidation, status)
	}
	return s.repo.GetByStatus(ctx, status, limit, offset, "")
}

func (s *articleService) AddComment(ctx context.Context, actor Actor, articleID int64, body string) (*models.Comment, error) {
	if actor.ID == 0 {
		return nil, models.ErrNotAuthenticated
	}
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: пустой комментарий", models.ErrValidation)
	}

	if _, err := s.repo.GetByID(ctx, articleID); err != nil {
		return nil, models.ErrNotFound
	}

	c := &models.Comment{
		ArticleID: articleID,
		AuthorID:  actor.ID,
		Body:      strings.TrimSpace(body),
	}
	if err := s.repo.AddComment(ctx, c); err != nil {
		logger.WithCtx(ctx).Error("Ошибка добавления комментария (repo)", zap.Int64("article_id", articleID), zap.Error(err))
		return nil, err
	}
	return c, nil
}

func (s *articleService) GetComments(ctx context.Context, articleID int64, limit, offset int) ([]*models.Comment, error) {
	return s.repo.GetComments(ctx, articleID, limit, offset)
}

// stripAuthorEmail убирает email автора из выдачи: наружу он попадает
// только через админскую очередь модерации.
func stripAuthorEmail(list ...*models.Article) {
	for _, a := range list {
		if a != nil {
			a.AuthorEmail = ""
		}
	}
}

func strPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func normalizeTags(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
