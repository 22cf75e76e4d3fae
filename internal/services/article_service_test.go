package services

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"codequill/internal/models"
)

// Мок-репозиторий статей в памяти.
type mockArticleRepo struct {
	articles map[int64]*models.Article
	likes    map[int64]map[int]bool
	comments map[int64][]*models.Comment
	nextID   int64
}

func newMockArticleRepo() *mockArticleRepo {
	return &mockArticleRepo{
		articles: make(map[int64]*models.Article),
		likes:    make(map[int64]map[int]bool),
		comments: make(map[int64][]*models.Comment),
		nextID:   1,
	}
}

func (m *mockArticleRepo) Create(_ context.Context, a *models.Article) (*models.Article, error) {
	for _, existing := range m.articles {
		if existing.Slug == a.Slug {
			return nil, errors.New("duplicate slug")
		}
	}
	a.ID = m.nextID
	m.nextID++
	m.articles[a.ID] = a
	return a, nil
}

func (m *mockArticleRepo) GetByID(_ context.Context, id int64) (*models.Article, error) {
	a, ok := m.articles[id]
	if !ok {
		return nil, errors.New("not found")
	}
	copied := *a
	return &copied, nil
}

func (m *mockArticleRepo) GetBySlug(_ context.Context, slug string) (*models.Article, error) {
	for _, a := range m.articles {
		if a.Slug == slug {
			copied := *a
			return &copied, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *mockArticleRepo) GetByStatus(_ context.Context, status string, limit, offset int, tag string) ([]*models.Article, error) {
	var out []*models.Article
	for _, a := range m.articles {
		if a.Status == status {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockArticleRepo) GetByAuthor(_ context.Context, authorID int, limit, offset int) ([]*models.Article, error) {
	var out []*models.Article
	for _, a := range m.articles {
		if a.AuthorID == authorID {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockArticleRepo) GetTrending(_ context.Context, limit int) ([]*models.Article, error) {
	var out []*models.Article
	for _, a := range m.articles {
		if a.Status == models.StatusPublished {
			copied := *a
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TrendingScore() > out[j].TrendingScore()
	})
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockArticleRepo) UpdateDraft(_ context.Context, a *models.Article) (bool, error) {
	stored, ok := m.articles[a.ID]
	if !ok || stored.Status != models.StatusDraft {
		return false, nil
	}
	m.articles[a.ID] = a
	return true, nil
}

func (m *mockArticleRepo) UpdateStatus(_ context.Context, id int64, from, to string, reason *string) (bool, error) {
	a, ok := m.articles[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	a.RejectionReason = reason
	if to == models.StatusPublished {
		now := time.Now()
		a.PublishedAt = &now
	}
	return true, nil
}

func (m *mockArticleRepo) ToggleLike(_ context.Context, articleID int64, userID int) (*models.LikeResult, error) {
	a, ok := m.articles[articleID]
	if !ok {
		return nil, errors.New("not found")
	}
	if m.likes[articleID] == nil {
		m.likes[articleID] = make(map[int]bool)
	}
	if m.likes[articleID][userID] {
		delete(m.likes[articleID], userID)
		a.LikesCount--
		return &models.LikeResult{Liked: false, LikesCount: a.LikesCount}, nil
	}
	m.likes[articleID][userID] = true
	a.LikesCount++
	return &models.LikeResult{Liked: true, LikesCount: a.LikesCount}, nil
}

func (m *mockArticleRepo) IsLiked(_ context.Context, articleID int64, userID int) (bool, error) {
	return m.likes[articleID][userID], nil
}

func (m *mockArticleRepo) IncrementViews(_ context.Context, id int64) error {
	a, ok := m.articles[id]
	if !ok {
		return errors.New("not found")
	}
	a.ViewsCount++
	return nil
}

func (m *mockArticleRepo) AddComment(_ context.Context, c *models.Comment) error {
	a, ok := m.articles[c.ArticleID]
	if !ok {
		return errors.New("not found")
	}
	c.ID = int64(len(m.comments[c.ArticleID]) + 1)
	m.comments[c.ArticleID] = append(m.comments[c.ArticleID], c)
	a.CommentsCount++
	return nil
}

func (m *mockArticleRepo) GetComments(_ context.Context, articleID int64, limit, offset int) ([]*models.Comment, error) {
	return m.comments[articleID], nil
}

func newTestArticleService(repo *mockArticleRepo) ArticleService {
	return NewArticleService(repo, nil)
}

func draftRequest(title string, tags ...string) models.CreateArticleRequest {
	return models.CreateArticleRequest{
		Title:        title,
		BodyMarkdown: "# Заголовок\n\nТекст статьи.",
		Tags:         tags,
	}
}

func TestCreateDraft_SlugDerivation(t *testing.T) {
	repo := newMockArticleRepo()
	svc := newTestArticleService(repo)

	a, err := svc.CreateDraft(context.Background(), 1, draftRequest("My First Post!!", "go"))
	if err != nil {
		t.Fatalf("ошибка создания черновика: %v", err)
	}

	if a.Slug != "my-first-post" {
		t.Fatalf("ожидался слаг my-first-post, получили %q", a.Slug)
	}
	if a.Status != models.StatusDraft {
		t.Fatalf("новая статья должна быть черновиком, получили %q", a.Status)
	}
	if a.BodyHTML == "" {
		t.Fatal("markdown не отрендерен в HTML")
	}
}

func TestCreateDraft_TooManyTags(t *testing.T) {
	svc := newTestArticleService(newMockArticleRepo())

	_, err := svc.CreateDraft(context.Background(), 1, draftRequest("Title", "a", "b", "c", "d", "e", "f"))
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("ожидалась ErrValidation при 6 тегах, получили %v", err)
	}
}

func TestCreateDraft_EmptyTitle(t *testing.T) {
	svc := newTestArticleService(newMockArticleRepo())

	_, err := svc.CreateDraft(context.Background(), 1, draftRequest("   ", "go"))
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("ожидалась ErrValidation при пустом заголовке, получили %v", err)
	}
}

func TestSubmit_RequiresTag(t *testing.T) {
	repo := newMockArticleRepo()
	svc := newTestArticleService(repo)

	a, err := svc.CreateDraft(context.Background(), 1, draftRequest("No tags"))
	if err != nil {
		t.Fatalf("ошибка создания черновика: %v", err)
	}

	_, err = svc.Submit(context.Background(), Actor{ID: 1}, a.ID)
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("ожидалась ErrValidation без тегов, получили %v", err)
	}
}

func TestSubmit_OnlyAuthor(t *testing.T) {
	repo := newMockArticleRepo()
	svc := newTestArticleService(repo)

	a, _ := svc.CreateDraft(context.Background(), 1, draftRequest("Mine", "go"))

	_, err := svc.Submit(context.Background(), Actor{ID: 2}, a.ID)
	if !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("ожидалась ErrForbidden для чужой статьи, получили %v", err)
	}
}

func TestSubmit_AlreadySubmitted(t *testing.T) {
	repo := newMockArticleRepo()
	svc := newTestArticleService(repo)

	a, _ := svc.CreateDraft(context.Background(), 1, draftRequest("Twice", "go"))
	if _, err := svc.Submit(context.Background(), Actor{ID: 1}, a.ID); err != nil {
		t.Fatalf("первый submit: %v", err)
	}

	_, err := svc.Submit(context.Background(), Actor{ID: 1}, a.ID)
	if !errors.Is(err, models.ErrPreconditionFailed) {
		t.Fatalf("повторный submit: ожидалась ErrPreconditionFailed, получили %v", err)
	}
	if repo.articles[a.ID].Status != models.StatusSubmitted {
		t.Fatal("повторный submit изменил статус")
	}
}

func TestApprove_NonAdminForbidden(t *testing.T) {
	repo := newMockArticleRepo()
	svc := newTestArticleService(repo)

	a, _ := svc.CreateDraft(context.Background(), 1, draftRequest("Post", "go"))
	if _, err := svc.Submit(context.Background(), Actor{ID: 1}, a.ID); err != nil {
		t.Fatalf("ошибка отправки на модерацию: %v", err)
	}

	_, err := svc.Approve(context.Background(), Actor{ID: 1, Role: models.RoleUser}, a.ID)
	if !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("ожидалась ErrForbidden для не-админа, получили %v", err)
	}
}

func TestApprove_IllegalTransition(t *testing.T) {
	repo := newMockArticleRepo()
	svc := newTestArticleService(repo)

	// черновик, не отправленный на модерацию
	a, _ := svc.CreateDraft(context.Background(), 1, draftRequest("Draft", "go"))

	_, err := svc.Approve(context.Background(), Actor{ID: 9, Role: models.RoleAdmin}, a.ID)
	if !errors.Is(err, models.ErrPreconditionFailed) {
		t.Fatalf("ожидалась ErrPreconditionFailed для draft->published, получили %v", err)
	}
	if repo.articles[a.ID].Status != models.StatusDraft {
		t.Fatal("недопустимый переход изменил статус")
	}
}

func TestModerationFlow(t *testing.T) {
	repo := newMockArticleRepo()
	svc := newTestArticleService(repo)
	admin := Actor{ID: 9, Role: models.RoleAdmin}

	a, _ := svc.CreateDraft(context.Background(), 1, draftRequest("Flow", "go"))
	if _, err := svc.Submit(context.Background(), Actor{ID: 1}, a.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if repo.articles[a.ID].PublishedAt != nil {
		t.Fatal("published_at выставлен до публикации")
	}

	published, err := svc.Approve(context.Background(), admin, a.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if published.Status != models.StatusPublished {
		t.Fatalf("ожидался статус published, получили %q", published.Status)
	}
	if published.PublishedAt == nil {
		t.Fatal("published_at не выставлен при публикации")
	}

	// повторная публикация уже опубликованной
	if _, err := svc.Approve(context.Background(), admin, a.ID); !errors.Is(err, models.ErrPreconditionFailed) {
		t.Fatalf("повторный approve: ожидалась ErrPreconditionFailed, получили %v", err)
	}
}

func TestReject_DefaultReason(t *testing.T) {
	repo := newMockArticleRepo()
	svc := newTestArticleService(repo)
	admin := Actor{ID: 9, Role: models.RoleAdmin}

	a, _ := svc.CreateDraft(context.Background(), 1, draftRequest("Rejected", "go"))
	if _, err := svc.Submit(context.Background(), Actor{ID: 1}, a.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	rejected, err := svc.Reject(context.Background(), admin, a.ID, "  ")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.RejectionReason == nil || *rejected.RejectionReason != "No reason provided" {
		t.Fatalf("ожидалась причина по умолчанию, получили %v", rejected.RejectionReason)
	}
}

func TestLike_Toggle(t *testing.T) {
	repo := newMockArticleRepo()
	svc := newTestArticleService(repo)

	a, _ := svc.CreateDraft(context.Background(), 1, draftRequest("Likes", "go"))

	first, err := svc.Like(context.Background(), Actor{ID: 2}, a.ID)
	if err != nil {
		t.Fatalf("первый лайк: %v", err)
	}
	if !first.Liked || first.LikesCount != 1 {
		t.Fatalf("ожидался liked=true count=1, получили %+v", first)
	}

	second, err := svc.Like(context.Background(), Actor{ID: 2}, a.ID)
	if err != nil {
		t.Fatalf("повторный лайк: %v", err)
	}
	if second.Liked || second.LikesCount != 0 {
		t.Fatalf("toggle должен вернуть счётчик к исходному, получили %+v", second)
	}
}

func TestLike_Anonymous(t *testing.T) {
	repo := newMockArticleRepo()
	svc := newTestArticleService(repo)

	a, _ := svc.CreateDraft(context.Background(), 1, draftRequest("Anon", "go"))

	_, err := svc.Like(context.Background(), Actor{}, a.ID)
	if !errors.Is(err, models.ErrNotAuthenticated) {
		t.Fatalf("ожидалась ErrNotAuthenticated, получили %v", err)
	}
}

func TestView_CountsOnlyPublished(t *testing.T) {
	repo := newMockArticleRepo()
	svc := newTestArticleService(repo)
	admin := Actor{ID: 9, Role: models.RoleAdmin}

	a, _ := svc.CreateDraft(context.Background(), 1, draftRequest("Views", "go"))

	if _, err := svc.View(context.Background(), a.ID); err != nil {
		t.Fatalf("просмотр черновика: %v", err)
	}
	if repo.articles[a.ID].ViewsCount != 0 {
		t.Fatal("просмотр черновика не должен увеличивать счётчик")
	}

	svc.Submit(context.Background(), Actor{ID: 1}, a.ID)
	svc.Approve(context.Background(), admin, a.ID)

	if _, err := svc.View(context.Background(), a.ID); err != nil {
		t.Fatalf("просмотр опубликованной: %v", err)
	}
	if repo.articles[a.ID].ViewsCount != 1 {
		t.Fatalf("ожидался 1 просмотр, получили %d", repo.articles[a.ID].ViewsCount)
	}
}

func TestTrendingOrder(t *testing.T) {
	repo := newMockArticleRepo()
	svc := newTestArticleService(repo)

	mk := func(title string, likes, comments, views int) int64 {
		a, _ := svc.CreateDraft(context.Background(), 1, draftRequest(title, "go"))
		stored := repo.articles[a.ID]
		stored.Status = models.StatusPublished
		stored.LikesCount = likes
		stored.CommentsCount = comments
		stored.ViewsCount = views
		return a.ID
	}

	cold := mk("Cold", 0, 0, 10)   // 1.0
	hot := mk("Hot", 10, 0, 0)     // 30.0
	medium := mk("Medium", 2, 3, 0) // 12.0

	out, err := svc.GetTrending(context.Background(), 10)
	if err != nil {
		t.Fatalf("trending: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("ожидалось 3 статьи, получили %d", len(out))
	}
	if out[0].ID != hot || out[1].ID != medium || out[2].ID != cold {
		t.Fatalf("неверный порядок трендов: %d, %d, %d", out[0].ID, out[1].ID, out[2].ID)
	}
}

// Email автора отдаётся только в админской очереди модерации;
// публичные выборки и карточка статьи его не содержат.
func TestPublicReads_NoAuthorEmail(t *testing.T) {
	repo := newMockArticleRepo()
	svc := newTestArticleService(repo)

	a, _ := svc.CreateDraft(context.Background(), 1, draftRequest("Leak", "go"))
	stored := repo.articles[a.ID]
	stored.Status = models.StatusPublished
	stored.AuthorName = "Автор"
	stored.AuthorEmail = "author@example.com"

	feed, err := svc.GetPublished(context.Background(), 20, 0, "")
	if err != nil {
		t.Fatalf("лента: %v", err)
	}
	if len(feed) != 1 || feed[0].AuthorEmail != "" {
		t.Fatalf("лента не должна содержать email автора, получили %q", feed[0].AuthorEmail)
	}

	trending, err := svc.GetTrending(context.Background(), 10)
	if err != nil {
		t.Fatalf("тренды: %v", err)
	}
	if trending[0].AuthorEmail != "" {
		t.Fatalf("тренды не должны содержать email автора, получили %q", trending[0].AuthorEmail)
	}

	one, err := svc.View(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("карточка: %v", err)
	}
	if one.AuthorEmail != "" {
		t.Fatalf("карточка не должна содержать email автора, получили %q", one.AuthorEmail)
	}
	if one.AuthorName == "" {
		t.Fatal("имя автора должно оставаться в выдаче")
	}

	mine, err := svc.GetByAuthor(context.Background(), 1, 20, 0)
	if err != nil {
		t.Fatalf("мои статьи: %v", err)
	}
	if mine[0].AuthorEmail != "" {
		t.Fatalf("авторская выборка не должна содержать email, получили %q", mine[0].AuthorEmail)
	}

	queue, err := svc.GetModerationQueue(context.Background(), models.StatusPublished, 20, 0)
	if err != nil {
		t.Fatalf("очередь модерации: %v", err)
	}
	if queue[0].AuthorEmail != "author@example.com" {
		t.Fatalf("очередь модерации должна содержать email автора, получили %q", queue[0].AuthorEmail)
	}
}

func TestModerationQueue_BadStatus(t *testing.T) {
	svc := newTestArticleService(newMockArticleRepo())

	_, err := svc.GetModerationQueue(context.Background(), "draft", 20, 0)
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("ожидалась ErrValidation для статуса draft, получили %v", err)
	}
}

func TestAddComment(t *testing.T) {
	repo := newMockArticleRepo()
	svc := newTestArticleService(repo)

	a, _ := svc.CreateDraft(context.Background(), 1, draftRequest("Comments", "go"))

	c, err := svc.AddComment(context.Background(), Actor{ID: 2}, a.ID, "  отличная статья  ")
	if err != nil {
		t.Fatalf("комментарий: %v", err)
	}
	if c.Body != "отличная статья" {
		t.Fatalf("тело комментария не обрезано: %q", c.Body)
	}
	if repo.articles[a.ID].CommentsCount != 1 {
		t.Fatal("счётчик комментариев не увеличен")
	}

	if _, err := svc.AddComment(context.Background(), Actor{}, a.ID, "anon"); !errors.Is(err, models.ErrNotAuthenticated) {
		t.Fatalf("аноним: ожидалась ErrNotAuthenticated, получили %v", err)
	}
}
