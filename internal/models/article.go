package models

import "time"

// Статусы статьи. Переходы монотонны:
// draft -> submitted -> published | rejected.
const (
	StatusDraft     = "draft"
	StatusSubmitted = "submitted"
	StatusPublished = "published"
	StatusRejected  = "rejected"
)

const MaxArticleTags = 5

type Article struct {
	ID              int64      `db:"id"               json:"id"`
	AuthorID        int        `db:"author_id"        json:"author_id"`
	Title           string     `db:"title"            json:"title"`
	Slug            string     `db:"slug"             json:"slug"`
	BodyMarkdown    string     `db:"body_markdown"    json:"body_markdown"`
	BodyHTML        string     `db:"body_html"        json:"body_html"`
	CoverImage      *string    `db:"cover_image"      json:"cover_image,omitempty"`
	Tags            []string   `db:"-"                json:"tags"`
	Status          string     `db:"status"           json:"status"`
	RejectionReason *string    `db:"rejection_reason" json:"rejection_reason,omitempty"`
	LikesCount      int        `db:"likes_count"      json:"likes_count"`
	CommentsCount   int        `db:"comments_count"   json:"comments_count"`
	ViewsCount      int        `db:"views_count"      json:"views_count"`
	CreatedAt       time.Time  `db:"created_at"       json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"       json:"updated_at"`
	PublishedAt     *time.Time `db:"published_at"     json:"published_at,omitempty"`

	// Заполняются join-ом в админ-выборках.
	AuthorName  string `db:"-" json:"author_name,omitempty"`
	AuthorEmail string `db:"-" json:"author_email,omitempty"`
}

// TrendingScore — производный рейтинг для сортировки трендов.
// Нигде не хранится, считается из счётчиков.
func (a *Article) TrendingScore() float64 {
	return float64(a.LikesCount)*3 + float64(a.CommentsCount)*2 + float64(a.ViewsCount)*0.1
}

// swagger:model CreateArticleRequest
type CreateArticleRequest struct {
	Title        string   `json:"title"         example:"My First Post"`
	BodyMarkdown string   `json:"body_markdown" example:"# Привет\nТекст статьи в markdown."`
	Tags         []string `json:"tags"          example:"go,backend"`
	CoverImage   string   `json:"cover_image,omitempty"`
}

// swagger:model RejectArticleRequest
type RejectArticleRequest struct {
	Reason string `json:"reason,omitempty"`
}

type Comment struct {
	ID         int64     `json:"id"`
	ArticleID  int64     `json:"article_id"`
	AuthorID   int       `json:"author_id"`
	AuthorName string    `json:"author_name,omitempty"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// LikeResult — итог toggle-лайка: новое состояние флага и счётчика.
type LikeResult struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
}

// ArticleAction — действие над статьёй, доступное конкретному актору.
type ArticleAction string

const (
	ActionEdit    ArticleAction = "edit"
	ActionSubmit  ArticleAction = "submit"
	ActionApprove ArticleAction = "approve"
	ActionReject  ArticleAction = "reject"
	ActionLike    ArticleAction = "like"
)

// AllowedActions — чистая функция от (статус, роль, авторство):
// какие переходы предлагать в интерфейсе. Сами переходы дополнительно
// охраняются на уровне сервиса и SQL.
func AllowedActions(status, role string, isAuthor bool) []ArticleAction {
	var out []ArticleAction
	if isAuthor && status == StatusDraft {
		out = append(out, ActionEdit, ActionSubmit)
	}
	if role == RoleAdmin && status == StatusSubmitted {
		out = append(out, ActionApprove, ActionReject)
	}
	if status == StatusPublished {
		out = append(out, ActionLike)
	}
	return out
}
