package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"codequill/internal/models"
)

type ArticleRepo interface {
	Create(ctx context.Context, a *models.Article) (*models.Article, error)
	GetByID(ctx context.Context, id int64) (*models.Article, error)
	GetBySlug(ctx context.Context, slug string) (*models.Article, error)
	GetByStatus(ctx context.Context, status string, limit, offset int, tag string) ([]*models.Article, error)
	GetByAuthor(ctx context.Context, authorID int, limit, offset int) ([]*models.Article, error)
	GetTrending(ctx context.Context, limit int) ([]*models.Article, error)
	UpdateDraft(ctx context.Context, a *models.Article) (bool, error)
	UpdateStatus(ctx context.Context, id int64, from, to string, reason *string) (bool, error)
	ToggleLike(ctx context.Context, articleID int64, userID int) (*models.LikeResult, error)
	IsLiked(ctx context.Context, articleID int64, userID int) (bool, error)
	IncrementViews(ctx context.Context, id int64) error
	AddComment(ctx context.Context, c *models.Comment) error
	GetComments(ctx context.Context, articleID int64, limit, offset int) ([]*models.Comment, error)
}

type articleRepo struct{ db *pgxpool.Pool }

func NewArticleRepo(db *pgxpool.Pool) ArticleRepo { return &articleRepo{db: db} }

const articleColumns = `
	a.id, a.author_id, a.title, a.slug, a.body_markdown, a.body_html, a.cover_image,
	a.status, a.rejection_reason, a.likes_count, a.comments_count, a.views_count,
	a.created_at, a.updated_at, a.published_at, a.tags, u.name, u.email
`

func scanArticle(row pgx.Row) (*models.Article, error) {
	var a models.Article
	var tagsRaw []byte
	if err := row.Scan(
		&a.ID, &a.AuthorID, &a.Title, &a.Slug, &a.BodyMarkdown, &a.BodyHTML, &a.CoverImage,
		&a.Status, &a.RejectionReason, &a.LikesCount, &a.CommentsCount, &a.ViewsCount,
		&a.CreatedAt, &a.UpdatedAt, &a.PublishedAt, &tagsRaw, &a.AuthorName, &a.AuthorEmail,
	); err != nil {
		return nil, err
	}
	_ = json.Unmarshal(tagsRaw, &a.Tags)
	return &a, nil
}

// withSlugRetry повторяет операцию при коллизии уникального слага,
// подставляя суффикс -2, -3, ... (до 5 попыток).
func withSlugRetry(a *models.Article, fn func() error) error {
	baseSlug := a.Slug
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, "slug") && attempt < 5 {
			a.Slug = fmt.Sprintf("%s-%d", baseSlug, attempt+1)
			continue
		}
		return err
	}
}

// Create вставляет черновик. Слаг уникален на уровне БД.
func (r *articleRepo) Create(ctx context.Context, a *models.Article) (*models.Article, error) {
	tagsJSON, _ := json.Marshal(a.Tags)

	const q = `
		INSERT INTO articles (author_id, title, slug, body_markdown, body_html, cover_image, tags, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7::jsonb,$8)
		RETURNING id, created_at, updated_at
	`

	err := withSlugRetry(a, func() error {
		return r.db.QueryRow(ctx, q,
			a.AuthorID, a.Title, a.Slug, a.BodyMarkdown, a.BodyHTML, a.CoverImage, tagsJSON, a.Status,
		).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *articleRepo) GetByID(ctx context.Context, id int64) (*models.Article, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+articleColumns+`
		FROM articles a JOIN users u ON u.id = a.author_id
		WHERE a.id = $1
	`, id)
	return scanArticle(row)
}

func (r *articleRepo) GetBySlug(ctx context.Context, slug string) (*models.Article, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+articleColumns+`
		FROM articles a JOIN users u ON u.id = a.author_id
		WHERE a.slug = $1
	`, slug)
	return scanArticle(row)
}

func (r *articleRepo) GetByStatus(ctx context.Context, status string, limit, offset int, tag string) ([]*models.Article, error) {
	where := []string{"a.status = $1"}
	args := []interface{}{status}
	i := 2

	if tag != "" {
		// tags — jsonb-массив строк: ["a","b"]
		where = append(where, fmt.Sprintf(`
			EXISTS (
				SELECT 1
				FROM jsonb_array_elements_text(a.tags) AS t(val)
				WHERE t.val = $%d
			)
		`, i))
		args = append(args, tag)
		i++
	}

	order := "a.created_at DESC"
	if status == models.StatusPublished {
		order = "a.published_at DESC"
	}

	sql := `
		SELECT ` + articleColumns + `
		FROM articles a JOIN users u ON u.id = a.author_id
		WHERE ` + strings.Join(where, " AND ") +
		fmt.Sprintf(" ORDER BY %s LIMIT $%d OFFSET $%d", order, i, i+1)
	args = append(args, limit, offset)

	return r.queryArticles(ctx, sql, args...)
}

func (r *articleRepo) GetByAuthor(ctx context.Context, authorID int, limit, offset int) ([]*models.Article, error) {
	sql := `
		SELECT ` + articleColumns + `
		FROM articles a JOIN users u ON u.id = a.author_id
		WHERE a.author_id = $1
		ORDER BY a.updated_at DESC LIMIT $2 OFFSET $3
	`
	return r.queryArticles(ctx, sql, authorID, limit, offset)
}

// GetTrending сортирует опубликованные статьи по производному рейтингу
// likes*3 + comments*2 + views*0.1.
func (r *articleRepo) GetTrending(ctx context.Context, limit int) ([]*models.Article, error) {
	sql := `
		SELECT ` + articleColumns + `
		FROM articles a JOIN users u ON u.id = a.author_id
		WHERE a.status = 'published'
		ORDER BY (a.likes_count * 3 + a.comments_count * 2 + a.views_count * 0.1) DESC,
		         a.published_at DESC
		LIMIT $1
	`
	return r.queryArticles(ctx, sql, limit)
}

func (r *articleRepo) queryArticles(ctx context.Context, sql string, args ...interface{}) ([]*models.Article, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*models.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// UpdateDraft меняет черновик. Охрана в WHERE: статья должна существовать,
// принадлежать автору и быть в статусе draft — иначе false без мутации.
// Переименование в занятый слаг разрешается тем же подбором суффикса,
// что и при вставке.
func (r *articleRepo) UpdateDraft(ctx context.Context, a *models.Article) (bool, error) {
	tagsJSON, _ := json.Marshal(a.Tags)

	var affected int64
	err := withSlugRetry(a, func() error {
		tag, err := r.db.Exec(ctx, `
			UPDATE articles
			SET title=$1, slug=$2, body_markdown=$3, body_html=$4, cover_image=$5,
			    tags=$6::jsonb, updated_at=NOW()
			WHERE id=$7 AND author_id=$8 AND status='draft'
		`, a.Title, a.Slug, a.BodyMarkdown, a.BodyHTML, a.CoverImage, tagsJSON, a.ID, a.AuthorID)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// UpdateStatus выполняет переход from -> to одним guarded-апдейтом.
// published_at ставится ровно в момент публикации и никогда раньше.
func (r *articleRepo) UpdateStatus(ctx context.Context, id int64, from, to string, reason *string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE articles
		SET status = $3,
		    rejection_reason = $4,
		    published_at = CASE WHEN $3 = 'published' THEN NOW() ELSE published_at END,
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, from, to, reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ToggleLike — идемпотентный per-actor переключатель. Таблица article_likes
// авторитетна, likes_count — производный кэш, правится в той же транзакции.
func (r *articleRepo) ToggleLike(ctx context.Context, articleID int64, userID int) (*models.LikeResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`DELETE FROM article_likes WHERE article_id=$1 AND user_id=$2`, articleID, userID)
	if err != nil {
		return nil, err
	}

	liked := tag.RowsAffected() == 0
	if liked {
		if _, err := tx.Exec(ctx,
			`INSERT INTO article_likes (article_id, user_id) VALUES ($1, $2)`, articleID, userID); err != nil {
			return nil, err
		}
	}

	delta := -1
	if liked {
		delta = 1
	}

	var count int
	if err := tx.QueryRow(ctx, `
		UPDATE articles SET likes_count = likes_count + $2 WHERE id = $1
		RETURNING likes_count
	`, articleID, delta).Scan(&count); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &models.LikeResult{Liked: liked, LikesCount: count}, nil
}

func (r *articleRepo) IsLiked(ctx context.Context, articleID int64, userID int) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM article_likes WHERE article_id=$1 AND user_id=$2)`,
		articleID, userID).Scan(&ok)
	return ok, err
}

func (r *articleRepo) IncrementViews(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE articles SET views_count = views_count + 1 WHERE id = $1`, id)
	return err
}

func (r *articleRepo) AddComment(ctx context.Context, c *models.Comment) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := tx.QueryRow(ctx, `
		INSERT INTO comments (article_id, author_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, c.ArticleID, c.AuthorID, c.Body).Scan(&c.ID, &c.CreatedAt); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE articles SET comments_count = comments_count + 1 WHERE id = $1`, c.ArticleID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *articleRepo) GetComments(ctx context.Context, articleID int64, limit, offset int) ([]*models.Comment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT c.id, c.article_id, c.author_id, u.name, c.body, c.created_at
		FROM comments c JOIN users u ON u.id = c.author_id
		WHERE c.article_id = $1
		ORDER BY c.created_at
		LIMIT $2 OFFSET $3
	`, articleID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.ArticleID, &c.AuthorID, &c.AuthorName, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}
