package services

import (
	"context"
	"encoding/json"
	"time"

	"codequill/internal/logger"
	"codequill/internal/models"

	nats "github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NatsPublisher публикует события модерации в NATS. Доставка best-effort:
// ошибка публикации логируется и не влияет на переход статуса.
type NatsPublisher struct {
	conn    *nats.Conn
	subject string
}

func NewNatsPublisher(url, subject string) (*NatsPublisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &NatsPublisher{conn: conn, subject: subject}, nil
}

type articleEvent struct {
	Event       string     `json:"event"`
	ArticleID   int64      `json:"article_id"`
	Slug        string     `json:"slug"`
	AuthorID    int        `json:"author_id"`
	Status      string     `json:"status"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	OccurredAt  time.Time  `json:"occurred_at"`
}

func (p *NatsPublisher) PublishArticleEvent(ctx context.Context, event string, a *models.Article) {
	payload, err := json.Marshal(articleEvent{
		Event:       event,
		ArticleID:   a.ID,
		Slug:        a.Slug,
		AuthorID:    a.AuthorID,
		Status:      a.Status,
		PublishedAt: a.PublishedAt,
		OccurredAt:  time.Now().UTC(),
	})
	if err != nil {
		return
	}

	if err := p.conn.Publish(p.subject+"."+event, payload); err != nil {
		logger.WithCtx(ctx).Warn("Не удалось опубликовать событие",
			zap.String("event", event),
			zap.Int64("article_id", a.ID),
			zap.Error(err),
		)
	}
}

func (p *NatsPublisher) Close() {
	p.conn.Drain()
}
