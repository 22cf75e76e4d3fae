package repository

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"codequill/internal/models"
)

func slugConflict() error {
	return &pgconn.PgError{Code: "23505", ConstraintName: "articles_slug_key"}
}

func TestWithSlugRetry_PicksFreeSuffix(t *testing.T) {
	a := &models.Article{Slug: "my-post"}
	calls := 0

	err := withSlugRetry(a, func() error {
		calls++
		if a.Slug == "my-post-3" {
			return nil
		}
		return slugConflict()
	})
	if err != nil {
		t.Fatalf("ожидался успех после подбора суффикса, получили %v", err)
	}
	if calls != 3 {
		t.Fatalf("ожидалось 3 попытки, получили %d", calls)
	}
	if a.Slug != "my-post-3" {
		t.Fatalf("ожидался слаг my-post-3, получили %q", a.Slug)
	}
}

func TestWithSlugRetry_OtherErrorPassesThrough(t *testing.T) {
	a := &models.Article{Slug: "my-post"}
	want := errors.New("connection refused")

	err := withSlugRetry(a, func() error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("ожидалась исходная ошибка, получили %v", err)
	}
	if a.Slug != "my-post" {
		t.Fatalf("слаг не должен меняться при посторонней ошибке, получили %q", a.Slug)
	}
}

func TestWithSlugRetry_GivesUp(t *testing.T) {
	a := &models.Article{Slug: "my-post"}
	calls := 0

	err := withSlugRetry(a, func() error {
		calls++
		return slugConflict()
	})

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		t.Fatalf("ожидалась ошибка БД после исчерпания попыток, получили %v", err)
	}
	if calls != 5 {
		t.Fatalf("ожидалось 5 попыток, получили %d", calls)
	}
}
