package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	uniq := &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
	if !isUniqueViolation(uniq) {
		t.Fatal("код 23505 должен распознаваться как нарушение уникальности")
	}
	if !isUniqueViolation(fmt.Errorf("insert: %w", uniq)) {
		t.Fatal("обёрнутая ошибка 23505 должна распознаваться")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatal("другой код БД не должен распознаваться как дубликат")
	}
	if isUniqueViolation(errors.New("connection refused")) {
		t.Fatal("обычная ошибка не должна распознаваться как дубликат")
	}
	if isUniqueViolation(nil) {
		t.Fatal("nil не должен распознаваться как дубликат")
	}
}
