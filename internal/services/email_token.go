package services

import (
	"context"
	"errors"
	"time"

	"codequill/internal/logger"
	"codequill/internal/models"
	"codequill/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EmailTokenService struct {
	repo     *repository.EmailTokenRepository
	userRepo UserRepo
}

func NewEmailTokenService(repo *repository.EmailTokenRepository, userRepo UserRepo) *EmailTokenService {
	return &EmailTokenService{repo: repo, userRepo: userRepo}
}

var (
	ErrTokenInvalid = errors.New("неверный токен")
	ErrTokenExpired = errors.New("токен истёк")
)

func (s *EmailTokenService) GenerateToken(ctx context.Context, userID int) (*models.EmailVerificationToken, error) {
	token := uuid.New().String()
	expires := time.Now().Add(24 * time.Hour)
	t := &models.EmailVerificationToken{
		UserID:    userID,
		Token:     token,
		ExpiresAt: expires,
	}
	err := s.repo.SaveToken(ctx, t)
	return t, err
}

func (s *EmailTokenService) ConfirmToken(ctx context.Context, token string) error {
	t, err := s.repo.VerifyToken(ctx, token)
	if err != nil {
		return ErrTokenInvalid
	}
	if t.ExpiresAt.Before(time.Now()) {
		return ErrTokenExpired
	}
	if t.Confirmed {
		return ErrTokenInvalid
	}
	if err := s.repo.MarkConfirmed(ctx, token); err != nil {
		return err
	}
	if err := s.userRepo.SetEmailVerified(ctx, t.UserID, true); err != nil {
		return err
	}
	logger.WithCtx(ctx).Info("Почта подтверждена", zap.Int("user_id", t.UserID))
	return nil
}
