package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"codequill/internal/logger"
	"codequill/internal/models"
	"codequill/internal/utils"

	"go.uber.org/zap"
)

type AuthService struct {
	repo UserRepo
}

func NewAuthService(repo UserRepo) *AuthService {
	return &AuthService{repo: repo}
}

type UserRepo interface {
	IsEmailTaken(ctx context.Context, email string) (bool, error)
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	UpdateProfileFields(ctx context.Context, id int, input *models.UpdateProfileRequest) error
	UpdateUserFields(ctx context.Context, id int, input *models.UpdateUserRequest) error
	SetEmailVerified(ctx context.Context, userID int, verified bool) error
	GetAllUsersPaginated(ctx context.Context, limit, offset int) ([]*models.User, int, error)
	SaveRefreshToken(ctx context.Context, userID int, token string) error
	IsRefreshTokenValid(ctx context.Context, userID int, token string) (bool, error)
	DeleteRefreshToken(ctx context.Context, userID int, token string) error
}

// RegisterUser создаёт аккаунт. Сессию не выдаёт: после регистрации
// пользователь проходит подтверждение почты.
func (s *AuthService) RegisterUser(ctx context.Context, input *models.User, plainPassword string) error {
	logger.WithCtx(ctx).Info("Регистрация пользователя (service)", zap.String("email", input.Email))

	if !strings.Contains(input.Email, "@") || strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: требуется e-mail и имя", models.ErrInvalidCredentialsFormat)
	}
	if len(plainPassword) < 8 {
		return fmt.Errorf("%w: пароль короче 8 символов", models.ErrInvalidCredentialsFormat)
	}

	if exists, err := s.repo.IsEmailTaken(ctx, input.Email); exists || err != nil {
		if err != nil {
			logger.WithCtx(ctx).Error("Ошибка проверки email", zap.Error(err))
			return err
		}
		return models.ErrDuplicateAccount
	}

	hashed, err := utils.HashPassword(plainPassword)
	if err != nil {
		logger.WithCtx(ctx).Error("Ошибка хеширования пароля", zap.Error(err))
		return err
	}

	input.PasswordHash = hashed
	input.Role = models.RoleUser

	if err := s.repo.CreateUser(ctx, input); err != nil {
		logger.WithCtx(ctx).Error("Ошибка создания пользователя", zap.Error(err))
		return err
	}
	logger.WithCtx(ctx).Info("Пользователь зарегистрирован (service)", zap.Int("user_id", input.ID))
	return nil
}

// LoginUser обменивает учётные данные на пару токенов. Неизвестный аккаунт
// и неверный пароль дают одну и ту же ошибку — никакой энумерации аккаунтов.
func (s *AuthService) LoginUser(
	ctx context.Context,
	email, password, jwtSecret string,
	accessTTL, refreshTTL time.Duration,
) (string, string, *models.User, error) {
	logger.WithCtx(ctx).Info("Попытка входа (service)", zap.String("email", email))

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		logger.WithCtx(ctx).Warn("Пользователь не найден (service)", zap.String("email", email))
		return "", "", nil, models.ErrAuthenticationFailed
	}

	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		logger.WithCtx(ctx).Warn("Неверный пароль (service)", zap.Int("user_id", user.ID))
		return "", "", nil, models.ErrAuthenticationFailed
	}

	accessToken, err := utils.GenerateToken(jwtSecret, user.ID, user.Role, accessTTL, "access")
	if err != nil {
		logger.WithCtx(ctx).Error("Ошибка генерации access-токена", zap.Error(err))
		return "", "", nil, err
	}

	refreshToken, err := utils.GenerateToken(jwtSecret, user.ID, user.Role, refreshTTL, "refresh")
	if err != nil {
		logger.WithCtx(ctx).Error("Ошибка генерации refresh-токена", zap.Error(err))
		return "", "", nil, err
	}

	if err := s.repo.SaveRefreshToken(ctx, user.ID, refreshToken); err != nil {
		logger.WithCtx(ctx).Error("Ошибка сохранения refresh-токена", zap.Error(err))
		return "", "", nil, err
	}

	logger.WithCtx(ctx).Info("Вход выполнен (service)", zap.Int("user_id", user.ID))
	return accessToken, refreshToken, user, nil
}

func (s *AuthService) ValidateRefreshToken(ctx context.Context, userID int, token string) (bool, error) {
	logger.WithCtx(ctx).Debug("Проверка refresh токена (service)", zap.Int("user_id", userID))
	return s.repo.IsRefreshTokenValid(ctx, userID, token)
}

func (s *AuthService) Logout(ctx context.Context, userID int, token string) error {
	logger.WithCtx(ctx).Info("Выход пользователя (service)", zap.Int("user_id", userID))
	return s.repo.DeleteRefreshToken(ctx, userID, token)
}

func (s *AuthService) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		logger.WithCtx(ctx).Warn("Пользователь не найден по ID (service)", zap.Int("user_id", id), zap.Error(err))
		return nil, models.ErrNotFound
	}
	return user, nil
}

// UpdateProfile применяет частичное обновление профиля владельца
// и возвращает перечитанную запись целиком.
func (s *AuthService) UpdateProfile(ctx context.Context, userID int, input *models.UpdateProfileRequest) (*models.User, error) {
	logger.WithCtx(ctx).Info("Обновление профиля (service)", zap.Int("user_id", userID))

	if err := s.repo.UpdateProfileFields(ctx, userID, input); err != nil {
		logger.WithCtx(ctx).Error("Ошибка обновления профиля (service)", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", models.ErrUpdateRejected, err)
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		logger.WithCtx(ctx).Error("Не удалось перечитать профиль после обновления", zap.Error(err))
		return nil, err
	}
	return user, nil
}

// UpdateUser — админское обновление чужого аккаунта (имя, роль).
func (s *AuthService) UpdateUser(ctx context.Context, id int, input *models.UpdateUserRequest) error {
	logger.WithCtx(ctx).Info("Обновление пользователя (service)", zap.Int("user_id", id))
	if input.Role != nil && *input.Role != models.RoleUser && *input.Role != models.RoleAdmin {
		return fmt.Errorf("%w: неизвестная роль %q", models.ErrValidation, *input.Role)
	}
	if err := s.repo.UpdateUserFields(ctx, id, input); err != nil {
		logger.WithCtx(ctx).Error("Ошибка при обновлении пользователя (service)", zap.Error(err), zap.Int("user_id", id))
		return err
	}
	return nil
}

func (s *AuthService) GetUsersPaginated(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	return s.repo.GetAllUsersPaginated(ctx, limit, offset)
}
