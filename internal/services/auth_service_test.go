package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"codequill/internal/models"
	"codequill/internal/utils"
)

// Мок-репозиторий (заглушка)
type mockUserRepo struct {
	users     map[string]*models.User
	lastUser  *models.User
	createErr error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*models.User)}
}

func (m *mockUserRepo) IsEmailTaken(_ context.Context, email string) (bool, error) {
	_, exists := m.users[email]
	return exists, nil
}

func (m *mockUserRepo) CreateUser(_ context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	user.ID = len(m.users) + 1
	m.users[user.Email] = user
	m.lastUser = user
	return nil
}

func (m *mockUserRepo) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := m.users[email]
	if !ok {
		return nil, errors.New("not found")
	}
	return u, nil
}

func (m *mockUserRepo) GetUserByID(_ context.Context, id int) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *mockUserRepo) UpdateProfileFields(_ context.Context, id int, input *models.UpdateProfileRequest) error {
	for _, u := range m.users {
		if u.ID == id {
			if input.Name != nil {
				u.Name = *input.Name
			}
			if input.Bio != nil {
				u.Bio = input.Bio
			}
			if input.AvatarURL != nil {
				u.AvatarURL = input.AvatarURL
			}
			return nil
		}
	}
	return errors.New("not found")
}

func (m *mockUserRepo) UpdateUserFields(_ context.Context, id int, input *models.UpdateUserRequest) error {
	return nil
}

func (m *mockUserRepo) SetEmailVerified(_ context.Context, userID int, verified bool) error {
	return nil
}

func (m *mockUserRepo) GetAllUsersPaginated(_ context.Context, limit, offset int) ([]*models.User, int, error) {
	return nil, 0, nil
}

func (m *mockUserRepo) SaveRefreshToken(_ context.Context, userID int, token string) error {
	return nil
}

func (m *mockUserRepo) IsRefreshTokenValid(_ context.Context, userID int, token string) (bool, error) {
	return true, nil
}

func (m *mockUserRepo) DeleteRefreshToken(_ context.Context, userID int, token string) error {
	return nil
}

func TestRegisterUser(t *testing.T) {
	repo := newMockUserRepo()
	service := NewAuthService(repo)

	user := &models.User{
		Name:  "Тестовый Пользователь",
		Email: "test@example.com",
	}

	err := service.RegisterUser(context.Background(), user, "secret123")
	if err != nil {
		t.Fatalf("ошибка регистрации: %v", err)
	}

	if repo.lastUser == nil || repo.lastUser.PasswordHash == "" {
		t.Fatal("пароль не захеширован или пользователь не сохранён")
	}
	if repo.lastUser.PasswordHash == "secret123" {
		t.Fatal("пароль сохранён в открытом виде")
	}
	if repo.lastUser.Role != models.RoleUser {
		t.Fatalf("новому аккаунту должна назначаться роль user, получили %q", repo.lastUser.Role)
	}
}

func TestRegisterUser_ShortPassword(t *testing.T) {
	service := NewAuthService(newMockUserRepo())

	err := service.RegisterUser(context.Background(), &models.User{Name: "a", Email: "a@b.c"}, "short")
	if !errors.Is(err, models.ErrInvalidCredentialsFormat) {
		t.Fatalf("ожидалась ErrInvalidCredentialsFormat, получили %v", err)
	}
}

func TestRegisterUser_Duplicate(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["taken@example.com"] = &models.User{ID: 1, Email: "taken@example.com"}
	service := NewAuthService(repo)

	err := service.RegisterUser(context.Background(), &models.User{Name: "x", Email: "taken@example.com"}, "secret123")
	if !errors.Is(err, models.ErrDuplicateAccount) {
		t.Fatalf("ожидалась ErrDuplicateAccount, получили %v", err)
	}
}

// Гонка двух одновременных регистраций: проверка занятости email прошла
// до вставки конкурента, и дубликат задержал уникальный индекс.
func TestRegisterUser_ConcurrentDuplicate(t *testing.T) {
	repo := newMockUserRepo()
	repo.createErr = models.ErrDuplicateAccount
	service := NewAuthService(repo)

	err := service.RegisterUser(context.Background(), &models.User{Name: "x", Email: "race@example.com"}, "secret123")
	if !errors.Is(err, models.ErrDuplicateAccount) {
		t.Fatalf("ожидалась ErrDuplicateAccount, получили %v", err)
	}
}

func TestLoginUser_Success(t *testing.T) {
	repo := newMockUserRepo()
	service := NewAuthService(repo)

	hashed, _ := utils.HashPassword("secret123")
	repo.users["test@example.com"] = &models.User{
		ID:           1,
		Email:        "test@example.com",
		PasswordHash: hashed,
		Role:         "user",
	}

	access, refresh, user, err := service.LoginUser(context.Background(), "test@example.com", "secret123", "mysecret", 15*time.Minute, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("ошибка логина: %v", err)
	}

	if access == "" || refresh == "" {
		t.Fatal("токены не сгенерированы")
	}
	if user == nil || user.ID != 1 {
		t.Fatal("пользователь не возвращён")
	}
}

// Неизвестный аккаунт и неверный пароль должны быть неотличимы.
func TestLoginUser_UniformFailure(t *testing.T) {
	repo := newMockUserRepo()
	service := NewAuthService(repo)

	hashed, _ := utils.HashPassword("secret123")
	repo.users["known@example.com"] = &models.User{
		ID:           1,
		Email:        "known@example.com",
		PasswordHash: hashed,
	}

	_, _, _, errUnknown := service.LoginUser(context.Background(), "unknown@example.com", "secret123", "s", time.Minute, time.Hour)
	_, _, _, errWrongPass := service.LoginUser(context.Background(), "known@example.com", "wrongpass1", "s", time.Minute, time.Hour)

	if !errors.Is(errUnknown, models.ErrAuthenticationFailed) {
		t.Fatalf("неизвестный аккаунт: ожидалась ErrAuthenticationFailed, получили %v", errUnknown)
	}
	if !errors.Is(errWrongPass, models.ErrAuthenticationFailed) {
		t.Fatalf("неверный пароль: ожидалась ErrAuthenticationFailed, получили %v", errWrongPass)
	}
	if errUnknown.Error() != errWrongPass.Error() {
		t.Fatal("тексты ошибок входа различаются и позволяют перечислять аккаунты")
	}
}

func TestUpdateUser_BadRole(t *testing.T) {
	service := NewAuthService(newMockUserRepo())

	role := "superadmin"
	err := service.UpdateUser(context.Background(), 1, &models.UpdateUserRequest{Role: &role})
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("ожидалась ErrValidation, получили %v", err)
	}
}
