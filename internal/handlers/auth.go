package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"codequill/internal/config"
	"codequill/internal/logger"
	"codequill/internal/middleware"
	"codequill/internal/models"
	"codequill/internal/services"
	"codequill/internal/utils"
	"codequill/internal/utils/helpers"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService       *services.AuthService
	emailTokenService *services.EmailTokenService
}

func NewAuthHandler(authService *services.AuthService, emailTokenService *services.EmailTokenService) *AuthHandler {
	return &AuthHandler{
		authService:       authService,
		emailTokenService: emailTokenService,
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       int    `json:"user_id"`
	Name         string `json:"name"`
	Role         string `json:"role"`
}

// Register godoc
// @Summary Регистрация нового пользователя
// @Tags auth
// @Accept json
// @Produce json
// @Param input body registerRequest true "Данные регистрации"
// @Success 201 {string} string "Пользователь зарегистрирован"
// @Failure 400 {string} string "Ошибка валидации"
// @Failure 409 {string} string "Аккаунт уже существует"
// @Router /api/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WithCtx(r.Context()).Warn("Ошибка декодирования JSON в Register", zap.Error(err))
		helpers.Error(w, http.StatusBadRequest, "Невалидный JSON")
		return
	}

	user := &models.User{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.TrimSpace(req.Email),
	}

	if err := h.authService.RegisterUser(r.Context(), user, req.Password); err != nil {
		logger.WithCtx(r.Context()).Warn("Ошибка регистрации пользователя", zap.Error(err))
		helpers.ErrorFrom(w, err)
		return
	}

	h.sendVerificationEmail(r.Context(), user)

	helpers.JSON(w, http.StatusCreated, "Пользователь зарегистрирован. Проверьте почту для подтверждения.")
}

func (h *AuthHandler) sendVerificationEmail(ctx context.Context, user *models.User) {
	token, err := h.emailTokenService.GenerateToken(ctx, user.ID)
	if err != nil {
		logger.WithCtx(ctx).Error("Не удалось создать токен подтверждения", zap.Error(err))
		return
	}

	cfg, _ := config.LoadConfig()
	link := fmt.Sprintf("%s/api/verify-email?token=%s", cfg.SiteURL, token.Token)
	services.EmailQueue <- services.EmailJob{
		To:      []string{user.Email},
		Subject: "Подтверждение регистрации",
		Body:    "Для подтверждения почты перейдите по ссылке: " + link,
	}
}

// Login godoc
// @Summary Вход по e-mail и паролю
// @Tags auth
// @Accept json
// @Produce json
// @Param input body loginRequest true "Данные для входа"
// @Success 200 {object} loginResponse
// @Failure 401 {string} string "Неверный логин или пароль"
// @Router /api/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WithCtx(r.Context()).Warn("Ошибка декодирования JSON в Login", zap.Error(err))
		helpers.Error(w, http.StatusBadRequest, "Невалидный JSON")
		return
	}

	cfg, _ := config.LoadConfig()
	accessTTL, _ := time.ParseDuration(cfg.AccessTokenTTL)
	refreshTTL, _ := time.ParseDuration(cfg.RefreshTokenTTL)

	access, refresh, user, err := h.authService.LoginUser(
		r.Context(), req.Email, req.Password, cfg.JWTSecret, accessTTL, refreshTTL,
	)
	if err != nil {
		helpers.ErrorFrom(w, err)
		return
	}

	helpers.JSON(w, http.StatusOK, loginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		UserID:       user.ID,
		Name:         user.Name,
		Role:         user.Role,
	})
}

// Refresh godoc
// @Summary Обновление access-токена по refresh-токену
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 401 {string} string "Недействительный refresh токен"
// @Router /api/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	tokenString, ok := bearerToken(r)
	if !ok {
		helpers.Error(w, http.StatusUnauthorized, "Отсутствует refresh token")
		return
	}

	cfg, _ := config.LoadConfig()
	claims, err := utils.ParseToken(cfg.JWTSecret, tokenString)
	if err != nil {
		logger.WithCtx(r.Context()).Warn("Неверный или просроченный refresh token", zap.Error(err))
		helpers.Error(w, http.StatusUnauthorized, "Неверный или просроченный refresh token")
		return
	}

	userID, ok1 := claims["user_id"].(float64)
	role, ok2 := claims["role"].(string)
	tokenType, _ := claims["token_type"].(string)
	if !ok1 || !ok2 || tokenType != "refresh" {
		helpers.Error(w, http.StatusUnauthorized, "Неверный payload токена")
		return
	}

	isValid, err := h.authService.ValidateRefreshToken(r.Context(), int(userID), tokenString)
	if err != nil || !isValid {
		logger.WithCtx(r.Context()).Warn("Недействительный refresh token", zap.Error(err))
		helpers.Error(w, http.StatusUnauthorized, "Недействительный refresh token")
		return
	}

	accessTTL, _ := time.ParseDuration(cfg.AccessTokenTTL)
	access, err := utils.GenerateToken(cfg.JWTSecret, int(userID), role, accessTTL, "access")
	if err != nil {
		helpers.Error(w, http.StatusInternalServerError, "Не удалось выпустить токен")
		return
	}

	helpers.JSON(w, http.StatusOK, map[string]string{"access_token": access})
}

// Logout godoc
// @Summary Выход (отзыв refresh-токена)
// @Tags auth
// @Security ApiKeyAuth
// @Success 200 {string} string "Выход выполнен"
// @Router /api/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, _ := bearerToken(r)
	actor := actorFromCtx(r.Context())

	if err := h.authService.Logout(r.Context(), actor.ID, token); err != nil {
		// отзыв best-effort: клиент всё равно сбрасывает сессию локально
		logger.WithCtx(r.Context()).Warn("Ошибка отзыва refresh-токена", zap.Error(err))
	}

	helpers.JSON(w, http.StatusOK, "Выход выполнен")
}

// VerifyEmail godoc
// @Summary Подтверждение почты по токену
// @Tags auth
// @Param token query string true "Токен из письма"
// @Success 200 {string} string "Почта подтверждена"
// @Failure 400 {string} string "Неверный или просроченный токен"
// @Router /api/verify-email [get]
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		helpers.Error(w, http.StatusBadRequest, "Токен не передан")
		return
	}

	if err := h.emailTokenService.ConfirmToken(r.Context(), token); err != nil {
		helpers.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	helpers.JSON(w, http.StatusOK, "Почта подтверждена")
}

// GetProfile godoc
// @Summary Профиль текущего пользователя
// @Tags profile
// @Security ApiKeyAuth
// @Success 200 {object} models.User
// @Failure 401 {string} string "Нет доступа"
// @Router /api/profile [get]
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	actor := actorFromCtx(r.Context())

	user, err := h.authService.GetUserByID(r.Context(), actor.ID)
	if err != nil {
		helpers.ErrorFrom(w, err)
		return
	}

	helpers.JSON(w, http.StatusOK, user)
}

// UpdateProfile godoc
// @Summary Частичное обновление своего профиля
// @Tags profile
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param input body models.UpdateProfileRequest true "Изменяемые поля"
// @Success 200 {object} models.User
// @Failure 422 {string} string "Обновление отклонено"
// @Router /api/profile [patch]
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		helpers.Error(w, http.StatusBadRequest, "Невалидный JSON")
		return
	}

	actor := actorFromCtx(r.Context())
	user, err := h.authService.UpdateProfile(r.Context(), actor.ID, &req)
	if err != nil {
		helpers.ErrorFrom(w, err)
		return
	}

	helpers.JSON(w, http.StatusOK, user)
}

// GetUsers godoc
// @Summary Список пользователей (админ)
// @Tags admin
// @Security ApiKeyAuth
// @Param limit query int false "Размер страницы"
// @Param offset query int false "Смещение"
// @Success 200 {array} models.User
// @Router /api/admin/users [get]
func (h *AuthHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 20)

	users, total, err := h.authService.GetUsersPaginated(r.Context(), limit, offset)
	if err != nil {
		helpers.ErrorFrom(w, err)
		return
	}

	helpers.JSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"total": total,
	})
}

// UpdateUser godoc
// @Summary Обновление пользователя админом (имя, роль)
// @Tags admin
// @Security ApiKeyAuth
// @Accept json
// @Param id path int true "ID пользователя"
// @Param input body models.UpdateUserRequest true "Изменяемые поля"
// @Success 200 {string} string "Обновлено"
// @Router /api/admin/users/{id} [patch]
func (h *AuthHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		helpers.Error(w, http.StatusBadRequest, "Неверный ID")
		return
	}

	var req models.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		helpers.Error(w, http.StatusBadRequest, "Невалидный JSON")
		return
	}

	if err := h.authService.UpdateUser(r.Context(), id, &req); err != nil {
		helpers.ErrorFrom(w, err)
		return
	}

	helpers.JSON(w, http.StatusOK, "Обновлено")
}

// --- helpers ---

func actorFromCtx(ctx context.Context) services.Actor {
	a := services.Actor{}
	if v, ok := ctx.Value(middleware.ContextUserID).(int); ok {
		a.ID = v
	}
	if v, ok := ctx.Value(middleware.ContextRole).(string); ok {
		a.Role = v
	}
	return a
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(authHeader, "Bearer "), true
}

func pagination(r *http.Request, defLimit int) (limit, offset int) {
	limit = defLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
