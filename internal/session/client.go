package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codequill/internal/models"
)

// Client — HTTP-реализация Provider поверх API платформы. Токены
// сохраняются в файл, чтобы сессия переживала перезапуск процесса.
// Push-канала у HTTP нет, поэтому единственное событие, которое клиент
// порождает сам, — signed_out при 401 на аутентифицированном вызове.
type Client struct {
	baseURL   string
	httpc     *http.Client
	tokenPath string

	mu      sync.Mutex
	access  string
	refresh string
	userID  int

	events chan Event
}

type storedTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       int    `json:"user_id"`
}

func NewClient(baseURL, tokenPath string) *Client {
	return &Client{
		baseURL:   baseURL,
		httpc:     &http.Client{Timeout: 15 * time.Second},
		tokenPath: tokenPath,
		events:    make(chan Event, 8),
	}
}

func (c *Client) Events() <-chan Event { return c.events }

// envelope — формат ответа API: {data, error}.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func (c *Client) url(path string) string { return c.baseURL + path }

func (c *Client) do(ctx context.Context, method, path string, body interface{}, bearer string) (int, *envelope, error) {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		buf = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), buf)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", models.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && err != io.EOF {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, &env, nil
}

// doAuthed выполняет вызов с access-токеном; на 401 один раз пробует
// обновить токен, а если и после этого 401 — объявляет сессию отозванной.
func (c *Client) doAuthed(ctx context.Context, method, path string, body interface{}) (int, *envelope, error) {
	c.mu.Lock()
	access := c.access
	c.mu.Unlock()
	if access == "" {
		return 0, nil, models.ErrNotAuthenticated
	}

	status, env, err := c.do(ctx, method, path, body, access)
	if err != nil {
		return status, env, err
	}
	if status != http.StatusUnauthorized {
		return status, env, nil
	}

	if err := c.refreshAccess(ctx); err != nil {
		c.dropSession()
		return status, env, models.ErrNotAuthenticated
	}

	c.mu.Lock()
	access = c.access
	c.mu.Unlock()
	status, env, err = c.do(ctx, method, path, body, access)
	if err != nil {
		return status, env, err
	}
	if status == http.StatusUnauthorized {
		c.dropSession()
		return status, env, models.ErrNotAuthenticated
	}
	return status, env, nil
}

func (c *Client) refreshAccess(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.refresh
	c.mu.Unlock()
	if refresh == "" {
		return models.ErrNotAuthenticated
	}

	status, env, err := c.do(ctx, http.MethodPost, "/api/refresh", nil, refresh)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return models.ErrNotAuthenticated
	}

	var res struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(env.Data, &res); err != nil {
		return err
	}

	c.mu.Lock()
	c.access = res.AccessToken
	c.mu.Unlock()
	return c.saveTokens()
}

// dropSession забывает токены и шлёт событие signed_out.
func (c *Client) dropSession() {
	c.mu.Lock()
	c.access = ""
	c.refresh = ""
	c.userID = 0
	c.mu.Unlock()
	_ = os.Remove(c.tokenPath)

	select {
	case c.events <- Event{Type: EventSignedOut}:
	default:
	}
}

func (c *Client) saveTokens() error {
	c.mu.Lock()
	st := storedTokens{AccessToken: c.access, RefreshToken: c.refresh, UserID: c.userID}
	c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.tokenPath), 0o700); err != nil {
		return err
	}
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return os.WriteFile(c.tokenPath, b, 0o600)
}

func (c *Client) loadTokens() bool {
	b, err := os.ReadFile(c.tokenPath)
	if err != nil {
		return false
	}
	var st storedTokens
	if err := json.Unmarshal(b, &st); err != nil || st.AccessToken == "" {
		return false
	}
	c.mu.Lock()
	c.access = st.AccessToken
	c.refresh = st.RefreshToken
	c.userID = st.UserID
	c.mu.Unlock()
	return true
}

func (c *Client) SignUp(ctx context.Context, email, password, name string) error {
	body := map[string]string{"name": name, "email": email, "password": password}
	status, env, err := c.do(ctx, http.MethodPost, "/api/register", body, "")
	if err != nil {
		return err
	}
	switch status {
	case http.StatusCreated, http.StatusOK:
		return nil
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", models.ErrInvalidCredentialsFormat, env.Error)
	case http.StatusConflict:
		return models.ErrDuplicateAccount
	default:
		return fmt.Errorf("регистрация не удалась: %s", env.Error)
	}
}

func (c *Client) SignIn(ctx context.Context, email, password string) (int, error) {
	body := map[string]string{"email": email, "password": password}
	status, env, err := c.do(ctx, http.MethodPost, "/api/login", body, "")
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, models.ErrAuthenticationFailed
	}

	var res struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		UserID       int    `json:"user_id"`
	}
	if err := json.Unmarshal(env.Data, &res); err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.access = res.AccessToken
	c.refresh = res.RefreshToken
	c.userID = res.UserID
	c.mu.Unlock()
	if err := c.saveTokens(); err != nil {
		return res.UserID, err
	}
	return res.UserID, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	access := c.access
	c.mu.Unlock()

	var revokeErr error
	if access != "" {
		_, _, revokeErr = c.do(ctx, http.MethodPost, "/api/logout", nil, access)
	}

	c.mu.Lock()
	c.access = ""
	c.refresh = ""
	c.userID = 0
	c.mu.Unlock()
	_ = os.Remove(c.tokenPath)
	return revokeErr
}

func (c *Client) Restore(ctx context.Context) (int, bool, error) {
	if !c.loadTokens() {
		return 0, false, nil
	}

	profile, err := c.FetchProfile(ctx)
	if err != nil {
		return 0, false, err
	}

	c.mu.Lock()
	c.userID = profile.ID
	c.mu.Unlock()
	return profile.ID, true, nil
}

func (c *Client) FetchProfile(ctx context.Context) (*models.User, error) {
	status, env, err := c.doAuthed(ctx, http.MethodGet, "/api/profile", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("профиль недоступен: %s", env.Error)
	}

	var user models.User
	if err := json.Unmarshal(env.Data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) UpdateProfile(ctx context.Context, req models.UpdateProfileRequest) error {
	status, env, err := c.doAuthed(ctx, http.MethodPatch, "/api/profile", req)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusOK:
		return nil
	case http.StatusUnprocessableEntity:
		return models.ErrUpdateRejected
	default:
		return fmt.Errorf("обновление профиля отклонено: %s", env.Error)
	}
}

// --- Вызовы статей для CLI ---

func (c *Client) ListArticles(ctx context.Context, status string, limit, offset int) ([]models.Article, error) {
	path := fmt.Sprintf("/api/articles?limit=%d&offset=%d", limit, offset)
	var (
		code int
		env  *envelope
		err  error
	)
	if status != "" && status != models.StatusPublished {
		path = fmt.Sprintf("/api/admin/articles?status=%s&limit=%d&offset=%d", status, limit, offset)
		code, env, err = c.doAuthed(ctx, http.MethodGet, path, nil)
	} else {
		code, env, err = c.do(ctx, http.MethodGet, path, nil, "")
	}
	if err != nil {
		return nil, err
	}
	if code == http.StatusForbidden {
		return nil, models.ErrForbidden
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("список статей недоступен: %s", env.Error)
	}

	var articles []models.Article
	if err := json.Unmarshal(env.Data, &articles); err != nil {
		return nil, err
	}
	return articles, nil
}

func (c *Client) SubmitArticle(ctx context.Context, id int64) error {
	return c.articleAction(ctx, fmt.Sprintf("/api/articles/%d/submit", id), nil)
}

func (c *Client) ApproveArticle(ctx context.Context, id int64) error {
	return c.articleAction(ctx, fmt.Sprintf("/api/admin/articles/%d/approve", id), nil)
}

func (c *Client) RejectArticle(ctx context.Context, id int64, reason string) error {
	var body interface{}
	if reason != "" {
		body = map[string]string{"reason": reason}
	}
	return c.articleAction(ctx, fmt.Sprintf("/api/admin/articles/%d/reject", id), body)
}

func (c *Client) articleAction(ctx context.Context, path string, body interface{}) error {
	status, env, err := c.doAuthed(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusOK:
		return nil
	case http.StatusForbidden:
		return models.ErrForbidden
	case http.StatusNotFound:
		return models.ErrNotFound
	case http.StatusConflict:
		return models.ErrPreconditionFailed
	default:
		return fmt.Errorf("операция не выполнена: %s", env.Error)
	}
}
