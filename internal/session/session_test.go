package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"codequill/internal/models"
)

// Фейковый провайдер с управляемой выдачей профиля.
type fakeProvider struct {
	mu        sync.Mutex
	passwords map[string]string
	userIDs   map[string]int
	profile   *models.User
	revokeErr error
	restoreID int
	// fetchGate, если задан, блокирует FetchProfile до закрытия.
	fetchGate chan struct{}
	fetchErr  error
	updateErr error
	events    chan Event
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		passwords: map[string]string{"user@example.com": "secret123"},
		userIDs:   map[string]int{"user@example.com": 7},
		profile:   &models.User{ID: 7, Name: "Пользователь", Email: "user@example.com", Role: "user"},
		events:    make(chan Event, 8),
	}
}

func (p *fakeProvider) SignUp(_ context.Context, email, password, name string) error {
	return nil
}

func (p *fakeProvider) SignIn(_ context.Context, email, password string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	want, ok := p.passwords[email]
	if !ok || want != password {
		return 0, models.ErrAuthenticationFailed
	}
	return p.userIDs[email], nil
}

func (p *fakeProvider) SignOut(_ context.Context) error {
	return p.revokeErr
}

func (p *fakeProvider) Restore(_ context.Context) (int, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.restoreID == 0 {
		return 0, false, nil
	}
	return p.restoreID, true, nil
}

func (p *fakeProvider) FetchProfile(_ context.Context) (*models.User, error) {
	p.mu.Lock()
	gate := p.fetchGate
	p.mu.Unlock()
	if gate != nil {
		<-gate
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	copied := *p.profile
	return &copied, nil
}

func (p *fakeProvider) UpdateProfile(_ context.Context, req models.UpdateProfileRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.updateErr != nil {
		return p.updateErr
	}
	if req.Name != nil {
		p.profile.Name = *req.Name
	}
	return nil
}

func (p *fakeProvider) Events() <-chan Event { return p.events }

// waitFor вычитывает снапшоты, пока условие не выполнится.
func waitFor(t *testing.T, ch <-chan Snapshot, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				t.Fatal("канал снапшотов закрыт раньше времени")
			}
			if cond(snap) {
				return snap
			}
		case <-deadline:
			t.Fatal("не дождались нужного снапшота")
		}
	}
}

func TestInitialize_NoSession(t *testing.T) {
	p := newFakeProvider()
	mgr := NewManager(p)
	defer mgr.Close()

	if got := mgr.Snapshot().State; got != StateUnknown {
		t.Fatalf("до Initialize состояние должно быть unknown, получили %q", got)
	}

	mgr.Initialize(context.Background())

	if got := mgr.Snapshot().State; got != StateAnonymous {
		t.Fatalf("без сохранённой сессии ожидался anonymous, получили %q", got)
	}
}

func TestInitialize_RestoresSession(t *testing.T) {
	p := newFakeProvider()
	p.restoreID = 7
	mgr := NewManager(p)
	defer mgr.Close()

	watch := mgr.Watch()
	mgr.Initialize(context.Background())

	snap := waitFor(t, watch, func(s Snapshot) bool { return s.Profile != nil })
	if snap.State != StateAuthenticated || snap.UserID != 7 {
		t.Fatalf("ожидался authenticated user 7, получили %+v", snap)
	}
}

func TestSignIn_Success(t *testing.T) {
	p := newFakeProvider()
	mgr := NewManager(p)
	defer mgr.Close()
	mgr.Initialize(context.Background())

	watch := mgr.Watch()
	if err := mgr.SignIn(context.Background(), "user@example.com", "secret123"); err != nil {
		t.Fatalf("ошибка входа: %v", err)
	}

	snap := waitFor(t, watch, func(s Snapshot) bool { return s.Profile != nil })
	if snap.State != StateAuthenticated || snap.Profile.Email != "user@example.com" {
		t.Fatalf("профиль не загружен: %+v", snap)
	}
}

func TestSignIn_FailureKeepsState(t *testing.T) {
	p := newFakeProvider()
	mgr := NewManager(p)
	defer mgr.Close()
	mgr.Initialize(context.Background())

	err := mgr.SignIn(context.Background(), "user@example.com", "wrongpass")
	if !errors.Is(err, models.ErrAuthenticationFailed) {
		t.Fatalf("ожидалась ErrAuthenticationFailed, получили %v", err)
	}
	if got := mgr.Snapshot().State; got != StateAnonymous {
		t.Fatalf("неудачный вход не должен менять состояние, получили %q", got)
	}
}

// Локальный сброс обязан происходить, даже если сервер не смог отозвать сессию.
func TestSignOut_ResetsDespiteRevokeFailure(t *testing.T) {
	p := newFakeProvider()
	p.revokeErr = errors.New("server unavailable")
	mgr := NewManager(p)
	defer mgr.Close()
	mgr.Initialize(context.Background())

	if err := mgr.SignIn(context.Background(), "user@example.com", "secret123"); err != nil {
		t.Fatalf("вход: %v", err)
	}

	mgr.SignOut(context.Background())

	snap := mgr.Snapshot()
	if snap.State != StateAnonymous || snap.Profile != nil || snap.UserID != 0 {
		t.Fatalf("состояние не сброшено: %+v", snap)
	}
}

// Догоняющий ответ профиля после выхода должен быть отброшен.
func TestStaleProfileFetchDiscarded(t *testing.T) {
	p := newFakeProvider()
	gate := make(chan struct{})
	p.fetchGate = gate
	mgr := NewManager(p)
	mgr.Initialize(context.Background())

	if err := mgr.SignIn(context.Background(), "user@example.com", "secret123"); err != nil {
		t.Fatalf("вход: %v", err)
	}
	// выходим, пока загрузка профиля ещё висит
	mgr.SignOut(context.Background())
	close(gate)

	// Close дожидается завершения фоновой загрузки
	mgr.Close()

	snap := mgr.Snapshot()
	if snap.State != StateAnonymous || snap.Profile != nil {
		t.Fatalf("устаревший профиль применён: %+v", snap)
	}
}

func TestProfileFetchErrorSwallowed(t *testing.T) {
	p := newFakeProvider()
	p.fetchErr = errors.New("timeout")
	mgr := NewManager(p)
	mgr.Initialize(context.Background())

	if err := mgr.SignIn(context.Background(), "user@example.com", "secret123"); err != nil {
		t.Fatalf("вход: %v", err)
	}
	mgr.Close()

	snap := mgr.Snapshot()
	if snap.State != StateAuthenticated {
		t.Fatalf("ошибка загрузки профиля не должна ломать сессию: %+v", snap)
	}
	if snap.Profile != nil {
		t.Fatal("профиль должен остаться пустым")
	}
}

func TestUpdateProfile_RequiresAuth(t *testing.T) {
	p := newFakeProvider()
	mgr := NewManager(p)
	defer mgr.Close()
	mgr.Initialize(context.Background())

	name := "Новое имя"
	err := mgr.UpdateProfile(context.Background(), models.UpdateProfileRequest{Name: &name})
	if !errors.Is(err, models.ErrNotAuthenticated) {
		t.Fatalf("ожидалась ErrNotAuthenticated, получили %v", err)
	}
}

func TestUpdateProfile_RefetchesAndRepublishes(t *testing.T) {
	p := newFakeProvider()
	mgr := NewManager(p)
	defer mgr.Close()
	mgr.Initialize(context.Background())

	if err := mgr.SignIn(context.Background(), "user@example.com", "secret123"); err != nil {
		t.Fatalf("вход: %v", err)
	}

	watch := mgr.Watch()
	name := "Новое имя"
	if err := mgr.UpdateProfile(context.Background(), models.UpdateProfileRequest{Name: &name}); err != nil {
		t.Fatalf("обновление профиля: %v", err)
	}

	snap := waitFor(t, watch, func(s Snapshot) bool {
		return s.Profile != nil && s.Profile.Name == "Новое имя"
	})
	if snap.State != StateAuthenticated {
		t.Fatalf("неожиданное состояние: %+v", snap)
	}
}

// Событие signed_out от провайдера сбрасывает состояние.
func TestProviderSignedOutEvent(t *testing.T) {
	p := newFakeProvider()
	mgr := NewManager(p)
	defer mgr.Close()
	mgr.Initialize(context.Background())

	if err := mgr.SignIn(context.Background(), "user@example.com", "secret123"); err != nil {
		t.Fatalf("вход: %v", err)
	}

	watch := mgr.Watch()
	p.events <- Event{Type: EventSignedOut}

	snap := waitFor(t, watch, func(s Snapshot) bool { return s.State == StateAnonymous })
	if snap.Profile != nil || snap.UserID != 0 {
		t.Fatalf("состояние не сброшено: %+v", snap)
	}
}
