// Package session — клиентский менеджер сессии: явный жизненный цикл
// состояния аутентификации поверх провайдера (HTTP-бэкенда).
package session

import (
	"context"
	"sync"

	"codequill/internal/logger"
	"codequill/internal/models"

	"go.uber.org/zap"
)

// State — состояние сессии. Из unknown можно уйти в anonymous или
// authenticated; обратно в unknown переходов нет.
type State string

const (
	StateUnknown       State = "unknown"
	StateAnonymous     State = "anonymous"
	StateAuthenticated State = "authenticated"
)

// EventType — события провайдера о смене сессии.
type EventType string

const (
	EventSignedIn  EventType = "signed_in"
	EventSignedOut EventType = "signed_out"
)

type Event struct {
	Type   EventType
	UserID int
}

// Provider отделяет менеджер от транспорта. HTTP-реализация в client.go.
type Provider interface {
	SignUp(ctx context.Context, email, password, name string) error
	SignIn(ctx context.Context, email, password string) (userID int, err error)
	SignOut(ctx context.Context) error
	// Restore пытается восстановить сохранённую сессию. ok=false без
	// ошибки означает, что сессии просто нет.
	Restore(ctx context.Context) (userID int, ok bool, err error)
	FetchProfile(ctx context.Context) (*models.User, error)
	UpdateProfile(ctx context.Context, req models.UpdateProfileRequest) error
	Events() <-chan Event
}

// Snapshot — срез состояния сессии, публикуемый подписчикам.
type Snapshot struct {
	State   State
	UserID  int
	Profile *models.User
}

// Manager держит состояние сессии процесса. Создаётся явно и живёт до
// Close — без глобальных синглтонов.
type Manager struct {
	provider Provider

	mu      sync.Mutex
	state   State
	userID  int
	profile *models.User
	// seq растёт при каждой смене субъекта сессии; догоняющие ответы
	// профиля с устаревшим seq отбрасываются.
	seq uint64

	watchers []chan Snapshot

	initOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

func NewManager(provider Provider) *Manager {
	return &Manager{
		provider: provider,
		state:    StateUnknown,
		done:     make(chan struct{}),
	}
}

// Initialize подписывается на события провайдера и один раз пытается
// восстановить сохранённую сессию. Идемпотентен. Событие и восстановление
// могут гнаться друг с другом — seq-защита делает гонку безопасной.
func (m *Manager) Initialize(ctx context.Context) {
	m.initOnce.Do(func() {
		m.wg.Add(1)
		go m.consumeEvents()

		userID, ok, err := m.provider.Restore(ctx)
		if err != nil {
			logger.WithCtx(ctx).Warn("Не удалось восстановить сессию", zap.Error(err))
		}
		if ok {
			m.setAuthenticated(ctx, userID)
			return
		}

		m.mu.Lock()
		if m.state == StateUnknown {
			m.state = StateAnonymous
		}
		snap := m.snapshotLocked()
		m.mu.Unlock()
		m.publish(snap)
	})
}

func (m *Manager) consumeEvents() {
	defer m.wg.Done()
	events := m.provider.Events()
	for {
		select {
		case <-m.done:
			return
		case ev, open := <-events:
			if !open {
				return
			}
			switch ev.Type {
			case EventSignedIn:
				m.setAuthenticated(context.Background(), ev.UserID)
			case EventSignedOut:
				m.resetAnonymous()
			}
		}
	}
}

// SignUp регистрирует аккаунт. Успех означает, что запущено подтверждение
// почты; сессия не создаётся и состояние не меняется.
func (m *Manager) SignUp(ctx context.Context, email, password, name string) error {
	return m.provider.SignUp(ctx, email, password, name)
}

// SignIn входит по паре email/пароль. Любая причина отказа выглядит
// одинаково — ErrAuthenticationFailed; состояние при отказе не меняется.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	userID, err := m.provider.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	m.setAuthenticated(ctx, userID)
	return nil
}

// SignOut отзывает сессию у провайдера (неудача не мешает) и безусловно
// сбрасывает локальное состояние в anonymous.
func (m *Manager) SignOut(ctx context.Context) {
	if err := m.provider.SignOut(ctx); err != nil {
		logger.WithCtx(ctx).Warn("Не удалось отозвать сессию на сервере", zap.Error(err))
	}
	m.resetAnonymous()
}

// UpdateProfile частично обновляет собственный профиль. После успешного
// обновления профиль перечитывается и публикуется заново.
func (m *Manager) UpdateProfile(ctx context.Context, req models.UpdateProfileRequest) error {
	m.mu.Lock()
	if m.state != StateAuthenticated {
		m.mu.Unlock()
		return models.ErrNotAuthenticated
	}
	seq := m.seq
	m.mu.Unlock()

	if err := m.provider.UpdateProfile(ctx, req); err != nil {
		return err
	}

	profile, err := m.provider.FetchProfile(ctx)
	if err != nil {
		logger.WithCtx(ctx).Warn("Не удалось перечитать профиль после обновления", zap.Error(err))
		return nil
	}

	m.mu.Lock()
	if m.seq != seq || m.state != StateAuthenticated {
		m.mu.Unlock()
		return nil
	}
	m.profile = profile
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)
	return nil
}

// Snapshot возвращает текущий срез состояния.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Watch возвращает канал с публикациями состояния. Медленный подписчик
// теряет промежуточные срезы, а не блокирует менеджер.
func (m *Manager) Watch() <-chan Snapshot {
	ch := make(chan Snapshot, 16)
	m.mu.Lock()
	m.watchers = append(m.watchers, ch)
	m.mu.Unlock()
	return ch
}

// Close останавливает обработку событий и закрывает каналы подписчиков.
func (m *Manager) Close() {
	close(m.done)
	m.wg.Wait()
	m.mu.Lock()
	watchers := m.watchers
	m.watchers = nil
	m.mu.Unlock()
	for _, ch := range watchers {
		close(ch)
	}
}

func (m *Manager) setAuthenticated(ctx context.Context, userID int) {
	m.mu.Lock()
	m.seq++
	seq := m.seq
	m.state = StateAuthenticated
	m.userID = userID
	m.profile = nil
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)

	m.wg.Add(1)
	go m.hydrateProfile(ctx, seq)
}

// hydrateProfile подтягивает профиль асинхронно. Ошибка оставляет профиль
// пустым; устаревший ответ (seq ушёл вперёд) отбрасывается.
func (m *Manager) hydrateProfile(ctx context.Context, seq uint64) {
	defer m.wg.Done()

	profile, err := m.provider.FetchProfile(ctx)
	if err != nil {
		logger.WithCtx(ctx).Warn("Не удалось загрузить профиль", zap.Error(err))
		return
	}

	m.mu.Lock()
	if m.seq != seq || m.state != StateAuthenticated {
		m.mu.Unlock()
		return
	}
	m.profile = profile
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)
}

func (m *Manager) resetAnonymous() {
	m.mu.Lock()
	m.seq++
	m.state = StateAnonymous
	m.userID = 0
	m.profile = nil
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{State: m.state, UserID: m.userID, Profile: m.profile}
}

func (m *Manager) publish(snap Snapshot) {
	m.mu.Lock()
	watchers := make([]chan Snapshot, len(m.watchers))
	copy(watchers, m.watchers)
	m.mu.Unlock()

	for _, ch := range watchers {
		select {
		case ch <- snap:
		default:
		}
	}
}
