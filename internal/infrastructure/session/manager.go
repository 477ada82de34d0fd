package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
	"github.com/kirillkom/certificate-harvester/internal/core/ports"
	"github.com/kirillkom/certificate-harvester/internal/infrastructure/strategy"
)

const component = "session"

type State string

const (
	StateUnauthenticated      State = "unauthenticated"
	StateCredentialsSubmitted State = "credentials_submitted"
	StateAuthenticated        State = "authenticated"
	StateFailed               State = "failed"
)

type Selectors struct {
	Username []string `yaml:"username"`
	Password []string `yaml:"password"`
	Submit   []string `yaml:"submit"`
	// Landmark elements only exist after a successful login.
	Landmark []string `yaml:"landmark"`
}

func DefaultSelectors() Selectors {
	return Selectors{
		Username: []string{
			`input[name="username"]`,
			`input[type="email"]`,
			`input[autocomplete="username"]`,
			`input[id*="user" i]`,
			`form input[type="text"]`,
		},
		Password: []string{
			`input[type="password"]`,
			`input[name="password"]`,
		},
		Submit: []string{
			`button[type="submit"]`,
			`input[type="submit"]`,
			`button:has-text("Log in")`,
			`button:has-text("Sign in")`,
		},
		Landmark: []string{
			`nav :text("Logout")`,
			`a:has-text("Log out")`,
			`[data-testid="dashboard"]`,
			`#dashboard`,
		},
	}
}

type Config struct {
	LoginURL  string
	Selectors Selectors
	// FieldTimeout bounds the wait for the login form to render.
	FieldTimeout time.Duration
	// RaceTimeout bounds the post-submit race.
	RaceTimeout time.Duration
}

type Manager struct {
	page     ports.BrowserPage
	cfg      Config
	pacer    ports.Pacer
	logger   *slog.Logger
	recorder strategy.Recorder

	mu    sync.Mutex
	state State
}

func NewManager(page ports.BrowserPage, cfg Config, pacer ports.Pacer, logger *slog.Logger, recorder strategy.Recorder) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = strategy.NopRecorder{}
	}
	if cfg.FieldTimeout <= 0 {
		cfg.FieldTimeout = 15 * time.Second
	}
	if cfg.RaceTimeout <= 0 {
		cfg.RaceTimeout = 20 * time.Second
	}
	return &Manager{
		page:     page,
		cfg:      cfg,
		pacer:    pacer,
		logger:   logger,
		recorder: recorder,
		state:    StateUnauthenticated,
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	m.logger.Info("session_state", "state", s)
}

// Ensure brings the page to the authenticated state. Every failure is of
// kind domain.ErrAuth. Calls after a successful login return immediately.
func (m *Manager) Ensure(ctx context.Context, creds domain.Credentials) error {
	if m.State() == StateAuthenticated {
		return nil
	}
	if err := m.login(ctx, creds); err != nil {
		m.setState(StateFailed)
		return domain.WrapError(domain.ErrAuth, "ensure session", err)
	}
	m.setState(StateAuthenticated)
	return nil
}

func (m *Manager) login(ctx context.Context, creds domain.Credentials) error {
	if !creds.Complete() {
		return errors.New("credentials are not configured")
	}
	m.setState(StateUnauthenticated)

	if m.cfg.LoginURL != "" {
		if err := m.page.Goto(ctx, m.cfg.LoginURL); err != nil {
			return fmt.Errorf("open login page: %w", err)
		}
	}
	if m.landmarkVisible(ctx) {
		m.logger.Info("session_reused")
		return nil
	}

	sel := m.cfg.Selectors
	if err := m.page.WaitVisible(ctx, joinSelectors(sel.Password), m.cfg.FieldTimeout); err != nil {
		return fmt.Errorf("login form did not render: %w", err)
	}

	username, ok := m.find(ctx, "username", sel.Username)
	if !ok {
		return errors.New("username field not found")
	}
	if err := username.Fill(ctx, creds.Username); err != nil {
		return fmt.Errorf("fill username: %w", err)
	}
	password, ok := m.find(ctx, "password", sel.Password)
	if !ok {
		return errors.New("password field not found")
	}
	if err := password.Fill(ctx, creds.Password); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}
	if m.pacer != nil {
		if err := m.pacer.Pause(ctx); err != nil {
			return err
		}
	}

	if submit, ok := m.find(ctx, "submit", sel.Submit); ok {
		if err := submit.Click(ctx); err != nil {
			return fmt.Errorf("submit credentials: %w", err)
		}
	} else if err := m.page.Press(ctx, "Enter"); err != nil {
		return fmt.Errorf("submit credentials: %w", err)
	}
	m.setState(StateCredentialsSubmitted)

	winner, err := m.awaitLogin(ctx)
	if err != nil {
		return err
	}
	if _, still := m.page.Find(ctx, joinSelectors(sel.Password)); still {
		return fmt.Errorf("credential controls still present after %s", winner)
	}
	m.logger.Info("session_authenticated", "signal", winner)
	return nil
}

// awaitLogin races the disappearance of the credential controls against the
// appearance of a post-login landmark and returns the winning condition.
func (m *Manager) awaitLogin(ctx context.Context) (string, error) {
	raceCtx, cancel := context.WithTimeout(ctx, m.cfg.RaceTimeout)
	defer cancel()

	type outcome struct {
		name string
		err  error
	}
	results := make(chan outcome, 2)
	go func() {
		err := m.page.WaitHidden(raceCtx, joinSelectors(m.cfg.Selectors.Password), m.cfg.RaceTimeout)
		results <- outcome{name: "credentials_hidden", err: err}
	}()
	go func() {
		err := m.page.WaitVisible(raceCtx, joinSelectors(m.cfg.Selectors.Landmark), m.cfg.RaceTimeout)
		results <- outcome{name: "landmark_visible", err: err}
	}()

	var errs []error
	for range 2 {
		select {
		case res := <-results:
			if res.err == nil {
				return res.name, nil
			}
			errs = append(errs, fmt.Errorf("%s: %w", res.name, res.err))
		case <-raceCtx.Done():
			return "", fmt.Errorf("login not confirmed within %s: %w", m.cfg.RaceTimeout, raceCtx.Err())
		}
	}
	return "", fmt.Errorf("login not confirmed: %w", errors.Join(errs...))
}

func (m *Manager) landmarkVisible(ctx context.Context) bool {
	if len(m.cfg.Selectors.Landmark) == 0 {
		return false
	}
	_, ok := m.page.Find(ctx, joinSelectors(m.cfg.Selectors.Landmark))
	return ok
}

func (m *Manager) find(ctx context.Context, field string, selectors []string) (ports.PageElement, bool) {
	chain := make([]strategy.Strategy[ports.PageElement], 0, len(selectors))
	for _, sel := range selectors {
		chain = append(chain, strategy.Named(sel, func(ctx context.Context) (ports.PageElement, bool) {
			return m.page.Find(ctx, sel)
		}))
	}
	res, ok := strategy.First(ctx, chain)
	if !ok {
		m.logger.Warn("login_field_missing", "field", field, "tried", strategy.Names(chain))
		return nil, false
	}
	m.recorder.RecordStrategy(component, field+":"+res.Strategy)
	return res.Value, true
}

func joinSelectors(selectors []string) string {
	return strings.Join(selectors, ", ")
}
