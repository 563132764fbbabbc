// Package session owns the single process-wide connection to the chat
// network and its pairing lifecycle.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"sales-collector/internal/config"
	"sales-collector/internal/domain"
	"sales-collector/internal/ports"
)

// State is the connection state of the session.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
)

// StateChange is published to subscribers on every transition and on every
// new pairing code.
type StateChange struct {
	State       State     `json:"state"`
	PairingCode string    `json:"qr,omitempty"`
	At          time.Time `json:"at"`
}

// Status is a point-in-time view of the session.
type Status struct {
	State       State
	PairingCode string
}

// Options configures a Session.
type Options struct {
	Network ports.ChatNetwork
	Cache   ports.PairingCache
	Policy  config.SessionPolicy
	Logger  *slog.Logger
	Now     func() time.Time
}

// Session keeps at most one chat client alive. Starting a new attempt
// always tears down the previous client first.
type Session struct {
	network ports.ChatNetwork
	cache   ports.PairingCache
	policy  config.SessionPolicy
	logger  *slog.Logger
	now     func() time.Time

	mu             sync.Mutex
	state          State
	client         ports.ChatClient
	cancel         context.CancelFunc
	generation     uint64
	code           string
	lastAttempt    time.Time
	settingUp      bool
	reconnects     int
	reconnectTimer *time.Timer

	subsMu  sync.Mutex
	subs    map[int]chan StateChange
	nextSub int
}

var _ ports.MessagingSession = (*Session)(nil)

// New creates an idle Session.
func New(opts Options) *Session {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Session{
		network: opts.Network,
		cache:   opts.Cache,
		policy:  opts.Policy,
		logger:  opts.Logger,
		now:     now,
		state:   StateIdle,
		subs:    make(map[int]chan StateChange),
	}
}

// Connect starts a connection attempt. It returns true when the session is
// open or a new attempt was started, and false when an attempt is already
// in flight or the cooldown since the last attempt has not elapsed. force
// skips the open and cooldown checks, tears down the current client and
// drops the current pairing code.
func (s *Session) Connect(ctx context.Context, force bool) bool {
	return s.connect(ctx, force, force)
}

// Reconnect tears the current client down and starts a fresh one with the
// stored credentials.
func (s *Session) Reconnect(ctx context.Context) bool {
	s.logger.Info("forcing reconnect")
	return s.connect(ctx, true, true)
}

func (s *Session) connect(ctx context.Context, force, clearCode bool) bool {
	s.mu.Lock()
	if s.settingUp {
		s.mu.Unlock()
		s.logger.Debug("connection setup already in progress")
		return false
	}
	if !force {
		switch s.state {
		case StateOpen:
			s.mu.Unlock()
			return true
		case StateConnecting:
			s.mu.Unlock()
			s.logger.Debug("already connecting")
			return false
		}
		if cooldown := s.policy.ConnectCooldown.ToDuration(); !s.lastAttempt.IsZero() && s.now().Sub(s.lastAttempt) < cooldown {
			s.mu.Unlock()
			s.logger.Debug("connection attempt suppressed by cooldown", "cooldown", cooldown)
			return false
		}
	}

	s.settingUp = true
	s.lastAttempt = s.now()
	old := s.detachLocked()
	if clearCode {
		s.code = ""
	}
	gen := s.generation
	genCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.setStateLocked(StateConnecting)
	s.mu.Unlock()

	if old != nil {
		old.Disconnect()
	}
	if clearCode {
		s.clearCache()
	}

	client, err := s.network.NewClient(genCtx)
	if err != nil {
		s.logger.Error("failed to create chat client", "error", err)
		s.abortSetup(gen, nil)
		return false
	}

	s.mu.Lock()
	if s.generation != gen {
		s.settingUp = false
		s.mu.Unlock()
		client.Disconnect()
		return false
	}
	s.client = client
	s.mu.Unlock()

	go s.pump(genCtx, gen, client)

	if err := client.Connect(genCtx); err != nil {
		s.logger.Error("failed to connect", "error", err)
		s.abortSetup(gen, client)
		return false
	}

	s.mu.Lock()
	s.settingUp = false
	s.mu.Unlock()

	s.logger.Info("connection attempt started", "force", force)
	return true
}

// abortSetup returns the session to idle after a failed attempt.
func (s *Session) abortSetup(gen uint64, client ports.ChatClient) {
	s.mu.Lock()
	if s.generation == gen {
		s.detachLocked()
		s.setStateLocked(StateIdle)
	}
	s.settingUp = false
	s.mu.Unlock()

	if client != nil {
		client.Disconnect()
	}
}

// detachLocked forgets the current client and invalidates its events.
func (s *Session) detachLocked() ports.ChatClient {
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	c := s.client
	s.client = nil
	return c
}

func (s *Session) pump(ctx context.Context, gen uint64, client ports.ChatClient) {
	events := client.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handleEvent(gen, ev)
		}
	}
}

func (s *Session) handleEvent(gen uint64, ev ports.ClientEvent) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}

	switch ev.Type {
	case ports.EventPairingCode:
		s.code = ev.Code
		s.notifyLocked()
		s.mu.Unlock()
		s.logger.Info("pairing code received")
		if s.cache != nil {
			if err := s.cache.Save(ev.Code); err != nil {
				s.logger.Warn("failed to cache pairing code", "error", err)
			}
		}

	case ports.EventOpen:
		s.code = ""
		s.reconnects = 0
		s.setStateLocked(StateOpen)
		s.mu.Unlock()
		s.logger.Info("connection opened")
		s.clearCache()

	case ports.EventClosed:
		// The code belonged to the attempt that just ended.
		hadCode := s.code != ""
		s.code = ""
		s.setStateLocked(StateClosed)
		scheduled := s.scheduleReconnectLocked(gen)
		s.mu.Unlock()
		s.logger.Warn("connection closed", "error", ev.Err, "reconnect_scheduled", scheduled)
		if hadCode {
			s.clearCache()
		}

	case ports.EventLoggedOut:
		client := s.detachLocked()
		s.code = ""
		s.reconnects = 0
		s.setStateLocked(StateIdle)
		s.mu.Unlock()
		s.logger.Warn("logged out, credentials cleared", "error", ev.Err)
		if client != nil {
			client.Disconnect()
		}
		s.resetCredentials(context.Background())
		s.clearCache()

	default:
		s.mu.Unlock()
	}
}

// scheduleReconnectLocked arms a single delayed reconnect unless the
// budget is spent.
func (s *Session) scheduleReconnectLocked(gen uint64) bool {
	if s.reconnectTimer != nil {
		return true
	}
	if s.reconnects >= s.policy.MaxReconnects {
		return false
	}
	s.reconnects++
	s.reconnectTimer = time.AfterFunc(s.policy.ReconnectDelay.ToDuration(), func() {
		s.mu.Lock()
		if s.generation != gen || s.state != StateClosed {
			s.mu.Unlock()
			return
		}
		s.reconnectTimer = nil
		s.mu.Unlock()

		s.logger.Info("reconnecting after close")
		s.connect(context.Background(), true, false)
	})
	return true
}

// DeleteSession logs out, destroys the client and clears stored
// credentials. Local state is always cleared; false reports that the
// credential store could not be reset.
func (s *Session) DeleteSession(ctx context.Context) bool {
	s.mu.Lock()
	client := s.detachLocked()
	s.code = ""
	s.reconnects = 0
	s.lastAttempt = time.Time{}
	s.setStateLocked(StateIdle)
	s.mu.Unlock()

	if client != nil {
		if err := client.Logout(ctx); err != nil {
			s.logger.Warn("logout failed, continuing teardown", "error", err)
		}
		client.Disconnect()
	}

	ok := s.resetCredentials(ctx)
	s.clearCache()

	s.logger.Info("session deleted", "credentials_cleared", ok)
	return ok
}

// Close disconnects without touching the credentials.
func (s *Session) Close() {
	s.mu.Lock()
	client := s.detachLocked()
	s.setStateLocked(StateIdle)
	s.mu.Unlock()

	if client != nil {
		client.Disconnect()
	}
}

func (s *Session) resetCredentials(ctx context.Context) bool {
	if err := s.network.Reset(ctx); err != nil {
		s.logger.Error("failed to clear credentials", "error", err)
		return false
	}
	return true
}

func (s *Session) clearCache() {
	if s.cache == nil {
		return
	}
	if err := s.cache.Clear(); err != nil {
		s.logger.Warn("failed to clear pairing code cache", "error", err)
	}
}

// IsOpen reports whether messages can be sent.
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateOpen
}

// IsConnecting reports whether an attempt is in flight.
func (s *Session) IsConnecting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateConnecting || s.settingUp
}

// PairingCode returns the last code issued, or "" once open or deleted.
func (s *Session) PairingCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns state and pairing code together.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{State: s.state, PairingCode: s.code}
}

// SendText sends through the open client.
func (s *Session) SendText(ctx context.Context, to, text string) (string, error) {
	client, err := s.openClient()
	if err != nil {
		return "", err
	}
	return client.SendText(ctx, to, text)
}

// SendImage sends through the open client.
func (s *Session) SendImage(ctx context.Context, to string, img ports.Image) (string, error) {
	client, err := s.openClient()
	if err != nil {
		return "", err
	}
	return client.SendImage(ctx, to, img)
}

func (s *Session) openClient() (ports.ChatClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil || s.state != StateOpen {
		return nil, domain.ErrNotConnected
	}
	return s.client, nil
}

// Subscribe returns a channel of state changes and a function that ends
// the subscription. Slow subscribers miss updates instead of blocking.
func (s *Session) Subscribe() (<-chan StateChange, func()) {
	ch := make(chan StateChange, 8)

	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			close(ch)
			s.subsMu.Unlock()
		})
	}
}

func (s *Session) setStateLocked(state State) {
	if s.state != state {
		s.logger.Debug("state change", "from", s.state, "to", state)
	}
	s.state = state
	s.notifyLocked()
}

func (s *Session) notifyLocked() {
	change := StateChange{State: s.state, PairingCode: s.code, At: s.now()}

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- change:
		default:
		}
	}
}
