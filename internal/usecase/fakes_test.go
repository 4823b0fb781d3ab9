//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-pix-manager/internal/domain"
	"telegram-pix-manager/internal/domain/model"
	"telegram-pix-manager/internal/domain/ports/adapter"
	"telegram-pix-manager/internal/infra/i18n"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func newTestTranslator() *i18n.Translator {
	t, err := i18n.Default()
	if err != nil {
		panic(err)
	}
	return t
}

// validToken builds a syntactically valid bot token for id.
func validToken(id string) string {
	return id + ":AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
}

// --- Store

type memStore struct {
	mu    sync.Mutex
	bots  map[string]*model.BotRegistration
	procs map[string]int
	now   func() time.Time

	insertErr  error
	removeErr  error
	compacted  int
	deactivate int
}

func newMemStore() *memStore {
	return &memStore{
		bots:  make(map[string]*model.BotRegistration),
		procs: make(map[string]int),
		now:   time.Now,
	}
}

func (m *memStore) Insert(ctx context.Context, b *model.BotRegistration) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bots[b.Token]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *b
	m.bots[b.Token] = &cp
	return nil
}

func (m *memStore) Purge(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bots, token)
	delete(m.procs, token)
	return nil
}

func (m *memStore) RemoveCompletely(ctx context.Context, token string) error {
	if m.removeErr != nil {
		return m.removeErr
	}
	return m.Purge(ctx, token)
}

func (m *memStore) FindByToken(ctx context.Context, token string) (*model.BotRegistration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bots[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) list(keep func(*model.BotRegistration) bool) []*model.BotRegistration {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.BotRegistration
	for _, b := range m.bots {
		if keep(b) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out
}

func (m *memStore) ListByOwner(ctx context.Context, ownerID int64) ([]*model.BotRegistration, error) {
	return m.list(func(b *model.BotRegistration) bool { return b.OwnerID == ownerID }), nil
}

func (m *memStore) ListActive(ctx context.Context) ([]*model.BotRegistration, error) {
	return m.list(func(b *model.BotRegistration) bool { return b.IsActive }), nil
}

func (m *memStore) ListInactive(ctx context.Context, thresholdMinutes int) ([]*model.BotRegistration, error) {
	threshold := m.now().Add(-time.Duration(thresholdMinutes) * time.Minute)
	return m.list(func(b *model.BotRegistration) bool { return b.InactiveSince(threshold) }), nil
}

func (m *memStore) GatewayCredential(ctx context.Context, token string) (model.GatewayKind, string, error) {
	b, err := m.FindByToken(ctx, token)
	if err != nil {
		return model.GatewayNone, "", err
	}
	cred, ok := b.Credential()
	if !ok {
		return b.Gateway, "", domain.ErrGatewayNotConfigured
	}
	return b.Gateway, cred, nil
}

func (m *memStore) update(token string, fn func(b *model.BotRegistration)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bots[token]
	if !ok {
		return domain.ErrNotFound
	}
	fn(b)
	return nil
}

func (m *memStore) SetPushInPayToken(ctx context.Context, token, gatewayToken string) error {
	return m.update(token, func(b *model.BotRegistration) { b.PushInPayToken = gatewayToken })
}

func (m *memStore) SetMercadoPagoCredential(ctx context.Context, token string, cred model.MercadoPagoCredential) error {
	return m.update(token, func(b *model.BotRegistration) {
		b.MercadoPago = cred
		b.Gateway = model.GatewayMercadoPago
	})
}

func (m *memStore) SetGatewayKind(ctx context.Context, token string, kind model.GatewayKind) error {
	return m.update(token, func(b *model.BotRegistration) { b.Gateway = kind })
}

func (m *memStore) SetPublicAccess(ctx context.Context, token string, public bool) error {
	return m.update(token, func(b *model.BotRegistration) { b.IsPublic = public })
}

func (m *memStore) TouchActivity(ctx context.Context, token string) error {
	now := m.now()
	return m.update(token, func(b *model.BotRegistration) { b.LastActivity = &now })
}

func (m *memStore) Deactivate(ctx context.Context, token string) error {
	m.deactivate++
	return m.update(token, func(b *model.BotRegistration) { b.IsActive = false })
}

func (m *memStore) Compact(ctx context.Context) error {
	m.compacted++
	return nil
}

func (m *memStore) SaveProcess(ctx context.Context, rec model.ProcessRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.procs[rec.Token] = rec.PID
	return nil
}

func (m *memStore) FindProcess(ctx context.Context, token string) (*model.ProcessRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pid, ok := m.procs[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &model.ProcessRecord{Token: token, PID: pid}, nil
}

func (m *memStore) DeleteProcess(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.procs, token)
	return nil
}

func (m *memStore) ClearProcesses(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.procs = make(map[string]int)
	return nil
}

// --- Telegram

type sentText struct {
	Token  string
	ChatID int64
	Text   string
}

type fakeDirectory struct {
	mu       sync.Mutex
	info     map[string]adapter.BotInfo
	dropped  []string
	sent     []sentText
	dropErr  error
	identErr error
	sendErr  error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{info: make(map[string]adapter.BotInfo)}
}

func (d *fakeDirectory) DropWebhook(ctx context.Context, botToken string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropped = append(d.dropped, botToken)
	return d.dropErr
}

func (d *fakeDirectory) Identify(ctx context.Context, botToken string) (adapter.BotInfo, error) {
	if d.identErr != nil {
		return adapter.BotInfo{}, d.identErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if info, ok := d.info[botToken]; ok {
		return info, nil
	}
	return adapter.BotInfo{ID: 111, Username: "tenant_bot", FirstName: "Tenant"}, nil
}

func (d *fakeDirectory) SendText(ctx context.Context, botToken string, chatID int64, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sentText{Token: botToken, ChatID: chatID, Text: text})
	return d.sendErr
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []sentText
	err  error
}

func (n *fakeNotifier) SendMessage(ctx context.Context, telegramID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, sentText{ChatID: telegramID, Text: text})
	return n.err
}

// --- Processes

type fakeProcManager struct {
	mu         sync.Mutex
	nextPID    int
	spawned    []string
	terminated []int
	spawnErr   error
	termErr    error
}

func (p *fakeProcManager) SpawnWorker(ctx context.Context, botToken string) (int, error) {
	if p.spawnErr != nil {
		return 0, p.spawnErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextPID++
	p.spawned = append(p.spawned, botToken)
	return 1000 + p.nextPID, nil
}

func (p *fakeProcManager) SpawnRegistration(ctx context.Context) (int, error) {
	return 999, nil
}

func (p *fakeProcManager) Terminate(ctx context.Context, pid int, botToken string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminated = append(p.terminated, pid)
	return p.termErr
}

func (p *fakeProcManager) StopAll(ctx context.Context) {}

// --- Payments

type fakeGateway struct {
	calls int
	kind  model.GatewayKind
	code  string
	err   error
}

func (g *fakeGateway) CreatePayment(ctx context.Context, botToken string, amount float64, payerID int64) (model.GatewayKind, string, error) {
	g.calls++
	return g.kind, g.code, g.err
}

type fakeOAuthClient struct {
	cred     model.MercadoPagoCredential
	err      error
	lastCode string
}

func (c *fakeOAuthClient) AuthorizationURL(state string) string {
	return "https://auth.example/authorization?state=" + state
}

func (c *fakeOAuthClient) ExchangeCode(ctx context.Context, code string) (model.MercadoPagoCredential, error) {
	c.lastCode = code
	return c.cred, c.err
}

type fakeValidator struct{ ok bool }

func (v fakeValidator) ValidateAccessToken(ctx context.Context, accessToken string) bool { return v.ok }

// plainStates passes the bot token through as state.
type plainStates struct{}

func (plainStates) Encode(botToken string) (string, error) { return botToken, nil }
func (plainStates) Decode(state string) (string, error) {
	if state == "bad" {
		return "", errors.New("malformed")
	}
	return state, nil
}

// --- Locking

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocker() *fakeLocker { return &fakeLocker{held: make(map[string]bool)} }

func (l *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return "", domain.ErrLockHeld
	}
	l.held[key] = true
	return "tok", nil
}

func (l *fakeLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}
