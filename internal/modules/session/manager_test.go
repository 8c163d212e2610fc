package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"promowatch/internal/modules/message/domain"
	"promowatch/internal/modules/security"
	sharederrors "promowatch/internal/shared/errors"
)

type fakeClient struct {
	authorized    bool
	twoFactor     bool
	session       string
	meErr         error
	connected     bool
	disconnects   int
	signedIn      bool
	codeRequested bool
}

func (c *fakeClient) Connect(ctx context.Context) error { c.connected = true; return nil }

func (c *fakeClient) IsAuthorized(ctx context.Context) (bool, error) { return c.authorized, nil }

func (c *fakeClient) SendCodeRequest(ctx context.Context, identity string) error {
	c.codeRequested = true
	return nil
}

func (c *fakeClient) SignIn(ctx context.Context, identity, code string) error {
	if c.twoFactor {
		return sharederrors.ErrTwoFactorRequired
	}
	c.signedIn = true
	return nil
}

func (c *fakeClient) SignInWithPassword(ctx context.Context, password string) error {
	c.signedIn = true
	return nil
}

func (c *fakeClient) Me(ctx context.Context) (*Account, error) {
	if c.meErr != nil {
		return nil, c.meErr
	}
	return &Account{ID: 1, FirstName: "Reviewer"}, nil
}

func (c *fakeClient) ExportSession() (string, error) { return c.session, nil }

func (c *fakeClient) ResolveChannel(ctx context.Context, name string) (*ChannelHandle, error) {
	return nil, sharederrors.ErrChannelNotFound
}

func (c *fakeClient) RecentMessages(ctx context.Context, handle *ChannelHandle, limit int) ([]*domain.Message, error) {
	return nil, nil
}

func (c *fakeClient) DownloadMedia(ctx context.Context, msg *domain.Message) ([]byte, error) {
	return nil, nil
}

func (c *fakeClient) Disconnect() error { c.disconnects++; return nil }

type fakeDialer struct {
	clients  []*fakeClient
	sessions []string
	err      error
}

func (d *fakeDialer) Dial(ctx context.Context, sessionString string) (Client, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.sessions = append(d.sessions, sessionString)
	if len(d.clients) == 0 {
		return &fakeClient{}, nil
	}
	client := d.clients[0]
	if len(d.clients) > 1 {
		d.clients = d.clients[1:]
	}
	return client, nil
}

type fakePrompter struct {
	code     string
	password string
	codeErr  error
}

func (p *fakePrompter) Code(ctx context.Context) (string, error) { return p.code, p.codeErr }

func (p *fakePrompter) Password(ctx context.Context) (string, error) { return p.password, nil }

func newTestManager(t *testing.T, dialer Dialer, prompter CredentialPrompter) (*Manager, *security.Auditor, *Storage) {
	t.Helper()
	dir := t.TempDir()
	vault, err := security.NewVault(dir, "test-secret")
	if err != nil {
		t.Fatal(err)
	}
	storage, err := NewStorage(dir, vault)
	if err != nil {
		t.Fatal(err)
	}
	auditor := security.NewAuditor()
	manager := NewManager("+79990001122", storage, security.NewRateLimiter(), security.NewIPLedger(dir), auditor, dialer, prompter)
	manager.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return manager, auditor, storage
}

func auditTypes(auditor *security.Auditor) map[string]int {
	types := make(map[string]int)
	for _, event := range auditor.GetReport().RecentEvents {
		types[event.Type]++
	}
	return types
}

func TestAcquireRestoresValidSession(t *testing.T) {
	restored := &fakeClient{authorized: true}
	dialer := &fakeDialer{clients: []*fakeClient{restored}}
	manager, auditor, storage := newTestManager(t, dialer, &fakePrompter{})

	if err := storage.Save("+79990001122", "stored-session"); err != nil {
		t.Fatal(err)
	}

	client, err := manager.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	if client == nil {
		t.Fatal("Acquire() returned nil client")
	}
	if manager.State() != StateAuthorized {
		t.Errorf("state = %s, want %s", manager.State(), StateAuthorized)
	}
	if dialer.sessions[0] != "stored-session" {
		t.Errorf("dialed with session %q, want stored-session", dialer.sessions[0])
	}
	if auditTypes(auditor)["session_restored"] == 0 {
		t.Error("session_restored not audited")
	}
}

func TestAcquireRevokedSessionFallsBackToFreshAuth(t *testing.T) {
	revoked := &fakeClient{meErr: sharederrors.ErrSessionInvalid}
	fresh := &fakeClient{authorized: true, session: "fresh-session"}
	dialer := &fakeDialer{clients: []*fakeClient{revoked, fresh}}
	manager, auditor, storage := newTestManager(t, dialer, &fakePrompter{})

	if err := storage.Save("+79990001122", "revoked-session"); err != nil {
		t.Fatal(err)
	}

	client, err := manager.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	if client != Client(fresh) {
		t.Error("Acquire() did not return the fresh client")
	}

	types := auditTypes(auditor)
	if types["session_invalid"] == 0 {
		t.Error("session_invalid not audited")
	}
	if types["auth_success"] == 0 {
		t.Error("auth_success not audited")
	}

	// The revoked session was deleted and replaced by the fresh one.
	got, found := storage.Load("+79990001122")
	if !found || got != "fresh-session" {
		t.Errorf("stored session = (%q, %v), want (fresh-session, true)", got, found)
	}
	if revoked.disconnects == 0 {
		t.Error("revoked client not disconnected")
	}
}

func TestAcquireInteractiveAuthWithTwoFactor(t *testing.T) {
	fresh := &fakeClient{authorized: false, twoFactor: true, session: "new-session"}
	dialer := &fakeDialer{clients: []*fakeClient{fresh}}
	prompter := &fakePrompter{code: "12345", password: "hunter2"}
	manager, auditor, storage := newTestManager(t, dialer, prompter)

	client, err := manager.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	if client == nil || !fresh.signedIn || !fresh.codeRequested {
		t.Fatal("interactive authorization did not complete")
	}
	if manager.State() != StateAuthorized {
		t.Errorf("state = %s, want %s", manager.State(), StateAuthorized)
	}

	types := auditTypes(auditor)
	if types["auth_required"] == 0 || types["auth_success"] == 0 {
		t.Errorf("audit types = %v, want auth_required and auth_success", types)
	}

	if got, found := storage.Load("+79990001122"); !found || got != "new-session" {
		t.Errorf("stored session = (%q, %v), want (new-session, true)", got, found)
	}
}

func TestAcquireExhaustsRetryBudget(t *testing.T) {
	dialer := &fakeDialer{err: errors.New("network down")}
	manager, auditor, _ := newTestManager(t, dialer, &fakePrompter{})

	_, err := manager.Acquire(context.Background())
	if !errors.Is(err, sharederrors.ErrClientUnavailable) {
		t.Fatalf("Acquire() error = %v, want ErrClientUnavailable", err)
	}

	report := auditor.GetReport()
	if report.CriticalEvents != 1 {
		t.Errorf("critical events = %d, want 1 (max_retries)", report.CriticalEvents)
	}
	types := auditTypes(auditor)
	if types["client_error"] != 3 {
		t.Errorf("client_error events = %d, want 3", types["client_error"])
	}
}

func TestGuardedRetriesFloodWaitBounded(t *testing.T) {
	manager, auditor, _ := newTestManager(t, &fakeDialer{}, &fakePrompter{})

	var slept []time.Duration
	manager.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	calls := 0
	err := manager.Guarded(context.Background(), "resolve", "", func(ctx context.Context) error {
		calls++
		if calls <= 2 {
			return &sharederrors.FloodWaitError{Wait: 7 * time.Second}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Guarded() failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(slept) != 2 || slept[0] != 7*time.Second {
		t.Errorf("slept = %v, want two 7s pauses", slept)
	}
	if auditTypes(auditor)["flood_wait"] != 2 {
		t.Error("flood waits not audited")
	}
}

func TestGuardedGivesUpAfterRepeatedFloods(t *testing.T) {
	manager, _, _ := newTestManager(t, &fakeDialer{}, &fakePrompter{})
	manager.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	calls := 0
	err := manager.Guarded(context.Background(), "resolve", "", func(ctx context.Context) error {
		calls++
		return &sharederrors.FloodWaitError{Wait: time.Second}
	})
	if err == nil {
		t.Fatal("Guarded() succeeded despite persistent flood signals")
	}
	if calls != maxFloodAttempts {
		t.Errorf("calls = %d, want %d", calls, maxFloodAttempts)
	}
}

func TestGuardedRefusesBlockedActor(t *testing.T) {
	manager, auditor, _ := newTestManager(t, &fakeDialer{}, &fakePrompter{})

	// Escalate the actor into a block, then verify the typed refusal.
	for i := 0; i < 103; i++ {
		manager.ledger.Check("203.0.113.13", "burst")
	}

	err := manager.Guarded(context.Background(), "resolve", "203.0.113.13", func(ctx context.Context) error {
		t.Fatal("guarded function ran for a blocked actor")
		return nil
	})

	var blocked *sharederrors.BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("error = %v, want BlockedError", err)
	}
	if blocked.Wait <= 0 {
		t.Errorf("blocked wait = %v, want positive", blocked.Wait)
	}
	if auditTypes(auditor)["ip_blocked"] == 0 {
		t.Error("ip_blocked not audited")
	}
}

func TestGuardedSurfacesRateLimitRefusalWhenWaitFails(t *testing.T) {
	manager, auditor, _ := newTestManager(t, &fakeDialer{}, &fakePrompter{})
	manager.sleep = func(ctx context.Context, d time.Duration) error { return context.Canceled }

	// Exhaust the per-second allowance for this identifier.
	manager.limiter.Check("resolve")
	manager.limiter.Check("resolve")

	err := manager.Guarded(context.Background(), "resolve", "", func(ctx context.Context) error {
		t.Fatal("guarded function ran while rate limited")
		return nil
	})

	var limited *sharederrors.RateLimitedError
	if !errors.As(err, &limited) {
		t.Fatalf("error = %v, want RateLimitedError", err)
	}
	if limited.Identifier != "resolve" || limited.Wait <= 0 {
		t.Errorf("refusal = %+v, want identifier resolve and positive wait", limited)
	}
	if auditTypes(auditor)["rate_limit"] == 0 {
		t.Error("rate_limit not audited")
	}
}

func TestGuardedReturnsOtherErrorsUnchanged(t *testing.T) {
	manager, auditor, _ := newTestManager(t, &fakeDialer{}, &fakePrompter{})

	boom := errors.New("boom")
	err := manager.Guarded(context.Background(), "resolve", "", func(ctx context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want boom unchanged", err)
	}
	if auditTypes(auditor)["api_error"] == 0 {
		t.Error("api_error not audited")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	manager, auditor, _ := newTestManager(t, &fakeDialer{}, &fakePrompter{})

	client := &fakeClient{}
	manager.Close(client)
	manager.Close(client)
	manager.Close(nil)

	if client.disconnects != 2 {
		t.Errorf("disconnects = %d, want 2", client.disconnects)
	}
	if auditTypes(auditor)["client_disconnected"] != 2 {
		t.Error("client_disconnected not audited per close")
	}
}
