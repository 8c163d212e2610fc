package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"promowatch/internal/modules/security"
	sharederrors "promowatch/internal/shared/errors"
)

// State is the session manager's position in the authorization lifecycle.
type State string

const (
	StateNoSession         State = "no_session"
	StateConnecting        State = "connecting"
	StateAwaitingCode      State = "awaiting_code"
	StateAwaitingTwoFactor State = "awaiting_two_factor"
	StateAuthorized        State = "authorized"
	StateExpired           State = "expired"
)

const (
	maxAcquireAttempts = 3
	acquireRetryPause  = 5 * time.Second
	maxFloodAttempts   = 5
)

// Manager drives the session lifecycle for the single configured
// identity: loading and persisting encrypted sessions, interactive
// authorization, and guarding every provider call with the rate limiter,
// the abuse ledger and the audit log. Not safe for concurrent callers.
type Manager struct {
	identity string
	storage  *Storage
	limiter  *security.RateLimiter
	ledger   *security.IPLedger
	auditor  *security.Auditor
	dialer   Dialer
	prompter CredentialPrompter
	state    State

	sleep func(ctx context.Context, d time.Duration) error
}

func NewManager(identity string, storage *Storage, limiter *security.RateLimiter, ledger *security.IPLedger, auditor *security.Auditor, dialer Dialer, prompter CredentialPrompter) *Manager {
	return &Manager{
		identity: identity,
		storage:  storage,
		limiter:  limiter,
		ledger:   ledger,
		auditor:  auditor,
		dialer:   dialer,
		prompter: prompter,
		state:    StateNoSession,
		sleep:    sleepCtx,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	return m.state
}

// Guarded wraps one provider call: the logical identifier passes through
// the rate limiter (sleeping out a refusal), the optional actor through
// the abuse ledger (a typed refusal), and flood signals are retried in a
// bounded loop with the provider-specified pauses. Other failures are
// audit-logged as api_error and returned unchanged.
func (m *Manager) Guarded(ctx context.Context, name, actor string, fn func(ctx context.Context) error) error {
	if actor != "" {
		if allowed, wait := m.ledger.Check(actor, name); !allowed {
			m.auditor.Log("ip_blocked",
				fmt.Sprintf("actor %s blocked for %s", actor, wait), security.SeverityWarning)
			return &sharederrors.BlockedError{Actor: actor, Reason: "suspicious activity", Wait: wait}
		}
	}

	if allowed, wait := m.limiter.Check(name); !allowed {
		m.auditor.Log("rate_limit",
			fmt.Sprintf("rate limit exceeded for %s, waiting %s", name, wait), security.SeverityWarning)
		if err := m.sleep(ctx, wait); err != nil {
			// Could not wait the refusal out; hand it to the caller.
			return &sharederrors.RateLimitedError{Identifier: name, Wait: wait}
		}
	}

	for attempt := 1; attempt <= maxFloodAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			m.auditor.Log("api_request", fmt.Sprintf("request %s succeeded", name), security.SeverityInfo)
			return nil
		}

		if fw, ok := sharederrors.AsFloodWait(err); ok {
			m.auditor.Log("flood_wait",
				fmt.Sprintf("flood wait for %s: %s (attempt %d)", name, fw.Wait, attempt), security.SeverityWarning)
			if serr := m.sleep(ctx, fw.Wait); serr != nil {
				return serr
			}
			continue
		}

		m.auditor.Log("api_error", fmt.Sprintf("request %s failed: %v", name, err), security.SeverityError)
		return err
	}

	return oops.With("request", name).Errorf("flood retry attempts exhausted")
}

// Acquire produces an authorized client, retrying transient failures up
// to three times with a pause in between. Exhausting the budget is fatal
// for the polling cycle: a critical audit event is recorded and
// ErrClientUnavailable returned.
func (m *Manager) Acquire(ctx context.Context) (Client, error) {
	for attempt := 1; attempt <= maxAcquireAttempts; attempt++ {
		client, err := m.acquireOnce(ctx)
		if err == nil {
			return client, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		m.auditor.Log("client_error",
			fmt.Sprintf("client acquisition attempt %d failed: %v", attempt, err), security.SeverityError)
		if attempt < maxAcquireAttempts {
			if serr := m.sleep(ctx, acquireRetryPause); serr != nil {
				return nil, serr
			}
		}
	}

	m.auditor.Log("max_retries", "client acquisition attempts exhausted", security.SeverityCritical)
	m.state = StateNoSession
	return nil, sharederrors.ErrClientUnavailable
}

func (m *Manager) acquireOnce(ctx context.Context) (Client, error) {
	m.state = StateConnecting

	if sessionString, found := m.storage.Load(m.identity); found {
		client, err := m.restore(ctx, sessionString)
		if err == nil {
			return client, nil
		}
		if !errors.Is(err, sharederrors.ErrSessionInvalid) {
			return nil, err
		}
		// Revoked or unregistered: drop the stored session and fall
		// through to a fresh authorization.
		m.state = StateExpired
		m.auditor.Log("session_invalid", "session revoked or unregistered", security.SeverityWarning)
		if err := m.storage.Clear(m.identity); err != nil {
			slog.Error("Failed to clear invalid session", "error", err)
		}
	}

	client, err := m.dialer.Dial(ctx, "")
	if err != nil {
		return nil, oops.With("context", "failed to dial fresh client").Wrap(err)
	}
	if err := client.Connect(ctx); err != nil {
		return nil, oops.With("context", "failed to connect fresh client").Wrap(err)
	}
	if err := m.authorize(ctx, client); err != nil {
		m.Close(client)
		return nil, err
	}
	return client, nil
}

func (m *Manager) restore(ctx context.Context, sessionString string) (Client, error) {
	client, err := m.dialer.Dial(ctx, sessionString)
	if err != nil {
		return nil, oops.With("context", "failed to dial stored session").Wrap(err)
	}
	if err := client.Connect(ctx); err != nil {
		return nil, oops.With("context", "failed to connect stored session").Wrap(err)
	}

	var me *Account
	probeErr := m.Guarded(ctx, "get_me", "", func(ctx context.Context) error {
		var err error
		me, err = client.Me(ctx)
		return err
	})
	if probeErr != nil {
		m.Close(client)
		return nil, probeErr
	}

	m.state = StateAuthorized
	m.auditor.Log("session_restored",
		fmt.Sprintf("session restored for %s", me.FirstName), security.SeverityInfo)
	return client, nil
}

func (m *Manager) authorize(ctx context.Context, client Client) error {
	authorized, err := client.IsAuthorized(ctx)
	if err != nil {
		return oops.With("context", "authorization probe failed").Wrap(err)
	}

	if !authorized {
		m.state = StateAwaitingCode
		m.auditor.Log("auth_required",
			"authorization required for configured identity", security.SeverityInfo)

		if err := m.Guarded(ctx, "send_code_request", "", func(ctx context.Context) error {
			return client.SendCodeRequest(ctx, m.identity)
		}); err != nil {
			return err
		}

		code, err := m.prompter.Code(ctx)
		if err != nil {
			m.auditor.Log("auth_error", fmt.Sprintf("code prompt failed: %v", err), security.SeverityError)
			return sharederrors.ErrAuthAborted
		}

		signInErr := m.Guarded(ctx, "sign_in", "", func(ctx context.Context) error {
			return client.SignIn(ctx, m.identity, code)
		})
		if errors.Is(signInErr, sharederrors.ErrTwoFactorRequired) {
			m.state = StateAwaitingTwoFactor
			password, err := m.prompter.Password(ctx)
			if err != nil {
				m.auditor.Log("auth_error", fmt.Sprintf("password prompt failed: %v", err), security.SeverityError)
				return sharederrors.ErrAuthAborted
			}
			signInErr = m.Guarded(ctx, "sign_in_password", "", func(ctx context.Context) error {
				return client.SignInWithPassword(ctx, password)
			})
		}
		if signInErr != nil {
			m.auditor.Log("auth_error", fmt.Sprintf("authorization failed: %v", signInErr), security.SeverityError)
			return signInErr
		}
	}

	if sessionString, err := client.ExportSession(); err == nil {
		if err := m.storage.Save(m.identity, sessionString); err != nil {
			slog.Error("Failed to persist session", "error", err)
		}
	} else {
		slog.Error("Failed to export session", "error", err)
	}

	m.state = StateAuthorized
	m.auditor.Log("auth_success", "authorization succeeded", security.SeverityInfo)
	return nil
}

// Close disconnects the client idempotently. Disconnect failures are
// audit-logged, never raised.
func (m *Manager) Close(client Client) {
	if client == nil {
		return
	}
	if err := client.Disconnect(); err != nil {
		m.auditor.Log("disconnect_error", fmt.Sprintf("disconnect failed: %v", err), security.SeverityError)
		return
	}
	m.auditor.Log("client_disconnected", "client disconnected", security.SeverityInfo)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
