// Package auth owns the per-account OAuth credential lifecycle: device-flow
// authentication, token refresh and the shared credential store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Sentinel errors surfaced to the dispatcher.
var (
	ErrNoCredential  = errors.New("no credential for account")
	ErrRefreshFailed = errors.New("token refresh failed")
	ErrRevoked       = errors.New("credential revoked, re-authentication required")
	ErrFlowNotFound  = errors.New("authentication flow not found")
)

// State is the authorization state of one account.
type State string

// Account states. Revoked is terminal until re-authentication.
const (
	StateUnauthenticated   State = "unauthenticated"
	StatePendingDeviceFlow State = "pending_device_flow"
	StateAuthenticated     State = "authenticated"
	StateExpired           State = "expired"
	StateRevoked           State = "revoked"
)

// expiryLeeway treats tokens about to expire as already expired, so a token
// handed to a remote call stays valid for the duration of the call.
const expiryLeeway = 30 * time.Second

// Challenge is the user-facing half of a device-flow authentication.
type Challenge struct {
	FlowHandle      string `json:"flow_handle" jsonschema:"handle to pass to complete_authentication"`
	VerificationURI string `json:"verification_uri" jsonschema:"URL the user opens to sign in"`
	UserCode        string `json:"user_code" jsonschema:"code the user enters at the verification URL"`
	ExpiresIn       int64  `json:"expires_in" jsonschema:"seconds until the challenge expires"`
}

// AccountStatus is the introspection view of one account.
type AccountStatus struct {
	ID     string
	State  State
	Token  string
	Expiry time.Time
}

// exchanger abstracts the remote OAuth endpoint so tests can count refresh
// calls.
type exchanger interface {
	DeviceAuth(ctx context.Context) (*oauth2.DeviceAuthResponse, error)
	DeviceAccessToken(ctx context.Context, da *oauth2.DeviceAuthResponse) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

type oauthExchanger struct {
	cfg *oauth2.Config
}

func (x *oauthExchanger) DeviceAuth(ctx context.Context) (*oauth2.DeviceAuthResponse, error) {
	return x.cfg.DeviceAuth(ctx, oauth2.AccessTypeOffline)
}

func (x *oauthExchanger) DeviceAccessToken(ctx context.Context, da *oauth2.DeviceAuthResponse) (*oauth2.Token, error) {
	return x.cfg.DeviceAccessToken(ctx, da)
}

func (x *oauthExchanger) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	return x.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
}

type account struct {
	state State
	rec   Record
}

type pendingFlow struct {
	accountID string
	da        *oauth2.DeviceAuthResponse
}

// Manager is the token manager: one logical state machine per account,
// single-flight refresh, no cross-account locking beyond the map mutex.
type Manager struct {
	mu       sync.Mutex
	exch     exchanger
	store    *Store
	scopes   []string
	accounts map[string]*account
	flows    map[string]*pendingFlow
	refresh  singleflight.Group
	now      func() time.Time
}

// NewManager loads persisted credentials and seeds account states from them.
func NewManager(cfg *oauth2.Config, store *Store) (*Manager, error) {
	m := &Manager{
		exch:     &oauthExchanger{cfg: cfg},
		store:    store,
		scopes:   cfg.Scopes,
		accounts: map[string]*account{},
		flows:    map[string]*pendingFlow{},
		now:      time.Now,
	}

	records, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("store.Load failed: %w", err)
	}

	for id, rec := range records {
		state := StateAuthenticated
		if !rec.Expiry.After(m.now().Add(expiryLeeway)) {
			state = StateExpired
		}
		m.accounts[id] = &account{state: state, rec: rec}
	}

	return m, nil
}

// Authenticate initiates a device-flow challenge for the account. The
// account is created on first authentication attempt.
func (m *Manager) Authenticate(ctx context.Context, accountID string) (*Challenge, error) {
	da, err := m.exch.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("exch.DeviceAuth failed: %w", err)
	}

	handle := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[accountID]
	if !ok {
		acct = &account{}
		m.accounts[accountID] = acct
	}
	acct.state = StatePendingDeviceFlow
	m.flows[handle] = &pendingFlow{accountID: accountID, da: da}

	return &Challenge{
		FlowHandle:      handle,
		VerificationURI: da.VerificationURI,
		UserCode:        da.UserCode,
		ExpiresIn:       int64(time.Until(da.Expiry).Seconds()),
	}, nil
}

// CompleteAuthentication exchanges a finished device flow for a credential
// record. It blocks polling the auth endpoint until the user approves or
// the challenge expires.
func (m *Manager) CompleteAuthentication(ctx context.Context, handle string) error {
	m.mu.Lock()
	flow, ok := m.flows[handle]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrFlowNotFound, handle)
	}

	tok, err := m.exch.DeviceAccessToken(ctx, flow.da)

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.flows, handle)
	acct := m.accounts[flow.accountID]

	if err != nil {
		if acct != nil && acct.rec.AccessToken == "" {
			acct.state = StateUnauthenticated
		}
		return fmt.Errorf("exch.DeviceAccessToken failed: %w", err)
	}

	if acct == nil {
		acct = &account{}
		m.accounts[flow.accountID] = acct
	}
	acct.state = StateAuthenticated
	acct.rec = Record{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		Scopes:       m.scopes,
	}

	m.persistLocked()

	return nil
}

// ValidToken is the read path used by the remote API client. A cached
// unexpired token is returned as-is; an expired one triggers exactly one
// refresh shared by all concurrent callers for the account.
func (m *Manager) ValidToken(ctx context.Context, accountID string) (string, error) {
	m.mu.Lock()
	acct, ok := m.accounts[accountID]
	if !ok || acct.rec.AccessToken == "" {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: %q", ErrNoCredential, accountID)
	}
	if acct.state == StateRevoked {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: %q", ErrRevoked, accountID)
	}
	if acct.rec.Expiry.After(m.now().Add(expiryLeeway)) {
		token := acct.rec.AccessToken
		m.mu.Unlock()
		return token, nil
	}
	acct.state = StateExpired
	refreshToken := acct.rec.RefreshToken
	m.mu.Unlock()

	// Refresh is not safe to run concurrently against the remote auth
	// endpoint; all callers for one account await a single in-flight call.
	token, err, _ := m.refresh.Do(accountID, func() (any, error) {
		return m.doRefresh(ctx, accountID, refreshToken)
	})
	if err != nil {
		return "", err
	}

	return token.(string), nil
}

func (m *Manager) doRefresh(ctx context.Context, accountID, refreshToken string) (string, error) {
	if refreshToken == "" {
		m.setState(accountID, StateRevoked)
		return "", fmt.Errorf("%w: no refresh token for %q", ErrRevoked, accountID)
	}

	tok, err := m.exch.Refresh(ctx, refreshToken)
	if err != nil {
		// A timed-out refresh counts as a failed refresh, never an
		// ambiguous one.
		state := StateExpired
		var retrieve *oauth2.RetrieveError
		if errors.As(err, &retrieve) && retrieve.ErrorCode == "invalid_grant" {
			state = StateRevoked
		}
		m.setState(accountID, state)
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	acct := m.accounts[accountID]
	if acct == nil {
		return "", fmt.Errorf("%w: %q", ErrNoCredential, accountID)
	}
	acct.state = StateAuthenticated
	acct.rec.AccessToken = tok.AccessToken
	acct.rec.Expiry = tok.Expiry
	if tok.RefreshToken != "" {
		acct.rec.RefreshToken = tok.RefreshToken
	}

	m.persistLocked()

	return tok.AccessToken, nil
}

// TokenSource adapts the manager to the oauth2.TokenSource the Google API
// client expects, bound to one account and one request context.
func (m *Manager) TokenSource(ctx context.Context, accountID string) oauth2.TokenSource {
	return &managerTokenSource{ctx: ctx, m: m, accountID: accountID}
}

type managerTokenSource struct {
	ctx       context.Context
	m         *Manager
	accountID string
}

func (s *managerTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.m.ValidToken(s.ctx, s.accountID)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: token}, nil
}

// AccountState reports the state machine position of one account.
func (m *Manager) AccountState(accountID string) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[accountID]
	if !ok {
		return StateUnauthenticated
	}
	return acct.state
}

// Accounts returns the introspection view of every known account, for the
// status page.
func (m *Manager) Accounts() []AccountStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]AccountStatus, 0, len(m.accounts))
	for id, acct := range m.accounts {
		out = append(out, AccountStatus{
			ID:     id,
			State:  acct.state,
			Token:  acct.rec.AccessToken,
			Expiry: acct.rec.Expiry,
		})
	}
	return out
}

// SignOut deletes the account's credential record. This is the only path
// that removes an account.
func (m *Manager) SignOut(accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[accountID]; !ok {
		return fmt.Errorf("%w: %q", ErrNoCredential, accountID)
	}
	delete(m.accounts, accountID)

	m.persistLocked()

	return nil
}

func (m *Manager) setState(accountID string, state State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if acct, ok := m.accounts[accountID]; ok {
		acct.state = state
	}
}

// persistLocked writes the store; callers hold m.mu. A failed persist keeps
// the in-memory state authoritative rather than failing the operation.
func (m *Manager) persistLocked() {
	records := make(map[string]Record, len(m.accounts))
	for id, acct := range m.accounts {
		if acct.rec.AccessToken != "" {
			records[id] = acct.rec
		}
	}

	if err := m.store.Save(records); err != nil {
		log.Println(fmt.Errorf("store.Save failed: %w", err))
	}
}
