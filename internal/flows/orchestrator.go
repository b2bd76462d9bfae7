// Package flows composes session caching and retried vendor calls into the three
// operations the accessory layer needs: authenticate, list switches and set a
// switch.
//
// Every operation first makes sure a valid session exists, logging in when the
// cached one is missing or stale. Logins are coalesced so concurrent callers
// never race each other. Any failure drops the cached session so the next call
// starts from a fresh login.
package flows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tinkerbelle-io/hw-bridge/internal/homewizard"
	"github.com/tinkerbelle-io/hw-bridge/internal/retry"
	"github.com/tinkerbelle-io/hw-bridge/internal/session"
)

const (
	opAuthenticate = "authenticate"
	opListSwitches = "list-switches"
	opSetState     = "set-switch-state"
)

// API is the vendor surface the orchestrator drives. *homewizard.Client satisfies it.
type API interface {
	Login(ctx context.Context, username, password string) (string, error)
	ListHubs(ctx context.Context, token string) ([]homewizard.Hub, error)
	SetState(ctx context.Context, token, hubID, switchID string, on bool) (*homewizard.ActionResult, error)
}

// Credentials are the account login.
type Credentials struct {
	Username string
	Password string
}

// Switch is an individually controllable device within a hub.
type Switch struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	HubID string `json:"hubId"`
}

// Orchestrator owns one session and runs every flow against it.
type Orchestrator struct {
	api   API
	creds Credentials
	rt    *retry.Transport
	log   *slog.Logger
	now   func() time.Time

	mu       sync.Mutex
	session  *session.Session
	switches []Switch

	logins singleflight.Group
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logging sink.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithClock replaces time.Now for session validity checks.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator. The retry policy applies to every network call.
func New(api API, creds Credentials, policy retry.Policy, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		api:   api,
		creds: creds,
		log:   slog.Default().With("component", "flows"),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.rt = retry.New(policy, o.log)
	return o
}

// Session returns the cached session, or nil.
func (o *Orchestrator) Session() *session.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// Switches returns the switches found by the last successful discovery.
func (o *Orchestrator) Switches() []Switch {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Switch(nil), o.switches...)
}

// Authenticate makes sure a valid session is cached.
func (o *Orchestrator) Authenticate(ctx context.Context) error {
	s, err := o.ensureSession(ctx)
	if err != nil {
		err = tagContext(ctx, err)
		o.log.Error("authentication failed", "op", opAuthenticate, "error", err)
		return &Error{Op: opAuthenticate, Kind: ErrAuthenticationFailed, Err: err}
	}
	o.log.Info("authenticated, session stored", "expires", s.ExpiresAt().Format(time.RFC3339))
	return nil
}

// ListSwitches returns the switches of the first hub named hubName, in vendor order.
// A hub that does not exist yields an empty list, not an error.
func (o *Orchestrator) ListSwitches(ctx context.Context, hubName string) ([]Switch, error) {
	hubs, s, err := withSession(ctx, o, opListSwitches, func(ctx context.Context, s *session.Session) ([]homewizard.Hub, error) {
		return retry.Do(ctx, o.rt, opListSwitches, func(ctx context.Context) ([]homewizard.Hub, error) {
			hubs, err := o.api.ListHubs(ctx, s.Token)
			if homewizard.IsUnauthorized(err) {
				return nil, retry.Permanent(err)
			}
			return hubs, err
		})
	})
	if err != nil {
		o.mu.Lock()
		if o.session == s {
			o.session = nil
		}
		o.switches = nil
		o.mu.Unlock()

		o.log.Error("hub and switch ids could not be fetched", "op", opListSwitches, "hub", hubName, "error", err)
		return nil, &Error{Op: opListSwitches, Target: hubName, Kind: ErrSwitchDiscoveryFailed, Err: err}
	}

	switches := hubSwitches(hubs, hubName)
	if len(switches) == 0 {
		o.log.Warn("no switches found", "hub", hubName)
	}
	for _, sw := range switches {
		o.log.Debug("adding switch", "name", sw.Name, "id", sw.ID, "hub_id", sw.HubID)
	}

	o.mu.Lock()
	o.switches = switches
	o.mu.Unlock()

	o.log.Info("switches retrieved", "hub", hubName, "count", len(switches))
	return append(make([]Switch, 0, len(switches)), switches...), nil
}

// SetSwitchState turns a switch on or off. Once the vendor confirmed the change
// with a Success status it returns the requested state. A non-Success status is
// not retried.
func (o *Orchestrator) SetSwitchState(ctx context.Context, switchID, hubID string, on bool) (bool, error) {
	res, s, err := withSession(ctx, o, opSetState, func(ctx context.Context, s *session.Session) (*homewizard.ActionResult, error) {
		return retry.Do(ctx, o.rt, opSetState, func(ctx context.Context) (*homewizard.ActionResult, error) {
			o.log.Debug("trying to set switch state", "switch", switchID, "hub", hubID, "action", homewizard.Action(on))
			r, err := o.api.SetState(ctx, s.Token, hubID, switchID, on)
			if homewizard.IsUnauthorized(err) {
				return nil, retry.Permanent(err)
			}
			return r, err
		})
	})
	if err == nil && !res.OK() {
		status := ""
		if res != nil {
			status = res.Status
		}
		err = fmt.Errorf("%w: status %q", ErrSwitchStateRejected, status)
	}
	if err != nil {
		o.mu.Lock()
		if o.session == s {
			o.session = nil
		}
		o.mu.Unlock()

		o.log.Error("switch state could not be set", "op", opSetState, "switch", switchID, "hub", hubID, "error", err)
		return false, &Error{Op: opSetState, Target: switchID, Kind: ErrSwitchStateFailed, Err: err}
	}

	o.log.Info("switch state set", "switch", switchID, "hub", hubID, "action", homewizard.Action(on))
	return on, nil
}

// withSession runs call with a valid session. When the vendor refuses the token,
// the session is dropped and call is repeated once after a fresh login.
// The session used last is returned so failures can invalidate exactly that one.
func withSession[T any](ctx context.Context, o *Orchestrator, op string, call func(context.Context, *session.Session) (T, error)) (T, *session.Session, error) {
	var zero T

	s, err := o.ensureSession(ctx)
	if err != nil {
		return zero, nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, tagContext(ctx, err))
	}

	v, err := call(ctx, s)
	if err != nil && homewizard.IsUnauthorized(err) {
		o.log.Warn("session token refused, re-authenticating", "op", op)
		o.mu.Lock()
		if o.session == s {
			o.session = nil
		}
		o.mu.Unlock()

		s, err = o.ensureSession(ctx)
		if err != nil {
			return zero, nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, tagContext(ctx, err))
		}
		v, err = call(ctx, s)
	}
	if err != nil {
		return zero, s, tagContext(ctx, err)
	}
	return v, s, nil
}

// ensureSession returns the cached session while it is valid and logs in otherwise.
func (o *Orchestrator) ensureSession(ctx context.Context) (*session.Session, error) {
	o.mu.Lock()
	s := o.session
	o.mu.Unlock()

	if session.IsValid(s, o.now()) {
		return s, nil
	}
	if s == nil {
		o.log.Warn("no previous session found, a new session must be created")
	} else {
		o.log.Warn("session expired, a new session must be created", "age", s.Age(o.now()).Round(time.Second))
	}

	retook := false
	for {
		ch := o.logins.DoChan("login", func() (any, error) {
			o.mu.Lock()
			cur := o.session
			o.mu.Unlock()
			if session.IsValid(cur, o.now()) {
				return cur, nil
			}

			fresh, err := o.login(ctx)

			o.mu.Lock()
			o.session = fresh
			o.mu.Unlock()
			return fresh, err
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r := <-ch:
			if r.Err == nil {
				return r.Val.(*session.Session), nil
			}
			// The shared login ran under another caller's context and ended with it.
			// A caller whose own context is still live logs in once more itself.
			if !retook && ctx.Err() == nil && isContextError(r.Err) {
				retook = true
				o.log.Debug("shared login ended with its caller, logging in again")
				continue
			}
			return nil, r.Err
		}
	}
}

func isContextError(err error) bool {
	if errors.Is(err, retry.ErrExhausted) {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// login performs the retried login call. It returns nil and an error on failure.
func (o *Orchestrator) login(ctx context.Context) (*session.Session, error) {
	if o.creds.Username == "" || o.creds.Password == "" {
		return nil, ErrInvalidCredentialsInput
	}

	token, err := retry.Do(ctx, o.rt, opAuthenticate, func(ctx context.Context) (string, error) {
		o.log.Debug("trying to get an authenticated session")
		tok, err := o.api.Login(ctx, o.creds.Username, o.creds.Password)
		switch {
		case err == nil:
			return tok, nil
		case homewizard.IsRejected(err):
			return "", retry.Permanent(fmt.Errorf("%w: %w", ErrAuthenticationRejected, err))
		case errors.Is(err, homewizard.ErrMissingCredentials):
			return "", retry.Permanent(fmt.Errorf("%w: %w", ErrInvalidCredentialsInput, err))
		}
		return "", err
	})
	if err != nil {
		return nil, err
	}

	return session.New(token, o.now()), nil
}

// hubSwitches flattens the devices of the first hub named name.
func hubSwitches(hubs []homewizard.Hub, name string) []Switch {
	switches := []Switch{}
	for _, hub := range hubs {
		if hub.Name != name {
			continue
		}
		for _, d := range hub.Devices {
			switches = append(switches, Switch{ID: d.ID, Name: d.Name, HubID: hub.ID})
		}
		break
	}
	return switches
}

// Resolve finds a switch by id, falling back to an exact name match.
func Resolve(switches []Switch, ref string) (Switch, bool) {
	for _, sw := range switches {
		if sw.ID == ref {
			return sw, true
		}
	}
	for _, sw := range switches {
		if sw.Name == ref {
			return sw, true
		}
	}
	return Switch{}, false
}
