// Package session ties sign-in and sign-out to the client state: the
// identity sync, push registration, the location push job and the shared
// caches.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/onnwee/askaround/internal/model"
)

// ErrNotSignedIn is returned by SignOut without a session.
var ErrNotSignedIn = errors.New("not signed in")

// Backend is the account surface of the API. *api.Client implements it.
type Backend interface {
	SyncIdentity(ctx context.Context, req model.SyncIdentityRequest) (model.SyncIdentityResult, error)
	Me(ctx context.Context) (model.User, error)
	RegisterPushToken(ctx context.Context, req model.PushTokenRequest) error
	UnregisterPushToken(ctx context.Context, req model.PushTokenRequest) error
}

// Job is a background task owned by the session. *jobs.Job implements it.
type Job interface {
	Start(ctx context.Context) error
	Stop()
}

// Clearer drops cached state. cache.Cache and query.Engine implement it.
type Clearer interface {
	Clear()
}

// Invalidator drops a cached session token. auth.CachingSource implements
// it.
type Invalidator interface {
	Invalidate()
}

// Options configures a Session.
type Options struct {
	// Profile is sent to POST /auth/sync-clerk.
	Profile model.SyncIdentityRequest
	// PushToken is registered on sign-in when its token is set.
	PushToken model.PushTokenRequest
	// Jobs are started on sign-in and stopped first on sign-out.
	Jobs []Job
	// State is cleared on sign-out.
	State []Clearer
	// Tokens, when set, is invalidated on sign-out.
	Tokens Invalidator
	Logger *slog.Logger
}

// Session is the signed-in state. Safe for concurrent use.
type Session struct {
	backend Backend
	opts    Options
	logger  *slog.Logger

	mu       sync.Mutex
	user     model.User
	signedIn bool
}

// New creates a signed-out session.
func New(b Backend, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{backend: b, opts: opts, logger: logger}
}

// SignIn syncs the identity, loads the profile, registers the push token
// and starts the session jobs. jobCtx scopes the jobs and should outlive
// the call. A failed push registration is logged and does not fail sign-in.
func (s *Session) SignIn(ctx, jobCtx context.Context) (model.User, error) {
	synced, err := s.backend.SyncIdentity(ctx, s.opts.Profile)
	if err != nil {
		return model.User{}, fmt.Errorf("sync identity: %w", err)
	}
	user, err := s.backend.Me(ctx)
	if err != nil {
		return model.User{}, fmt.Errorf("load profile: %w", err)
	}

	if s.opts.PushToken.Token != "" {
		if err := s.backend.RegisterPushToken(ctx, s.opts.PushToken); err != nil {
			s.logger.Warn("push token registration failed", slog.String("error", err.Error()))
		}
	}

	s.mu.Lock()
	already := s.signedIn
	s.user = user
	s.signedIn = true
	s.mu.Unlock()

	if !already {
		for _, j := range s.opts.Jobs {
			if err := j.Start(jobCtx); err != nil {
				return user, fmt.Errorf("start session job: %w", err)
			}
		}
	}
	s.logger.Info("signed in",
		slog.String("user_id", user.ID),
		slog.Bool("created", synced.Created))
	return user, nil
}

// SignOut stops the session jobs, unregisters the push token and clears
// every cache and query state. Local state is cleared even when the push
// unregistration fails; that error is returned.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	if !s.signedIn {
		s.mu.Unlock()
		return ErrNotSignedIn
	}
	s.signedIn = false
	s.user = model.User{}
	s.mu.Unlock()

	for _, j := range s.opts.Jobs {
		j.Stop()
	}

	var unregErr error
	if s.opts.PushToken.Token != "" {
		if err := s.backend.UnregisterPushToken(ctx, s.opts.PushToken); err != nil {
			unregErr = fmt.Errorf("unregister push token: %w", err)
			s.logger.Warn("push token unregistration failed", slog.String("error", err.Error()))
		}
	}

	for _, c := range s.opts.State {
		c.Clear()
	}
	if s.opts.Tokens != nil {
		s.opts.Tokens.Invalidate()
	}
	s.logger.Info("signed out")
	return unregErr
}

// User returns the signed-in user.
func (s *Session) User() (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user, s.signedIn
}
