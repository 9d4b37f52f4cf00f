// Package session maps visitor cookies to their page controllers.
package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/harrylevesque/bloodscan/internal/auth"
	"github.com/harrylevesque/bloodscan/internal/finger"
)

const viewKey = "view"

// View is the controller pair belonging to one visitor.
type View struct {
	ID     string
	Auth   *auth.Controller
	Finger *finger.Controller

	lastSeen time.Time
}

// Factory builds the controllers for a new visitor.
type Factory func(id string) (*auth.Controller, *finger.Controller)

// Registry owns every live View. Views are created on first visit and
// released after IdleTimeout without requests.
type Registry struct {
	store       sessions.Store
	cookieName  string
	idleTimeout time.Duration
	factory     Factory
	logger      log.FieldLogger
	now         func() time.Time

	mu    sync.Mutex
	views map[string]*View
}

type Options struct {
	Store       sessions.Store
	CookieName  string
	IdleTimeout time.Duration
	Factory     Factory
	Logger      log.FieldLogger
}

func NewRegistry(opts Options) *Registry {
	if opts.CookieName == "" {
		opts.CookieName = "bloodscan"
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	return &Registry{
		store:       opts.Store,
		cookieName:  opts.CookieName,
		idleTimeout: opts.IdleTimeout,
		factory:     opts.Factory,
		logger:      opts.Logger,
		now:         time.Now,
		views:       make(map[string]*View),
	}
}

// Acquire returns the visitor's View, creating it and setting the cookie
// when there is none. A cookie that fails to decode is replaced.
func (reg *Registry) Acquire(w http.ResponseWriter, r *http.Request) (*View, error) {
	sess, err := reg.store.Get(r, reg.cookieName)
	if err != nil {
		// Stale key or tampered cookie; Get still hands back a fresh session.
		reg.logger.WithError(err).Debug("discarding unreadable session cookie")
	}
	if sess == nil {
		return nil, errors.Errorf("session store returned no session: %v", err)
	}

	id, _ := sess.Values[viewKey].(string)

	reg.mu.Lock()
	view, ok := reg.views[id]
	if !ok {
		id = uuid.NewString()
		a, f := reg.factory(id)
		view = &View{ID: id, Auth: a, Finger: f}
		reg.views[id] = view
		reg.logger.WithField("view", id).Debug("view mounted")
	}
	view.lastSeen = reg.now()
	reg.mu.Unlock()

	if !ok {
		sess.Values[viewKey] = id
		if err := sess.Save(r, w); err != nil {
			return nil, errors.Wrap(err, "save session")
		}
	}
	return view, nil
}

// Release drops a view immediately.
func (reg *Registry) Release(id string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.views[id]; ok {
		delete(reg.views, id)
		reg.logger.WithField("view", id).Debug("view released")
	}
}

// Sweep releases views idle for longer than the idle timeout and returns
// how many went.
func (reg *Registry) Sweep() int {
	if reg.idleTimeout <= 0 {
		return 0
	}
	cutoff := reg.now().Add(-reg.idleTimeout)

	reg.mu.Lock()
	defer reg.mu.Unlock()
	n := 0
	for id, v := range reg.views {
		if v.lastSeen.Before(cutoff) {
			delete(reg.views, id)
			n++
		}
	}
	if n > 0 {
		reg.logger.WithFields(log.Fields{"released": n, "live": len(reg.views)}).Info("idle views released")
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (reg *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			reg.Sweep()
		}
	}
}

// Len is the number of live views.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.views)
}

// NewCookieStore builds the cookie store for the view id cookie.
func NewCookieStore(hashKey, blockKey []byte, maxAge int, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(hashKey, blockKey)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	store.MaxAge(maxAge)
	return store
}
