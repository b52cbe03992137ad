package session

import (
	"context"
	"sync"
)

const (
	FlagKey    = "isAuthenticated"
	flagTrue   = "true"
	LoginRoute = "/login"
	HomeRoute  = "/"
)

type State int

const (
	Checking State = iota
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "checking"
	}
}

// Decision is the outcome of one check. When Redirect is set the caller
// navigates there; Render tells whether the requested page may be shown.
type Decision struct {
	State    State
	Redirect string
	Render   bool
}

// Gate guards page rendering for one browser context. Every check goes back
// to Checking and re-reads the flag; nothing is cached between checks.
type Gate struct {
	store Store
	key   string

	mu    sync.Mutex
	state State
}

// NewGate scopes the flag by prefix (one prefix per browser context).
// An empty prefix uses the bare flag key.
func NewGate(store Store, prefix string) *Gate {
	key := FlagKey
	if prefix != "" {
		key = prefix + ":" + FlagKey
	}
	return &Gate{store: store, key: key, state: Checking}
}

func (g *Gate) Key() string { return g.key }

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Check evaluates route against the stored flag. A store failure counts as
// not authenticated and is returned alongside the decision.
func (g *Gate) Check(ctx context.Context, route string) (Decision, error) {
	g.setState(Checking)

	value, ok, err := g.store.Get(ctx, g.key)
	state := Unauthenticated
	if err == nil && ok && value == flagTrue {
		state = Authenticated
	}
	g.setState(state)

	d := Decision{State: state, Render: true}
	switch {
	case state == Unauthenticated && route != LoginRoute:
		d.Redirect = LoginRoute
		d.Render = false
	case state == Authenticated && route == LoginRoute:
		d.Redirect = HomeRoute
	}
	return d, err
}

func (g *Gate) Login(ctx context.Context) error {
	return g.store.Set(ctx, g.key, flagTrue)
}

func (g *Gate) Logout(ctx context.Context) error {
	return g.store.Clear(ctx, g.key)
}

// Watch re-checks the current route whenever the flag changes and hands each
// decision to fn. It blocks until ctx is done.
func (g *Gate) Watch(ctx context.Context, route func() string, fn func(Decision)) error {
	changes, err := g.store.Subscribe(ctx)
	if err != nil {
		return err
	}
	for change := range changes {
		if change.Key != g.key {
			continue
		}
		d, _ := g.Check(ctx, route())
		fn(d)
	}
	return ctx.Err()
}

func (g *Gate) setState(s State) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
}
