package http

import (
	"context"
	"net/http"
	"sync"
)

type trailKey struct{}

// redirectTrail remembers the last redirect response seen while a client
// followed a chain, so a chain whose next hop fails still counts as an
// answer from the host.
type redirectTrail struct {
	mu         sync.Mutex
	lastStatus int
	hops       int
}

func withRedirectTrail(ctx context.Context) (context.Context, *redirectTrail) {
	t := &redirectTrail{}
	return context.WithValue(ctx, trailKey{}, t), t
}

func (t *redirectTrail) record(status int) {
	t.mu.Lock()
	t.lastStatus = status
	t.hops++
	t.mu.Unlock()
}

func (t *redirectTrail) status() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastStatus
}

// checkRedirect follows up to maxRedirects hops. At the limit the client
// returns the last response unfollowed.
func checkRedirect(maxRedirects int) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if t, ok := req.Context().Value(trailKey{}).(*redirectTrail); ok && req.Response != nil {
			t.record(req.Response.StatusCode)
		}
		if len(via) > maxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func (t *redirectTrail) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hops
}
