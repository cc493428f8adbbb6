package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ErrBadCallback means the OAuth deep-link URL was malformed or missing
// its tokens. The top-level handler surfaces it as a user-visible
// failure.
var ErrBadCallback = errors.New("malformed auth callback")

// CallbackTokens are the session tokens carried in the OAuth redirect
// fragment.
type CallbackTokens struct {
	AccessToken  string
	RefreshToken string
}

// ParseCallbackFragment extracts the tokens from a deep-link URL of the
// form scheme://auth/callback#access_token=...&refresh_token=...: the
// fragment is &-separated key=value pairs with percent-encoded values.
func ParseCallbackFragment(rawURL string) (*CallbackTokens, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCallback, err)
	}
	if u.Fragment == "" {
		return nil, fmt.Errorf("%w: no fragment in %q", ErrBadCallback, rawURL)
	}
	// EscapedFragment keeps the raw pairs so percent-decoding happens
	// per value, not across the separators.
	return parseFragmentPairs(u.EscapedFragment())
}

func parseFragmentPairs(fragment string) (*CallbackTokens, error) {
	tokens := &CallbackTokens{}
	for _, pair := range strings.Split(fragment, "&") {
		key, rawValue, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("%w: pair %q has no value", ErrBadCallback, pair)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("%w: pair %q: %v", ErrBadCallback, pair, err)
		}
		switch key {
		case "access_token":
			tokens.AccessToken = value
		case "refresh_token":
			tokens.RefreshToken = value
		}
	}

	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return nil, fmt.Errorf("%w: access_token or refresh_token missing", ErrBadCallback)
	}
	return tokens, nil
}

// callbackPage forwards the URL fragment to the listener. Browsers do
// not send fragments to servers, so the landing page re-posts it.
const callbackPage = `<!doctype html>
<html><body>Completing sign-in...
<script>
fetch('/auth/callback', {
  method: 'POST',
  headers: {'Content-Type': 'application/x-www-form-urlencoded'},
  body: 'fragment=' + encodeURIComponent(window.location.hash.slice(1))
}).then(function () { document.body.textContent = 'Signed in. You can close this window.'; });
</script>
</body></html>`

// CallbackListener is the loopback HTTP endpoint for desktop OAuth
// flows: the provider redirects the browser here, the landing page
// re-posts the fragment, and the tokens come out of Wait.
type CallbackListener struct {
	addr   string
	logger zerolog.Logger
	srv    *http.Server
	tokens chan CallbackTokens
}

// NewCallbackListener creates a listener for the given loopback
// address.
func NewCallbackListener(addr string, logger zerolog.Logger) *CallbackListener {
	return &CallbackListener{
		addr:   addr,
		logger: logger,
		tokens: make(chan CallbackTokens, 1),
	}
}

// Start binds the loopback address and begins serving. It returns once
// the listener is accepting connections.
func (l *CallbackListener) Start() error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Get("/auth/callback", l.landing)
	r.Post("/auth/callback", l.receive)

	l.srv = &http.Server{
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		if err := l.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			l.logger.Error().Err(err).Msg("callback listener failed")
		}
	}()

	l.logger.Info().Str("addr", l.addr).Msg("callback listener started")
	return nil
}

// Wait blocks until tokens arrive or the context ends.
func (l *CallbackListener) Wait(ctx context.Context) (*CallbackTokens, error) {
	select {
	case tokens := <-l.tokens:
		return &tokens, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close shuts the listener down.
func (l *CallbackListener) Close(ctx context.Context) error {
	if l.srv == nil {
		return nil
	}
	return l.srv.Shutdown(ctx)
}

func (l *CallbackListener) landing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(callbackPage))
}

func (l *CallbackListener) receive(w http.ResponseWriter, r *http.Request) {
	tokens, err := parseFragmentPairs(r.FormValue("fragment"))
	if err != nil {
		l.logger.Warn().Err(err).Msg("rejected oauth callback")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "malformed callback fragment"})
		return
	}

	select {
	case l.tokens <- *tokens:
	default:
		// A flow already completed; drop the duplicate.
	}
	w.WriteHeader(http.StatusOK)
}
