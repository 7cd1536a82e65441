package server

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"candela-hq/guardian/pkg/config"
)

type clientKey struct{}

// withClient stores the authenticated client name on ctx.
func withClient(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, clientKey{}, name)
}

// ClientFromContext returns the name of the API key that authenticated the
// request, or "" when auth is disabled.
func ClientFromContext(ctx context.Context) string {
	name, _ := ctx.Value(clientKey{}).(string)
	return name
}

// clientID identifies the caller for rate limiting: the API key name when
// authenticated, else the remote host.
func clientID(r *http.Request) string {
	if name := ClientFromContext(r.Context()); name != "" {
		return "key:" + name
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "addr:" + r.RemoteAddr
	}
	return "addr:" + host
}

// apiKeyAuth checks the configured header against a fixed key set.
type apiKeyAuth struct {
	header string
	scheme string
	keys   []config.APIKey
	logger *slog.Logger
}

func newAPIKeyAuth(cfg config.AuthConfig, logger *slog.Logger) *apiKeyAuth {
	keys := make([]config.APIKey, 0, len(cfg.Keys))
	for _, k := range cfg.Keys {
		if !k.Disabled {
			keys = append(keys, k)
		}
	}
	return &apiKeyAuth{
		header: cfg.Header,
		scheme: cfg.Scheme,
		keys:   keys,
		logger: logger,
	}
}

// extract returns the presented key with the scheme prefix removed.
func (a *apiKeyAuth) extract(r *http.Request) string {
	value := strings.TrimSpace(r.Header.Get(a.header))
	if a.scheme != "" {
		prefix := a.scheme + " "
		if len(value) > len(prefix) && strings.EqualFold(value[:len(prefix)], prefix) {
			value = strings.TrimSpace(value[len(prefix):])
		}
	}
	return value
}

// authenticate returns the name of the matching key. Every key is compared
// so the time taken does not depend on which one matched.
func (a *apiKeyAuth) authenticate(presented string) (string, bool) {
	if presented == "" {
		return "", false
	}
	var name string
	found := 0
	for _, k := range a.keys {
		if subtle.ConstantTimeCompare([]byte(presented), []byte(k.Key)) == 1 {
			name = k.Name
			found = 1
		}
	}
	return name, found == 1
}

func (a *apiKeyAuth) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := a.extract(r)
		name, ok := a.authenticate(presented)
		if !ok {
			reason := "invalid api key"
			if presented == "" {
				reason = "missing api key"
			}
			a.logger.WarnContext(r.Context(), "request rejected",
				"reason", reason,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			if a.scheme != "" {
				w.Header().Set("WWW-Authenticate", a.scheme)
			}
			writeError(w, http.StatusUnauthorized, errUnauthorized, reason)
			return
		}
		next.ServeHTTP(w, r.WithContext(withClient(r.Context(), name)))
	})
}
