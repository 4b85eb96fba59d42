package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures Cross-Origin Resource Sharing for the GraphQL
// endpoint. An origin of "*" allows any origin; "https://*.example.com"
// allows any subdomain of example.com over https.
type CORSConfig struct {
	Enabled          bool
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int
}

type corsPolicy struct {
	any      bool
	exact    map[string]bool
	suffixes []originSuffix

	methods     string
	headers     string
	expose      string
	maxAge      string
	credentials bool
}

// originSuffix matches scheme://<anything>.domain.
type originSuffix struct {
	scheme string
	domain string
}

func newCORSPolicy(cfg CORSConfig) *corsPolicy {
	p := &corsPolicy{
		exact:       map[string]bool{},
		methods:     strings.Join(cfg.AllowedMethods, ", "),
		headers:     strings.Join(cfg.AllowedHeaders, ", "),
		expose:      strings.Join(cfg.ExposeHeaders, ", "),
		credentials: cfg.AllowCredentials,
	}
	if cfg.MaxAge > 0 {
		p.maxAge = strconv.Itoa(cfg.MaxAge)
	}
	for _, origin := range cfg.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		switch {
		case origin == "":
		case origin == "*":
			p.any = true
		case strings.Contains(origin, "://*."):
			scheme, host, _ := strings.Cut(origin, "://*.")
			p.suffixes = append(p.suffixes, originSuffix{scheme: scheme, domain: "." + host})
		default:
			p.exact[origin] = true
		}
	}
	return p
}

func (p *corsPolicy) allows(origin string) bool {
	if p.any || p.exact[origin] {
		return true
	}
	scheme, host, ok := strings.Cut(origin, "://")
	if !ok {
		return false
	}
	for _, s := range p.suffixes {
		if s.scheme == scheme && strings.HasSuffix(host, s.domain) && len(host) > len(s.domain) {
			return true
		}
	}
	return false
}

// writeOrigin sets the response headers for an allowed origin. A wildcard
// policy answers "*" and never allows credentials.
func (p *corsPolicy) writeOrigin(h http.Header, origin string) {
	if p.any {
		h.Set("Access-Control-Allow-Origin", "*")
	} else {
		h.Set("Access-Control-Allow-Origin", origin)
		h.Add("Vary", "Origin")
		if p.credentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
	}
	if p.expose != "" {
		h.Set("Access-Control-Expose-Headers", p.expose)
	}
}

func (p *corsPolicy) writePreflight(h http.Header) {
	for name, value := range map[string]string{
		"Access-Control-Allow-Methods": p.methods,
		"Access-Control-Allow-Headers": p.headers,
		"Access-Control-Max-Age":       p.maxAge,
	} {
		if value != "" {
			h.Set(name, value)
		}
	}
}

// CORSMiddleware adds CORS headers and answers preflight requests without
// reaching next. Preflights from disallowed origins get 204 with no CORS
// headers, which browsers treat as a rejection.
func CORSMiddleware(cfg CORSConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	policy := newCORSPolicy(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			allowed := policy.allows(origin)
			if allowed {
				policy.writeOrigin(w.Header(), origin)
			}
			if r.Method != http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			if allowed {
				policy.writePreflight(w.Header())
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
