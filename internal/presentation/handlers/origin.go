package handlers

import (
	"net/http"
	"net/url"
	"strings"
)

// OriginPolicy decides which browser origins may call the API and open the
// quote stream. Requests without an Origin header and same-origin requests
// are always allowed; "*" allows every origin.
type OriginPolicy struct {
	any     bool
	allowed map[string]struct{}
}

func NewOriginPolicy(origins []string) OriginPolicy {
	p := OriginPolicy{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = normalizeOrigin(o)
		switch o {
		case "":
		case "*":
			p.any = true
		default:
			p.allowed[o] = struct{}{}
		}
	}
	return p
}

// Allowed reports whether r may proceed
func (p OriginPolicy) Allowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || p.any {
		return true
	}
	if _, ok := p.allowed[normalizeOrigin(origin)]; ok {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

func normalizeOrigin(o string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
}

func corsMiddleware(origins OriginPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := origins.Allowed(r)

			if origin != "" && allowed {
				if origins.any {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			}

			if r.Method == http.MethodOptions {
				if !allowed {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
