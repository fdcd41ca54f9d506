package httpapi

import (
	"crypto/subtle"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// requestID stamps every request with a correlation ID, reusing one
// supplied by an upstream proxy via X-Request-ID when present, so the
// gateway's own logs can be joined with a caller's. The ID is echoed
// back on the response and stored in the request context for handlers
// to log.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), id)))
	})
}

// clientIP extracts the caller's address, preferring X-Forwarded-For (the
// first hop) over the raw connection address so the gateway behaves
// correctly behind a reverse proxy.
func clientIP(r *http.Request) (netip.Addr, bool) {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if addr, err := netip.ParseAddr(first); err == nil {
			return addr, true
		}
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		if addr, err := netip.ParseAddr(strings.TrimSpace(real)); err == nil {
			return addr, true
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr, true
}

func ipAllowed(networks []netip.Prefix, addr netip.Addr) bool {
	if addr.IsLoopback() {
		return true
	}
	for _, n := range networks {
		if n.Contains(addr) {
			return true
		}
	}
	return false
}

// ipFilter denies any request whose client address does not fall within
// the configured allow-list (loopback is always permitted), matching the
// always-on network perimeter check.
func (s *Server) ipFilter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr, ok := clientIP(r)
		if !ok {
			s.Logger.Warn("rejecting request: could not determine client IP", "remote_addr", r.RemoteAddr)
			writeJSON(w, http.StatusForbidden, map[string]string{
				"error": "unauthorized", "message": "could not determine client IP",
			})
			return
		}
		if !ipAllowed(s.AllowedNetworks, addr) {
			s.Logger.Warn("rejecting request: IP not in allow-list", "ip", addr)
			writeJSON(w, http.StatusForbidden, map[string]string{
				"error": "unauthorized", "message": "access denied for IP address: " + addr.String(),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// adminAuth gates privileged (state-mutating) endpoints behind a bearer
// token, in addition to the IP allow-list: the token must be configured,
// the caller's IP must be in the admin allow-list, and the bearer token
// must match via constant-time comparison.
func (s *Server) adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AdminToken == "" {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "unauthorized", "message": "admin authentication is not configured",
			})
			return
		}

		addr, ok := clientIP(r)
		if !ok || !ipAllowed(s.AllowedAdminIPs, addr) {
			s.Logger.Warn("rejecting admin request: IP not in admin allow-list", "remote_addr", r.RemoteAddr)
			writeJSON(w, http.StatusForbidden, map[string]string{
				"error": "unauthorized", "message": "admin access denied for this IP",
			})
			return
		}

		auth := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(auth, "Bearer ")
		if !found || !constantTimeEqual(token, s.AdminToken) {
			s.Logger.Warn("rejecting admin request: invalid or missing bearer token")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "unauthorized", "message": "invalid admin token",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
