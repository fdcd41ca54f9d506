package httpapi

import (
	"net/http"
	"net/netip"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
		ok         bool
	}{
		{
			name:       "forwarded-for preferred",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"},
			remoteAddr: "10.0.0.1:12345",
			want:       "203.0.113.5",
			ok:         true,
		},
		{
			name:       "real-ip fallback",
			headers:    map[string]string{"X-Real-IP": "203.0.113.6"},
			remoteAddr: "10.0.0.1:12345",
			want:       "203.0.113.6",
			ok:         true,
		},
		{
			name:       "remote addr fallback",
			remoteAddr: "198.51.100.7:54321",
			want:       "198.51.100.7",
			ok:         true,
		},
	}

	for _, tc := range tests {
		c := qt.New(t)
		r, err := http.NewRequest(http.MethodGet, "/", nil)
		c.Assert(err, qt.IsNil)
		r.RemoteAddr = tc.remoteAddr
		for k, v := range tc.headers {
			r.Header.Set(k, v)
		}

		addr, ok := clientIP(r)
		c.Assert(ok, qt.Equals, tc.ok)
		c.Assert(addr.String(), qt.Equals, tc.want)
	}
}

func TestIPAllowed(t *testing.T) {
	c := qt.New(t)
	networks := []netip.Prefix{netip.MustParsePrefix("203.0.113.0/24")}

	c.Assert(ipAllowed(networks, netip.MustParseAddr("127.0.0.1")), qt.IsTrue)
	c.Assert(ipAllowed(networks, netip.MustParseAddr("203.0.113.42")), qt.IsTrue)
	c.Assert(ipAllowed(networks, netip.MustParseAddr("198.51.100.1")), qt.IsFalse)
}

func TestConstantTimeEqual(t *testing.T) {
	c := qt.New(t)
	c.Assert(constantTimeEqual("secret", "secret"), qt.IsTrue)
	c.Assert(constantTimeEqual("secret", "other"), qt.IsFalse)
	c.Assert(constantTimeEqual("short", "longer-token"), qt.IsFalse)
}
