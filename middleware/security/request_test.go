package security

import (
	"net/http"
	"testing"
)

func TestClientIP_PrefersFirstForwardedFor(t *testing.T) {
	r := Request{Header: http.Header{}, RemoteAddr: "10.0.0.9:5555"}
	r.Header.Set("X-Forwarded-For", " 1.2.3.4 , 5.6.7.8")
	r.Header.Set("X-Real-IP", "9.9.9.9")

	if got := ClientIP(r); got != "1.2.3.4" {
		t.Fatalf("expected first XFF ip, got %q", got)
	}
}

func TestClientIP_FallsBackToRealIP(t *testing.T) {
	r := Request{Header: http.Header{}, RemoteAddr: "10.0.0.9:5555"}
	r.Header.Set("X-Real-IP", "9.9.9.9")

	if got := ClientIP(r); got != "9.9.9.9" {
		t.Fatalf("expected X-Real-IP, got %q", got)
	}
}

func TestClientIP_FallsBackToRemoteAddrHost(t *testing.T) {
	r := Request{Header: http.Header{}, RemoteAddr: "10.0.0.9:5555"}

	if got := ClientIP(r); got != "10.0.0.9" {
		t.Fatalf("expected remote host, got %q", got)
	}
}

func TestClientIP_Unknown(t *testing.T) {
	if got := ClientIP(Request{Header: http.Header{}}); got != "unknown" {
		t.Fatalf("expected unknown, got %q", got)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		tok string
		ok  bool
	}{
		"Bearer abc.def":  {"abc.def", true},
		"Bearer":          {"", false},
		"Bearer    ":      {"", false},
		"bearer abc":      {"", false},
		"Token abc":       {"", false},
		"":                {"", false},
		"Bearer abc  xyz": {"abc", true},
	}
	for h, want := range cases {
		tok, ok := bearerToken(h)
		if tok != want.tok || ok != want.ok {
			t.Fatalf("bearerToken(%q) = %q,%v; want %q,%v", h, tok, ok, want.tok, want.ok)
		}
	}
}

func TestRetrySeconds_RoundsUpWithFloor(t *testing.T) {
	if got := retrySeconds(0); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := retrySeconds(1500e6); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}
