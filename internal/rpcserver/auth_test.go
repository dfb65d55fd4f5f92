package rpcserver

import "testing"

func TestValidHostAcceptsLoopbackAliasesWithOrWithoutPort(t *testing.T) {
	cases := []string{"127.0.0.1", "127.0.0.1:9091", "localhost", "localhost:9091", "[::1]:9091", "::1"}
	for _, host := range cases {
		if !validHost(host) {
			t.Errorf("validHost(%q) = false, want true", host)
		}
	}
}

func TestValidHostRejectsNonLoopback(t *testing.T) {
	cases := []string{"evil.example.com", "192.168.1.5", "192.168.1.5:9091", ""}
	for _, host := range cases {
		if validHost(host) {
			t.Errorf("validHost(%q) = true, want false", host)
		}
	}
}

func TestValidOriginAllowsAbsentAppSchemeAndFile(t *testing.T) {
	trusted := map[string]bool{}
	for _, origin := range []string{"", "tt-app://main", "file://"} {
		if !validOrigin(origin, trusted) {
			t.Errorf("validOrigin(%q) = false, want true", origin)
		}
	}
}

func TestValidOriginAllowsConfiguredTrustedOrigin(t *testing.T) {
	trusted := map[string]bool{"http://127.0.0.1:5173": true}
	if !validOrigin("http://127.0.0.1:5173", trusted) {
		t.Error("expected configured trusted origin to pass")
	}
}

func TestValidOriginRejectsUnrecognizedOrigin(t *testing.T) {
	trusted := map[string]bool{}
	if validOrigin("https://attacker.example", trusted) {
		t.Error("expected unrecognized origin to be rejected")
	}
}

func TestTokensEqualRejectsMismatchedLength(t *testing.T) {
	if tokensEqual("short", "muchlongertoken") {
		t.Error("expected length mismatch to fail")
	}
}

func TestTokensEqualAcceptsIdenticalTokens(t *testing.T) {
	if !tokensEqual("abc123", "abc123") {
		t.Error("expected identical tokens to match")
	}
}

func TestTokensEqualRejectsDifferentTokensOfEqualLength(t *testing.T) {
	if tokensEqual("abc123", "abc124") {
		t.Error("expected differing tokens to fail")
	}
}
