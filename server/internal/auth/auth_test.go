package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func do(h http.Handler, method string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/vitals", nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestKeyChecker_PassThrough_NoneMode(t *testing.T) {
	h := NewKeyChecker("none", "x-api-key", "secret").Wrap(okHandler)
	if rr := do(h, http.MethodPost, nil); rr.Code != http.StatusOK {
		t.Errorf("none mode: got %d, want 200", rr.Code)
	}
}

func TestKeyChecker_PassThrough_EmptyKey(t *testing.T) {
	h := NewKeyChecker("apikey", "x-api-key", "").Wrap(okHandler)
	if rr := do(h, http.MethodPost, nil); rr.Code != http.StatusOK {
		t.Errorf("empty key: got %d, want 200", rr.Code)
	}
}

func TestKeyChecker_ValidKey(t *testing.T) {
	h := NewKeyChecker("apikey", "x-api-key", "secret").Wrap(okHandler)
	if rr := do(h, http.MethodPost, map[string]string{"X-Api-Key": "secret"}); rr.Code != http.StatusOK {
		t.Errorf("valid key: got %d, want 200", rr.Code)
	}
}

func TestKeyChecker_Rejects(t *testing.T) {
	h := NewKeyChecker("apikey", "x-device-key", "secret").Wrap(okHandler)

	cases := map[string]map[string]string{
		"missing":      nil,
		"wrong":        {"x-device-key": "nope"},
		"wrong header": {"x-api-key": "secret"},
	}
	for name, hdr := range cases {
		rr := do(h, http.MethodPost, hdr)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s: got %d, want 401", name, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s: Content-Type %q", name, ct)
		}
	}
}

func TestKeyChecker_Set(t *testing.T) {
	k := NewKeyChecker("none", "x-api-key", "")
	h := k.Wrap(okHandler)
	if rr := do(h, http.MethodPost, nil); rr.Code != http.StatusOK {
		t.Fatalf("before Set: got %d", rr.Code)
	}
	k.Set("apikey", "x-api-key", "rotated")
	if rr := do(h, http.MethodPost, nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("after Set: got %d, want 401", rr.Code)
	}
}

func TestCORS_AllowedOrigin(t *testing.T) {
	h := NewCORS([]string{"http://localhost:3000", "https://vitalops.onrender.com/"}).Wrap(okHandler)

	rr := do(h, http.MethodGet, map[string]string{"Origin": "https://vitalops.onrender.com"})
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://vitalops.onrender.com" {
		t.Errorf("Allow-Origin: got %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials: got %q", got)
	}
	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rr.Code)
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	h := NewCORS([]string{"http://localhost:3000"}).Wrap(okHandler)

	rr := do(h, http.MethodGet, map[string]string{"Origin": "https://evil.example"})
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin for disallowed origin: got %q", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	h := NewCORS([]string{"http://localhost:3000"}).Wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("preflight reached the wrapped handler")
	}))

	rr := do(h, http.MethodOptions, map[string]string{
		"Origin":                         "http://localhost:3000",
		"Access-Control-Request-Method":  "POST",
		"Access-Control-Request-Headers": "content-type",
	})
	if rr.Code != http.StatusNoContent {
		t.Errorf("status: got %d, want 204", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Headers"); got != "content-type" {
		t.Errorf("Allow-Headers: got %q", got)
	}
}

func TestCORS_SetOrigins(t *testing.T) {
	c := NewCORS(nil)
	if c.Allowed("http://localhost:3000") {
		t.Fatal("empty allow-list allowed an origin")
	}
	c.SetOrigins([]string{"http://localhost:3000"})
	if !c.Allowed("http://localhost:3000") {
		t.Error("origin not allowed after SetOrigins")
	}
}
