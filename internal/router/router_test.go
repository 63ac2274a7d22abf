package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pet-clinic-backend/internal/adapters/auth/jwtauth"
	"pet-clinic-backend/internal/ports/auth"
	"pet-clinic-backend/internal/router"
)

const testSecret = "router-test-secret-0123456789abcdef"

func newServer(t *testing.T, opts router.Options) *httptest.Server {
	t.Helper()
	h, err := router.NewRouter(opts)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

func TestHTTP_EndToEnd_OwnershipFlow(t *testing.T) {
	ts := newServer(t, router.Options{DevHeaders: true})

	ana := debugAs("user-ana", "USER")
	beto := debugAs("user-beto", "USER")
	recepcion := debugAs("emp-1", "EMPLOYEE")

	// 1) Ana registra su mascota; el dueño es ella aunque mande otro ownerId
	petID := createRecord(t, ts.URL, "/api/pets", ana, map[string]any{
		"ownerId": "user-beto",
		"name":    "Milo",
		"species": "dog",
	})

	// 2) Ana ve su mascota; Beto no
	{
		st, body := doReq(t, ts.URL, "GET", "/api/pets/"+petID, ana, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 owner reads pet, got %d body=%s", st, string(body))
		}
		if owner := dataField(t, body, "ownerId"); owner != "user-ana" {
			t.Fatalf("expected ownerId user-ana, got %q", owner)
		}
	}
	{
		st, body := doReq(t, ts.URL, "GET", "/api/pets/"+petID, beto, nil)
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 for non owner, got %d body=%s", st, string(body))
		}
		if msg := envelopeMessage(t, body); msg != "OWNERSHIP_MISMATCH" {
			t.Fatalf("expected OWNERSHIP_MISMATCH, got %q", msg)
		}
	}

	// 3) Beto no puede agendar un turno para la mascota de Ana
	{
		st, _ := doReq(t, ts.URL, "POST", "/api/appointments", beto, map[string]any{
			"petId":       petID,
			"scheduledAt": time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
		})
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 booking foreign pet, got %d", st)
		}
	}

	// 4) Ana agenda y cancela
	apptID := createRecord(t, ts.URL, "/api/appointments", ana, map[string]any{
		"petId":       petID,
		"scheduledAt": time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
		"status":      "SCHEDULED",
	})
	{
		st, _ := doReq(t, ts.URL, "PATCH", "/api/appointments/"+apptID+"/cancel", beto, nil)
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 cancel by non owner, got %d", st)
		}
	}
	{
		st, body := doReq(t, ts.URL, "PATCH", "/api/appointments/"+apptID+"/cancel", ana, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 cancel by owner, got %d body=%s", st, string(body))
		}
		if status := dataField(t, body, "status"); status != "CANCELLED" {
			t.Fatalf("expected CANCELLED, got %q", status)
		}
	}

	// 5) Staff pasa sin ownership
	{
		st, body := doReq(t, ts.URL, "GET", "/api/appointments/"+apptID, recepcion, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 staff reads appointment, got %d body=%s", st, string(body))
		}
	}

	// 6) Un USER no borra mascotas, ni siquiera propias
	{
		st, _ := doReq(t, ts.URL, "DELETE", "/api/pets/"+petID, ana, nil)
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 delete pet by USER owner, got %d", st)
		}
	}

	// 7) Target inexistente
	{
		st, body := doReq(t, ts.URL, "GET", "/api/pets/does-not-exist", ana, nil)
		if st != http.StatusNotFound {
			t.Fatalf("expected 404 missing pet, got %d body=%s", st, string(body))
		}
	}
}

func TestHTTP_AnonymousAndPublic(t *testing.T) {
	ts := newServer(t, router.Options{DevHeaders: true})

	{
		st, _ := doReq(t, ts.URL, "GET", "/api/pets", nil, nil)
		if st != http.StatusUnauthorized {
			t.Fatalf("expected 401 anonymous list pets, got %d", st)
		}
	}
	{
		st, body := doReq(t, ts.URL, "GET", "/api/services", nil, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 public services, got %d body=%s", st, string(body))
		}
	}
	{
		st, body := doReq(t, ts.URL, "POST", "/api/users", nil, map[string]any{
			"email":    "nuevo@clinic.test",
			"fullName": "Nuevo Cliente",
		})
		if st != http.StatusCreated {
			t.Fatalf("expected 201 public signup, got %d body=%s", st, string(body))
		}
	}
	{
		st, _ := doReq(t, ts.URL, "GET", "/api/invoices", nil, nil)
		if st != http.StatusNotFound {
			t.Fatalf("expected 404 unknown route, got %d", st)
		}
	}
}

func TestHTTP_JWTMode(t *testing.T) {
	svc, err := jwtauth.NewService(jwtauth.Config{Secret: testSecret, Issuer: "router-test"})
	if err != nil {
		t.Fatalf("jwt service: %v", err)
	}
	ts := newServer(t, router.Options{AuthVerifier: svc})

	token, err := svc.Sign(context.Background(), auth.Claims{UserID: "user-ana", Role: "USER"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	bearer := http.Header{"Authorization": []string{"Bearer " + token}}

	petID := createRecord(t, ts.URL, "/api/pets", bearer, map[string]any{"name": "Kira", "species": "cat"})

	{
		st, body := doReq(t, ts.URL, "GET", "/api/pets/"+petID, bearer, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 with bearer, got %d body=%s", st, string(body))
		}
	}

	// en modo jwt los headers de debug no autentican
	{
		st, _ := doReq(t, ts.URL, "GET", "/api/pets/"+petID, debugAs("user-ana", "ADMIN"), nil)
		if st != http.StatusUnauthorized {
			t.Fatalf("expected 401 with debug headers in jwt mode, got %d", st)
		}
	}

	// token inválido degrada a ANONYMOUS
	{
		bad := http.Header{"Authorization": []string{"Bearer " + token + "x"}}
		st, _ := doReq(t, ts.URL, "GET", "/api/pets/"+petID, bad, nil)
		if st != http.StatusUnauthorized {
			t.Fatalf("expected 401 with tampered token, got %d", st)
		}
		st, _ = doReq(t, ts.URL, "GET", "/api/services", bad, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 public route with tampered token, got %d", st)
		}
	}
}

func TestHTTP_JWTMode_RejectInvalidTokens(t *testing.T) {
	svc, err := jwtauth.NewService(jwtauth.Config{Secret: testSecret})
	if err != nil {
		t.Fatalf("jwt service: %v", err)
	}
	ts := newServer(t, router.Options{AuthVerifier: svc, RejectInvalidTokens: true})

	bad := http.Header{"Authorization": []string{"Bearer not-a-jwt"}}
	st, _ := doReq(t, ts.URL, "GET", "/api/services", bad, nil)
	if st != http.StatusUnauthorized {
		t.Fatalf("expected 401 public route with invalid token, got %d", st)
	}

	st, _ = doReq(t, ts.URL, "GET", "/api/services", nil, nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 public route without token, got %d", st)
	}
}

func TestHTTP_RequiresAuthConfiguration(t *testing.T) {
	if _, err := router.NewRouter(router.Options{}); !errors.Is(err, router.ErrNoAuth) {
		t.Fatalf("expected ErrNoAuth without verifier nor dev headers, got %v", err)
	}

	// con verifier, los headers de debug no dan ningún rol
	svc, err := jwtauth.NewService(jwtauth.Config{Secret: testSecret})
	if err != nil {
		t.Fatalf("jwt service: %v", err)
	}
	ts := newServer(t, router.Options{AuthVerifier: svc, DevHeaders: true})

	st, body := doReq(t, ts.URL, "GET", "/api/users", debugAs("attacker", "ADMIN"), nil)
	if st != http.StatusUnauthorized {
		t.Fatalf("expected 401 for debug ADMIN with verifier, got %d body=%s", st, string(body))
	}
}

func TestHTTP_RateLimit(t *testing.T) {
	ts := newServer(t, router.Options{DevHeaders: true, RateLimit: 2, RateWindow: time.Minute})

	for i := 0; i < 2; i++ {
		if st, _ := doReq(t, ts.URL, "GET", "/api/services", nil, nil); st != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, st)
		}
	}
	st, body := doReq(t, ts.URL, "GET", "/api/services", nil, nil)
	if st != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", st)
	}
	if msg := envelopeMessage(t, body); msg == "" {
		t.Fatalf("expected envelope on 429, body=%s", string(body))
	}

	// health no pasa por el límite
	if st, _ := doReq(t, ts.URL, "GET", "/health", nil, nil); st != http.StatusOK {
		t.Fatalf("expected 200 health, got %d", st)
	}
}

func TestHTTP_Operational(t *testing.T) {
	ts := newServer(t, router.Options{DevHeaders: true})

	doReq(t, ts.URL, "GET", "/api/pets", nil, nil)

	st, body := doReq(t, ts.URL, "GET", "/metrics", nil, nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 metrics, got %d", st)
	}
	if !strings.Contains(string(body), "petclinic_http_requests_total") {
		t.Fatalf("metrics missing http counter")
	}

	st, body = doReq(t, ts.URL, "GET", "/swagger/doc.json", nil, nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 swagger doc, got %d", st)
	}
	if !strings.Contains(string(body), "/users/me") {
		t.Fatalf("swagger doc missing /users/me")
	}
}

func TestHTTP_CORSPreflight(t *testing.T) {
	ts := newServer(t, router.Options{DevHeaders: true, CORSOrigins: []string{"https://front.test"}})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/pets", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Origin", "https://front.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization")

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()

	if got := res.Header.Get("Access-Control-Allow-Origin"); got != "https://front.test" {
		t.Fatalf("expected allow origin header, got %q", got)
	}
}

func debugAs(userID, role string) http.Header {
	h := http.Header{}
	h.Set("X-Debug-User-ID", userID)
	h.Set("X-Debug-Role", role)
	return h
}

func createRecord(t *testing.T, baseURL, path string, h http.Header, payload map[string]any) string {
	t.Helper()

	st, body := doReq(t, baseURL, "POST", path, h, payload)
	if st != http.StatusCreated {
		t.Fatalf("expected 201 POST %s, got %d body=%s", path, st, string(body))
	}
	id := dataField(t, body, "id")
	if id == "" {
		t.Fatalf("POST %s: missing id body=%s", path, string(body))
	}
	return id
}

func dataField(t *testing.T, body []byte, field string) string {
	t.Helper()

	var env struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("decode envelope: %v body=%s", err, string(body))
	}
	s, _ := env.Data[field].(string)
	return s
}

func envelopeMessage(t *testing.T, body []byte) string {
	t.Helper()

	var env struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("decode envelope: %v body=%s", err, string(body))
	}
	return env.Message
}

func doReq(t *testing.T, baseURL, method, path string, headers http.Header, body any) (int, []byte) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()

	respBody, _ := io.ReadAll(res.Body)
	return res.StatusCode, respBody
}
