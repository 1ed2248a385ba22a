package rewards

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/congo_points/internal/ledger"
	"github.com/congo-pay/congo_points/internal/logging"
	"github.com/congo-pay/congo_points/internal/middleware"
	"github.com/congo-pay/congo_points/internal/points"
)

func setupHandlerApp(t *testing.T, opts Options) *fiber.App {
	t.Helper()
	svc := NewService(ledger.NewInMemory(20), nil, nil, logging.Discard(), opts)
	if _, err := svc.Deploy(context.Background(), owner, points.Amount(100)); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	h := NewHandler(svc)

	app := fiber.New()
	app.Use(middleware.Caller(middleware.CallerOptions{AllowHeader: true}))
	api := app.Group("/api/v1")
	api.Get("/points/owner", h.Owner)
	api.Post("/points/issuance", h.Issue)
	api.Get("/stores/:store/authority", h.Authority)
	api.Post("/stores/:store/authority", h.ToggleAuthority)
	api.Get("/stores/:store/points", h.StorePoints)
	api.Get("/stores/:store/users/:user/points", h.StoreUserPoints)
	api.Post("/stores/:store/grants", h.Grant)
	api.Post("/stores/:store/redemptions", h.Redeem)
	api.Get("/users/:user/points", h.UserPoints)
	api.Get("/events", h.Events)
	return app
}

func call(t *testing.T, app *fiber.App, method, target, caller, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if caller != "" {
		req.Header.Set("X-Caller", caller)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	decoded := map[string]any{}
	if resp.StatusCode < 400 {
		if err := json.Unmarshal(payload, &decoded); err != nil {
			t.Fatalf("decode %s: %v", payload, err)
		}
	}
	return resp.StatusCode, decoded
}

func TestHandlerScenario(t *testing.T) {
	app := setupHandlerApp(t, Options{})
	s, u, o := store.String(), user.String(), owner.String()

	status, body := call(t, app, fiber.MethodPost, "/api/v1/points/issuance", o, `{"amount":"50"}`)
	if status != fiber.StatusOK || body["owner_points"] != "150" {
		t.Fatalf("issuance: %d %v", status, body)
	}

	grant := `{"user":"` + u + `","amount":80}`
	if status, _ := call(t, app, fiber.MethodPost, "/api/v1/stores/"+s+"/grants", s, grant); status != fiber.StatusForbidden {
		t.Fatalf("expected 403 before authority, got %d", status)
	}

	status, body = call(t, app, fiber.MethodPost, "/api/v1/stores/"+s+"/authority", o, "")
	if status != fiber.StatusOK || body["authorized"] != true {
		t.Fatalf("toggle: %d %v", status, body)
	}

	status, body = call(t, app, fiber.MethodPost, "/api/v1/stores/"+s+"/grants", s, grant)
	if status != fiber.StatusOK || body["store_points"] != "80" || body["user_points"] != "80" {
		t.Fatalf("grant: %d %v", status, body)
	}

	redeem := `{"user":"` + u + `","amount":"50"}`
	status, body = call(t, app, fiber.MethodPost, "/api/v1/stores/"+s+"/redemptions", u, redeem)
	if status != fiber.StatusOK || body["user_points"] != "30" {
		t.Fatalf("redeem: %d %v", status, body)
	}

	over := `{"user":"` + u + `","amount":"100"}`
	if status, _ := call(t, app, fiber.MethodPost, "/api/v1/stores/"+s+"/redemptions", u, over); status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for insufficient balance, got %d", status)
	}

	checks := map[string]string{
		"/api/v1/points/owner":                            "150",
		"/api/v1/stores/" + s + "/points":                 "80",
		"/api/v1/stores/" + s + "/users/" + u + "/points": "80",
		"/api/v1/users/" + u + "/points":                  "30",
	}
	for target, want := range checks {
		status, body := call(t, app, fiber.MethodGet, target, "", "")
		got := body["points"]
		if got == nil {
			got = body["owner_points"]
		}
		if status != fiber.StatusOK || got != want {
			t.Fatalf("GET %s: expected %s, got %d %v", target, want, status, body)
		}
	}

	status, body = call(t, app, fiber.MethodGet, "/api/v1/events?account="+u, "", "")
	if status != fiber.StatusOK {
		t.Fatalf("events: %d", status)
	}
	events, _ := body["events"].([]any)
	if len(events) != 2 {
		t.Fatalf("expected grant and redemption for user, got %v", body["events"])
	}
}

func TestHandlerDryRun(t *testing.T) {
	app := setupHandlerApp(t, Options{})

	status, body := call(t, app, fiber.MethodPost, "/api/v1/stores/"+store.String()+"/authority?dry_run=true", owner.String(), "")
	if status != fiber.StatusOK || body["authorized"] != true {
		t.Fatalf("dry run toggle: %d %v", status, body)
	}
	receipt, _ := body["receipt"].(map[string]any)
	if receipt["dry_run"] != true {
		t.Fatalf("expected dry run receipt, got %v", receipt)
	}

	_, body = call(t, app, fiber.MethodGet, "/api/v1/stores/"+store.String()+"/authority", "", "")
	if body["authorized"] != false {
		t.Fatalf("dry run persisted the toggle: %v", body)
	}
}

func TestHandlerRejectsBadInput(t *testing.T) {
	app := setupHandlerApp(t, Options{RestrictIssuer: true})
	s := store.String()

	cases := []struct {
		name   string
		method string
		target string
		caller string
		body   string
		want   int
	}{
		{"missing caller", fiber.MethodPost, "/api/v1/points/issuance", "", `{"amount":"1"}`, fiber.StatusUnauthorized},
		{"negative amount", fiber.MethodPost, "/api/v1/points/issuance", owner.String(), `{"amount":"-1"}`, fiber.StatusBadRequest},
		{"fractional amount", fiber.MethodPost, "/api/v1/points/issuance", owner.String(), `{"amount":1.5}`, fiber.StatusBadRequest},
		{"missing amount", fiber.MethodPost, "/api/v1/points/issuance", owner.String(), `{}`, fiber.StatusBadRequest},
		{"not owner", fiber.MethodPost, "/api/v1/points/issuance", s, `{"amount":"1"}`, fiber.StatusForbidden},
		{"bad store", fiber.MethodGet, "/api/v1/stores/xyz/points", "", "", fiber.StatusBadRequest},
		{"bad user", fiber.MethodPost, "/api/v1/stores/" + s + "/grants", s, `{"user":"nobody","amount":"1"}`, fiber.StatusBadRequest},
		{"bad event account", fiber.MethodGet, "/api/v1/events?account=zzz", "", "", fiber.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if status, _ := call(t, app, tc.method, tc.target, tc.caller, tc.body); status != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, status)
			}
		})
	}
}

func TestAmountUnmarshal(t *testing.T) {
	var a Amount
	if err := json.Unmarshal([]byte(`"115792089237316195423570985008687907853269984665640564039457584007913129639935"`), &a); err != nil {
		t.Fatalf("max uint256 string: %v", err)
	}
	v := a.Int()
	if v.Dec() != "115792089237316195423570985008687907853269984665640564039457584007913129639935" {
		t.Fatalf("unexpected value %s", v.Dec())
	}
	if err := json.Unmarshal([]byte(`42`), &a); err != nil {
		t.Fatalf("number: %v", err)
	}
	if v := a.Int(); v.Uint64() != 42 {
		t.Fatalf("unexpected value %d", v.Uint64())
	}
	for _, bad := range []string{`"abc"`, `-3`, `"1e3"`, `""`, `true`} {
		if err := json.Unmarshal([]byte(bad), &a); err == nil {
			t.Fatalf("expected %s to be rejected", bad)
		}
	}
}
