package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ambiora/techfest-backend/internal/catalog"
	"github.com/ambiora/techfest-backend/internal/handler"
	"github.com/ambiora/techfest-backend/internal/middleware"
	"github.com/ambiora/techfest-backend/internal/payment"
	"github.com/ambiora/techfest-backend/internal/payment/paymenttest"
	"github.com/ambiora/techfest-backend/internal/queue"
	"github.com/ambiora/techfest-backend/internal/repository/memrepo"
	"github.com/ambiora/techfest-backend/internal/service"
)

const (
	jwtSecret     = "router-secret"
	internalToken = "internal-secret"
	adminPassword = "admin-pass"
)

type testAPI struct {
	e  *echo.Echo
	gw *paymenttest.Gateway
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memrepo.New()
	gw := paymenttest.New()
	cat := catalog.Default()

	authSvc := &service.AuthService{Users: store, Secret: jwtSecret, TokenTTL: time.Hour, BcryptCost: 4}
	adminAuth := &service.AdminAuth{Password: adminPassword, Secret: jwtSecret, TokenTTL: time.Hour}
	regs := &service.RegistrationService{Users: store, Registrations: store, Gateway: gw, Publisher: queue.Nop{}, Catalog: cat}
	teams := &service.TeamService{Users: store, Teams: store, Registrations: store, Catalog: cat}
	checkout := &service.CheckoutService{
		Users: store, Registrations: store, Payments: regs, Gateway: gw, Catalog: cat,
		FeeBPS: service.DefaultFeeBPS, PublicBaseURL: "http://localhost:3001", Environment: "sandbox",
	}
	admin := &service.AdminService{Registrations: regs, Teams: teams}

	e := echo.New()
	e.HTTPErrorHandler = handler.ErrorHandler
	Register(e, Handlers{
		Auth:          handler.NewAuthHandler(authSvc, adminAuth),
		Registrations: handler.NewRegistrationHandler(regs),
		Teams:         handler.NewTeamHandler(teams),
		Checkout:      handler.NewCheckoutHandler(checkout),
		Events:        handler.NewEventHandler(cat),
		Admin:         handler.NewAdminHandler(regs, teams, admin),
		Bridge:        handler.NewPaymentBridgeHandler(gw),
		Health:        handler.NewHealthHandler("sandbox", gw, store),
	}, Options{JWTSecret: jwtSecret, InternalToken: internalToken})
	return &testAPI{e: e, gw: gw}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		bs, _ := json.Marshal(body)
		rd = bytes.NewReader(bs)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	out := map[string]any{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec.Code, out
}

func (a *testAPI) signup(t *testing.T, email, sap string) (string, map[string]any) {
	t.Helper()
	code, body := a.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name": "Name " + email, "email": email, "phone": "9000000000", "sapId": sap, "password": "pw123456",
	})
	if code != http.StatusCreated {
		t.Fatalf("signup %s: expected 201, got %d %v", email, code, body)
	}
	return body["token"].(string), body["user"].(map[string]any)
}

func TestAliceProfileScenario(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)
	api.signup(t, "alice@x.com", "")

	code, body := api.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "alice@x.com", "password": "pw123456"})
	if code != http.StatusOK || body["success"] != true {
		t.Fatalf("login: expected 200, got %d %v", code, body)
	}
	token := body["token"].(string)
	if _, leaked := body["user"].(map[string]any)["passwordHash"]; leaked {
		t.Error("Expected password hash to be excluded")
	}

	code, body = api.do(t, http.MethodPut, "/api/auth/profile", token, map[string]string{"sapId": "SAP100"})
	if code != http.StatusOK {
		t.Fatalf("profile: expected 200, got %d %v", code, body)
	}
	code, body = api.do(t, http.MethodGet, "/api/auth/user", token, nil)
	if code != http.StatusOK {
		t.Fatalf("user: expected 200, got %d %v", code, body)
	}
	if sap := body["user"].(map[string]any)["sapId"]; sap != "SAP100" {
		t.Errorf("Expected sapId SAP100, got %v", sap)
	}
}

func TestAuthErrors(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)
	api.signup(t, "bob@x.com", "")

	code, body := api.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name": "B", "email": "BOB@x.com", "phone": "1", "password": "pw123456",
	})
	if code != http.StatusBadRequest || body["message"] != "Email already registered" {
		t.Errorf("Expected duplicate email 400, got %d %v", code, body)
	}

	code, _ = api.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "bob@x.com", "password": "nope"})
	if code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for bad password, got %d", code)
	}
	code, _ = api.do(t, http.MethodGet, "/api/auth/user", "", nil)
	if code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", code)
	}
	code, _ = api.do(t, http.MethodGet, "/api/auth/user", "garbage", nil)
	if code != http.StatusForbidden {
		t.Errorf("Expected 403 for bad token, got %d", code)
	}
}

func TestTeamScenario(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)
	leader, _ := api.signup(t, "lead@x.com", "SAP200")

	code, body := api.do(t, http.MethodPost, "/api/teams", leader, map[string]string{"name": "Rocketeers", "eventId": "hack-2026"})
	if code != http.StatusCreated {
		t.Fatalf("create team: expected 201, got %d %v", code, body)
	}
	team := body["team"].(map[string]any)
	invite := team["inviteCode"].(string)

	code, body = api.do(t, http.MethodGet, "/api/teams/"+invite, "", nil)
	if code != http.StatusOK {
		t.Fatalf("preview: expected 200, got %d %v", code, body)
	}
	preview := body["team"].(map[string]any)
	if preview["memberCount"] != float64(1) {
		t.Errorf("Expected memberCount 1, got %v", preview["memberCount"])
	}
	if _, leaked := preview["members"]; leaked {
		t.Error("Expected preview without members")
	}

	code, _ = api.do(t, http.MethodPost, "/api/teams", leader, map[string]string{"name": "Again", "eventId": "hack-2026"})
	if code != http.StatusBadRequest {
		t.Errorf("Expected duplicate team 400, got %d", code)
	}

	member, memberUser := api.signup(t, "mem@x.com", "SAP201")
	code, body = api.do(t, http.MethodPost, "/api/teams/join", member, map[string]string{"inviteCode": strings.ToLower(invite)})
	if code != http.StatusOK {
		t.Fatalf("join: expected 200, got %d %v", code, body)
	}
	code, _ = api.do(t, http.MethodPost, "/api/teams/join", member, map[string]string{"inviteCode": invite})
	if code != http.StatusBadRequest {
		t.Errorf("Expected double join 400, got %d", code)
	}

	teamID := team["id"].(string)
	leaderID := team["leaderId"].(string)
	code, _ = api.do(t, http.MethodDelete, "/api/teams/"+teamID+"/members/"+leaderID, leader, nil)
	if code != http.StatusBadRequest {
		t.Errorf("Expected leader removal 400, got %d", code)
	}
	code, _ = api.do(t, http.MethodDelete, "/api/teams/"+teamID+"/members/"+leaderID, member, nil)
	if code != http.StatusForbidden {
		t.Errorf("Expected non-leader removal 403, got %d", code)
	}
	code, _ = api.do(t, http.MethodDelete, "/api/teams/"+teamID+"/members/"+memberUser["id"].(string), leader, nil)
	if code != http.StatusOK {
		t.Errorf("Expected member removal 200, got %d", code)
	}

	code, body = api.do(t, http.MethodGet, "/api/teams", leader, nil)
	if code != http.StatusOK || len(body["teams"].([]any)) != 1 {
		t.Errorf("Expected one team listed, got %d %v", code, body)
	}
}

func TestJoinPaymentGate(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)
	leader, _ := api.signup(t, "relay@x.com", "SAP300")
	_, body := api.do(t, http.MethodPost, "/api/teams", leader, map[string]string{"name": "Baton", "eventId": "code-relay"})
	invite := body["team"].(map[string]any)["inviteCode"].(string)

	joiner, _ := api.signup(t, "runner@x.com", "SAP301")
	code, body := api.do(t, http.MethodPost, "/api/teams/join", joiner, map[string]string{"inviteCode": invite})
	if code != http.StatusBadRequest || !strings.Contains(body["message"].(string), "must first register") {
		t.Errorf("Expected payment gate, got %d %v", code, body)
	}
}

func TestCheckoutFlow(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)
	token, _ := api.signup(t, "buyer@x.com", "SAP400")

	code, body := api.do(t, http.MethodPost, "/api/checkout/orders", token, map[string]any{"eventIds": []string{"ai-quest", "open-mic"}})
	if code != http.StatusCreated {
		t.Fatalf("create order: expected 201, got %d %v", code, body)
	}
	order := body["order"].(map[string]any)
	orderID := order["orderId"].(string)
	if order["total"] != float64(256) {
		t.Errorf("Expected total 256, got %v", order["total"])
	}

	code, body = api.do(t, http.MethodPatch, "/api/registrations/"+orderID, token, map[string]string{"paymentStatus": "success"})
	if code != http.StatusBadRequest {
		t.Errorf("Expected unverified success to be refused, got %d %v", code, body)
	}

	api.gw.SetStatus(orderID, payment.StatusPaid)
	code, body = api.do(t, http.MethodPost, "/api/checkout/orders/"+orderID+"/verify?status=FAILED", token, nil)
	if code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d %v", code, body)
	}
	if st := body["verification"].(map[string]any)["paymentStatus"]; st != "success" {
		t.Errorf("Expected success, got %v", st)
	}

	code, body = api.do(t, http.MethodGet, "/api/tickets", token, nil)
	if code != http.StatusOK || len(body["tickets"].([]any)) != 2 {
		t.Errorf("Expected 2 tickets, got %d %v", code, body)
	}

	code, body = api.do(t, http.MethodGet, "/api/registrations", token, nil)
	if code != http.StatusOK || len(body["registrations"].([]any)) != 1 {
		t.Errorf("Expected 1 registration, got %d %v", code, body)
	}
}

func TestAdminRoutes(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)
	userToken, _ := api.signup(t, "someone@x.com", "")

	code, _ := api.do(t, http.MethodPost, "/api/admin/login", "", map[string]string{"password": "wrong"})
	if code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong admin password, got %d", code)
	}
	code, body := api.do(t, http.MethodPost, "/api/admin/login", "", map[string]string{"password": adminPassword})
	if code != http.StatusOK {
		t.Fatalf("admin login: expected 200, got %d %v", code, body)
	}
	adminToken := body["token"].(string)

	code, _ = api.do(t, http.MethodGet, "/api/admin/registrations", userToken, nil)
	if code != http.StatusForbidden {
		t.Errorf("Expected 403 for user token on admin route, got %d", code)
	}
	code, _ = api.do(t, http.MethodGet, "/api/auth/user", adminToken, nil)
	if code != http.StatusForbidden {
		t.Errorf("Expected 403 for admin token on user route, got %d", code)
	}
	for _, path := range []string{"/api/admin/registrations", "/api/admin/teams", "/api/admin/stats"} {
		if code, body := api.do(t, http.MethodGet, path, adminToken, nil); code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d %v", path, code, body)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/registrations/export", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+adminToken)
	rec := httptest.NewRecorder()
	api.e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "Date,User Name,Email") {
		t.Errorf("Unexpected export %d %q", rec.Code, rec.Body.String())
	}
}

func TestPaymentBridge(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/internal/cashfree/order/AMB_X", nil)
	rec := httptest.NewRecorder()
	api.e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without internal token, got %d", rec.Code)
	}

	api.gw.SetStatus("AMB_X", payment.StatusPaid)
	req = httptest.NewRequest(http.MethodGet, "/internal/cashfree/order/AMB_X", nil)
	req.Header.Set(middleware.InternalTokenHeader, internalToken)
	rec = httptest.NewRecorder()
	api.e.ServeHTTP(rec, req)
	var st payment.OrderStatus
	_ = json.Unmarshal(rec.Body.Bytes(), &st)
	if rec.Code != http.StatusOK || st.Status != payment.StatusPaid || !st.Success {
		t.Errorf("Unexpected status response %d %s", rec.Code, rec.Body.String())
	}

	if code, _ := api.do(t, http.MethodGet, "/api/cashfree/order/AMB_X", "", nil); code != http.StatusNotFound {
		t.Errorf("Expected bridge not exposed under /api, got %d", code)
	}
}

func TestPublicRoutes(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)

	code, body := api.do(t, http.MethodGet, "/api/health", "", nil)
	if code != http.StatusOK || body["status"] != "ok" || body["cashfree_configured"] != true || body["store"] != "ok" {
		t.Errorf("Unexpected health %d %v", code, body)
	}

	code, body = api.do(t, http.MethodGet, "/api/events?category=gaming", "", nil)
	if code != http.StatusOK || len(body["events"].([]any)) != 2 {
		t.Errorf("Expected 2 gaming events, got %d %v", code, body)
	}
	code, _ = api.do(t, http.MethodGet, "/api/events/HACK-2026", "", nil)
	if code != http.StatusOK {
		t.Errorf("Expected case-insensitive event lookup, got %d", code)
	}
	code, body = api.do(t, http.MethodGet, "/api/events/nope", "", nil)
	if code != http.StatusNotFound || body["success"] != false {
		t.Errorf("Expected 404 envelope, got %d %v", code, body)
	}
	code, body = api.do(t, http.MethodGet, "/api/unknown", "", nil)
	if code != http.StatusNotFound || body["success"] != false {
		t.Errorf("Expected 404 envelope for unknown route, got %d %v", code, body)
	}
}
