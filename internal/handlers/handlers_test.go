package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/laconfe/internal/config"
	"github.com/example/laconfe/internal/database"
	"github.com/example/laconfe/internal/middleware"
	"github.com/example/laconfe/internal/models"
	"github.com/example/laconfe/internal/services"
)

type nopMailer struct{}

func (nopMailer) Send(context.Context, services.Email) error { return nil }

type stubGateway struct {
	resp *services.GatewayResponse
	err  error
}

func (g stubGateway) Register(context.Context, map[string]string) (*services.GatewayResponse, error) {
	return g.resp, g.err
}

type testEnv struct {
	app *fiber.App
	db  *gorm.DB
}

func newTestEnv(t *testing.T, gw services.BankGateway) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	gormCfg := database.GormConfig()
	gormCfg.Logger = logger.Default.LogMode(logger.Silent)
	db, err := gorm.Open(sqlite.Open(dsn), gormCfg)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Room{}, &models.Promo{}, &models.Payment{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	cfg := &config.Config{JWTSecret: "test-secret", TokenExpires: time.Hour}
	payments := services.NewPaymentStore(db)
	ledger := services.NewLedgerService(db)
	accounts := services.NewAccountService(db, nopMailer{}, cfg.JWTSecret, cfg.TokenExpires, "https://confe.example")

	ph := NewPaymentHandler(
		services.NewRegistrationService(gw, payments, accounts, services.GatewayCredentials{Username: "m", Password: "p"}),
		services.NewCallbackService(payments, ledger, accounts, nopMailer{}, nil),
		payments,
		services.NewInstallmentService(payments),
	)
	ch := NewCatalogHandler(ledger)
	ah := NewAuthHandler(accounts)
	rh := NewPasswordResetHandler(accounts)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/health", Health(db))
	app.Get("/rooms", ch.ListRooms)
	app.Post("/api/register", ph.Register)
	app.Post("/api/payment/callback", ph.Callback)
	app.Get("/api/payment", ph.GetPayment)
	app.Get("/api/user-payment", ph.ListUserPayments)
	app.Get("/api/payments/next-due/:userId", ph.NextDue)
	app.Get("/api/promo", ch.GetPromo)
	app.Post("/api/user", ah.CreateUser)
	app.Post("/api/login", ah.Login)
	app.Get("/api/me", middleware.AuthMiddleware(cfg), ah.Me)
	app.Post("/api/auth/request-reset", rh.RequestReset)
	app.Post("/api/auth/reset-password", rh.ResetPassword)

	return &testEnv{app: app, db: db}
}

func (e *testEnv) do(t *testing.T, req *http.Request) (int, string) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func (e *testEnv) seedPending(t *testing.T) *models.User {
	t.Helper()
	user := &models.User{FirstName: "Ana", Email: "ana@example.com"}
	if err := e.db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	room := &models.Room{RoomID: "double", Name: "Double", Price: 450, Count: 1, Available: models.RoomAvailable}
	if err := e.db.Create(room).Error; err != nil {
		t.Fatalf("seed room: %v", err)
	}
	p := &models.Payment{
		MdOrder: "md-1", UserID: user.ID, Email: user.Email, PlanID: "2",
		SelectedRoom: "double", Amount: 900, Status: models.PaymentPending,
	}
	if err := e.db.Create(p).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return user
}

func TestCallback_FormBody_OK(t *testing.T) {
	env := newTestEnv(t, stubGateway{})
	env.seedPending(t)

	form := url.Values{"mdOrder": {"md-1"}, "orderNumber": {"ORD-1"}, "operation": {"deposited"}, "status": {"1"}}
	req := httptest.NewRequest(http.MethodPost, "/api/payment/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	code, body := env.do(t, req)
	if code != http.StatusOK || body != "OK" {
		t.Fatalf("got %d %q, want 200 OK", code, body)
	}

	var room models.Room
	env.db.Where("room_id = ?", "double").First(&room)
	if room.Count != 0 || room.Available != models.RoomUnavailable {
		t.Fatalf("room = %d/%q", room.Count, room.Available)
	}
}

func TestCallback_QueryString_OK(t *testing.T) {
	env := newTestEnv(t, stubGateway{})
	env.seedPending(t)

	req := httptest.NewRequest(http.MethodPost, "/api/payment/callback?mdOrder=md-1&operation=declinedByTimeout&status=0", nil)
	code, body := env.do(t, req)
	if code != http.StatusOK || body != "OK" {
		t.Fatalf("got %d %q, want 200 OK", code, body)
	}

	var p models.Payment
	env.db.Where("md_order = ?", "md-1").First(&p)
	if p.Status != models.PaymentFailed {
		t.Fatalf("status = %q, want failed", p.Status)
	}
}

func TestCallback_UnknownOrder_NotFound(t *testing.T) {
	env := newTestEnv(t, stubGateway{})

	req := httptest.NewRequest(http.MethodPost, "/api/payment/callback?mdOrder=nope&status=1", nil)
	code, body := env.do(t, req)
	if code != http.StatusNotFound || body != "not found" {
		t.Fatalf("got %d %q, want 404 not found", code, body)
	}
}

func TestCallback_StoreDown_ServiceUnavailable(t *testing.T) {
	env := newTestEnv(t, stubGateway{})
	env.seedPending(t)

	sqlDB, err := env.db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/payment/callback?mdOrder=md-1&status=1", nil)
	code, _ := env.do(t, req)
	if code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", code)
	}
}

func TestRegister_GatewayFailure(t *testing.T) {
	env := newTestEnv(t, stubGateway{err: services.ErrUpstream})

	code, body := env.do(t, jsonRequest(http.MethodPost, "/api/register", `{"amount":100}`))
	if code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", code)
	}
	if !strings.Contains(body, `"error":"Payment request failed"`) {
		t.Fatalf("body = %s", body)
	}
}

func TestRegister_ReturnsPayloadAndBankResponse(t *testing.T) {
	env := newTestEnv(t, stubGateway{resp: &services.GatewayResponse{
		OrderID: "md-9",
		Raw:     json.RawMessage(`{"orderId":"md-9","formUrl":"https://pay.example"}`),
	}})

	code, body := env.do(t, jsonRequest(http.MethodPost, "/api/register", `{"amount":100,"orderNumber":"ORD-9"}`))
	if code != http.StatusOK {
		t.Fatalf("status = %d body=%s", code, body)
	}

	var out struct {
		SentPayload  map[string]any `json:"sentPayload"`
		BankResponse map[string]any `json:"bankResponse"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.BankResponse["formUrl"] != "https://pay.example" {
		t.Fatalf("bankResponse = %v", out.BankResponse)
	}
	if out.SentPayload["userName"] != "m" || out.SentPayload["password"] == "p" {
		t.Fatalf("sentPayload = %v", out.SentPayload)
	}
}

func TestGetPayment(t *testing.T) {
	env := newTestEnv(t, stubGateway{})
	env.seedPending(t)

	code, body := env.do(t, httptest.NewRequest(http.MethodGet, "/api/payment?mdOrder=md-1", nil))
	if code != http.StatusOK || !strings.Contains(body, `"mdOrder":"md-1"`) {
		t.Fatalf("got %d %s", code, body)
	}

	code, body = env.do(t, httptest.NewRequest(http.MethodGet, "/api/payment?mdOrder=missing", nil))
	if code != http.StatusNotFound || !strings.Contains(body, `"error"`) {
		t.Fatalf("got %d %s", code, body)
	}

	code, _ = env.do(t, httptest.NewRequest(http.MethodGet, "/api/payment", nil))
	if code != http.StatusBadRequest {
		t.Fatalf("missing mdOrder: status = %d", code)
	}
}

func TestListUserPayments(t *testing.T) {
	env := newTestEnv(t, stubGateway{})
	env.seedPending(t)

	code, body := env.do(t, httptest.NewRequest(http.MethodGet, "/api/user-payment?email=ANA@example.com", nil))
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !strings.Contains(body, `"total_items":1`) || !strings.Contains(body, `"md-1"`) {
		t.Fatalf("body = %s", body)
	}
}

func TestNextDue(t *testing.T) {
	env := newTestEnv(t, stubGateway{})
	user := env.seedPending(t)

	code, _ := env.do(t, httptest.NewRequest(http.MethodGet, "/api/payments/next-due/"+user.ID.String(), nil))
	if code != http.StatusNotFound {
		t.Fatalf("no successful payments: status = %d, want 404", code)
	}

	p := &models.Payment{MdOrder: "md-2", UserID: user.ID, PlanID: "3", Status: models.PaymentSuccess}
	p.CreatedAt = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	if err := env.db.Create(p).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	code, body := env.do(t, httptest.NewRequest(http.MethodGet, "/api/payments/next-due/"+user.ID.String(), nil))
	if code != http.StatusOK || !strings.Contains(body, `"nextDueDate":"2025-02-28"`) {
		t.Fatalf("got %d %s", code, body)
	}

	code, _ = env.do(t, httptest.NewRequest(http.MethodGet, "/api/payments/next-due/not-a-uuid", nil))
	if code != http.StatusBadRequest {
		t.Fatalf("invalid id: status = %d", code)
	}
}

func TestPromoAndRooms(t *testing.T) {
	env := newTestEnv(t, stubGateway{})
	env.seedPending(t)
	if err := env.db.Create(&models.Promo{Code: "SAVE10", Amount: 5, Discount: 0.1}).Error; err != nil {
		t.Fatalf("seed promo: %v", err)
	}

	code, body := env.do(t, httptest.NewRequest(http.MethodGet, "/api/promo?code=save10", nil))
	if code != http.StatusOK || !strings.Contains(body, `"code":"SAVE10"`) || !strings.Contains(body, `"amount":5`) {
		t.Fatalf("got %d %s", code, body)
	}

	code, _ = env.do(t, httptest.NewRequest(http.MethodGet, "/api/promo?code=nope", nil))
	if code != http.StatusNotFound {
		t.Fatalf("unknown promo: status = %d", code)
	}

	code, body = env.do(t, httptest.NewRequest(http.MethodGet, "/rooms", nil))
	if code != http.StatusOK || !strings.Contains(body, `"roomId":"double"`) {
		t.Fatalf("got %d %s", code, body)
	}
}

func TestAccountEndpoints(t *testing.T) {
	env := newTestEnv(t, stubGateway{})

	code, body := env.do(t, jsonRequest(http.MethodPost, "/api/user",
		`{"firstName":"Ana","lastName":"Lopez","email":"ana@example.com","password":"hunter22","birthday":"1990-04-01"}`))
	if code != http.StatusCreated {
		t.Fatalf("create: %d %s", code, body)
	}
	if strings.Contains(body, "passwordHash") || strings.Contains(body, "hunter22") {
		t.Fatalf("password material leaked: %s", body)
	}

	code, _ = env.do(t, jsonRequest(http.MethodPost, "/api/user",
		`{"firstName":"Ana","email":"ana@example.com","password":"hunter22"}`))
	if code != http.StatusConflict {
		t.Fatalf("duplicate: status = %d, want 409", code)
	}

	code, body = env.do(t, jsonRequest(http.MethodPost, "/api/login", `{"email":"ana@example.com","password":"hunter22"}`))
	if code != http.StatusOK {
		t.Fatalf("login: %d %s", code, body)
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal([]byte(body), &login); err != nil || login.Token == "" {
		t.Fatalf("decode login: %v %s", err, body)
	}

	code, _ = env.do(t, jsonRequest(http.MethodPost, "/api/login", `{"email":"ana@example.com","password":"bad-pass"}`))
	if code != http.StatusUnauthorized {
		t.Fatalf("bad login: status = %d", code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	code, body = env.do(t, req)
	if code != http.StatusOK || !strings.Contains(body, `"email":"ana@example.com"`) {
		t.Fatalf("me: %d %s", code, body)
	}

	code, _ = env.do(t, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	if code != http.StatusUnauthorized {
		t.Fatalf("me without token: status = %d", code)
	}
}

func TestPasswordResetEndpoints(t *testing.T) {
	env := newTestEnv(t, stubGateway{})
	if code, body := env.do(t, jsonRequest(http.MethodPost, "/api/user",
		`{"firstName":"Ana","email":"ana@example.com","password":"hunter22"}`)); code != http.StatusCreated {
		t.Fatalf("create: %d %s", code, body)
	}

	code, _ := env.do(t, jsonRequest(http.MethodPost, "/api/auth/request-reset", `{"email":"ghost@example.com"}`))
	if code != http.StatusNotFound {
		t.Fatalf("unknown email: status = %d", code)
	}

	code, body := env.do(t, jsonRequest(http.MethodPost, "/api/auth/request-reset", `{"email":"ana@example.com","locale":"es"}`))
	if code != http.StatusOK {
		t.Fatalf("request reset: %d %s", code, body)
	}

	var user models.User
	env.db.Where("email = ?", "ana@example.com").First(&user)

	code, _ = env.do(t, jsonRequest(http.MethodPost, "/api/auth/reset-password", `{"token":"bogus","newPassword":"newpass1"}`))
	if code != http.StatusBadRequest {
		t.Fatalf("bogus token: status = %d", code)
	}

	code, body = env.do(t, jsonRequest(http.MethodPost, "/api/auth/reset-password",
		fmt.Sprintf(`{"token":%q,"newPassword":"newpass1"}`, user.ResetToken)))
	if code != http.StatusOK {
		t.Fatalf("reset: %d %s", code, body)
	}

	code, _ = env.do(t, jsonRequest(http.MethodPost, "/api/login", `{"email":"ana@example.com","password":"newpass1"}`))
	if code != http.StatusOK {
		t.Fatalf("login with new password: status = %d", code)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, stubGateway{})

	code, body := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	if code != http.StatusOK || !strings.Contains(body, `"ok"`) {
		t.Fatalf("got %d %s", code, body)
	}
}
