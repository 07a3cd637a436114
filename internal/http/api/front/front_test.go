package front

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alcms-dev/alcms-server/internal/cardkey"
	"github.com/alcms-dev/alcms-server/internal/config"
	"github.com/alcms-dev/alcms-server/internal/db/dbtest"
	"github.com/alcms-dev/alcms-server/internal/models"
	"github.com/alcms-dev/alcms-server/internal/points"
	"github.com/alcms-dev/alcms-server/internal/referral"
	"github.com/alcms-dev/alcms-server/internal/vip"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type testServer struct {
	engine *gin.Engine
	db     *gorm.DB
	store  *cardkey.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	conn := dbtest.Open(t)
	dbtest.SeedVIPLevels(t, conn)
	levels, errLevels := vip.NewLevels(conn)
	if errLevels != nil {
		t.Fatalf("levels: %v", errLevels)
	}
	store := cardkey.NewStore(conn, levels)
	engine := gin.New()
	RegisterFrontRoutes(engine, Services{
		DB:        conn,
		JWT:       config.JWTConfig{Secret: "test-secret", Expiry: time.Hour},
		Redeem:    config.RedeemConfig{RateLimit: 10, RateWindow: time.Minute},
		CardKeys:  store,
		Redeemer:  cardkey.NewRedeemer(conn, nil),
		Points:    points.NewService(conn),
		Referrals: referral.NewService(conn),
		Levels:    levels,
	})
	return &testServer{engine: engine, db: conn, store: store}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			t.Fatalf("marshal body: %v", errMarshal)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		if errUnmarshal := json.Unmarshal(rec.Body.Bytes(), &out); errUnmarshal != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), errUnmarshal)
		}
	}
	return rec, out
}

func (s *testServer) registerAndLogin(t *testing.T, username, inviteCode string) (string, map[string]any) {
	t.Helper()
	rec, reg := s.do(t, http.MethodPost, "/api/v1/front/register", "", map[string]string{
		"username":    username,
		"password":    "secret123",
		"invite_code": inviteCode,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", username, rec.Code, rec.Body.String())
	}
	rec, login := s.do(t, http.MethodPost, "/api/v1/front/login", "", map[string]string{
		"username": username,
		"password": "secret123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", username, rec.Code, rec.Body.String())
	}
	token, _ := login["token"].(string)
	if token == "" {
		t.Fatalf("login returned no token: %v", login)
	}
	return token, reg
}

func TestRegisterWithInviteCodeLinksReferrer(t *testing.T) {
	s := newTestServer(t)
	_, alice := s.registerAndLogin(t, "alice", "")
	code, _ := alice["invite_code"].(string)
	if len(code) != 8 {
		t.Fatalf("expected 8 char invite code, got %q", code)
	}

	bobToken, bob := s.registerAndLogin(t, "bob", code)

	var link models.Referral
	if errFind := s.db.Where("referred_id = ?", uint64(bob["id"].(float64))).First(&link).Error; errFind != nil {
		t.Fatalf("referral row missing: %v", errFind)
	}
	if link.ReferrerID != uint64(alice["id"].(float64)) {
		t.Fatalf("expected referrer %v, got %d", alice["id"], link.ReferrerID)
	}

	rec, profile := s.do(t, http.MethodGet, "/api/v1/front/profile", bobToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile: status %d", rec.Code)
	}
	if profile["username"] != "bob" {
		t.Fatalf("unexpected profile: %v", profile)
	}
	vipView, _ := profile["vip"].(map[string]any)
	if vipView["is_vip"] != false {
		t.Fatalf("new user should not be VIP: %v", vipView)
	}
}

func TestRegisterRejectsUnknownInviteCode(t *testing.T) {
	s := newTestServer(t)
	rec, _ := s.do(t, http.MethodPost, "/api/v1/front/register", "", map[string]string{
		"username":    "carol",
		"password":    "secret123",
		"invite_code": "ZZZZZZZZ",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var n int64
	s.db.Model(&models.User{}).Where("username = ?", "carol").Count(&n)
	if n != 0 {
		t.Fatalf("user should not be created on a bad invite code")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	s := newTestServer(t)
	s.registerAndLogin(t, "dave", "")
	rec, body := s.do(t, http.MethodPost, "/api/v1/front/login", "", map[string]string{
		"username": "dave",
		"password": "wrong-password",
	})
	if rec.Code != http.StatusUnauthorized || body["error"] != "invalid credentials" {
		t.Fatalf("expected invalid credentials, got %d %v", rec.Code, body)
	}
}

func TestAuthedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	rec, _ := s.do(t, http.MethodPost, "/api/v1/front/card-keys/redeem", "", map[string]string{"code": "X"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	rec, _ = s.do(t, http.MethodGet, "/api/v1/front/profile", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rec.Code)
	}
}

func TestRedeemEndpointMapsErrors(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.registerAndLogin(t, "erin", "")

	card, errCreate := s.store.Create(context.Background(), cardkey.CreateParams{
		Type:   models.CardKeyTypePoints,
		Points: 500,
	}, nil)
	if errCreate != nil {
		t.Fatalf("create card: %v", errCreate)
	}

	rec, body := s.do(t, http.MethodPost, "/api/v1/front/card-keys/redeem", token, map[string]string{"code": card.Code})
	if rec.Code != http.StatusOK {
		t.Fatalf("redeem: status %d body %s", rec.Code, rec.Body.String())
	}
	pts, _ := body["points"].(map[string]any)
	if pts["balance_after"] != float64(500) {
		t.Fatalf("expected balance 500, got %v", pts)
	}
	order, _ := body["order"].(map[string]any)
	if order["status"] != models.OrderStatusPaid || order["payment_method"] != models.PaymentMethodCardKey {
		t.Fatalf("unexpected order: %v", order)
	}
	if body["commission"] != nil {
		t.Fatalf("user without referrer should get no commission: %v", body["commission"])
	}

	rec, _ = s.do(t, http.MethodPost, "/api/v1/front/card-keys/redeem", token, map[string]string{"code": card.Code})
	if rec.Code != http.StatusConflict {
		t.Fatalf("second redeem: expected 409, got %d", rec.Code)
	}
	rec, _ = s.do(t, http.MethodPost, "/api/v1/front/card-keys/redeem", token, map[string]string{"code": "AAAA-BBBB-CCCC-DDDD"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown code: expected 404, got %d", rec.Code)
	}
	rec, _ = s.do(t, http.MethodPost, "/api/v1/front/card-keys/redeem", token, map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing code: expected 400, got %d", rec.Code)
	}

	expired, errExpired := s.store.Create(context.Background(), cardkey.CreateParams{
		Type:   models.CardKeyTypePoints,
		Points: 100,
	}, nil)
	if errExpired != nil {
		t.Fatalf("create expiring card: %v", errExpired)
	}
	past := time.Now().UTC().Add(-time.Hour)
	if err := s.db.Model(&models.CardKey{}).Where("id = ?", expired.ID).Update("expire_at", past).Error; err != nil {
		t.Fatalf("expire card: %v", err)
	}
	rec, _ = s.do(t, http.MethodPost, "/api/v1/front/card-keys/redeem", token, map[string]string{"code": expired.Code})
	if rec.Code != http.StatusGone {
		t.Fatalf("expired code: expected 410, got %d", rec.Code)
	}

	rec, list := s.do(t, http.MethodGet, "/api/v1/front/card-keys", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	cards, _ := list["card_keys"].([]any)
	if len(cards) != 1 {
		t.Fatalf("expected one redeemed card, got %d", len(cards))
	}

	rec, orders := s.do(t, http.MethodGet, "/api/v1/front/orders", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("orders: status %d", rec.Code)
	}
	if rows, _ := orders["orders"].([]any); len(rows) != 1 {
		t.Fatalf("expected one order, got %v", orders["orders"])
	}
}

func TestCheckinTwiceConflicts(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.registerAndLogin(t, "frank", "")

	rec, body := s.do(t, http.MethodPost, "/api/v1/front/checkin", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("checkin: status %d body %s", rec.Code, rec.Body.String())
	}
	if body["points"] != float64(10) {
		t.Fatalf("expected 10 points, got %v", body["points"])
	}
	rec, _ = s.do(t, http.MethodPost, "/api/v1/front/checkin", token, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second checkin: expected 409, got %d", rec.Code)
	}
	rec, status := s.do(t, http.MethodGet, "/api/v1/front/checkin/status", token, nil)
	if rec.Code != http.StatusOK || status["checked_in"] != true {
		t.Fatalf("unexpected checkin status %d %v", rec.Code, status)
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.registerAndLogin(t, "gina", "")
	_, hank := s.registerAndLogin(t, "hank", "")

	rec, _ := s.do(t, http.MethodPost, "/api/v1/front/points/transfer", token, map[string]any{
		"to_user_id": hank["id"],
		"amount":     50,
	})
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}
}

func TestVIPLevelsArePublic(t *testing.T) {
	s := newTestServer(t)
	rec, body := s.do(t, http.MethodGet, "/api/v1/front/vip-levels", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	levels, _ := body["levels"].([]any)
	if len(levels) != 3 {
		t.Fatalf("expected 3 levels, got %d", len(levels))
	}
	first, _ := levels[0].(map[string]any)
	if first["monthly_price"] != "9.99" {
		t.Fatalf("unexpected first level: %v", first)
	}
}
