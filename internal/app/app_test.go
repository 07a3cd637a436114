package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alcms-dev/alcms-server/internal/config"
	"github.com/alcms-dev/alcms-server/internal/db/dbtest"
	"github.com/alcms-dev/alcms-server/internal/models"
	"github.com/alcms-dev/alcms-server/internal/security"
	"github.com/gin-gonic/gin"
)

func TestSeedDefaultsIsIdempotent(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	bootstrap := BootstrapAdmin{Username: "root", Password: "root-secret"}

	for i := 0; i < 2; i++ {
		if err := SeedDefaults(ctx, conn, bootstrap); err != nil {
			t.Fatalf("seed pass %d: %v", i, err)
		}
	}

	var levels []models.VIPLevel
	if err := conn.Order("level ASC").Find(&levels).Error; err != nil {
		t.Fatalf("load levels: %v", err)
	}
	if len(levels) != 3 {
		t.Fatalf("expected 3 levels, got %d", len(levels))
	}
	if got := levels[1].MonthlyPrice.StringFixed(2); got != "19.99" {
		t.Fatalf("expected level 2 at 19.99, got %s", got)
	}

	var admins []models.Admin
	if err := conn.Find(&admins).Error; err != nil {
		t.Fatalf("load admins: %v", err)
	}
	if len(admins) != 1 {
		t.Fatalf("expected 1 admin, got %d", len(admins))
	}
	if !admins[0].IsSuperAdmin || !admins[0].Active {
		t.Fatalf("bootstrap admin should be an active super admin: %+v", admins[0])
	}
	if !security.CheckPassword(admins[0].Password, "root-secret") {
		t.Fatalf("bootstrap admin password was not hashed from the configured value")
	}
}

func TestSeedDefaultsKeepsExistingData(t *testing.T) {
	conn := dbtest.Open(t)
	dbtest.CreateAdmin(t, conn, "existing")
	if err := conn.Create(&models.VIPLevel{Level: 7, Name: "Gold", Enabled: true}).Error; err != nil {
		t.Fatalf("create level: %v", err)
	}

	if err := SeedDefaults(context.Background(), conn, BootstrapAdmin{Username: "root", Password: "root-secret"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var levelCount, adminCount int64
	conn.Model(&models.VIPLevel{}).Count(&levelCount)
	conn.Model(&models.Admin{}).Count(&adminCount)
	if levelCount != 1 || adminCount != 1 {
		t.Fatalf("seed touched a populated database: levels=%d admins=%d", levelCount, adminCount)
	}
}

func TestSeedDefaultsWithoutBootstrapCredentials(t *testing.T) {
	conn := dbtest.Open(t)
	if err := SeedDefaults(context.Background(), conn, BootstrapAdmin{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	var adminCount int64
	conn.Model(&models.Admin{}).Count(&adminCount)
	if adminCount != 0 {
		t.Fatalf("expected no admin without credentials, got %d", adminCount)
	}

	errWeak := SeedDefaults(context.Background(), conn, BootstrapAdmin{Username: "root", Password: "123"})
	if errWeak == nil {
		t.Fatalf("expected weak bootstrap password to fail")
	}
}

func TestNewEngineServesBothSurfaces(t *testing.T) {
	gin.SetMode(gin.TestMode)
	conn := dbtest.Open(t)
	if err := SeedDefaults(context.Background(), conn, BootstrapAdmin{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	cfg := config.Config{
		JWT:                      config.JWTConfig{Secret: "test-secret", Expiry: time.Hour},
		Redeem:                   config.RedeemConfig{RateLimit: 5, RateWindow: time.Minute},
		CommissionDispatchPeriod: time.Minute,
	}
	engine, dispatcher, err := NewEngine(conn, nil, cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if dispatcher == nil {
		t.Fatalf("expected a commission dispatcher")
	}

	cases := []struct {
		path   string
		status int
	}{
		{"/healthz", http.StatusOK},
		{"/api/v1/front/vip-levels", http.StatusOK},
		{"/api/v1/front/profile", http.StatusUnauthorized},
		{"/api/v1/admin/card-keys", http.StatusUnauthorized},
		{"/nope", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
		})
	}

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/front/vip-levels", nil))
	var body struct {
		Levels []map[string]any `json:"levels"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode levels: %v", err)
	}
	if len(body.Levels) != 3 {
		t.Fatalf("expected seeded levels, got %s", rec.Body.String())
	}
}
