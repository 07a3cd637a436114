package points

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/alcms-dev/alcms-server/internal/db/dbtest"
	"github.com/alcms-dev/alcms-server/internal/models"
	"github.com/alcms-dev/alcms-server/internal/pagination"
	"gorm.io/gorm"
)

func balance(t *testing.T, conn *gorm.DB, id uint64) (int64, int64) {
	t.Helper()
	var u models.User
	if err := conn.Select("points", "total_points").First(&u, id).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	return u.Points, u.TotalPoints
}

func TestAddAndDeductWriteLedger(t *testing.T) {
	conn := dbtest.Open(t)
	user := dbtest.CreateUser(t, conn, "saver")

	added, err := Add(conn, Change{UserID: user.ID, Amount: 500, Source: models.PointsSourceCardKey})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if added.BalanceBefore != 0 || added.BalanceAfter != 500 {
		t.Fatalf("unexpected add result %+v", added)
	}
	spent, err := Deduct(conn, Change{UserID: user.ID, Amount: 120, Source: models.PointsSourceAdmin})
	if err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if spent.BalanceBefore != 500 || spent.BalanceAfter != 380 {
		t.Fatalf("unexpected deduct result %+v", spent)
	}

	points, total := balance(t, conn, user.ID)
	if points != 380 || total != 500 {
		t.Fatalf("expected points=380 total=500, got %d/%d", points, total)
	}

	var records []models.PointsRecord
	if err := conn.Where("user_id = ?", user.ID).Order("id ASC").Find(&records).Error; err != nil {
		t.Fatalf("load records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Type != models.PointsTypeEarn || records[0].BalanceAfter-records[0].BalanceBefore != 500 {
		t.Fatalf("unexpected earn record %+v", records[0])
	}
	if records[1].Type != models.PointsTypeSpend || records[1].BalanceBefore-records[1].BalanceAfter != 120 {
		t.Fatalf("unexpected spend record %+v", records[1])
	}
}

func TestDeductRejectsOverdraft(t *testing.T) {
	conn := dbtest.Open(t)
	user := dbtest.CreateUser(t, conn, "broke")
	if _, err := Add(conn, Change{UserID: user.ID, Amount: 10, Source: models.PointsSourceAdmin}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := Deduct(conn, Change{UserID: user.ID, Amount: 11, Source: models.PointsSourceAdmin}); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if _, err := Add(conn, Change{UserID: user.ID, Amount: 0, Source: models.PointsSourceAdmin}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := Add(conn, Change{UserID: 4242, Amount: 1, Source: models.PointsSourceAdmin}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if points, _ := balance(t, conn, user.ID); points != 10 {
		t.Fatalf("expected balance unchanged at 10, got %d", points)
	}
}

func TestTransferIsAtomic(t *testing.T) {
	conn := dbtest.Open(t)
	alice := dbtest.CreateUser(t, conn, "alice")
	bob := dbtest.CreateUser(t, conn, "bob")
	svc := NewService(conn)
	ctx := context.Background()

	if _, err := svc.AdminAdjust(ctx, alice.ID, 100, "seed", 1); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	res, err := svc.Transfer(ctx, alice.ID, bob.ID, 40, "thanks")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if res.From.BalanceAfter != 60 || res.To.BalanceAfter != 40 {
		t.Fatalf("unexpected transfer result %+v %+v", res.From, res.To)
	}

	// Receiver missing: the debit must roll back.
	if _, err := svc.Transfer(ctx, alice.ID, 9999, 10, ""); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if points, _ := balance(t, conn, alice.ID); points != 60 {
		t.Fatalf("expected rollback to keep 60, got %d", points)
	}
	if _, err := svc.Transfer(ctx, alice.ID, bob.ID, 61, ""); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if _, err := svc.Transfer(ctx, alice.ID, alice.ID, 1, ""); !errors.Is(err, ErrSelfTransfer) {
		t.Fatalf("expected ErrSelfTransfer, got %v", err)
	}
}

func TestAdminAdjustNegative(t *testing.T) {
	conn := dbtest.Open(t)
	user := dbtest.CreateUser(t, conn, "adjusted")
	svc := NewService(conn)
	ctx := context.Background()
	if _, err := svc.AdminAdjust(ctx, user.ID, 50, "bonus", 1); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	res, err := svc.AdminAdjust(ctx, user.ID, -20, "penalty", 1)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if res.Type != models.PointsTypeSpend || res.BalanceAfter != 30 {
		t.Fatalf("unexpected result %+v", res)
	}

	rows, page, err := svc.Records(ctx, user.ID, RecordFilter{Type: models.PointsTypeSpend, Page: pagination.Params{Limit: 10}})
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(rows) != 1 || page.Total != 1 || rows[0].Description != "penalty" {
		t.Fatalf("unexpected records %+v page %+v", rows, page)
	}
}

func TestAddRejectsBalanceOverflow(t *testing.T) {
	conn := dbtest.Open(t)
	user := dbtest.CreateUser(t, conn, "hoarder")
	recipient := dbtest.CreateUser(t, conn, "rich")
	svc := NewService(conn)
	ctx := context.Background()

	if _, err := svc.AdminAdjust(ctx, user.ID, 10, "seed", 1); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if _, err := svc.AdminAdjust(ctx, user.ID, math.MaxInt64, "overflow", 1); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if pts, total := balance(t, conn, user.ID); pts != 10 || total != 10 {
		t.Fatalf("balance changed after rejected credit: %d/%d", pts, total)
	}

	if err := conn.Model(&models.User{}).Where("id = ?", recipient.ID).
		Updates(map[string]any{"points": int64(math.MaxInt64 - 5), "total_points": int64(math.MaxInt64 - 5)}).Error; err != nil {
		t.Fatalf("prime recipient: %v", err)
	}
	if _, err := svc.Transfer(ctx, user.ID, recipient.ID, 10, ""); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected transfer overflow to fail, got %v", err)
	}
	if pts, _ := balance(t, conn, user.ID); pts != 10 {
		t.Fatalf("sender debited by failed transfer: %d", pts)
	}
	if pts, _ := balance(t, conn, recipient.ID); pts != math.MaxInt64-5 {
		t.Fatalf("recipient balance changed: %d", pts)
	}

	var negative int64
	conn.Model(&models.PointsRecord{}).Where("balance_after < 0").Count(&negative)
	if negative != 0 {
		t.Fatalf("ledger holds %d negative balances", negative)
	}
}

func TestCheckinStreak(t *testing.T) {
	conn := dbtest.Open(t)
	user := dbtest.CreateUser(t, conn, "daily")
	svc := NewService(conn)
	ctx := context.Background()
	day1 := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	first, err := svc.Checkin(ctx, user.ID, day1)
	if err != nil {
		t.Fatalf("checkin: %v", err)
	}
	if first.Streak != 1 || first.Points != 10 {
		t.Fatalf("unexpected first checkin %+v", first)
	}
	if _, err := svc.Checkin(ctx, user.ID, day1.Add(2*time.Hour)); !errors.Is(err, ErrAlreadyCheckedIn) {
		t.Fatalf("expected ErrAlreadyCheckedIn, got %v", err)
	}

	second, err := svc.Checkin(ctx, user.ID, day1.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("checkin: %v", err)
	}
	if second.Streak != 2 || second.Points != 12 {
		t.Fatalf("unexpected second checkin %+v", second)
	}

	// A gap resets the streak.
	third, err := svc.Checkin(ctx, user.ID, day1.AddDate(0, 0, 3))
	if err != nil {
		t.Fatalf("checkin: %v", err)
	}
	if third.Streak != 1 {
		t.Fatalf("expected streak reset, got %d", third.Streak)
	}

	st, err := svc.CheckinStatus(ctx, user.ID, day1.AddDate(0, 0, 3))
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !st.CheckedIn || st.Streak != 1 || st.TotalCheckins != 3 || st.NextReward != 12 {
		t.Fatalf("unexpected status %+v", st)
	}
	if points, _ := balance(t, conn, user.ID); points != 32 {
		t.Fatalf("expected 32 points, got %d", points)
	}
}

func TestCheckinRewardCapsBonus(t *testing.T) {
	if got := CheckinReward(1); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
	if got := CheckinReward(8); got != 24 {
		t.Fatalf("expected 24, got %d", got)
	}
	if got := CheckinReward(30); got != 24 {
		t.Fatalf("expected capped 24, got %d", got)
	}
}
