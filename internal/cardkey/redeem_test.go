package cardkey

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alcms-dev/alcms-server/internal/db/dbtest"
	"github.com/alcms-dev/alcms-server/internal/models"
	"github.com/alcms-dev/alcms-server/internal/referral"
	"github.com/alcms-dev/alcms-server/internal/vip"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func loadUser(t *testing.T, conn *gorm.DB, id uint64) models.User {
	t.Helper()
	var u models.User
	if err := conn.First(&u, id).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	return u
}

func loadCard(t *testing.T, conn *gorm.DB, code string) models.CardKey {
	t.Helper()
	var c models.CardKey
	if err := conn.Where("code = ?", code).First(&c).Error; err != nil {
		t.Fatalf("load card: %v", err)
	}
	return c
}

func countRows(t *testing.T, conn *gorm.DB, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := conn.Model(model).Where(where, args...).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestConcurrentRedeemSucceedsOnce(t *testing.T) {
	conn, store := newStore(t)
	ctx := context.Background()
	user := dbtest.CreateUser(t, conn, "racer")
	card, err := store.Create(ctx, CreateParams{Type: models.CardKeyTypePoints, Points: 300}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	redeemer := NewRedeemer(conn, nil)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		redeemed  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errRedeem := redeemer.Redeem(ctx, card.Code, user.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errRedeem == nil:
				successes++
			case errors.Is(errRedeem, ErrAlreadyRedeemed):
				redeemed++
			default:
				t.Errorf("unexpected error: %v", errRedeem)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || redeemed != workers-1 {
		t.Fatalf("expected 1 success and %d AlreadyRedeemed, got %d/%d", workers-1, successes, redeemed)
	}
	if got := loadUser(t, conn, user.ID); got.Points != 300 {
		t.Fatalf("expected reward granted once, balance=%d", got.Points)
	}
	if n := countRows(t, conn, &models.VIPOrder{}, "user_id = ?", user.ID); n != 1 {
		t.Fatalf("expected one order, got %d", n)
	}
}

func TestRedeemVIPCardScenario(t *testing.T) {
	conn, store := newStore(t)
	ctx := context.Background()
	user := dbtest.CreateUser(t, conn, "newbie")
	value := decimal.RequireFromString("19.99")
	card, err := store.Create(ctx, CreateParams{Type: models.CardKeyTypeVIP, VIPLevel: 2, VIPDays: 30, ValueAmount: &value}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	before := time.Now().UTC()
	res, err := NewRedeemer(conn, nil).Redeem(ctx, card.Code, user.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if res.VIP == nil || res.Points != nil || res.Commission != nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.VIP.Action != vip.ActionSet {
		t.Fatalf("expected set for non-vip user, got %s", res.VIP.Action)
	}

	got := loadUser(t, conn, user.ID)
	if !got.IsVIP || got.VIPLevel != 2 || got.VIPExpireAt == nil {
		t.Fatalf("unexpected user %+v", got)
	}
	want := before.AddDate(0, 0, 30)
	if d := got.VIPExpireAt.Sub(want); d < -time.Minute || d > time.Minute {
		t.Fatalf("expected expiry near %v, got %v", want, got.VIPExpireAt)
	}

	var orders []models.VIPOrder
	conn.Where("user_id = ?", user.ID).Find(&orders)
	if len(orders) != 1 {
		t.Fatalf("expected one order, got %d", len(orders))
	}
	o := orders[0]
	if o.Status != models.OrderStatusPaid || !o.Price.Equal(value) || o.PaymentMethod != models.PaymentMethodCardKey {
		t.Fatalf("unexpected order %+v", o)
	}
	if o.CardKeyCode == nil || *o.CardKeyCode != card.Code || o.VIPLevel != 2 || o.DurationDays != 30 {
		t.Fatalf("unexpected order details %+v", o)
	}
	if stored := loadCard(t, conn, card.Code); stored.Status != models.CardKeyStatusUsed || stored.UsedBy == nil || *stored.UsedBy != user.ID || stored.UsedAt == nil {
		t.Fatalf("unexpected card %+v", stored)
	}
	if n := countRows(t, conn, &models.CommissionEvent{}, "order_id = ?", o.ID); n != 1 {
		t.Fatalf("expected one outbox event, got %d", n)
	}
}

func TestRedeemVIPExtendsAndPermanent(t *testing.T) {
	conn, store := newStore(t)
	ctx := context.Background()
	user := dbtest.CreateUser(t, conn, "veteran")
	redeemer := NewRedeemer(conn, nil)

	high, _ := store.Create(ctx, CreateParams{Type: models.CardKeyTypeVIP, VIPLevel: 3, VIPDays: 30}, nil)
	low, _ := store.Create(ctx, CreateParams{Type: models.CardKeyTypeVIP, VIPLevel: 1, VIPDays: 10}, nil)
	forever, _ := store.Create(ctx, CreateParams{Type: models.CardKeyTypeVIP, VIPLevel: 1, VIPDays: 0}, nil)

	if _, err := redeemer.Redeem(ctx, high.Code, user.ID); err != nil {
		t.Fatalf("redeem high: %v", err)
	}
	afterHigh := loadUser(t, conn, user.ID)

	res, err := redeemer.Redeem(ctx, low.Code, user.ID)
	if err != nil {
		t.Fatalf("redeem low: %v", err)
	}
	if res.VIP.Action != vip.ActionExtend {
		t.Fatalf("expected extend, got %s", res.VIP.Action)
	}
	afterLow := loadUser(t, conn, user.ID)
	if afterLow.VIPLevel != 3 {
		t.Fatalf("expected level 3 kept, got %d", afterLow.VIPLevel)
	}
	if !afterLow.VIPExpireAt.Equal(afterHigh.VIPExpireAt.AddDate(0, 0, 10)) {
		t.Fatalf("expected expiry extended by 10 days: %v -> %v", afterHigh.VIPExpireAt, afterLow.VIPExpireAt)
	}

	if _, err := redeemer.Redeem(ctx, forever.Code, user.ID); err != nil {
		t.Fatalf("redeem permanent: %v", err)
	}
	if got := loadUser(t, conn, user.ID); got.VIPExpireAt != nil {
		t.Fatalf("expected permanent vip, got expiry %v", got.VIPExpireAt)
	}
}

func TestRedeemPointsCardScenario(t *testing.T) {
	conn, store := newStore(t)
	ctx := context.Background()
	user := dbtest.CreateUser(t, conn, "collector")
	if err := conn.Model(&models.User{}).Where("id = ?", user.ID).Update("points", 42).Error; err != nil {
		t.Fatalf("seed points: %v", err)
	}
	card, err := store.Create(ctx, CreateParams{Type: models.CardKeyTypePoints, Points: 500}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	res, err := NewRedeemer(conn, nil).Redeem(ctx, card.Code, user.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if res.Points == nil || res.Points.BalanceBefore != 42 || res.Points.BalanceAfter != 542 {
		t.Fatalf("unexpected points result %+v", res.Points)
	}
	if got := loadUser(t, conn, user.ID); got.Points != 542 || got.TotalPoints != 500 {
		t.Fatalf("unexpected balance %d total %d", got.Points, got.TotalPoints)
	}

	var records []models.PointsRecord
	conn.Where("user_id = ?", user.ID).Find(&records)
	if len(records) != 1 {
		t.Fatalf("expected one ledger row, got %d", len(records))
	}
	if r := records[0]; r.Source != models.PointsSourceCardKey || r.BalanceAfter-r.BalanceBefore != 500 {
		t.Fatalf("unexpected ledger row %+v", r)
	}
	if res.Order.VIPLevel != 0 || res.Order.DurationDays != 0 || res.Order.Status != models.OrderStatusPaid {
		t.Fatalf("unexpected order %+v", res.Order)
	}
}

func TestFailedRedeemLeavesStateUnchanged(t *testing.T) {
	conn, store := newStore(t)
	ctx := context.Background()
	user := dbtest.CreateUser(t, conn, "careful")
	other := dbtest.CreateUser(t, conn, "first")
	redeemer := NewRedeemer(conn, nil)

	expiring, _ := store.Create(ctx, CreateParams{Type: models.CardKeyTypePoints, Points: 100}, nil)
	past := time.Now().UTC().Add(-time.Hour)
	if err := conn.Model(&models.CardKey{}).Where("id = ?", expiring.ID).Update("expire_at", past).Error; err != nil {
		t.Fatalf("expire card: %v", err)
	}
	used, _ := store.Create(ctx, CreateParams{Type: models.CardKeyTypeVIP, VIPLevel: 1, VIPDays: 5}, nil)
	if _, err := redeemer.Redeem(ctx, used.Code, other.ID); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	disabled, _ := store.Create(ctx, CreateParams{Type: models.CardKeyTypePoints, Points: 100}, nil)
	if _, err := store.Disable(ctx, disabled.ID); err != nil {
		t.Fatalf("disable: %v", err)
	}

	before := loadUser(t, conn, user.ID)
	cases := []struct {
		name string
		code string
		user uint64
		want error
	}{
		{"expired", expiring.Code, user.ID, ErrExpired},
		{"already used", used.Code, user.ID, ErrAlreadyRedeemed},
		{"disabled", disabled.Code, user.ID, ErrDisabled},
		{"unknown", "AAAA-BBBB-CCCC-DDDD", user.ID, ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := redeemer.Redeem(ctx, tc.code, tc.user); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	after := loadUser(t, conn, user.ID)
	if !sameRewardState(before, after) {
		t.Fatalf("user state changed:\nbefore %+v\nafter  %+v", before, after)
	}
	if stored := loadCard(t, conn, expiring.Code); stored.Status != models.CardKeyStatusUnused || stored.UsedBy != nil {
		t.Fatalf("expired card mutated: %+v", stored)
	}
	if n := countRows(t, conn, &models.VIPOrder{}, "user_id = ?", user.ID); n != 0 {
		t.Fatalf("expected no orders, got %d", n)
	}
	if n := countRows(t, conn, &models.PointsRecord{}, "user_id = ?", user.ID); n != 0 {
		t.Fatalf("expected no ledger rows, got %d", n)
	}
}

func sameRewardState(a, b models.User) bool {
	sameExpiry := (a.VIPExpireAt == nil) == (b.VIPExpireAt == nil)
	if sameExpiry && a.VIPExpireAt != nil {
		sameExpiry = a.VIPExpireAt.Equal(*b.VIPExpireAt)
	}
	return sameExpiry &&
		a.Points == b.Points &&
		a.TotalPoints == b.TotalPoints &&
		a.IsVIP == b.IsVIP &&
		a.VIPLevel == b.VIPLevel &&
		a.VIPActivatedAt == nil && b.VIPActivatedAt == nil &&
		a.CommissionBalance.Equal(b.CommissionBalance) &&
		a.UpdatedAt.Equal(b.UpdatedAt)
}

func TestRedeemUnknownUserRollsBack(t *testing.T) {
	conn, store := newStore(t)
	ctx := context.Background()
	card, _ := store.Create(ctx, CreateParams{Type: models.CardKeyTypePoints, Points: 100}, nil)
	if _, err := NewRedeemer(conn, nil).Redeem(ctx, card.Code, 4242); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if stored := loadCard(t, conn, card.Code); stored.Status != models.CardKeyStatusUnused {
		t.Fatalf("expected card to stay unused, got %s", stored.Status)
	}
}

type brokenProcessor struct{}

func (brokenProcessor) ProcessCommission(context.Context, uint64, *models.VIPOrder, *models.CardKey, string) (*models.Commission, error) {
	return nil, errors.New("commission backend down")
}

func TestCommissionFailureDoesNotFailRedeem(t *testing.T) {
	conn, store := newStore(t)
	ctx := context.Background()
	user := dbtest.CreateUser(t, conn, "referred")
	card, _ := store.Create(ctx, CreateParams{Type: models.CardKeyTypeVIP, VIPLevel: 2, VIPDays: 30}, nil)

	dispatcher := referral.NewDispatcher(conn, brokenProcessor{}, time.Minute)
	res, err := NewRedeemer(conn, dispatcher).Redeem(ctx, card.Code, user.ID)
	if err != nil {
		t.Fatalf("redeem should succeed despite commission failure: %v", err)
	}
	if res.Commission != nil {
		t.Fatalf("expected nil commission, got %+v", res.Commission)
	}
	if stored := loadCard(t, conn, card.Code); stored.Status != models.CardKeyStatusUsed {
		t.Fatalf("expected card used, got %s", stored.Status)
	}

	var ev models.CommissionEvent
	if err := conn.Where("order_id = ?", res.Order.ID).First(&ev).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if ev.Status != models.CommissionEventPending || ev.Attempts != 1 || ev.LastError == "" {
		t.Fatalf("expected event pending for retry, got %+v", ev)
	}
}

func TestCommissionPaidAfterCommit(t *testing.T) {
	conn, store := newStore(t)
	ctx := context.Background()
	referrer := dbtest.CreateUser(t, conn, "inviter")
	user := dbtest.CreateUser(t, conn, "invitee")
	code, err := referral.AssignInviteCode(conn, referrer.ID)
	if err != nil {
		t.Fatalf("invite code: %v", err)
	}
	if _, err := referral.Bind(conn, user.ID, code); err != nil {
		t.Fatalf("bind: %v", err)
	}
	card, _ := store.Create(ctx, CreateParams{Type: models.CardKeyTypeVIP, VIPLevel: 2, VIPDays: 30}, nil)

	dispatcher := referral.NewDispatcher(conn, referral.NewService(conn), time.Minute)
	res, err := NewRedeemer(conn, dispatcher).Redeem(ctx, card.Code, user.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if res.Commission == nil || res.Commission.ReferrerID != referrer.ID || !res.Commission.Amount.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("unexpected commission %+v", res.Commission)
	}
	if got := loadUser(t, conn, referrer.ID); !got.CommissionBalance.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected referrer credited 2.00, got %s", got.CommissionBalance)
	}
}

func TestRedeemReportsAlreadyRedeemedWhenUpdateLosesRace(t *testing.T) {
	conn, store := newStore(t)
	ctx := context.Background()
	user := dbtest.CreateUser(t, conn, "late")
	rival := dbtest.CreateUser(t, conn, "early")
	card, err := store.Create(ctx, CreateParams{Type: models.CardKeyTypePoints, Points: 200}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Another writer claims the card after the status read but before the
	// conditional UPDATE runs, inside the same transaction.
	claimed := false
	errRegister := conn.Callback().Update().Before("gorm:update").Register("cardkey_test:claim_first", func(db *gorm.DB) {
		if claimed || db.Statement.Table != "card_keys" {
			return
		}
		claimed = true
		if _, errExec := db.Statement.ConnPool.ExecContext(db.Statement.Context,
			"UPDATE card_keys SET status = ?, used_by = ? WHERE id = ?",
			models.CardKeyStatusUsed, rival.ID, card.ID); errExec != nil {
			_ = db.AddError(errExec)
		}
	})
	if errRegister != nil {
		t.Fatalf("register callback: %v", errRegister)
	}
	t.Cleanup(func() { _ = conn.Callback().Update().Remove("cardkey_test:claim_first") })

	_, errRedeem := NewRedeemer(conn, nil).Redeem(ctx, card.Code, user.ID)
	if !claimed {
		t.Fatalf("conditional update was never reached")
	}
	if !errors.Is(errRedeem, ErrAlreadyRedeemed) {
		t.Fatalf("expected ErrAlreadyRedeemed, got %v", errRedeem)
	}
	if got := loadUser(t, conn, user.ID); got.Points != 0 {
		t.Fatalf("losing redeemer was credited %d points", got.Points)
	}
	if n := countRows(t, conn, &models.VIPOrder{}, "user_id = ?", user.ID); n != 0 {
		t.Fatalf("expected no order for the losing redeemer, got %d", n)
	}
	if n := countRows(t, conn, &models.PointsRecord{}, "user_id = ?", user.ID); n != 0 {
		t.Fatalf("expected no ledger rows, got %d", n)
	}
}
