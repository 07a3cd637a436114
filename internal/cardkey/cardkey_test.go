package cardkey

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alcms-dev/alcms-server/internal/db/dbtest"
	"github.com/alcms-dev/alcms-server/internal/models"
	"github.com/alcms-dev/alcms-server/internal/pagination"
	"github.com/alcms-dev/alcms-server/internal/vip"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func newStore(t *testing.T) (*gorm.DB, *Store) {
	t.Helper()
	conn := dbtest.Open(t)
	dbtest.SeedVIPLevels(t, conn)
	levels, err := vip.NewLevels(conn)
	if err != nil {
		t.Fatalf("levels: %v", err)
	}
	return conn, NewStore(conn, levels)
}

func TestGenerateCodeShape(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code, err := GenerateCode(DefaultCodeLength)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != 19 || !ValidCode(code) {
			t.Fatalf("unexpected code %q", code)
		}
		if strings.ContainsAny(code, "01OI") {
			t.Fatalf("code %q contains confusable characters", code)
		}
		seen[code] = struct{}{}
	}
	if len(seen) != 200 {
		t.Fatalf("expected 200 distinct codes, got %d", len(seen))
	}

	batchID, err := GenerateBatchID(time.UnixMilli(1700000000123))
	if err != nil {
		t.Fatalf("batch id: %v", err)
	}
	if !strings.HasPrefix(batchID, "BATCH_1700000000123_") || len(batchID) != len("BATCH_1700000000123_")+8 {
		t.Fatalf("unexpected batch id %q", batchID)
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode(" abcdefghjkmnpqrs "); got != "ABCD-EFGH-JKMN-PQRS" {
		t.Fatalf("unexpected normalized code %q", got)
	}
	if got := NormalizeCode("abcd-efgh"); got != "ABCD-EFGH" {
		t.Fatalf("unexpected normalized code %q", got)
	}
}

func TestCreateDerivesValue(t *testing.T) {
	_, store := newStore(t)
	ctx := context.Background()

	vipCard, err := store.Create(ctx, CreateParams{Type: models.CardKeyTypeVIP, VIPLevel: 2, VIPDays: 30}, nil)
	if err != nil {
		t.Fatalf("create vip: %v", err)
	}
	if !vipCard.ValueAmount.Equal(decimal.RequireFromString("19.99")) {
		t.Fatalf("expected 19.99, got %s", vipCard.ValueAmount)
	}

	pointsCard, err := store.Create(ctx, CreateParams{Type: models.CardKeyTypePoints, Points: 550}, nil)
	if err != nil {
		t.Fatalf("create points: %v", err)
	}
	if !pointsCard.ValueAmount.Equal(decimal.RequireFromString("5.5")) {
		t.Fatalf("expected 5.50, got %s", pointsCard.ValueAmount)
	}

	explicit := decimal.RequireFromString("3.333")
	custom, err := store.Create(ctx, CreateParams{Type: models.CardKeyTypeVIP, VIPLevel: 1, ValueAmount: &explicit}, nil)
	if err != nil {
		t.Fatalf("create custom: %v", err)
	}
	if !custom.ValueAmount.Equal(decimal.RequireFromString("3.33")) {
		t.Fatalf("expected 3.33, got %s", custom.ValueAmount)
	}

	if _, err := store.Create(ctx, CreateParams{Type: models.CardKeyTypeVIP, VIPLevel: 9, VIPDays: 30}, nil); !errors.Is(err, ErrUnknownVIPLevel) {
		t.Fatalf("expected ErrUnknownVIPLevel, got %v", err)
	}
	if _, err := store.Create(ctx, CreateParams{Type: models.CardKeyTypePoints}, nil); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
	if _, err := store.Create(ctx, CreateParams{Type: models.CardKeyTypePoints, Points: MaxCardPoints + 1}, nil); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected oversized points card to be rejected, got %v", err)
	}
	if _, err := store.Create(ctx, CreateParams{Type: models.CardKeyTypePoints, Points: MaxCardPoints}, nil); err != nil {
		t.Fatalf("create max points card: %v", err)
	}
	if _, err := store.Create(ctx, CreateParams{Type: "coupon"}, nil); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
}

func TestCreateBatchRoundTrip(t *testing.T) {
	conn, store := newStore(t)
	admin := dbtest.CreateAdmin(t, conn, "root")
	ctx := context.Background()

	batchID, cards, err := store.CreateBatch(ctx, CreateParams{Type: models.CardKeyTypePoints, Points: 100}, 25, &admin.ID)
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	if len(cards) != 25 {
		t.Fatalf("expected 25 cards, got %d", len(cards))
	}

	rows, page, err := store.List(ctx, Filter{BatchID: batchID, Page: pagination.Params{Limit: 100}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 25 || page.Total != 25 || page.HasNext {
		t.Fatalf("expected 25 listed cards, got %d (page %+v)", len(rows), page)
	}
	codes := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if row.Status != models.CardKeyStatusUnused {
			t.Fatalf("expected unused, got %s", row.Status)
		}
		if !ValidCode(row.Code) || len(row.Code) != 19 {
			t.Fatalf("unexpected code %q", row.Code)
		}
		if row.CreatorUsername != "root" {
			t.Fatalf("expected creator root, got %q", row.CreatorUsername)
		}
		codes[row.Code] = struct{}{}
	}
	if len(codes) != 25 {
		t.Fatalf("expected unique codes, got %d", len(codes))
	}

	batches, _, err := store.ListBatches(ctx, pagination.Params{})
	if err != nil {
		t.Fatalf("list batches: %v", err)
	}
	if len(batches) != 1 || batches[0].BatchID != batchID || batches[0].Total != 25 {
		t.Fatalf("unexpected batches %+v", batches)
	}

	if _, _, err := store.CreateBatch(ctx, CreateParams{Type: models.CardKeyTypePoints, Points: 1}, 1001, nil); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected count limit error, got %v", err)
	}
}

func TestCreateBatchRollsBackOnFailure(t *testing.T) {
	conn, store := newStore(t)
	missingAdmin := uint64(777)
	// The creator foreign key fails on the first insert.
	if _, _, err := store.CreateBatch(context.Background(), CreateParams{Type: models.CardKeyTypePoints, Points: 10}, 5, &missingAdmin); err == nil {
		t.Fatalf("expected batch failure")
	}
	var count int64
	conn.Model(&models.CardKey{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no cards after rollback, got %d", count)
	}
}

func TestDeleteAndDisableOnlyTouchUnused(t *testing.T) {
	conn, store := newStore(t)
	ctx := context.Background()
	user := dbtest.CreateUser(t, conn, "holder")
	batchID, cards, err := store.CreateBatch(ctx, CreateParams{Type: models.CardKeyTypePoints, Points: 10}, 4, nil)
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	redeemer := NewRedeemer(conn, nil)
	if _, err := redeemer.Redeem(ctx, cards[0].Code, user.ID); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	if n, err := store.Delete(ctx, cards[0].ID); err != nil || n != 0 {
		t.Fatalf("expected used card to survive delete, n=%d err=%v", n, err)
	}
	if n, err := store.Disable(ctx, cards[1].ID); err != nil || n != 1 {
		t.Fatalf("disable: n=%d err=%v", n, err)
	}
	if n, err := store.Disable(ctx, cards[0].ID); err != nil || n != 0 {
		t.Fatalf("expected used card not to be disabled, n=%d err=%v", n, err)
	}
	if n, err := store.DeleteBatch(ctx, batchID); err != nil || n != 2 {
		t.Fatalf("expected 2 unused cards deleted, n=%d err=%v", n, err)
	}

	stats, err := store.Stats(ctx, "")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 2 || stats.Used != 1 || stats.Disabled != 1 || stats.Points != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if !stats.RedeemedValue.Equal(decimal.RequireFromString("0.1")) {
		t.Fatalf("unexpected redeemed value %s", stats.RedeemedValue)
	}

	view, err := store.GetByCode(ctx, strings.ToLower(cards[0].Code))
	if err != nil {
		t.Fatalf("get by code: %v", err)
	}
	if view.UsedByUsername != "holder" || view.Status != models.CardKeyStatusUsed {
		t.Fatalf("unexpected view %+v", view)
	}
	if _, err := store.GetByCode(ctx, "ZZZZ-ZZZZ-ZZZZ-ZZZZ"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	mine, _, err := store.ListRedeemedBy(ctx, user.ID, pagination.Params{})
	if err != nil || len(mine) != 1 || mine[0].Code != cards[0].Code {
		t.Fatalf("unexpected redeemed list %+v err=%v", mine, err)
	}
}
