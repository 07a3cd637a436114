package cardkey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	dbutil "github.com/alcms-dev/alcms-server/internal/db"
	"github.com/alcms-dev/alcms-server/internal/models"
	"github.com/alcms-dev/alcms-server/internal/pagination"
	"github.com/alcms-dev/alcms-server/internal/settings"
	"github.com/alcms-dev/alcms-server/internal/vip"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	// MaxBatchSize caps CreateBatch.
	MaxBatchSize     = 1000
	// MaxCardPoints caps the points a single card can grant.
	MaxCardPoints    = 100_000_000
	maxCodeAttempts  = 5
	cardViewSelect   = "card_keys.*, admins.username AS creator_username, users.username AS used_by_username"
	joinCreatorAdmin = "LEFT JOIN admins ON admins.id = card_keys.created_by"
	joinRedeemerUser = "LEFT JOIN users ON users.id = card_keys.used_by"
)

// Store persists card keys.
type Store struct {
	db     *gorm.DB
	levels *vip.Levels
	now    func() time.Time
}

// NewStore constructs a card key store.
func NewStore(db *gorm.DB, levels *vip.Levels) *Store {
	return &Store{db: db, levels: levels, now: time.Now}
}

// CreateParams describes the cards to create.
type CreateParams struct {
	Type        string
	VIPLevel    int
	VIPDays     int
	Points      int64
	ValueAmount *decimal.Decimal // Derived when nil.
	ExpireAt    *time.Time
}

// CardView is a card with the creator and redeemer usernames.
type CardView struct {
	models.CardKey
	CreatorUsername string
	UsedByUsername  string
}

func (s *Store) validate(conn *gorm.DB, p CreateParams) (decimal.Decimal, error) {
	now := s.now().UTC()
	if p.ExpireAt != nil && !p.ExpireAt.After(now) {
		return decimal.Zero, fmt.Errorf("%w: expire_at must be in the future", ErrInvalidParams)
	}
	if p.ValueAmount != nil && p.ValueAmount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: value_amount must not be negative", ErrInvalidParams)
	}

	switch p.Type {
	case models.CardKeyTypeVIP:
		if p.VIPLevel <= 0 {
			return decimal.Zero, fmt.Errorf("%w: vip_level must be positive", ErrInvalidParams)
		}
		if p.VIPDays < 0 {
			return decimal.Zero, fmt.Errorf("%w: vip_days must not be negative", ErrInvalidParams)
		}
		level, errLevel := s.levels.Get(conn, p.VIPLevel)
		if errLevel != nil {
			if errors.Is(errLevel, vip.ErrLevelNotFound) {
				return decimal.Zero, fmt.Errorf("%w: %d", ErrUnknownVIPLevel, p.VIPLevel)
			}
			return decimal.Zero, errLevel
		}
		if p.ValueAmount != nil {
			return p.ValueAmount.Round(2), nil
		}
		return vip.ValueForDays(level.MonthlyPrice, p.VIPDays), nil
	case models.CardKeyTypePoints:
		if p.Points <= 0 || p.Points > MaxCardPoints {
			return decimal.Zero, fmt.Errorf("%w: points must be between 1 and %d", ErrInvalidParams, MaxCardPoints)
		}
		if p.ValueAmount != nil {
			return p.ValueAmount.Round(2), nil
		}
		return PointsValue(p.Points), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: type must be vip or points", ErrInvalidParams)
	}
}

// PointsValue converts points to currency at the configured rate.
func PointsValue(points int64) decimal.Decimal {
	perUnit := settings.Int(settings.PointsPerCurrencyUnitKey, settings.DefaultPointsPerCurrencyUnit)
	if perUnit <= 0 {
		perUnit = settings.DefaultPointsPerCurrencyUnit
	}
	return decimal.NewFromInt(points).Div(decimal.NewFromInt(int64(perUnit))).Round(2)
}

func (s *Store) newCard(p CreateParams, value decimal.Decimal, batchID *string, createdBy *uint64) models.CardKey {
	card := models.CardKey{
		Type:        p.Type,
		ValueAmount: value,
		Status:      models.CardKeyStatusUnused,
		ExpireAt:    p.ExpireAt,
		BatchID:     batchID,
		CreatedBy:   createdBy,
	}
	if p.Type == models.CardKeyTypeVIP {
		card.VIPLevel = p.VIPLevel
		card.VIPDays = p.VIPDays
	} else {
		card.Points = p.Points
	}
	return card
}

// insertWithRetry assigns a fresh code and inserts the card, regenerating
// the code on a unique collision. Each attempt runs in a savepoint so a
// collision does not abort the enclosing transaction.
func insertWithRetry(tx *gorm.DB, card *models.CardKey) error {
	var lastErr error
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, errCode := GenerateCode(DefaultCodeLength)
		if errCode != nil {
			return errCode
		}
		card.ID = 0
		card.Code = code
		lastErr = tx.Transaction(func(sp *gorm.DB) error {
			return sp.Create(card).Error
		})
		if lastErr == nil {
			return nil
		}
		if !dbutil.IsUniqueViolation(lastErr) {
			return fmt.Errorf("create card key: %w", lastErr)
		}
	}
	return fmt.Errorf("create card key: code collision after %d attempts: %w", maxCodeAttempts, lastErr)
}

// Create inserts a single card.
func (s *Store) Create(ctx context.Context, p CreateParams, createdBy *uint64) (*models.CardKey, error) {
	var card models.CardKey
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		value, errValidate := s.validate(tx, p)
		if errValidate != nil {
			return errValidate
		}
		card = s.newCard(p, value, nil, createdBy)
		return insertWithRetry(tx, &card)
	})
	if errTx != nil {
		return nil, errTx
	}
	return &card, nil
}

// CreateBatch inserts count cards sharing one batch id. Either every card
// is created or none is.
func (s *Store) CreateBatch(ctx context.Context, p CreateParams, count int, createdBy *uint64) (string, []models.CardKey, error) {
	if count < 1 || count > MaxBatchSize {
		return "", nil, fmt.Errorf("%w: count must be between 1 and %d", ErrInvalidParams, MaxBatchSize)
	}
	batchID, errBatch := GenerateBatchID(s.now())
	if errBatch != nil {
		return "", nil, errBatch
	}
	cards := make([]models.CardKey, 0, count)
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		value, errValidate := s.validate(tx, p)
		if errValidate != nil {
			return errValidate
		}
		for i := 0; i < count; i++ {
			card := s.newCard(p, value, &batchID, createdBy)
			if errInsert := insertWithRetry(tx, &card); errInsert != nil {
				return errInsert
			}
			cards = append(cards, card)
		}
		return nil
	})
	if errTx != nil {
		return "", nil, errTx
	}
	return batchID, cards, nil
}

func (s *Store) viewQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("card_keys").
		Select(cardViewSelect).
		Joins(joinCreatorAdmin).
		Joins(joinRedeemerUser)
}

// GetByCode loads a card by code.
func (s *Store) GetByCode(ctx context.Context, code string) (*CardView, error) {
	var rows []CardView
	if errFind := s.viewQuery(ctx).Where("card_keys.code = ?", NormalizeCode(code)).Limit(1).Scan(&rows).Error; errFind != nil {
		return nil, errFind
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// GetByID loads a card by primary key.
func (s *Store) GetByID(ctx context.Context, id uint64) (*CardView, error) {
	var rows []CardView
	if errFind := s.viewQuery(ctx).Where("card_keys.id = ?", id).Limit(1).Scan(&rows).Error; errFind != nil {
		return nil, errFind
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// Filter narrows card listings.
type Filter struct {
	Status    string
	Type      string
	BatchID   string
	CreatedBy uint64
	UsedBy    uint64
	Code      string
	Page      pagination.Params
}

func (s *Store) filtered(ctx context.Context, f Filter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.CardKey{})
	if f.Status != "" {
		q = q.Where("card_keys.status = ?", f.Status)
	}
	if f.Type != "" {
		q = q.Where("card_keys.type = ?", f.Type)
	}
	if f.BatchID != "" {
		q = q.Where("card_keys.batch_id = ?", f.BatchID)
	}
	if f.CreatedBy != 0 {
		q = q.Where("card_keys.created_by = ?", f.CreatedBy)
	}
	if f.UsedBy != 0 {
		q = q.Where("card_keys.used_by = ?", f.UsedBy)
	}
	if code := strings.TrimSpace(f.Code); code != "" {
		pattern := dbutil.NormalizeLikePattern(s.db, "%"+code+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(s.db, "card_keys.code"), pattern)
	}
	return q
}

// List returns cards matching f, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]CardView, pagination.Page, error) {
	var total int64
	if errCount := s.filtered(ctx, f).Count(&total).Error; errCount != nil {
		return nil, pagination.Page{}, errCount
	}
	p := f.Page.Normalize()
	var rows []CardView
	if errFind := s.filtered(ctx, f).
		Select(cardViewSelect).
		Joins(joinCreatorAdmin).
		Joins(joinRedeemerUser).
		Order("card_keys.id DESC").
		Offset(p.Offset).
		Limit(p.Limit).
		Scan(&rows).Error; errFind != nil {
		return nil, pagination.Page{}, errFind
	}
	return rows, pagination.NewPage(p, total), nil
}

// ListRedeemedBy lists cards the user has redeemed, most recent first.
func (s *Store) ListRedeemedBy(ctx context.Context, userID uint64, p pagination.Params) ([]CardView, pagination.Page, error) {
	return s.List(ctx, Filter{UsedBy: userID, Status: models.CardKeyStatusUsed, Page: p})
}

// Stats summarizes the card inventory.
type Stats struct {
	Total         int64           `json:"total"`
	Unused        int64           `json:"unused"`
	Used          int64           `json:"used"`
	Disabled      int64           `json:"disabled"`
	VIP           int64           `json:"vip"`
	Points        int64           `json:"points"`
	TotalValue    decimal.Decimal `json:"total_value"`
	RedeemedValue decimal.Decimal `json:"redeemed_value"`
}

type groupCount struct {
	Grp   string
	Count int64
	Value decimal.NullDecimal
}

// Stats counts cards by status and type and sums their value.
func (s *Store) Stats(ctx context.Context, batchID string) (*Stats, error) {
	base := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.CardKey{})
		if batchID != "" {
			q = q.Where("batch_id = ?", batchID)
		}
		return q
	}
	out := &Stats{TotalValue: decimal.Zero, RedeemedValue: decimal.Zero}

	var byStatus []groupCount
	if errStatus := base().Select("status AS grp, COUNT(*) AS count, SUM(value_amount) AS value").
		Group("status").Scan(&byStatus).Error; errStatus != nil {
		return nil, errStatus
	}
	for _, row := range byStatus {
		out.Total += row.Count
		if row.Value.Valid {
			out.TotalValue = out.TotalValue.Add(row.Value.Decimal)
		}
		switch row.Grp {
		case models.CardKeyStatusUnused:
			out.Unused = row.Count
		case models.CardKeyStatusUsed:
			out.Used = row.Count
			if row.Value.Valid {
				out.RedeemedValue = row.Value.Decimal
			}
		case models.CardKeyStatusDisabled:
			out.Disabled = row.Count
		}
	}

	var byType []groupCount
	if errType := base().Select("type AS grp, COUNT(*) AS count").Group("type").Scan(&byType).Error; errType != nil {
		return nil, errType
	}
	for _, row := range byType {
		switch row.Grp {
		case models.CardKeyTypeVIP:
			out.VIP = row.Count
		case models.CardKeyTypePoints:
			out.Points = row.Count
		}
	}
	out.TotalValue = out.TotalValue.Round(2)
	out.RedeemedValue = out.RedeemedValue.Round(2)
	return out, nil
}

// BatchSummary aggregates one generation batch.
type BatchSummary struct {
	BatchID   string    `json:"batch_id"`
	Type      string    `json:"type"`
	Total     int64     `json:"total"`
	Used      int64     `json:"used"`
	Disabled  int64     `json:"disabled"`
	CreatedAt time.Time `json:"created_at"`
}

type batchRow struct {
	BatchID   string
	Type      string
	Total     int64
	Used      int64
	Disabled  int64
	CreatedAt string
}

// ListBatches summarizes batches, newest first.
func (s *Store) ListBatches(ctx context.Context, p pagination.Params) ([]BatchSummary, pagination.Page, error) {
	q := s.db.WithContext(ctx).Model(&models.CardKey{}).Where("batch_id IS NOT NULL")
	var total int64
	if errCount := q.Distinct("batch_id").Count(&total).Error; errCount != nil {
		return nil, pagination.Page{}, errCount
	}
	p = p.Normalize()
	var rows []batchRow
	if errFind := s.db.WithContext(ctx).Model(&models.CardKey{}).
		Where("batch_id IS NOT NULL").
		Select("batch_id, MIN(type) AS type, COUNT(*) AS total, " +
			"SUM(CASE WHEN status = 'used' THEN 1 ELSE 0 END) AS used, " +
			"SUM(CASE WHEN status = 'disabled' THEN 1 ELSE 0 END) AS disabled, " +
			"MIN(created_at) AS created_at").
		Group("batch_id").
		Order("MIN(id) DESC").
		Offset(p.Offset).
		Limit(p.Limit).
		Scan(&rows).Error; errFind != nil {
		return nil, pagination.Page{}, errFind
	}
	out := make([]BatchSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, BatchSummary{
			BatchID:   row.BatchID,
			Type:      row.Type,
			Total:     row.Total,
			Used:      row.Used,
			Disabled:  row.Disabled,
			CreatedAt: parseAggregateTime(row.CreatedAt),
		})
	}
	return out, pagination.NewPage(p, total), nil
}

// parseAggregateTime reads MIN(created_at), which SQLite returns as text.
func parseAggregateTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05.999999999Z07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// Delete removes an unused card. Used and disabled cards are kept and the
// call reports zero rows deleted.
func (s *Store) Delete(ctx context.Context, id uint64) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, models.CardKeyStatusUnused).
		Delete(&models.CardKey{})
	return res.RowsAffected, res.Error
}

// DeleteBatch removes the unused cards of a batch.
func (s *Store) DeleteBatch(ctx context.Context, batchID string) (int64, error) {
	if strings.TrimSpace(batchID) == "" {
		return 0, fmt.Errorf("%w: batch_id is required", ErrInvalidParams)
	}
	res := s.db.WithContext(ctx).
		Where("batch_id = ? AND status = ?", batchID, models.CardKeyStatusUnused).
		Delete(&models.CardKey{})
	return res.RowsAffected, res.Error
}

// Disable moves an unused card to disabled.
func (s *Store) Disable(ctx context.Context, id uint64) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.CardKey{}).
		Where("id = ? AND status = ?", id, models.CardKeyStatusUnused).
		Update("status", models.CardKeyStatusDisabled)
	return res.RowsAffected, res.Error
}

// DisableBatch disables the unused cards of a batch.
func (s *Store) DisableBatch(ctx context.Context, batchID string) (int64, error) {
	if strings.TrimSpace(batchID) == "" {
		return 0, fmt.Errorf("%w: batch_id is required", ErrInvalidParams)
	}
	res := s.db.WithContext(ctx).Model(&models.CardKey{}).
		Where("batch_id = ? AND status = ?", batchID, models.CardKeyStatusUnused).
		Update("status", models.CardKeyStatusDisabled)
	return res.RowsAffected, res.Error
}
