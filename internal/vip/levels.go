package vip

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alcms-dev/alcms-server/internal/models"
	lru "github.com/hashicorp/golang-lru"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const levelCacheSize = 64

// Level errors.
var (
	ErrLevelNotFound = errors.New("vip: level not found")
	ErrInvalidLevel  = errors.New("vip: invalid level")
)

// Levels reads and writes the VIP level table through an LRU cache.
type Levels struct {
	db    *gorm.DB
	cache *lru.Cache
}

// NewLevels constructs a level store.
func NewLevels(db *gorm.DB) (*Levels, error) {
	cache, err := lru.New(levelCacheSize)
	if err != nil {
		return nil, fmt.Errorf("vip: level cache: %w", err)
	}
	return &Levels{db: db, cache: cache}, nil
}

// Get returns the level definition, reading through conn on a cache miss.
// conn may be a transaction.
func (l *Levels) Get(conn *gorm.DB, level int) (*models.VIPLevel, error) {
	if cached, ok := l.cache.Get(level); ok {
		row := cached.(models.VIPLevel)
		return &row, nil
	}
	var row models.VIPLevel
	if errFind := conn.Where("level = ?", level).First(&row).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrLevelNotFound, level)
		}
		return nil, fmt.Errorf("vip: load level: %w", errFind)
	}
	l.cache.Add(level, row)
	return &row, nil
}

// List returns all levels ordered by rank. Disabled levels are included
// only when includeDisabled is set.
func (l *Levels) List(ctx context.Context, includeDisabled bool) ([]models.VIPLevel, error) {
	q := l.db.WithContext(ctx).Model(&models.VIPLevel{})
	if !includeDisabled {
		q = q.Where("enabled = ?", true)
	}
	var rows []models.VIPLevel
	if errFind := q.Order("level ASC").Find(&rows).Error; errFind != nil {
		return nil, errFind
	}
	return rows, nil
}

// LevelInput holds the writable fields of a level.
type LevelInput struct {
	Level        int
	Name         string
	MonthlyPrice decimal.Decimal
	Description  string
	Enabled      bool
}

// Save creates or updates the level keyed by in.Level.
func (l *Levels) Save(ctx context.Context, in LevelInput) (*models.VIPLevel, error) {
	if in.Level <= 0 {
		return nil, fmt.Errorf("%w: level must be positive", ErrInvalidLevel)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidLevel)
	}
	if in.MonthlyPrice.IsNegative() {
		return nil, fmt.Errorf("%w: monthly price must not be negative", ErrInvalidLevel)
	}
	row := models.VIPLevel{
		Level:        in.Level,
		Name:         name,
		MonthlyPrice: in.MonthlyPrice.Round(2),
		Description:  strings.TrimSpace(in.Description),
		Enabled:      in.Enabled,
	}
	errSave := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "level"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "monthly_price", "description", "enabled", "updated_at"}),
	}).Create(&row).Error
	l.cache.Remove(in.Level)
	if errSave != nil {
		return nil, fmt.Errorf("vip: save level: %w", errSave)
	}
	var saved models.VIPLevel
	if errFind := l.db.WithContext(ctx).Where("level = ?", in.Level).First(&saved).Error; errFind != nil {
		return nil, errFind
	}
	return &saved, nil
}

// Delete removes a level definition. Users already at that level keep it.
func (l *Levels) Delete(ctx context.Context, level int) error {
	res := l.db.WithContext(ctx).Where("level = ?", level).Delete(&models.VIPLevel{})
	l.cache.Remove(level)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrLevelNotFound, level)
	}
	return nil
}

// Invalidate drops every cached level.
func (l *Levels) Invalidate() {
	l.cache.Purge()
}

// ValueForDays prices days of VIP at the given monthly price, with 30 days
// to a month. A permanent grant (days == 0) is valued at twelve months.
func ValueForDays(monthly decimal.Decimal, days int) decimal.Decimal {
	if days <= 0 {
		return monthly.Mul(decimal.NewFromInt(12)).Round(2)
	}
	return monthly.Mul(decimal.NewFromInt(int64(days))).Div(decimal.NewFromInt(30)).Round(2)
}
