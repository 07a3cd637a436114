package points

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
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const dayLayout = "2006-01-02"

// Service runs multi-step points operations in their own transactions.
type Service struct {
	db *gorm.DB
}

// NewService constructs a points service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// TransferResult reports both sides of a transfer.
type TransferResult struct {
	From *Result `json:"from"`
	To   *Result `json:"to"`
}

// Transfer moves amount points from one user to another.
func (s *Service) Transfer(ctx context.Context, fromID, toID uint64, amount int64, note string) (*TransferResult, error) {
	if fromID == toID {
		return nil, ErrSelfTransfer
	}
	var out TransferResult
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		desc := strings.TrimSpace(note)
		from, errDeduct := Deduct(tx, Change{
			UserID:      fromID,
			Amount:      amount,
			Source:      models.PointsSourceTransferOut,
			Description: describe("transfer to user", toID, desc),
			RelatedID:   &toID,
			RelatedType: "user",
		})
		if errDeduct != nil {
			return errDeduct
		}
		to, errAdd := Add(tx, Change{
			UserID:      toID,
			Amount:      amount,
			Source:      models.PointsSourceTransferIn,
			Description: describe("transfer from user", fromID, desc),
			RelatedID:   &fromID,
			RelatedType: "user",
		})
		if errAdd != nil {
			return errAdd
		}
		out.From, out.To = from, to
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return &out, nil
}

func describe(prefix string, id uint64, note string) string {
	if note == "" {
		return fmt.Sprintf("%s %d", prefix, id)
	}
	return fmt.Sprintf("%s %d: %s", prefix, id, note)
}

// AdminAdjust credits a positive delta or debits a negative one.
func (s *Service) AdminAdjust(ctx context.Context, userID uint64, delta int64, reason string, adminID uint64) (*Result, error) {
	if delta == 0 {
		return nil, ErrInvalidAmount
	}
	var out *Result
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c := Change{
			UserID:      userID,
			Source:      models.PointsSourceAdmin,
			Description: strings.TrimSpace(reason),
			RelatedID:   &adminID,
			RelatedType: "admin",
		}
		var errApply error
		if delta > 0 {
			c.Amount = delta
			out, errApply = Add(tx, c)
		} else {
			c.Amount = -delta
			out, errApply = Deduct(tx, c)
		}
		return errApply
	})
	if errTx != nil {
		return nil, errTx
	}
	return out, nil
}

// RecordFilter narrows ledger listings.
type RecordFilter struct {
	Type   string
	Source string
	Page   pagination.Params
}

// Records lists a user's ledger, newest first.
func (s *Service) Records(ctx context.Context, userID uint64, f RecordFilter) ([]models.PointsRecord, pagination.Page, error) {
	q := s.db.WithContext(ctx).Model(&models.PointsRecord{}).Where("user_id = ?", userID)
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Source != "" {
		q = q.Where("source = ?", f.Source)
	}
	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		return nil, pagination.Page{}, errCount
	}
	params := f.Page.Normalize()
	var rows []models.PointsRecord
	if errFind := q.Order("id DESC").Offset(params.Offset).Limit(params.Limit).Find(&rows).Error; errFind != nil {
		return nil, pagination.Page{}, errFind
	}
	return rows, pagination.NewPage(params, total), nil
}

// CheckinResult reports a completed daily check-in.
type CheckinResult struct {
	Day     string  `json:"day"`
	Streak  int     `json:"streak"`
	Points  int64   `json:"points"`
	Balance *Result `json:"balance"`
}

// CheckinReward returns the points for a check-in on the given streak day.
func CheckinReward(streak int) int64 {
	base := int64(settings.Int(settings.CheckinBasePointsKey, settings.DefaultCheckinBasePoints))
	bonus := int64(settings.Int(settings.CheckinStreakBonusKey, settings.DefaultCheckinStreakBonus))
	days := streak - 1
	if days > settings.MaxCheckinStreakBonusDays {
		days = settings.MaxCheckinStreakBonusDays
	}
	if days < 0 {
		days = 0
	}
	return base + bonus*int64(days)
}

// Checkin records today's check-in and credits the reward. A consecutive
// day continues the previous streak.
func (s *Service) Checkin(ctx context.Context, userID uint64, now time.Time) (*CheckinResult, error) {
	today := now.UTC().Format(dayLayout)
	yesterday := now.UTC().AddDate(0, 0, -1).Format(dayLayout)

	var out CheckinResult
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&user, userID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return errFind
		}

		var existing int64
		if errCount := tx.Model(&models.Checkin{}).Where("user_id = ? AND day = ?", userID, today).Count(&existing).Error; errCount != nil {
			return errCount
		}
		if existing > 0 {
			return ErrAlreadyCheckedIn
		}

		streak := 1
		var prev models.Checkin
		errPrev := tx.Where("user_id = ? AND day = ?", userID, yesterday).First(&prev).Error
		switch {
		case errPrev == nil:
			streak = prev.Streak + 1
		case !errors.Is(errPrev, gorm.ErrRecordNotFound):
			return errPrev
		}

		reward := CheckinReward(streak)
		row := models.Checkin{UserID: userID, Day: today, Streak: streak, Points: reward}
		if errCreate := tx.Create(&row).Error; errCreate != nil {
			if dbutil.IsUniqueViolation(errCreate) {
				return ErrAlreadyCheckedIn
			}
			return errCreate
		}

		balance, errAdd := Add(tx, Change{
			UserID:      userID,
			Amount:      reward,
			Source:      models.PointsSourceCheckin,
			Description: fmt.Sprintf("daily check-in, streak %d", streak),
			RelatedID:   &row.ID,
			RelatedType: "checkin",
		})
		if errAdd != nil {
			return errAdd
		}
		out = CheckinResult{Day: today, Streak: streak, Points: reward, Balance: balance}
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return &out, nil
}

// CheckinStatus describes the user's check-in state for today.
type CheckinStatus struct {
	Day            string `json:"day"`
	CheckedIn      bool   `json:"checked_in"`
	Streak         int    `json:"streak"`
	NextReward     int64  `json:"next_reward"`
	TotalCheckins  int64  `json:"total_checkins"`
	LastCheckinDay string `json:"last_checkin_day,omitempty"`
}

// CheckinStatus reports whether the user checked in today and the current streak.
func (s *Service) CheckinStatus(ctx context.Context, userID uint64, now time.Time) (CheckinStatus, error) {
	today := now.UTC().Format(dayLayout)
	yesterday := now.UTC().AddDate(0, 0, -1).Format(dayLayout)
	st := CheckinStatus{Day: today}

	conn := s.db.WithContext(ctx)
	if errCount := conn.Model(&models.Checkin{}).Where("user_id = ?", userID).Count(&st.TotalCheckins).Error; errCount != nil {
		return st, errCount
	}
	var last models.Checkin
	errLast := conn.Where("user_id = ?", userID).Order("day DESC").First(&last).Error
	if errLast != nil && !errors.Is(errLast, gorm.ErrRecordNotFound) {
		return st, errLast
	}
	if errLast == nil {
		st.LastCheckinDay = last.Day
		switch last.Day {
		case today:
			st.CheckedIn = true
			st.Streak = last.Streak
		case yesterday:
			st.Streak = last.Streak
		}
	}
	st.NextReward = CheckinReward(st.Streak + 1)
	return st, nil
}
