package vip

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/alcms-dev/alcms-server/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoleVIP is the role granted alongside VIP status.
const RoleVIP = "vip"

// Grant actions.
const (
	ActionExtend = "extend"
	ActionSet    = "set"
)

// ErrUserNotFound is returned when the target user does not exist.
var ErrUserNotFound = errors.New("vip: user not found")

// Result describes a VIP change applied to a user.
type Result struct {
	Action           string     `json:"action"`
	Level            int        `json:"level"`
	Days             int        `json:"days"`
	ExpireAt         *time.Time `json:"expire_at"`
	Permanent        bool       `json:"permanent"`
	PreviousLevel    int        `json:"previous_level"`
	PreviousExpireAt *time.Time `json:"previous_expire_at"`
}

// Grant applies a VIP reward: a user already VIP at level or higher has the
// grant extended, everyone else has it set.
func Grant(tx *gorm.DB, userID uint64, level, days int, now time.Time) (*Result, error) {
	user, err := lockUser(tx, userID)
	if err != nil {
		return nil, err
	}
	if user.VIPActive(now) && user.VIPLevel >= level {
		return extendUser(tx, user, level, days, now)
	}
	return setUser(tx, user, level, days, now)
}

// Extend pushes the user's expiry out by days, starting from now when the
// current expiry is unset or past. days == 0 makes the grant permanent.
func Extend(tx *gorm.DB, userID uint64, level, days int, now time.Time) (*Result, error) {
	user, err := lockUser(tx, userID)
	if err != nil {
		return nil, err
	}
	return extendUser(tx, user, level, days, now)
}

// Set overwrites the user's level and sets expiry to now+days, or
// permanent when days == 0.
func Set(tx *gorm.DB, userID uint64, level, days int, now time.Time) (*Result, error) {
	user, err := lockUser(tx, userID)
	if err != nil {
		return nil, err
	}
	return setUser(tx, user, level, days, now)
}

// Cancel revokes VIP status and the vip role.
func Cancel(tx *gorm.DB, userID uint64) error {
	if _, err := lockUser(tx, userID); err != nil {
		return err
	}
	if errUpdate := tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
		"is_vip":        false,
		"vip_level":     0,
		"vip_expire_at": nil,
	}).Error; errUpdate != nil {
		return fmt.Errorf("vip: cancel: %w", errUpdate)
	}
	if errDelete := tx.Where("user_id = ? AND role = ?", userID, RoleVIP).Delete(&models.UserRole{}).Error; errDelete != nil {
		return fmt.Errorf("vip: revoke role: %w", errDelete)
	}
	return nil
}

func extendUser(tx *gorm.DB, user *models.User, level, days int, now time.Time) (*Result, error) {
	res := &Result{
		Action:           ActionExtend,
		Days:             days,
		PreviousLevel:    user.VIPLevel,
		PreviousExpireAt: user.VIPExpireAt,
	}
	active := user.VIPActive(now)
	switch {
	case active && user.VIPExpireAt == nil:
		// Permanent stays permanent.
	case days == 0:
		res.ExpireAt = nil
	case !active:
		exp := now.UTC().AddDate(0, 0, days)
		res.ExpireAt = &exp
	default:
		exp := user.VIPExpireAt.UTC().AddDate(0, 0, days)
		res.ExpireAt = &exp
	}
	res.Level = level
	if active && user.VIPLevel > level {
		res.Level = user.VIPLevel
	}
	res.Permanent = res.ExpireAt == nil
	if err := applyVIP(tx, user, res.Level, res.ExpireAt, now); err != nil {
		return nil, err
	}
	return res, nil
}

func setUser(tx *gorm.DB, user *models.User, level, days int, now time.Time) (*Result, error) {
	res := &Result{
		Action:           ActionSet,
		Level:            level,
		Days:             days,
		PreviousLevel:    user.VIPLevel,
		PreviousExpireAt: user.VIPExpireAt,
	}
	if days > 0 {
		exp := now.UTC().AddDate(0, 0, days)
		res.ExpireAt = &exp
	}
	res.Permanent = res.ExpireAt == nil
	if err := applyVIP(tx, user, level, res.ExpireAt, now); err != nil {
		return nil, err
	}
	return res, nil
}

func applyVIP(tx *gorm.DB, user *models.User, level int, expireAt *time.Time, now time.Time) error {
	if level <= 0 {
		return fmt.Errorf("vip: invalid level %d", level)
	}
	updates := map[string]any{
		"is_vip":        true,
		"vip_level":     level,
		"vip_expire_at": expireAt,
	}
	if user.VIPActivatedAt == nil {
		updates["vip_activated_at"] = now.UTC()
	}
	if errUpdate := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; errUpdate != nil {
		return fmt.Errorf("vip: update user: %w", errUpdate)
	}
	return grantRole(tx, user.ID)
}

// grantRole inserts the vip role; an existing grant is left alone.
func grantRole(tx *gorm.DB, userID uint64) error {
	role := models.UserRole{UserID: userID, Role: RoleVIP}
	if errCreate := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&role).Error; errCreate != nil {
		return fmt.Errorf("vip: grant role: %w", errCreate)
	}
	return nil
}

func lockUser(tx *gorm.DB, userID uint64) (*models.User, error) {
	var user models.User
	if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("vip: load user: %w", errFind)
	}
	return &user, nil
}

// Status is the effective VIP view of a user.
type Status struct {
	IsVIP       bool       `json:"is_vip"`
	Level       int        `json:"level"`
	ExpireAt    *time.Time `json:"expire_at"`
	Permanent   bool       `json:"permanent"`
	ActivatedAt *time.Time `json:"activated_at"`
	DaysLeft    int        `json:"days_left"`
}

// StatusOf derives the effective status at now. An expired grant is
// reported as not VIP.
func StatusOf(user *models.User, now time.Time) Status {
	st := Status{ActivatedAt: user.VIPActivatedAt}
	if !user.VIPActive(now) {
		return st
	}
	st.IsVIP = true
	st.Level = user.VIPLevel
	st.ExpireAt = user.VIPExpireAt
	st.Permanent = user.VIPExpireAt == nil
	if user.VIPExpireAt != nil {
		st.DaysLeft = int(math.Ceil(user.VIPExpireAt.Sub(now).Hours() / 24))
	}
	return st
}

// LoadStatus reads the user and returns its effective VIP status.
func LoadStatus(ctx context.Context, db *gorm.DB, userID uint64, now time.Time) (Status, error) {
	var user models.User
	if errFind := db.WithContext(ctx).First(&user, userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return Status{}, ErrUserNotFound
		}
		return Status{}, errFind
	}
	return StatusOf(&user, now), nil
}
