package cardkey

import "errors"

// Redemption and management errors.
var (
	ErrNotFound        = errors.New("card key not found")
	ErrAlreadyRedeemed = errors.New("card key already redeemed")
	ErrDisabled        = errors.New("card key disabled")
	ErrExpired         = errors.New("card key expired")
	ErrUserNotFound    = errors.New("user not found")
	ErrUnknownVIPLevel = errors.New("unknown vip level")
	ErrInvalidParams   = errors.New("invalid card key parameters")
)
