package model

import "errors"

var (
	ErrInvalid         = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrBalanceConflict = errors.New("balance changed concurrently")
	ErrNoActiveAdmin   = errors.New("no active admin account")
)
