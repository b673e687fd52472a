package order

import "errors"

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrStatusConflict = errors.New("conflicting terminal status")
	ErrUnauthorized   = errors.New("unauthorized")
)
