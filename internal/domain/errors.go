package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrPaymentCreation    = errors.New("payment creation failed")
	ErrVerification       = errors.New("payment verification failed")
	ErrDuplicateOperation = errors.New("duplicate operation")
)
