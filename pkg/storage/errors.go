package storage

import "errors"

// ErrInsufficientBalance is returned when a subtract would drive a balance
// below zero.
var ErrInsufficientBalance = errors.New("insufficient balance")

// ErrBalanceNotFound is returned when an update targets a balance that does
// not exist.
var ErrBalanceNotFound = errors.New("balance not found")

// ErrBalanceNotActive is returned when a mutation targets a frozen or
// suspended balance.
var ErrBalanceNotActive = errors.New("balance cannot be modified")

// ErrIdempotencyKeyExists is returned when an idempotency record for the key
// already holds the lock.
var ErrIdempotencyKeyExists = errors.New("idempotency key already exists")

// ErrDepositNotFound is returned when a deposit lookup finds nothing.
var ErrDepositNotFound = errors.New("deposit not found")

// ErrActivityNotFound is returned when an activity lookup finds nothing.
var ErrActivityNotFound = errors.New("activity not found")
