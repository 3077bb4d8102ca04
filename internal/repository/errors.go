// Package repository persists the receipt ledger: one row per booking
// confirmed through this host.  The sentinel errors below let handlers
// tell failure scenarios apart without inspecting SQL errors.
package repository

import "errors"

// ErrNotFound is returned when no receipt matches the booking id.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// receipt owned by someone else.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when the receipt is already in the requested
// state, such as cancelling twice.
var ErrConflict = errors.New("conflict")
