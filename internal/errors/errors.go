// Package errors defines the error type shared by the ledger, the runtime, the
// token program and the lending protocol.
//
// Every error carries a stable Code and a Kind that places it in the protocol's
// failure taxonomy: validation, derivation, authority, conflict or internal.
// No kind is retried internally; a failure aborts the whole transaction.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind string

const (
	// KindValidation covers bad amounts, missing prior state and insufficient balances.
	KindValidation Kind = "validation"
	// KindDerivation covers presented accounts that do not match their derived address.
	KindDerivation Kind = "derivation"
	// KindAuthority covers missing signatures and role mismatches.
	KindAuthority Kind = "authority"
	// KindConflict covers transactions rejected by optimistic concurrency control.
	KindConflict Kind = "conflict"
	// KindInternal covers storage and encoding failures.
	KindInternal Kind = "internal"
)

// Error codes.
const (
	ErrCodeInsufficientBalance  = "INSUFFICIENT_BALANCE"
	ErrCodeInvalidAmount        = "INVALID_AMOUNT"
	ErrCodeInvalidFee           = "INVALID_FEE"
	ErrCodeExistingLending      = "EXISTING_LENDING"
	ErrCodeCalculationError     = "CALCULATION_ERROR"
	ErrCodeAccountNotFound      = "ACCOUNT_NOT_FOUND"
	ErrCodeAccountExists        = "ACCOUNT_ALREADY_EXISTS"
	ErrCodeAccountFrozen        = "ACCOUNT_FROZEN"
	ErrCodeMintMismatch         = "MINT_MISMATCH"
	ErrCodeInvalidAccountData   = "INVALID_ACCOUNT_DATA"
	ErrCodeInvalidInstruction   = "INVALID_INSTRUCTION"
	ErrCodeNotEnoughAccounts    = "NOT_ENOUGH_ACCOUNTS"
	ErrCodeUnknownProgram       = "UNKNOWN_PROGRAM"
	ErrCodeSeedMismatch         = "SEED_MISMATCH"
	ErrCodeNoViableBump         = "NO_VIABLE_BUMP"
	ErrCodeInvalidSeeds         = "INVALID_SEEDS"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeMissingSignature     = "MISSING_SIGNATURE"
	ErrCodeInvalidSignature     = "INVALID_SIGNATURE"
	ErrCodeIllegalOwner         = "ILLEGAL_OWNER"
	ErrCodeReadonlyAccount      = "READONLY_ACCOUNT"
	ErrCodeWriteConflict        = "WRITE_CONFLICT"
	ErrCodeTransactionClosed    = "TRANSACTION_CLOSED"
	ErrCodeStorage              = "STORAGE"
	ErrCodeContextCanceled      = "CONTEXT_CANCELED"
	ErrCodeCustom               = "CUSTOM"
	ErrCodeCallDepthExceeded    = "CALL_DEPTH_EXCEEDED"
	ErrCodeUninitializedAccount = "UNINITIALIZED_ACCOUNT"
	ErrCodeDuplicateTransaction = "DUPLICATE_TRANSACTION"
	ErrCodeAccountNotPassed     = "ACCOUNT_NOT_PASSED"
)

var codeKinds = map[string]Kind{
	ErrCodeInsufficientBalance:  KindValidation,
	ErrCodeInvalidAmount:        KindValidation,
	ErrCodeInvalidFee:           KindValidation,
	ErrCodeExistingLending:      KindValidation,
	ErrCodeCalculationError:     KindValidation,
	ErrCodeAccountNotFound:      KindValidation,
	ErrCodeAccountExists:        KindValidation,
	ErrCodeAccountFrozen:        KindValidation,
	ErrCodeMintMismatch:         KindValidation,
	ErrCodeInvalidAccountData:   KindValidation,
	ErrCodeInvalidInstruction:   KindValidation,
	ErrCodeNotEnoughAccounts:    KindValidation,
	ErrCodeUnknownProgram:       KindValidation,
	ErrCodeUninitializedAccount: KindValidation,
	ErrCodeSeedMismatch:         KindDerivation,
	ErrCodeNoViableBump:         KindDerivation,
	ErrCodeInvalidSeeds:         KindDerivation,
	ErrCodeUnauthorized:         KindAuthority,
	ErrCodeMissingSignature:     KindAuthority,
	ErrCodeInvalidSignature:     KindAuthority,
	ErrCodeIllegalOwner:         KindAuthority,
	ErrCodeReadonlyAccount:      KindAuthority,
	ErrCodeAccountNotPassed:     KindAuthority,
	ErrCodeWriteConflict:        KindConflict,
	ErrCodeDuplicateTransaction: KindConflict,
}

// Error is a coded error.
type Error struct {
	// Code is a unique error code for this error type.
	Code string

	// Message is a human-readable error message.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Details contains additional error context.
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Kind returns the taxonomy bucket of the error code.
func (e *Error) Kind() Kind {
	if k, ok := codeKinds[e.Code]; ok {
		return k
	}
	return KindInternal
}

// WithCause returns a copy of the error with cause attached.
func (e *Error) WithCause(cause error) *Error {
	cp := *e
	cp.Cause = cause
	return &cp
}

// WithDetails returns a copy of the error with details attached.
func (e *Error) WithDetails(details map[string]any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// NewError creates a new Error.
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Pre-defined errors. Use errors.Is to compare; use the constructor helpers
// below to attach context.
var (
	ErrInsufficientBalance  = NewError(ErrCodeInsufficientBalance, "insufficient balance")
	ErrInvalidAmount        = NewError(ErrCodeInvalidAmount, "amount must be greater than zero")
	ErrInvalidFee           = NewError(ErrCodeInvalidFee, "invalid fee")
	ErrExistingLending      = NewError(ErrCodeExistingLending, "existing lending")
	ErrCalculationError     = NewError(ErrCodeCalculationError, "calculation error")
	ErrAccountNotFound      = NewError(ErrCodeAccountNotFound, "account not found")
	ErrAccountExists        = NewError(ErrCodeAccountExists, "account already exists")
	ErrAccountFrozen        = NewError(ErrCodeAccountFrozen, "account is frozen")
	ErrMintMismatch         = NewError(ErrCodeMintMismatch, "token account mint mismatch")
	ErrInvalidAccountData   = NewError(ErrCodeInvalidAccountData, "invalid account data")
	ErrInvalidInstruction   = NewError(ErrCodeInvalidInstruction, "invalid instruction data")
	ErrNotEnoughAccounts    = NewError(ErrCodeNotEnoughAccounts, "not enough account keys")
	ErrUnknownProgram       = NewError(ErrCodeUnknownProgram, "unknown program")
	ErrUninitializedAccount = NewError(ErrCodeUninitializedAccount, "account is not initialized")
	ErrSeedMismatch         = NewError(ErrCodeSeedMismatch, "account does not match derived address")
	ErrNoViableBump         = NewError(ErrCodeNoViableBump, "unable to find a viable program address bump")
	ErrInvalidSeeds         = NewError(ErrCodeInvalidSeeds, "invalid seeds")
	ErrUnauthorized         = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrMissingSignature     = NewError(ErrCodeMissingSignature, "missing required signature")
	ErrInvalidSignature     = NewError(ErrCodeInvalidSignature, "invalid signature")
	ErrIllegalOwner         = NewError(ErrCodeIllegalOwner, "account not owned by program")
	ErrReadonlyAccount      = NewError(ErrCodeReadonlyAccount, "account is not writable")
	ErrWriteConflict        = NewError(ErrCodeWriteConflict, "transaction conflicts with a concurrent commit")
	ErrTransactionClosed    = NewError(ErrCodeTransactionClosed, "transaction already committed or discarded")
	ErrContextCanceled      = NewError(ErrCodeContextCanceled, "context canceled")
	ErrCallDepthExceeded    = NewError(ErrCodeCallDepthExceeded, "cross-program invocation depth exceeded")
	ErrDuplicateTransaction = NewError(ErrCodeDuplicateTransaction, "transaction already processed")
	ErrAccountNotPassed     = NewError(ErrCodeAccountNotPassed, "account not passed to the calling instruction")
)

// AccountNotFound returns ErrAccountNotFound annotated with the address.
func AccountNotFound(what, address string) *Error {
	return ErrAccountNotFound.WithDetails(map[string]any{"account": what, "address": address})
}

// SeedMismatch returns ErrSeedMismatch annotated with both addresses.
func SeedMismatch(what, expected, presented string) *Error {
	return ErrSeedMismatch.WithDetails(map[string]any{
		"account":   what,
		"expected":  expected,
		"presented": presented,
	})
}

// InsufficientBalance returns ErrInsufficientBalance annotated with amounts.
func InsufficientBalance(have, want uint64) *Error {
	return ErrInsufficientBalance.WithDetails(map[string]any{"have": have, "want": want})
}

// Storage wraps a backend failure.
func Storage(what string, cause error) *Error {
	return NewError(ErrCodeStorage, fmt.Sprintf("storage failure: %s", what)).WithCause(cause)
}

// Custom creates a custom error with the given message.
func Custom(message string) *Error {
	return NewError(ErrCodeCustom, message)
}

// KindOf returns the taxonomy bucket of err, KindInternal for uncoded errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind()
	}
	return KindInternal
}

// CodeOf returns the code of err, or an empty string for uncoded errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
