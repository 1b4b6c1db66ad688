package store

import (
	"errors"
	"fmt"
)

var (
	ErrSessionInvalid      = errors.New("Invalid session")
	ErrInvalidInvite       = errors.New("Invalid invite code")
	ErrUsernameTaken       = errors.New("Username already taken")
	ErrUserNotFound        = errors.New("User not found. Please register first.")
	ErrMarketNotFound      = errors.New("Market not found")
	ErrMarketResolved      = errors.New("Market already resolved")
	ErrInvalidAmount       = errors.New("Amount must be a positive whole number")
	ErrInsufficientBalance = errors.New("Insufficient balance")
	ErrNotCreator          = errors.New("Only market creator can resolve")
	ErrInvalidOutcome      = errors.New("Outcome must be yes or no")
	ErrInvalidInput        = errors.New("Invalid input")
	ErrMalformedMessage    = errors.New("Invalid message format")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrSessionInvalid, "SessionInvalid"},
	{ErrInvalidInvite, "InvalidInvite"},
	{ErrUsernameTaken, "UsernameTaken"},
	{ErrUserNotFound, "UserNotFound"},
	{ErrMarketNotFound, "MarketNotFound"},
	{ErrMarketResolved, "MarketResolved"},
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrInsufficientBalance, "InsufficientBalance"},
	{ErrNotCreator, "NotCreator"},
	{ErrInvalidOutcome, "InvalidOutcome"},
	{ErrInvalidInput, "InvalidInput"},
	{ErrMalformedMessage, "MalformedMessage"},
}

// Code returns the taxonomy name of err, or "Internal" when err is not one of
// the command errors.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "Internal"
}

type TransactionError struct {
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s", e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

type NotFoundError struct {
	Err error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s", e.Err)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

type InternalError struct {
	Message string
	Err     error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Err)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// IsInternal reports whether err came from the journal rather than from the
// command's input.
func IsInternal(err error) bool {
	var ie *InternalError
	var te *TransactionError
	return errors.As(err, &ie) || errors.As(err, &te)
}

func invalidInput(detail string) error {
	return &ValidationError{Err: fmt.Errorf("%w: %s", ErrInvalidInput, detail)}
}
