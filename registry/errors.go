package registry

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"horseregistry/anchor"
)

// Error taxonomy. Store failures are returned unwrapped and fall outside it.
var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrAlreadyExists = errors.New("already exists")
	ErrNotFound      = errors.New("not found")
	ErrPaused        = errors.New("paused")
	ErrInvalidInput  = errors.New("invalid input")
)

// Code names the taxonomy class of err: Unauthorized, AlreadyExists,
// NotFound, Paused, InvalidInput, or Internal for anything else.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, ErrAlreadyExists):
		return "AlreadyExists"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrPaused):
		return "Paused"
	case errors.Is(err, ErrInvalidInput), errors.Is(err, anchor.ErrInvalidDocument), errors.Is(err, anchor.ErrInvalidDigest):
		return "InvalidInput"
	default:
		return "Internal"
	}
}

const (
	maxExternalIDLength = 128
	maxAccountLength    = 4096 // X.509 client ids carry full subject and issuer DNs
	maxURILength        = 2048
)

func validateRequiredString(input, field string, max int) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrInvalidInput, field)
	}
	if len(input) > max {
		return fmt.Errorf("%w: %s exceeds max length %d", ErrInvalidInput, field, max)
	}
	return nil
}

func validateOptionalString(input, field string, max int) error {
	if len(input) > max {
		return fmt.Errorf("%w: %s exceeds max length %d", ErrInvalidInput, field, max)
	}
	if !utf8.ValidString(input) {
		return fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidInput, field)
	}
	return nil
}

// validateKeyPart checks a value that ends up inside a composite key.
func validateKeyPart(input, field string, max int) error {
	if err := validateRequiredString(input, field, max); err != nil {
		return err
	}
	if !utf8.ValidString(input) || strings.ContainsRune(input, 0) || strings.ContainsRune(input, utf8.MaxRune) {
		return fmt.Errorf("%w: %s contains characters not allowed in a ledger key", ErrInvalidInput, field)
	}
	return nil
}

func validateAccount(account, field string) error {
	return validateKeyPart(account, field, maxAccountLength)
}
