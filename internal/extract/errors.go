package extract

import (
	"errors"
	"strings"
)

type Kind string

const (
	KindEncrypted           Kind = "encrypted"
	KindStructurallyCorrupt Kind = "structurally_corrupt"
	KindUnprocessable       Kind = "unprocessable"
)

// Error is a typed extraction failure with a user-facing message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func IsKind(err error, kind Kind) bool {
	var extractErr *Error
	if errors.As(err, &extractErr) {
		return extractErr.Kind == kind
	}
	return false
}

const (
	msgStructurallyCorrupt = "The document structure is damaged and could not be repaired. Please try exporting the file again from its original source."
	msgUnprocessable       = "The document could not be processed. Please try a different file."
)

// classify maps an arbitrary failure onto the extraction taxonomy. An already
// typed error passes through untouched so the Encrypted message captured at
// detection time survives to the caller.
func classify(err error) *Error {
	var extractErr *Error
	if errors.As(err, &extractErr) {
		return extractErr
	}

	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "encrypt") || strings.Contains(text, "password"):
		return NewError(KindEncrypted, msgEncryptedPDF, err)
	case strings.Contains(text, "corrupt") || strings.Contains(text, "malformed") ||
		strings.Contains(text, "xref") || strings.Contains(text, "damaged") ||
		strings.Contains(text, "unexpected eof") || strings.Contains(text, "invalid pdf"):
		return NewError(KindStructurallyCorrupt, msgStructurallyCorrupt, err)
	default:
		return NewError(KindUnprocessable, msgUnprocessable, err)
	}
}
