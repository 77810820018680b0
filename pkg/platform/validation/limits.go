package validation

import (
	"fmt"

	dErrors "credex/pkg/domain-errors"
)

// HTTP body limits
const (
	// MaxBodySize is the maximum allowed request body size (1 MB).
	// Issued credentials arrive base64-encoded inside protocol messages.
	MaxBodySize = 1 << 20
)

// Slice element count limits
const (
	// MaxRequestedAttributes is the maximum number of attributes one proof
	// request may name.
	MaxRequestedAttributes = 50
)

// String element length limits
const (
	// MaxAttributeNameLength is the maximum length of a requested attribute name.
	MaxAttributeNameLength = 100

	// MaxRequesterIDLength is the maximum length of a requester identifier.
	MaxRequesterIDLength = 200

	// MaxCallbackURLLength is the maximum length of a requester callback URL.
	MaxCallbackURLLength = 2048

	// MaxCorrelationIDLength is the maximum length of a caller-supplied correlation id.
	MaxCorrelationIDLength = 200
)

// CheckSliceCount validates that a slice does not exceed the maximum count.
func CheckSliceCount(fieldName string, count, max int) error {
	if count > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("too many %s: max %d allowed", fieldName, max))
	}
	return nil
}

// CheckStringLength validates that a string does not exceed the maximum length.
func CheckStringLength(fieldName, value string, max int) error {
	if len(value) > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
	}
	return nil
}

// CheckEachStringLength validates that each string in a slice does not exceed the maximum length.
func CheckEachStringLength(fieldName string, values []string, max int) error {
	for _, v := range values {
		if len(v) > max {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
		}
	}
	return nil
}
