package errors

import (
	"unicode"
	"unicode/utf8"
)

// MaxNameLength bounds the length of any entity or argument name.
const MaxNameLength = 1024

// ValidateName validates the name of a document entity.
//
// Names are otherwise opaque: model exporters routinely produce names with
// slashes, colons and dots (e.g. "encoder/layer.0/attn:0"), so only names that
// cannot be represented faithfully in a JSON response or log line are
// rejected:
//   - empty names
//   - invalid UTF-8
//   - control characters (including null bytes)
//   - names longer than MaxNameLength bytes
//
// kind is used in the message only ("input", "node", ...).
func ValidateName(kind, name string) error {
	if name == "" {
		return New(ErrCodeMalformedInput, "%s name cannot be empty", kind)
	}

	if len(name) > MaxNameLength {
		return New(ErrCodeMalformedInput, "%s name too long (max %d characters)", kind, MaxNameLength)
	}

	if !utf8.ValidString(name) {
		return New(ErrCodeMalformedInput, "%s name is not valid UTF-8", kind)
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeMalformedInput, "%s name %q contains control characters", kind, name)
		}
	}

	return nil
}
