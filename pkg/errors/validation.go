package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidatePath validates a relative file path for safety.
// It prevents path traversal attacks and ensures reasonable path length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// graphIDRegex matches identifiers accepted as stored graph names.
var graphIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]*$`)

// ValidateGraphID validates a stored graph identifier. IDs end up in
// SQL parameters, Redis keys and Badger key prefixes, so the alphabet
// is kept small.
func ValidateGraphID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidGraphID, "graph ID cannot be empty")
	}
	if len(id) > 128 {
		return New(ErrCodeInvalidGraphID, "graph ID too long (max 128 characters)")
	}
	if !graphIDRegex.MatchString(id) {
		return New(ErrCodeInvalidGraphID, "invalid graph ID: %q", id)
	}
	return nil
}
