package errors

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// nodeNameRegex matches names usable for model nodes and variables.
var nodeNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.:-]*$`)

// ValidateNodeName validates a node or variable name from a model document
// or a command-line flag.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - Maximum length of 128 characters
//   - Must start with a letter or underscore
//   - Names starting with "_unfold_" are reserved for internal nodes
func ValidateNodeName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "node name cannot be empty")
	}

	if len(name) > 128 {
		return New(ErrCodeInvalidInput, "node name too long (max 128 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "node name contains invalid control characters")
		}
	}

	if !nodeNameRegex.MatchString(name) {
		return New(ErrCodeInvalidInput, "invalid node name: %q", name)
	}

	if strings.HasPrefix(name, "_unfold_") {
		return New(ErrCodeInvalidInput, "node name %q uses the reserved prefix _unfold_", name)
	}

	return nil
}

// modelExtensions lists the document formats accepted for model files.
var modelExtensions = map[string]bool{
	".toml": true,
	".yaml": true,
	".yml":  true,
	".json": true,
}

// ValidateModelFilename validates a model document path.
// The path must be non-empty, free of null bytes and carry a known extension.
func ValidateModelFilename(path string) error {
	if path == "" {
		return New(ErrCodeInvalidInput, "model path cannot be empty")
	}

	if strings.ContainsRune(path, '\x00') {
		return New(ErrCodeInvalidInput, "model path contains invalid characters")
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !modelExtensions[ext] {
		return New(ErrCodeInvalidFormat, "unsupported model format %q (want .toml, .yaml, .yml or .json)", ext)
	}

	return nil
}
