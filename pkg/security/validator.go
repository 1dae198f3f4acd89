package security

import (
	"errors"
	"strings"
)

// MaxNestingDepth is the deepest object or array nesting MongoDB accepts in a
// stored document.
const MaxNestingDepth = 100

var (
	ErrInvalidFieldName = errors.New("field name contains invalid characters")
	ErrDocumentTooDeep  = errors.New("document nesting too deep")
)

// ValidateFieldName rejects keys the document store refuses to store: a
// leading '$' is read as an operator and NUL terminates BSON keys.
func ValidateFieldName(name string) error {
	if strings.HasPrefix(name, "$") || strings.ContainsRune(name, 0) {
		return ErrInvalidFieldName
	}
	return nil
}

// ValidateDocument walks a decoded JSON document and validates every key, including nested ones
func ValidateDocument(doc map[string]any) error {
	return validateValue(doc, 0)
}

func validateValue(v any, depth int) error {
	if depth > MaxNestingDepth {
		return ErrDocumentTooDeep
	}

	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			if err := ValidateFieldName(k); err != nil {
				return err
			}
			if err := validateValue(e, depth+1); err != nil {
				return err
			}
		}
	case []any:
		for _, e := range t {
			if err := validateValue(e, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}
