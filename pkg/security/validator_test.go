package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFieldName(t *testing.T) {
	tests := []struct {
		name      string
		field     string
		expectErr error
	}{
		{
			name:  "simple name",
			field: "name",
		},
		{
			name:  "unicode letters",
			field: "tên",
		},
		{
			name:  "dollar inside name is fine",
			field: "price$",
		},
		{
			name:  "dotted path is stored as a plain key",
			field: "address.city",
		},
		{
			name:  "markup is stored verbatim",
			field: "<script>x",
		},
		{
			name:  "empty",
			field: "",
		},
		{
			name:  "long",
			field: strings.Repeat("a", 1024),
		},
		{
			name:      "operator injection",
			field:     "$where",
			expectErr: ErrInvalidFieldName,
		},
		{
			name:      "NUL byte",
			field:     "na\x00me",
			expectErr: ErrInvalidFieldName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFieldName(tt.field)
			if tt.expectErr != nil {
				assert.ErrorIs(t, err, tt.expectErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateDocument_NestedKeys(t *testing.T) {
	ok := map[string]any{
		"name": "Alice",
		"address": map[string]any{
			"city": "Hanoi",
		},
		"tags": []any{"a", map[string]any{"k": 1}},
	}
	require.NoError(t, ValidateDocument(ok))
	require.NoError(t, ValidateDocument(map[string]any{}))

	nested := map[string]any{
		"profile": map[string]any{"$gt": 1},
	}
	assert.ErrorIs(t, ValidateDocument(nested), ErrInvalidFieldName)

	inArray := map[string]any{
		"items": []any{map[string]any{"$set": 1}},
	}
	assert.ErrorIs(t, ValidateDocument(inArray), ErrInvalidFieldName)
}

func TestValidateDocument_Depth(t *testing.T) {
	doc := map[string]any{}
	cur := doc
	for i := 0; i < MaxNestingDepth+2; i++ {
		next := map[string]any{}
		cur["n"] = next
		cur = next
	}
	assert.ErrorIs(t, ValidateDocument(doc), ErrDocumentTooDeep)
}
