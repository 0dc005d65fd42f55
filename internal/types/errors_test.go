package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"load", &LoadError{Path: "a.pdf", Err: cause}, IsLoadError},
		{"fetch", &FetchError{URL: "https://example.com", Err: cause}, IsFetchError},
		{"schema", NewSchemaError("missing questions", cause), IsSchemaError},
		{"model", NewModelError("create_quiz", cause), IsModelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("request failed: %w", tt.err)
			assert.True(t, tt.check(wrapped))
			assert.ErrorIs(t, wrapped, cause)
		})
	}

	assert.False(t, IsModelError(NewSchemaError("x", nil)))
	assert.Equal(t, "could not parse model output: x", NewSchemaError("x", nil).Error())
}
