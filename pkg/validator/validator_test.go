package validator

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

type chapterRequest struct {
	Book    string `validate:"required"`
	Chapter int    `validate:"min=1"`
}

func TestFormatValidationError(t *testing.T) {
	v := validator.New()

	err := v.Struct(chapterRequest{Chapter: 0})

	assert.Equal(t, "Book is required; Chapter must be at least 1", FormatValidationError(err))
}

func TestFormatValidationErrorPassesThroughOtherErrors(t *testing.T) {
	assert.Equal(t, "boom", FormatValidationError(errors.New("boom")))
}
