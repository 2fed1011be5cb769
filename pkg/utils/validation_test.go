package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/Hampusfredrik/mindmap/pkg/errors"
)

type samplePayload struct {
	GraphID string   `json:"graphId" validate:"required,uuid"`
	Title   string   `json:"title" validate:"required,notblank,max=5"`
	X       *float64 `json:"x" validate:"required"`
}

func TestValidateStruct(t *testing.T) {
	x := 0.0

	t.Run("Should accept a valid payload", func(t *testing.T) {
		err := ValidateStruct(samplePayload{
			GraphID: "5f1c2d8e-3b4a-4c6d-9e8f-0a1b2c3d4e5f",
			Title:   "abc",
			X:       &x,
		})
		assert.NoError(t, err)
	})

	t.Run("Should report every violation by JSON name", func(t *testing.T) {
		err := ValidateStruct(samplePayload{GraphID: "nope", Title: "too long"})

		require.Error(t, err)
		appErr := pkgerrors.GetAppError(err)
		require.NotNil(t, appErr)
		assert.Equal(t, pkgerrors.ErrorTypeValidation, appErr.Type)
		require.Len(t, appErr.Violations, 3)

		fields := map[string]string{}
		for _, v := range appErr.Violations {
			fields[v.Field] = v.Message
		}
		assert.Equal(t, "graphId must be a valid UUID", fields["graphId"])
		assert.Equal(t, "title must be at most 5 characters", fields["title"])
		assert.Equal(t, "x is required", fields["x"])
	})

	t.Run("Should refuse a whitespace-only title", func(t *testing.T) {
		err := ValidateStruct(samplePayload{
			GraphID: "5f1c2d8e-3b4a-4c6d-9e8f-0a1b2c3d4e5f",
			Title:   " \t ",
			X:       &x,
		})

		appErr := pkgerrors.GetAppError(err)
		require.NotNil(t, appErr)
		require.Len(t, appErr.Violations, 1)
		assert.Equal(t, "title must not be blank", appErr.Violations[0].Message)
	})
}
