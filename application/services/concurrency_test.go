package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/Hampusfredrik/mindmap/pkg/errors"
)

func TestCheckFresh(t *testing.T) {
	current := time.Date(2024, 3, 1, 12, 0, 0, 123456000, time.UTC)

	tests := []struct {
		name     string
		supplied *time.Time
		conflict bool
	}{
		{"omitted", nil, false},
		{"equal", &current, false},
		{"same instant in another zone", ptrTime(current.In(time.FixedZone("X", 3600))), false},
		{"older", ptrTime(current.Add(-time.Microsecond)), true},
		{"newer", ptrTime(current.Add(time.Second)), true},
		{"truncated to milliseconds", ptrTime(current.Truncate(time.Millisecond)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFresh(current, tt.supplied)
			if tt.conflict {
				assert.True(t, pkgerrors.IsConflict(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Run("Should treat nil and blank as omitted", func(t *testing.T) {
		ts, err := ParseTimestamp("updatedAt", nil)
		assert.NoError(t, err)
		assert.Nil(t, ts)

		ts, err = ParseTimestamp("updatedAt", strPtr("  "))
		assert.NoError(t, err)
		assert.Nil(t, ts)
	})

	t.Run("Should round-trip a server stamp", func(t *testing.T) {
		stamp := time.Date(2024, 3, 1, 12, 0, 0, 123456000, time.UTC)
		ts, err := ParseTimestamp("updatedAt", strPtr(stamp.Format(time.RFC3339Nano)))
		require.NoError(t, err)
		assert.True(t, stamp.Equal(*ts))
	})

	t.Run("Should reject garbage as invalid input", func(t *testing.T) {
		_, err := ParseTimestamp("updatedAt", strPtr("yesterday"))
		require.Error(t, err)
		appErr := pkgerrors.GetAppError(err)
		require.NotNil(t, appErr)
		assert.Equal(t, pkgerrors.ErrorTypeValidation, appErr.Type)
		require.Len(t, appErr.Violations, 1)
		assert.Equal(t, "updatedAt", appErr.Violations[0].Field)
	})
}

func ptrTime(t time.Time) *time.Time { return &t }
