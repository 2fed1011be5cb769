package services

import (
	"strings"
	"time"

	pkgerrors "github.com/Hampusfredrik/mindmap/pkg/errors"
)

// ConflictMessage is returned to clients whose last-seen updatedAt is stale
const ConflictMessage = "Concurrent modification detected"

// CheckFresh compares the stored updatedAt against the one the client last
// saw. A nil supplied value skips the check.
func CheckFresh(current time.Time, supplied *time.Time) error {
	if supplied == nil {
		return nil
	}
	if !current.Equal(*supplied) {
		return pkgerrors.NewConflictError(ConflictMessage).WithDetails(map[string]interface{}{
			"currentUpdatedAt": current.Format(time.RFC3339Nano),
		})
	}
	return nil
}

// ParseTimestamp reads a client-supplied updatedAt. An empty or nil value
// means the client did not supply one.
func ParseTimestamp(field string, raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(*raw))
	if err != nil {
		return nil, pkgerrors.NewInvalidInputError([]pkgerrors.FieldViolation{{
			Field:   field,
			Message: field + " must be an RFC 3339 timestamp",
		}})
	}
	return &t, nil
}
