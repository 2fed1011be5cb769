package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Hampusfredrik/mindmap/pkg/auth"
	pkgerrors "github.com/Hampusfredrik/mindmap/pkg/errors"
)

// maxBodyBytes bounds request bodies; the largest valid payload is a node
// with a 10000 character detail
const maxBodyBytes = 1 << 20

// decodeJSON reads the request body into dst, a pointer to a request
// struct. Fields are decoded one at a time, so every field of the wrong JSON
// type is reported as a violation and the remaining fields are still filled
// in for validation.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	var body map[string]json.RawMessage
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body)

	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	switch {
	case err == nil:
	case errors.As(err, &typeErr):
		return pkgerrors.NewValidationError("Request body must be a JSON object")
	case errors.Is(err, io.EOF):
		return pkgerrors.NewValidationError("Request body is required")
	case errors.As(err, &maxErr):
		return pkgerrors.NewValidationError("Request body is too large")
	default:
		return pkgerrors.NewValidationError("Invalid request body: " + err.Error())
	}

	v := reflect.ValueOf(dst).Elem()
	var violations []pkgerrors.FieldViolation
	for i := 0; i < v.NumField(); i++ {
		field := v.Type().Field(i)
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		raw, ok := body[name]
		if name == "" || name == "-" || !ok {
			continue
		}
		if err := json.Unmarshal(raw, v.Field(i).Addr().Interface()); err != nil {
			violations = append(violations, pkgerrors.FieldViolation{
				Field:   name,
				Message: name + " must be a " + jsonKind(field.Type),
			})
		}
	}
	if len(violations) > 0 {
		return pkgerrors.NewInvalidInputError(violations)
	}
	return nil
}

func jsonKind(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int32, reflect.Int64:
		return "number"
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	default:
		return t.String()
	}
}

// collectViolations merges the violations of several validation failures
// into one error, keeping the first violation of each field. Any other error
// is returned as is.
func collectViolations(errs ...error) error {
	var violations []pkgerrors.FieldViolation
	seen := make(map[string]bool)
	for _, err := range errs {
		if err == nil {
			continue
		}
		appErr := pkgerrors.GetAppError(err)
		if appErr == nil || !pkgerrors.IsValidation(err) || len(appErr.Violations) == 0 {
			return err
		}
		for _, v := range appErr.Violations {
			if !seen[v.Field] {
				seen[v.Field] = true
				violations = append(violations, v)
			}
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.NewInvalidInputError(violations)
}

// pathID reads a record id from the path. Ids are UUIDs, anything else names
// no record.
func pathID(r *http.Request, param, resource string) (string, error) {
	id := chi.URLParam(r, param)
	if _, err := uuid.Parse(id); err != nil {
		return "", pkgerrors.NewNotFoundError(resource)
	}
	return id, nil
}

// caller returns the authenticated user id
func caller(r *http.Request) (string, error) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		return "", pkgerrors.NewUnauthorizedError("")
	}
	return userCtx.UserID, nil
}

func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

// successResponse acknowledges a delete
type successResponse struct {
	Success bool `json:"success"`
}
