package resources

import (
	"fmt"
	"time"

	"github.com/cpu/acmeclient/acme"
)

// Response parsing in this package is strict: every factory decodes the raw
// JSON into an intermediate struct with pointer fields so that missing keys
// can be told apart from zero values, then validates required fields, closed
// status sets and timestamps before constructing the resource. Resources are
// never mutated after construction.

// validationErr describes a response body field that failed validation for
// a given resource type.
func validationErr(entity, field, reason string) *acme.Error {
	return acme.NewError(
		fmt.Sprintf("invalid %s response: field %q %s", entity, field, reason))
}

// requireString enforces that a required string field was present and
// non-empty in the response body.
func requireString(entity, field string, value *string) (string, error) {
	if value == nil || *value == "" {
		return "", validationErr(entity, field, "is missing")
	}
	return *value, nil
}

// requireStatus enforces that a status field was present and a member of the
// resource's closed status set.
func requireStatus(entity string, value *string, allowed []string) (string, error) {
	status, err := requireString(entity, "status", value)
	if err != nil {
		return "", err
	}
	for _, s := range allowed {
		if status == s {
			return status, nil
		}
	}
	return "", validationErr(entity, "status", fmt.Sprintf("has unknown value %q", status))
}

// requireTime enforces that a required RFC 3339 timestamp field was present
// and well formed.
func requireTime(entity, field string, value *string) (time.Time, error) {
	s, err := requireString(entity, field, value)
	if err != nil {
		return time.Time{}, err
	}
	return parseTime(entity, field, s)
}

// optionalTime parses an RFC 3339 timestamp field if it was present, passing
// a missing value through as the zero time.
func optionalTime(entity, field string, value *string) (time.Time, error) {
	if value == nil || *value == "" {
		return time.Time{}, nil
	}
	return parseTime(entity, field, *value)
}

func parseTime(entity, field, s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, validationErr(
			entity, field, fmt.Sprintf("is not a valid RFC 3339 date: %q", s))
	}
	return t, nil
}

func optionalString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
