package tasks

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"taskpad/internal/models"
)

// ErrNoFields reports an update payload with zero recognized mutable fields.
var ErrNoFields = errors.New("no updatable fields in payload")

// ErrInvalidSort reports a sort value that is not a number.
var ErrInvalidSort = errors.New("sort must be numeric")

// UpdateSpec describes one mutation: fields to set and fields to remove.
// The two sets are disjoint. It is store-native in the sense that the
// adapter can translate it 1:1 into a SET/REMOVE update expression.
type UpdateSpec struct {
	Sets    map[string]any
	Removes []string
}

// The client-mutable field set. Everything else in a payload is ignored.
var (
	verbatimFields   = []string{models.FieldTitle, models.FieldStatus}
	removableFields  = []string{models.FieldDueDate, models.FieldParentID, models.FieldDetails}
)

// BuildUpdateSpec turns a partial-update payload into an UpdateSpec. Pure:
// no store access, the clock comes in as an argument.
//
// Per-field policy: title and status are set verbatim whenever the key is
// present. due_date, parent_id and details treat null or "" as "remove the
// field" -- the store cannot hold null attributes, so absence of a value is
// expressed by absence of the field. sort is coerced to an exact decimal.
// Keys absent from the payload are left untouched.
//
// ErrNoFields fires only when zero recognized fields were provided; the
// check runs before updated_at is appended, so every non-error spec
// advances the timestamp.
func BuildUpdateSpec(payload map[string]any, now time.Time) (UpdateSpec, error) {
	spec := UpdateSpec{Sets: map[string]any{}}

	for _, name := range verbatimFields {
		if v, ok := payload[name]; ok {
			spec.Sets[name] = models.NormalizeValue(v)
		}
	}

	for _, name := range removableFields {
		v, ok := payload[name]
		if !ok {
			continue
		}
		if v == nil || v == "" {
			spec.Removes = append(spec.Removes, name)
		} else {
			spec.Sets[name] = models.NormalizeValue(v)
		}
	}

	if v, ok := payload[models.FieldSort]; ok && v != nil {
		n, err := coerceDecimal(v)
		if err != nil {
			return UpdateSpec{}, err
		}
		spec.Sets[models.FieldSort] = n
	}

	if len(spec.Sets) == 0 && len(spec.Removes) == 0 {
		return UpdateSpec{}, ErrNoFields
	}

	spec.Sets[models.FieldUpdatedAt] = models.ISO(now)
	return spec, nil
}

// coerceDecimal normalizes a payload sort value to an exact decimal string
// so it never round-trips through binary floating point on the way to the
// store's arbitrary-precision number type.
func coerceDecimal(v any) (json.Number, error) {
	switch v := v.(type) {
	case json.Number:
		return v, nil
	case int:
		return json.Number(strconv.Itoa(v)), nil
	case int64:
		return json.Number(strconv.FormatInt(v, 10)), nil
	case float64:
		return json.Number(strconv.FormatFloat(v, 'f', -1, 64)), nil
	case string:
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return "", ErrInvalidSort
		}
		return json.Number(v), nil
	default:
		return "", ErrInvalidSort
	}
}
