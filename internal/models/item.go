package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item is a stored task record. The table is schema-less and sparse:
// optional fields are removed entirely instead of being stored empty,
// so a fixed struct can't represent an item faithfully.
type Item map[string]any

// Key identifies one task within an owner's partition.
type Key struct {
	OwnerID string
	TaskID  string
}

// Field names used across the repository.
const (
	FieldOwnerID           = "owner_id"
	FieldTaskID            = "task_id"
	FieldTitle             = "title"
	FieldStatus            = "status"
	FieldDueDate           = "due_date"
	FieldDetails           = "details"
	FieldParentID          = "parent_id"
	FieldSort              = "sort"
	FieldUpdatedAt         = "updated_at"
	FieldOverdueNotifiedAt = "overdue_notified_at"
)

const (
	StatusOpen    = "open"
	StatusDone    = "done"
	StatusOverdue = "overdue"
)

// ISO formats a timestamp the way items store them.
func ISO(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Str returns the string stored under name, or "" if absent or not a string.
func (it Item) Str(name string) string {
	s, _ := it[name].(string)
	return s
}

func (it Item) Key() Key {
	return Key{OwnerID: it.Str(FieldOwnerID), TaskID: it.Str(FieldTaskID)}
}

// NormalizeNumber converts a DynamoDB decimal string to int64 when it is a
// whole number, float64 otherwise. Whole numbers stay exact this way; a
// creation-millis sort key round-tripped through float64 would not.
func NormalizeNumber(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	return f
}

// NormalizeValue maps a just-decoded payload value onto the item
// representation: json.Number becomes int64/float64, everything else
// passes through.
func NormalizeValue(v any) any {
	if n, ok := v.(json.Number); ok {
		return NormalizeNumber(n.String())
	}
	return v
}

// ToAttributeValues marshals an item for DynamoDB. The store rejects null
// attributes, so nil values are an error here rather than a NULL write --
// removal is expressed through update expressions, never through null.
func ToAttributeValues(it Item) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, len(it))
	for name, v := range it {
		av, err := ToAttributeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		out[name] = av
	}
	return out, nil
}

// ToAttributeValue marshals a single scalar value.
func ToAttributeValue(v any) (types.AttributeValue, error) {
	switch v := v.(type) {
	case string:
		return &types.AttributeValueMemberS{Value: v}, nil
	case json.Number:
		return &types.AttributeValueMemberN{Value: v.String()}, nil
	case attributevalue.Number:
		return &types.AttributeValueMemberN{Value: v.String()}, nil
	case int:
		return &types.AttributeValueMemberN{Value: strconv.Itoa(v)}, nil
	case int64:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}, nil
	case float64:
		return &types.AttributeValueMemberN{Value: strconv.FormatFloat(v, 'f', -1, 64)}, nil
	case bool:
		return &types.AttributeValueMemberBOOL{Value: v}, nil
	case nil:
		return nil, fmt.Errorf("null values are not storable")
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// FromAttributeValues unmarshals a DynamoDB item, normalizing numbers for
// the external representation.
func FromAttributeValues(av map[string]types.AttributeValue) Item {
	it := make(Item, len(av))
	for name, v := range av {
		switch v := v.(type) {
		case *types.AttributeValueMemberS:
			it[name] = v.Value
		case *types.AttributeValueMemberN:
			it[name] = NormalizeNumber(attributevalue.Number(v.Value).String())
		case *types.AttributeValueMemberBOOL:
			it[name] = v.Value
		}
	}
	return it
}
