package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"taskpad/internal/models"
)

// MaxBulkOps caps one bulk batch.
const MaxBulkOps = 50

// ErrTooManyOps reports a bulk batch over the MaxBulkOps cap.
var ErrTooManyOps = fmt.Errorf("bulk batch exceeds %d operations", MaxBulkOps)

// BulkOp is one entry in a bulk batch. Action is one of delete, patch,
// update (alias of patch) or status; for status the payload is a bare
// JSON string shorthand for {"status": ...}.
type BulkOp struct {
	ID      string          `json:"id"`
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type BulkOpResult struct {
	Index  int    `json:"index"`
	ID     string `json:"id"`
	Action string `json:"action"`
}

type BulkOpError struct {
	Index   int    `json:"index"`
	ID      string `json:"id"`
	Action  string `json:"action"`
	Message string `json:"error"`
}

// BulkResult reports per-op outcomes. OK is true iff every op succeeded.
type BulkResult struct {
	OK      bool           `json:"ok"`
	Results []BulkOpResult `json:"results"`
	Errors  []BulkOpError  `json:"errors"`
}

// BulkApply runs the ops in order, each one independent. A failing op is
// recorded and its siblings still run; there is no atomicity or rollback
// across the batch, so callers must treat the result as advisory and
// re-drive on partial failure.
func (r *Repository) BulkApply(ctx context.Context, ownerID string, ops []BulkOp) (BulkResult, error) {
	if len(ops) > MaxBulkOps {
		return BulkResult{}, ErrTooManyOps
	}

	res := BulkResult{Results: []BulkOpResult{}, Errors: []BulkOpError{}}
	for i, op := range ops {
		if err := r.applyOne(ctx, ownerID, op); err != nil {
			res.Errors = append(res.Errors, BulkOpError{
				Index:   i,
				ID:      op.ID,
				Action:  op.Action,
				Message: err.Error(),
			})
			continue
		}
		res.Results = append(res.Results, BulkOpResult{Index: i, ID: op.ID, Action: op.Action})
	}

	res.OK = len(res.Errors) == 0
	return res, nil
}

func (r *Repository) applyOne(ctx context.Context, ownerID string, op BulkOp) error {
	if op.ID == "" {
		return errors.New("missing id")
	}

	switch op.Action {
	case "delete":
		return r.Delete(ctx, ownerID, op.ID)

	case "patch", "update":
		payload := map[string]any{}
		if len(op.Payload) > 0 {
			if err := unmarshalPayload(op.Payload, &payload); err != nil {
				return fmt.Errorf("invalid payload: %w", err)
			}
		}
		_, err := r.Update(ctx, ownerID, op.ID, payload)
		return err

	case "status":
		var status string
		if err := json.Unmarshal(op.Payload, &status); err != nil {
			return errors.New("status payload must be a string")
		}
		_, err := r.Update(ctx, ownerID, op.ID, map[string]any{models.FieldStatus: status})
		return err

	default:
		return fmt.Errorf("unsupported action %q", op.Action)
	}
}

// unmarshalPayload decodes with UseNumber so numeric fields keep their
// exact decimal form on the way to the store.
func unmarshalPayload(raw json.RawMessage, into *map[string]any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(into)
}
