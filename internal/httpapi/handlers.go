package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"taskpad/internal/models"
	"taskpad/internal/notify"
	"taskpad/internal/queue"
	"taskpad/internal/store"
	"taskpad/internal/tasks"

	"github.com/go-chi/chi/v5"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps the domain error taxonomy onto status codes. Anything
// outside the taxonomy is an infrastructure fault and comes back as 500.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tasks.ErrNoFields):
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "no fields"})
	case errors.Is(err, tasks.ErrInvalidSort), errors.Is(err, tasks.ErrTooManyOps):
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
	case errors.Is(err, notify.ErrConfig):
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "notify transport not configured"})
	default:
		log.Println("api: internal error:", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal error"})
	}
}

// ownerID resolves the owner for a request. Auth happens upstream; the
// gateway packs the verified subject claim into X-User-Sub. Without it we
// fall back to the configured single-user owner.
func (a *App) ownerID(r *http.Request) string {
	if sub := r.Header.Get("X-User-Sub"); sub != "" {
		return sub
	}
	return a.DefaultOwner
}

// publishChange feeds the optional change-event topic. Best effort: a
// Kafka outage must not fail the request that already committed.
func (a *App) publishChange(r *http.Request, ownerID, taskID, action string) {
	if a.Events == nil {
		return
	}
	ev := queue.ChangeEvent{
		OwnerID: ownerID,
		TaskID:  taskID,
		Action:  action,
		At:      time.Now().UnixMilli(),
	}
	if err := a.Events.PublishChange(r.Context(), ev); err != nil {
		log.Println("api: publish change event:", err)
	}
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "time": models.ISO(time.Now())})
}

func (a *App) listTasksHandler(w http.ResponseWriter, r *http.Request) {
	items, err := a.Repo.List(r.Context(), a.ownerID(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	if items == nil {
		items = []models.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *App) createTaskHandler(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodePayload(w, r)
	if !ok {
		return
	}

	owner := a.ownerID(r)
	item, err := a.Repo.Create(r.Context(), owner, payload)
	if err != nil {
		writeErr(w, err)
		return
	}

	a.publishChange(r, owner, item.Str(models.FieldTaskID), "create")
	writeJSON(w, http.StatusCreated, item)
}

func (a *App) updateTaskHandler(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodePayload(w, r)
	if !ok {
		return
	}

	owner := a.ownerID(r)
	taskID := chi.URLParam(r, "task_id")
	item, err := a.Repo.Update(r.Context(), owner, taskID, payload)
	if err != nil {
		writeErr(w, err)
		return
	}

	a.publishChange(r, owner, taskID, "update")
	writeJSON(w, http.StatusOK, item)
}

func (a *App) deleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	owner := a.ownerID(r)
	taskID := chi.URLParam(r, "task_id")
	if err := a.Repo.Delete(r.Context(), owner, taskID); err != nil {
		writeErr(w, err)
		return
	}

	a.publishChange(r, owner, taskID, "delete")
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) bulkHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Ops []tasks.BulkOp `json:"ops"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid JSON"})
		return
	}

	owner := a.ownerID(r)
	res, err := a.Repo.BulkApply(r.Context(), owner, body.Ops)
	if err != nil {
		writeErr(w, err)
		return
	}

	for _, opRes := range res.Results {
		a.publishChange(r, owner, opRes.ID, opRes.Action)
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *App) notifyHandler(w http.ResponseWriter, r *http.Request) {
	res, err := a.Notifier.Scan(r.Context(), a.ownerID(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// decodePayload reads a JSON object body with UseNumber so numeric fields
// (sort) arrive as exact decimals, not float64.
func decodePayload(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	payload := map[string]any{}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid JSON"})
		return nil, false
	}
	return payload, true
}
