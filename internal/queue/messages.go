package queue

// ChangeEvent announces one task mutation to downstream consumers. The
// feed is advisory only, never a consistency mechanism.
type ChangeEvent struct {
	OwnerID string `json:"owner_id"`
	TaskID  string `json:"task_id"`
	Action  string `json:"action"`
	At      int64  `json:"at"` // epoch ms
}

// TriggerMessage asks the duecheck listener to run a scan. An empty
// OwnerID means "the default owner".
type TriggerMessage struct {
	OwnerID string `json:"owner_id,omitempty"`
}
