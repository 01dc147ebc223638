package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"taskpad/internal/email"
	"taskpad/internal/models"
	"taskpad/internal/tasks"
)

// ErrConfig reports a scan invoked without the email transport configured
// (missing sender or to-address). Distinct from a transport failure.
var ErrConfig = errors.New("overdue notify is not configured")

// Notifier scans an owner's tasks and sends one aggregate email for the
// overdue ones, then flips each to overdue with the sticky
// overdue_notified_at flag.
type Notifier struct {
	repo   *tasks.Repository
	sender email.Sender
	to     string

	now func() time.Time
}

func NewNotifier(repo *tasks.Repository, sender email.Sender, to string) *Notifier {
	return &Notifier{repo: repo, sender: sender, to: to, now: time.Now}
}

// Result reports one scan. Sent is the number of emails that went out
// (0 or 1), Targets how many overdue tasks were found, Notified how many
// of them were successfully marked afterwards.
type Result struct {
	Sent     int `json:"sent"`
	Targets  int `json:"targets"`
	Notified int `json:"notified"`
}

// Scan finds the owner's overdue-unnotified tasks and notifies about them.
//
// A task is a target when its status is open or overdue, its due_date
// parses and lies in the past, and overdue_notified_at has never been set.
// The flag is sticky: once notified, a task is never re-notified, even if
// it is edited back into an overdue state.
//
// Nothing is marked unless the email actually went out. After a successful
// send each target is marked independently; one failing mark is logged and
// skipped so the rest still get their flag.
func (n *Notifier) Scan(ctx context.Context, ownerID string) (Result, error) {
	if n.sender == nil || n.to == "" {
		return Result{}, ErrConfig
	}

	items, err := n.repo.List(ctx, ownerID)
	if err != nil {
		return Result{}, fmt.Errorf("list tasks: %w", err)
	}

	now := n.now()
	var targets []models.Item
	for _, it := range items {
		if isOverdueTarget(it, now) {
			targets = append(targets, it)
		}
	}

	res := Result{Targets: len(targets)}
	if len(targets) == 0 {
		return res, nil
	}

	subject := fmt.Sprintf("[taskpad] %d overdue task(s)", len(targets))
	if err := n.sender.Send(ctx, n.to, subject, composeBody(targets)); err != nil {
		return res, fmt.Errorf("send overdue mail: %w", err)
	}
	res.Sent = 1

	for _, it := range targets {
		key := it.Key()
		if _, err := n.repo.MarkOverdueNotified(ctx, key.OwnerID, key.TaskID); err != nil {
			log.Println("notify: mark failed:", key.TaskID, err)
			continue
		}
		res.Notified++
	}
	return res, nil
}

// isOverdueTarget classifies one task. A due_date that fails to parse is
// treated as not overdue: it never notifies and never blocks the scan.
func isOverdueTarget(it models.Item, now time.Time) bool {
	status := it.Str(models.FieldStatus)
	if status != models.StatusOpen && status != models.StatusOverdue {
		return false
	}
	if it.Str(models.FieldOverdueNotifiedAt) != "" {
		return false
	}

	due := it.Str(models.FieldDueDate)
	if due == "" {
		return false
	}
	t, err := parseDue(due)
	if err != nil {
		return false
	}
	return t.Before(now)
}

// parseDue accepts RFC 3339 timestamps with either the Z designator or a
// numeric offset.
func parseDue(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func composeBody(targets []models.Item) string {
	var b strings.Builder
	b.WriteString("These tasks are past their due date:\n\n")
	for _, it := range targets {
		fmt.Fprintf(&b, "- %s (due %s)\n", it.Str(models.FieldTitle), it.Str(models.FieldDueDate))
	}
	return b.String()
}
