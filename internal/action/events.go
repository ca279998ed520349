package action

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/bosun-core/internal/rules"
)

// Event is one recorded action.
type Event struct {
	ID        string         `json:"id"`
	Rule      string         `json:"rule"`
	Type      string         `json:"type"`
	Target    string         `json:"target,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// EventFilter controls which events List returns.
type EventFilter struct {
	Rule  string // optional
	Type  string // optional
	Limit int    // default 50, max 500
}

// EventRecorder stores actions in the events table.
type EventRecorder struct {
	db  *sql.DB
	now func() time.Time
}

// NewEventRecorder creates a recorder. The db must have migrations applied.
func NewEventRecorder(db *sql.DB) *EventRecorder {
	return &EventRecorder{db: db, now: time.Now}
}

// Dispatch implements Sink by recording a.
func (r *EventRecorder) Dispatch(ctx context.Context, a rules.Action) error {
	_, err := r.Record(ctx, a)
	return err
}

// Record inserts a and returns the stored event.
func (r *EventRecorder) Record(ctx context.Context, a rules.Action) (*Event, error) {
	if a.Type == "" {
		return nil, ErrInvalidAction
	}
	ev := &Event{
		ID:        "evt-" + uuid.NewString(),
		Rule:      a.Rule,
		Type:      a.Type,
		Target:    a.Target,
		Payload:   a.Payload,
		CreatedAt: r.now().UTC(),
	}

	payload := []byte("{}")
	if len(a.Payload) > 0 {
		var err error
		if payload, err = json.Marshal(a.Payload); err != nil {
			return nil, fmt.Errorf("marshalling event payload: %w", err)
		}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (id, rule, type, target, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Rule, ev.Type, ev.Target, string(payload),
		ev.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting event: %w", err)
	}
	return ev, nil
}

// List returns events matching filter, most recent first.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - filter: Optional rule/type match and a row limit
//
// Returns:
//   - []Event: Matching events, never nil
//   - error: If the query or payload decoding fails
func (r *EventRecorder) List(ctx context.Context, filter EventFilter) ([]Event, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 500 { //nolint:mnd // max page size
		filter.Limit = 500
	}

	var conditions []string
	var args []any
	if filter.Rule != "" {
		conditions = append(conditions, "rule = ?")
		args = append(args, filter.Rule)
	}
	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, filter.Type)
	}

	query := `SELECT id, rule, type, target, payload, created_at FROM events`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id LIMIT ?"
	args = append(args, filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		var ev Event
		var payload, created string
		if err := rows.Scan(&ev.ID, &ev.Rule, &ev.Type, &ev.Target, &payload, &created); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &ev.Payload); err != nil {
			return nil, fmt.Errorf("unmarshalling event payload: %w", err)
		}
		if len(ev.Payload) == 0 {
			ev.Payload = nil
		}
		if ev.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}
