package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"famfin/internal/core"
)

type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// TransactionEvent announces a change to a stored transaction. It carries the
// transaction's fields as they were at publish time so consumers do not need
// to read it back, which matters for deletes.
type TransactionEvent struct {
	Action      Action               `json:"action"`
	ID          int64                `json:"id"`
	UserID      int64                `json:"user_id"`
	FamilyID    *int64               `json:"family_id,omitempty"`
	Type        core.TransactionType `json:"type"`
	AmountCents int64                `json:"amount_cents"`
	Category    string               `json:"category"`
	Description string               `json:"description,omitempty"`
	Member      string               `json:"family_member,omitempty"`
	Date        string               `json:"date"`
	Timestamp   time.Time            `json:"timestamp"`
}

// NewTransactionEvent snapshots t for the given action.
func NewTransactionEvent(action Action, t core.Transaction) TransactionEvent {
	return TransactionEvent{
		Action:      action,
		ID:          t.ID,
		UserID:      t.UserID,
		FamilyID:    t.FamilyID,
		Type:        t.Type,
		AmountCents: t.Amount.Cents,
		Category:    t.Category,
		Description: t.Description,
		Member:      t.FamilyMember,
		Date:        t.Date.String(),
		Timestamp:   time.Now().UTC(),
	}
}

// Transaction rebuilds the transaction the event describes.
func (e TransactionEvent) Transaction() (core.Transaction, error) {
	d, err := core.ParseDate(e.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		ID:           e.ID,
		UserID:       e.UserID,
		FamilyID:     e.FamilyID,
		Type:         e.Type,
		Amount:       core.Money{Cents: e.AmountCents},
		Category:     e.Category,
		Description:  e.Description,
		Date:         d,
		FamilyMember: e.Member,
	}, nil
}

func (e TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes and sanity-checks an event body.
func TransactionEventFromJSON(data []byte) (TransactionEvent, error) {
	var e TransactionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return TransactionEvent{}, err
	}
	switch e.Action {
	case ActionCreated, ActionUpdated, ActionDeleted:
	default:
		return TransactionEvent{}, fmt.Errorf("unknown action %q", e.Action)
	}
	if e.ID <= 0 || e.UserID <= 0 {
		return TransactionEvent{}, fmt.Errorf("event missing transaction or user id")
	}
	return e, nil
}
