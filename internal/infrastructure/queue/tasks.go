// Package queue moves deferred repost tickets through Redis with asynq so a
// backdated correction survives a restart of the process that accepted it.
package queue

import (
	"encoding/json"
	"fmt"

	appinventory "github.com/erp/stockledger/internal/application/inventory"
	"github.com/hibiken/asynq"
)

const (
	// TaskRepost replays a deferred backdated correction.
	TaskRepost = "ledger:repost"
)

// NewRepostTask wraps a ticket into an asynq task
func NewRepostTask(ticket *appinventory.RepostTicket) (*asynq.Task, error) {
	if ticket == nil {
		return nil, fmt.Errorf("repost task: nil ticket")
	}
	body, err := json.Marshal(ticket)
	if err != nil {
		return nil, fmt.Errorf("repost task: %w", err)
	}
	return asynq.NewTask(TaskRepost, body), nil
}

// ParseRepostTask decodes and validates the ticket carried by t
func ParseRepostTask(t *asynq.Task) (*appinventory.RepostTicket, error) {
	var ticket appinventory.RepostTicket
	if err := json.Unmarshal(t.Payload(), &ticket); err != nil {
		return nil, fmt.Errorf("repost task: decode payload: %w", err)
	}
	if err := ticket.Validate(); err != nil {
		return nil, err
	}
	return &ticket, nil
}
