package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"agentflow/internal/llm"
)

const (
	LookupTicketToolName = "lookup_ticket"
	CreateTicketToolName = "create_ticket"
)

// Ticket is a support ticket in the in-process store.
type Ticket struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Subject  string `json:"subject"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

// TicketStore is a concurrency-safe in-memory ticket database shared
// by the lookup and create tools.
type TicketStore struct {
	mu      sync.RWMutex
	tickets map[string]Ticket
	nextID  atomic.Uint64
}

func NewTicketStore() *TicketStore {
	store := &TicketStore{tickets: make(map[string]Ticket)}
	for _, t := range []Ticket{
		{ID: "TCK-1001", Customer: "acme", Subject: "Cannot reset password", Status: "open", Priority: "high"},
		{ID: "TCK-1002", Customer: "globex", Subject: "Invoice shows wrong amount", Status: "pending", Priority: "medium"},
		{ID: "TCK-1003", Customer: "acme", Subject: "API rate limits too low", Status: "closed", Priority: "low"},
	} {
		store.tickets[t.ID] = t
	}
	store.nextID.Store(1003)
	return store
}

func (s *TicketStore) Get(id string) (Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[id]
	return t, ok
}

func (s *TicketStore) Create(customer, subject, priority string) Ticket {
	t := Ticket{
		ID:       fmt.Sprintf("TCK-%d", s.nextID.Add(1)),
		Customer: customer,
		Subject:  subject,
		Status:   "open",
		Priority: priority,
	}
	s.mu.Lock()
	s.tickets[t.ID] = t
	s.mu.Unlock()
	return t
}

// LookupTicketTool fetches a ticket by id.
type LookupTicketTool struct {
	store *TicketStore
}

func NewLookupTicketTool(store *TicketStore) *LookupTicketTool {
	return &LookupTicketTool{store: store}
}

func (t *LookupTicketTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        LookupTicketToolName,
		Description: "Look up a support ticket by its id (e.g. TCK-1001). Returns the ticket as JSON.",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"ticket_id": map[string]interface{}{
					"type":        "string",
					"description": "The ticket id, e.g. \"TCK-1001\"",
				},
			},
			"required":             []string{"ticket_id"},
			"additionalProperties": false,
		},
	}
}

func (t *LookupTicketTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var payload struct {
		TicketID string `json:"ticket_id"`
	}
	if err := json.Unmarshal(args, &payload); err != nil {
		return "", fmt.Errorf("parse lookup_ticket args: %w", err)
	}
	if payload.TicketID == "" {
		return "", fmt.Errorf("ticket_id is required")
	}

	ticket, ok := t.store.Get(payload.TicketID)
	if !ok {
		return "", fmt.Errorf("no ticket with id %s", payload.TicketID)
	}
	out, err := json.Marshal(ticket)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// CreateTicketTool opens a new ticket.
type CreateTicketTool struct {
	store *TicketStore
}

func NewCreateTicketTool(store *TicketStore) *CreateTicketTool {
	return &CreateTicketTool{store: store}
}

func (t *CreateTicketTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        CreateTicketToolName,
		Description: "Open a new support ticket for a customer. Returns the created ticket as JSON.",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"customer": map[string]interface{}{
					"type":        "string",
					"description": "Customer account name",
				},
				"subject": map[string]interface{}{
					"type":        "string",
					"description": "Short summary of the issue",
				},
				"priority": map[string]interface{}{
					"type":        "string",
					"description": "One of: low, medium, high",
				},
			},
			"required":             []string{"customer", "subject", "priority"},
			"additionalProperties": false,
		},
	}
}

func (t *CreateTicketTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var payload struct {
		Customer string `json:"customer"`
		Subject  string `json:"subject"`
		Priority string `json:"priority"`
	}
	if err := json.Unmarshal(args, &payload); err != nil {
		return "", fmt.Errorf("parse create_ticket args: %w", err)
	}
	if payload.Customer == "" || payload.Subject == "" {
		return "", fmt.Errorf("customer and subject are required")
	}
	switch payload.Priority {
	case "low", "medium", "high":
	case "":
		payload.Priority = "medium"
	default:
		return "", fmt.Errorf("invalid priority %q", payload.Priority)
	}

	ticket := t.store.Create(payload.Customer, payload.Subject, payload.Priority)
	out, err := json.Marshal(ticket)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
