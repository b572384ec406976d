package registry

import (
	"context"
	"errors"
	"fmt"
)

// Contact is the CRM record shape the tools exchange with the directory.
type Contact struct {
	Id      string `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Company string `json:"company,omitempty"`
}

// CRMDirectory is the external CRM collaborator. FindByPhone returns
// (nil, nil) when no contact matches.
type CRMDirectory interface {
	FindByPhone(ctx context.Context, phone string) (*Contact, error)
	Create(ctx context.Context, contact *Contact) (*Contact, error)
	LogInteraction(ctx context.Context, contactId, note string) error
}

type lookupContactHandler struct {
	crm CRMDirectory
}

// NewLookupContact resolves a caller's phone number to a CRM contact.
func NewLookupContact(crm CRMDirectory) Handler {
	return &lookupContactHandler{crm: crm}
}

func (h *lookupContactHandler) Schema() Schema {
	return Schema{
		Name:        "lookup_contact",
		Description: "Look up a CRM contact by phone number in E.164 format.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"phone": map[string]any{
					"type":        "string",
					"description": "Phone number in E.164 format, e.g. +15551234567.",
				},
			},
			"required": []any{"phone"},
		},
	}
}

func (h *lookupContactHandler) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	phone, _ := args["phone"].(string)
	contact, err := h.crm.FindByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("looking up contact: %w", err)
	}
	if contact == nil {
		return map[string]any{"found": false}, nil
	}
	return map[string]any{"found": true, "contact": contact}, nil
}

type createContactHandler struct {
	crm CRMDirectory
}

// NewCreateContact adds a new CRM contact from details collected on a call.
func NewCreateContact(crm CRMDirectory) Handler {
	return &createContactHandler{crm: crm}
}

func (h *createContactHandler) Schema() Schema {
	return Schema{
		Name:        "create_contact",
		Description: "Create a new CRM contact with name and phone number.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":    map[string]any{"type": "string"},
				"phone":   map[string]any{"type": "string"},
				"email":   map[string]any{"type": "string"},
				"company": map[string]any{"type": "string"},
			},
			"required": []any{"name", "phone"},
		},
	}
}

func (h *createContactHandler) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	contact := &Contact{
		Name:  args["name"].(string),
		Phone: args["phone"].(string),
	}
	if v, ok := args["email"].(string); ok {
		contact.Email = v
	}
	if v, ok := args["company"].(string); ok {
		contact.Company = v
	}
	created, err := h.crm.Create(ctx, contact)
	if err != nil {
		return nil, fmt.Errorf("creating contact: %w", err)
	}
	return map[string]any{"contact": created}, nil
}

type logInteractionHandler struct {
	crm CRMDirectory
}

// NewLogInteraction records a call note against an existing contact.
func NewLogInteraction(crm CRMDirectory) Handler {
	return &logInteractionHandler{crm: crm}
}

func (h *logInteractionHandler) Schema() Schema {
	return Schema{
		Name:        "log_interaction",
		Description: "Record a note about this call on an existing CRM contact.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"contact_id": map[string]any{"type": "string"},
				"note":       map[string]any{"type": "string"},
			},
			"required": []any{"contact_id", "note"},
		},
	}
}

func (h *logInteractionHandler) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	contactId, _ := args["contact_id"].(string)
	note, _ := args["note"].(string)
	if contactId == "" {
		return nil, errors.New("contact_id is empty")
	}
	if err := h.crm.LogInteraction(ctx, contactId, note); err != nil {
		return nil, fmt.Errorf("logging interaction: %w", err)
	}
	return map[string]any{"logged": true}, nil
}
