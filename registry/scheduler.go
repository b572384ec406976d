package registry

import (
	"context"
	"fmt"
)

// Scheduler is the external appointment collaborator.
type Scheduler interface {
	Availability(ctx context.Context, date string) ([]string, error)
	Book(ctx context.Context, contactId, slot string) (confirmationId string, err error)
}

type checkAvailabilityHandler struct {
	scheduler Scheduler
}

// NewCheckAvailability lists open appointment slots for a date.
func NewCheckAvailability(scheduler Scheduler) Handler {
	return &checkAvailabilityHandler{scheduler: scheduler}
}

func (h *checkAvailabilityHandler) Schema() Schema {
	return Schema{
		Name:        "check_availability",
		Description: "List open appointment slots for a calendar date.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"date": map[string]any{
					"type":        "string",
					"description": "Calendar date in YYYY-MM-DD format.",
				},
			},
			"required": []any{"date"},
		},
	}
}

func (h *checkAvailabilityHandler) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	date, _ := args["date"].(string)
	slots, err := h.scheduler.Availability(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("checking availability: %w", err)
	}
	return map[string]any{"date": date, "slots": slots}, nil
}

type bookAppointmentHandler struct {
	scheduler Scheduler
}

// NewBookAppointment books a slot for a contact.
func NewBookAppointment(scheduler Scheduler) Handler {
	return &bookAppointmentHandler{scheduler: scheduler}
}

func (h *bookAppointmentHandler) Schema() Schema {
	return Schema{
		Name:        "book_appointment",
		Description: "Book an appointment slot for a CRM contact.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"contact_id": map[string]any{"type": "string"},
				"slot":       map[string]any{"type": "string"},
			},
			"required": []any{"contact_id", "slot"},
		},
	}
}

func (h *bookAppointmentHandler) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	contactId, _ := args["contact_id"].(string)
	slot, _ := args["slot"].(string)
	confirmation, err := h.scheduler.Book(ctx, contactId, slot)
	if err != nil {
		return nil, fmt.Errorf("booking appointment: %w", err)
	}
	return map[string]any{"confirmation_id": confirmation}, nil
}
