package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bt-bridge/voice-gateway/registry"
)

// memoryCRM is the in-process contact directory the binary ships with.
// Deployments with a real CRM swap this out at the registry seam.
type memoryCRM struct {
	mu      sync.Mutex
	byPhone map[string]*registry.Contact
	byId    map[string]*registry.Contact
	notes   map[string][]string
}

func newMemoryCRM() *memoryCRM {
	return &memoryCRM{
		byPhone: make(map[string]*registry.Contact),
		byId:    make(map[string]*registry.Contact),
		notes:   make(map[string][]string),
	}
}

func (c *memoryCRM) FindByPhone(_ context.Context, phone string) (*registry.Contact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	contact, ok := c.byPhone[phone]
	if !ok {
		return nil, nil
	}
	copied := *contact
	return &copied, nil
}

func (c *memoryCRM) Create(_ context.Context, contact *registry.Contact) (*registry.Contact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.byPhone[contact.Phone]; exists {
		return nil, fmt.Errorf("contact with phone %s already exists", contact.Phone)
	}
	created := *contact
	created.Id = uuid.NewString()
	c.byPhone[created.Phone] = &created
	c.byId[created.Id] = &created
	copied := created
	return &copied, nil
}

func (c *memoryCRM) LogInteraction(_ context.Context, contactId, note string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byId[contactId]; !ok {
		return fmt.Errorf("no contact with id %s", contactId)
	}
	c.notes[contactId] = append(c.notes[contactId], note)
	return nil
}

// memoryScheduler hands out weekday business-hour slots and tracks bookings
// in memory.
type memoryScheduler struct {
	mu     sync.Mutex
	booked map[string]string // slot -> contact id
}

func newMemoryScheduler() *memoryScheduler {
	return &memoryScheduler{booked: make(map[string]string)}
}

func (s *memoryScheduler) Availability(_ context.Context, date string) ([]string, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("bad date %q: %w", date, err)
	}
	if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return []string{}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	slots := make([]string, 0, 8)
	for hour := 9; hour < 17; hour++ {
		slot := fmt.Sprintf("%sT%02d:00", date, hour)
		if _, taken := s.booked[slot]; !taken {
			slots = append(slots, slot)
		}
	}
	return slots, nil
}

func (s *memoryScheduler) Book(_ context.Context, contactId, slot string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if holder, taken := s.booked[slot]; taken {
		return "", fmt.Errorf("slot %s is already booked by %s", slot, holder)
	}
	s.booked[slot] = contactId
	return uuid.NewString(), nil
}
