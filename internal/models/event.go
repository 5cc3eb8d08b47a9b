package models

import "time"

// EventType identifies a user interaction.
type EventType string

const (
	EventSearch    EventType = "search"
	EventClick     EventType = "click"
	EventAddToCart EventType = "add_to_cart"
	EventPurchase  EventType = "purchase"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventSearch, EventClick, EventAddToCart, EventPurchase:
		return true
	}
	return false
}

// RequiresProduct reports whether events of this type must reference a product.
func (t EventType) RequiresProduct() bool {
	return t == EventClick || t == EventAddToCart || t == EventPurchase
}

// Event is a behavioral signal captured from the storefront.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"event_type"`
	Query     string    `json:"query,omitempty"`
	ProductID string    `json:"product_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
