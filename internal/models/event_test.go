package models

import "testing"

func TestEventType(t *testing.T) {
	tests := []struct {
		typ             EventType
		valid, requires bool
	}{
		{EventSearch, true, false},
		{EventClick, true, true},
		{EventAddToCart, true, true},
		{EventPurchase, true, true},
		{EventType("bounce"), false, false},
		{EventType(""), false, false},
	}
	for _, tt := range tests {
		if got := tt.typ.Valid(); got != tt.valid {
			t.Errorf("%q.Valid() = %v, want %v", tt.typ, got, tt.valid)
		}
		if got := tt.typ.RequiresProduct(); got != tt.requires {
			t.Errorf("%q.RequiresProduct() = %v, want %v", tt.typ, got, tt.requires)
		}
	}
}
