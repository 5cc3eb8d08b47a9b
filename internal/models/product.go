// Package models defines core data structures for products, queries, events, and search results.
package models

import "time"

// Product is a catalog entry together with its behavioral counters.
type Product struct {
	ProductID      string    `json:"product_id" db:"product_id"`
	Title          string    `json:"title" db:"title"`
	Description    string    `json:"description" db:"description"`
	Category       string    `json:"category" db:"category"`
	Brand          string    `json:"brand" db:"brand"`
	Price          float64   `json:"price" db:"price"`
	Size           string    `json:"size" db:"size"`
	Color          string    `json:"color" db:"color"`
	Rating         float64   `json:"rating" db:"rating"`
	ClickCount     int64     `json:"click_count" db:"click_count"`
	AddToCartCount int64     `json:"add_to_cart_count" db:"add_to_cart_count"`
	PurchaseCount  int64     `json:"purchase_count" db:"purchase_count"`
	Embedding      []float32 `json:"-" db:"embedding"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Counters returns the product's behavioral counters.
func (p *Product) Counters() Counters {
	return Counters{
		Click:     p.ClickCount,
		AddToCart: p.AddToCartCount,
		Purchase:  p.PurchaseCount,
	}
}

// EmbeddingText is the text embedded for semantic retrieval.
func (p *Product) EmbeddingText() string {
	return p.Title + " " + p.Description + " " + p.Brand + " " + p.Category
}

// Counters holds the three behavioral counters of one product.
type Counters struct {
	Click     int64 `json:"click"`
	AddToCart int64 `json:"add_to_cart"`
	Purchase  int64 `json:"purchase"`
}
