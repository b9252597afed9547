package entity

import (
	"strings"
	"time"
)

// CachedProduct is the local mirror of a server product. The catalog refresh
// is its only writer.
type CachedProduct struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	CategoryID  *string   `gorm:"size:64;index" json:"category_id,omitempty"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Code        string    `gorm:"size:100" json:"code"`
	Price       Money     `gorm:"not null;default:0" json:"price"`
	Active      bool      `gorm:"not null;index" json:"active"`
	Favorite    bool      `gorm:"not null;index" json:"favorite"`
	LastUpdated time.Time `gorm:"not null" json:"last_updated"`
}

// TableName returns the table name for the CachedProduct model
func (CachedProduct) TableName() string {
	return "cached_products"
}

// Matches reports whether the product name or code contains term,
// ignoring case. An empty term matches everything.
func (p *CachedProduct) Matches(term string) bool {
	if term == "" {
		return true
	}
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(p.Name), term) ||
		strings.Contains(strings.ToLower(p.Code), term)
}

// CachedCategory is the local mirror of a server category
type CachedCategory struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	LastUpdated time.Time `gorm:"not null" json:"last_updated"`
}

// TableName returns the table name for the CachedCategory model
func (CachedCategory) TableName() string {
	return "cached_categories"
}
