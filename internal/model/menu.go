package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MenuItem is the read-only view of a sellable item. Menu CRUD lives in
// another system; this engine only reads names and prices from it.
type MenuItem struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	RestaurantID uuid.UUID       `gorm:"type:uuid;index;not null" json:"restaurant_id"`
	Name         string          `gorm:"not null" json:"name"`
	BasePrice    decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"base_price"`
	Available    bool            `gorm:"not null;default:true" json:"available"`

	Modifiers []MenuModifier `gorm:"foreignKey:MenuItemID" json:"modifiers"`
}

// MenuModifier is an option on a menu item ("extra cheese", "large").
type MenuModifier struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	MenuItemID uuid.UUID       `gorm:"type:uuid;index;not null" json:"menu_item_id"`
	Name       string          `gorm:"not null" json:"name"`
	PriceDelta decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0" json:"price_delta"`
}

// FindModifier returns the modifier with id, or nil.
func (m *MenuItem) FindModifier(id uuid.UUID) *MenuModifier {
	for i := range m.Modifiers {
		if m.Modifiers[i].ID == id {
			return &m.Modifiers[i]
		}
	}
	return nil
}
