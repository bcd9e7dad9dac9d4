// cmd/seedmenu creates or updates a demo menu for one restaurant.
// Usage: go run ./cmd/seedmenu -restaurant <uuid>
package main

import (
	"flag"
	"os"

	"restopos/internal/config"
	"restopos/internal/infra"
	"restopos/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type seedItem struct {
	name      string
	price     string
	modifiers map[string]string
}

var demoMenu = []seedItem{
	{name: "Burger", price: "5.000", modifiers: map[string]string{"Cheese": "0.250", "Bacon": "0.750"}},
	{name: "Fries", price: "3.000"},
	{name: "Falafel Wrap", price: "2.500", modifiers: map[string]string{"Extra tahini": "0.200"}},
	{name: "Tea", price: "2.000", modifiers: map[string]string{"Large": "0.500"}},
	{name: "Lemonade", price: "2.750"},
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	restaurant := flag.String("restaurant", "", "restaurant id")
	flag.Parse()
	restaurantID, err := uuid.Parse(*restaurant)
	if err != nil {
		log.Fatal().Msg("-restaurant must be a UUID")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	items := buildMenu(restaurantID)
	err = db.Session(&gorm.Session{FullSaveAssociations: true}).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&items).Error
	if err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
	for _, it := range items {
		log.Info().Str("id", it.ID.String()).Str("name", it.Name).Str("price", it.BasePrice.StringFixed(3)).Msg("menu item")
	}
}

// buildMenu derives stable ids from the restaurant and item names, so a
// rerun updates the same rows.
func buildMenu(restaurantID uuid.UUID) []model.MenuItem {
	items := make([]model.MenuItem, 0, len(demoMenu))
	for _, s := range demoMenu {
		m := model.MenuItem{
			ID:           uuid.NewSHA1(restaurantID, []byte(s.name)),
			RestaurantID: restaurantID,
			Name:         s.name,
			BasePrice:    decimal.RequireFromString(s.price),
			Available:    true,
		}
		for name, delta := range s.modifiers {
			m.Modifiers = append(m.Modifiers, model.MenuModifier{
				ID:         uuid.NewSHA1(m.ID, []byte(name)),
				MenuItemID: m.ID,
				Name:       name,
				PriceDelta: decimal.RequireFromString(delta),
			})
		}
		items = append(items, m)
	}
	return items
}
