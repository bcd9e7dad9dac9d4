// cmd/devtoken mints a cashier access token for local use.
// Usage: go run ./cmd/devtoken -restaurant <uuid> -branch <uuid> [-cashier <uuid>] [-role cashier]
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"restopos/internal/config"
	"restopos/internal/middleware"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	restaurant := flag.String("restaurant", "", "restaurant id")
	branch := flag.String("branch", "", "branch id")
	cashier := flag.String("cashier", uuid.NewString(), "cashier id")
	role := flag.String("role", middleware.RoleCashier, "cashier | supervisor | manager")
	flag.Parse()

	for name, v := range map[string]string{"restaurant": *restaurant, "branch": *branch, "cashier": *cashier} {
		if _, err := uuid.Parse(v); err != nil {
			log.Fatal().Str("flag", name).Msg("must be a UUID")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ttl := time.Duration(cfg.JWTExpirationHours) * time.Hour
	token, err := middleware.IssueToken(cfg.JWTSecret, middleware.JWTClaims{
		CashierID:    *cashier,
		BranchID:     *branch,
		RestaurantID: *restaurant,
		Role:         *role,
	}, ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to sign token")
	}
	fmt.Println(token)
}
