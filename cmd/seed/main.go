// seed creates the initial admin account. Idempotent: an existing user with the same name is left alone.
// Set SEED_ADMIN_USERNAME (default "admin") and SEED_ADMIN_PASSWORD.
package main

import (
	"context"
	"fmt"
	"log"

	"session-gate/internal/config"
	"session-gate/internal/db"
	"session-gate/internal/security"
	"session-gate/internal/user"
	userrepo "session-gate/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	created, err := user.EnsureAdmin(ctx, userrepo.NewPostgresRepository(conn), security.NewHasher(cfg.BcryptCost),
		cfg.SeedAdminUsername, cfg.SeedAdminPassword)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	if !created {
		log.Printf("Seed already applied (%s exists). Skipping.", cfg.SeedAdminUsername)
		return
	}
	log.Println("Seed completed successfully.")
	fmt.Printf("Admin login: %s\n", cfg.SeedAdminUsername)
}
