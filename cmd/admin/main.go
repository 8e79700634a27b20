// Package main provides admin utilities for BSU Chat.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"bsuchat/internal/bootstrap"
	"bsuchat/internal/cache"
	"bsuchat/internal/config"
	"bsuchat/internal/database"
	"bsuchat/internal/models"
	"bsuchat/internal/protocol"
	"bsuchat/internal/repository"
	"bsuchat/internal/security"
	"bsuchat/internal/seed"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin token <user_id> [--admin]          - Mint a bearer token")
	fmt.Println("  go run ./cmd/admin seed [count]                       - Create demo users")
	fmt.Println("  go run ./cmd/admin set-status <user_id> active|banned - Activate or ban a user")
	fmt.Println("  go run ./cmd/admin list [faculty]                     - List users")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	command := os.Args[1]

	// token does not need the database
	if command == "token" {
		if len(os.Args) < 3 {
			fmt.Println("Usage: go run ./cmd/admin token <user_id> [--admin]")
			os.Exit(1)
		}
		mintToken(cfg, os.Args[2], len(os.Args) > 3 && os.Args[3] == "--admin")
		return
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Status changes must evict the user entry the server has cached.
	if cfg.RedisURL != "" {
		cache.InitRedis(cfg.RedisURL)
	}
	users := repository.NewUserRepository(db)
	ctx := context.Background()

	switch command {
	case "seed":
		count := 32
		if len(os.Args) > 2 {
			n, err := strconv.Atoi(os.Args[2])
			if err != nil || n <= 0 {
				fmt.Printf("Invalid count: %s\n", os.Args[2])
				os.Exit(1)
			}
			count = n
		}
		seedUsers(ctx, users, count)

	case "set-status":
		if len(os.Args) < 4 {
			fmt.Println("Usage: go run ./cmd/admin set-status <user_id> active|banned")
			os.Exit(1)
		}
		setStatus(ctx, users, os.Args[2], models.UserStatus(os.Args[3]))

	case "list":
		faculty := ""
		if len(os.Args) > 2 {
			faculty = os.Args[2]
		}
		listUsers(ctx, users, faculty)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}
}

func mintToken(cfg *config.Config, userID string, admin bool) {
	if err := protocol.ValidateUserID("user_id", userID); err != nil {
		fmt.Printf("Invalid user ID: %v\n", err)
		os.Exit(1)
	}
	token, err := security.NewTokenService(cfg.JWTSecret, bootstrap.TokenTTL).CreateForUser(userID, admin)
	if err != nil {
		log.Fatalf("Failed to create token: %v", err)
	}
	fmt.Println(token)
}

func seedUsers(ctx context.Context, users repository.UserRepository, count int) {
	created, err := seed.Users(ctx, users, seed.Options{NumUsers: count})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	for _, u := range created {
		fmt.Printf("  %-16s %-28s %s\n", u.ID, u.FullName, u.Faculty)
	}
	fmt.Printf("Seeded %d users\n", len(created))
}

func setStatus(ctx context.Context, users repository.UserRepository, userID string, status models.UserStatus) {
	if err := users.UpdateStatus(ctx, userID, status); err != nil {
		if models.IsNotFound(err) {
			fmt.Printf("User with ID %s not found\n", userID)
			os.Exit(1)
		}
		log.Fatalf("Failed to update status: %v", err)
	}
	fmt.Printf("User %s is now %s\n", userID, status)
}

func listUsers(ctx context.Context, users repository.UserRepository, faculty string) {
	rows, err := users.List(ctx, faculty, 200, 0)
	if err != nil {
		log.Fatalf("Database error: %v", err)
	}
	if len(rows) == 0 {
		fmt.Println("No users found")
		return
	}
	for _, u := range rows {
		fmt.Printf("  %-16s %-8s %-28s %s\n", u.ID, u.Status, u.FullName, u.Faculty)
	}
}
