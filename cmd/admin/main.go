// Package main provides admin management utilities for BookSwap.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"bookswap/internal/config"
	"bookswap/internal/database"
	"bookswap/internal/models"
	"bookswap/internal/repository"
	"bookswap/internal/service"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin promote <user_id>     - Promote user to admin")
	fmt.Println("  go run ./cmd/admin demote <user_id>      - Demote user to member")
	fmt.Println("  go run ./cmd/admin list-admins           - List all admins")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	admins := service.NewAdminService(
		repository.NewUserRepository(db),
		repository.NewBookRepository(db),
		repository.NewLoanRepository(db),
		repository.NewDisputeRepository(db),
	)
	ctx := context.Background()

	switch os.Args[1] {
	case "promote", "demote":
		if len(os.Args) < 3 {
			usage()
		}
		id, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil || id == 0 {
			log.Fatalf("Invalid user ID %q", os.Args[2])
		}
		role := models.UserRoleAdmin
		if os.Args[1] == "demote" {
			role = models.UserRoleMember
		}
		user, err := admins.SetRole(ctx, uint(id), role)
		if err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				fmt.Printf("User with ID %d not found\n", id)
				os.Exit(1)
			}
			log.Fatalf("Failed to update role: %v", err)
		}
		fmt.Printf("✅ %s (ID: %d) is now %s\n", user.Name, user.ID, user.Role)

	case "list-admins":
		list, err := admins.ListAdmins(ctx)
		if err != nil {
			log.Fatalf("Failed to fetch admins: %v", err)
		}
		if len(list) == 0 {
			fmt.Println("No admins found in the system")
			return
		}
		fmt.Println("\n📋 Current Admins:")
		fmt.Println("─────────────────────────────────────")
		for _, a := range list {
			fmt.Printf("ID: %d | Name: %s | Email: %s\n", a.ID, a.Name, a.Email)
		}
		fmt.Println("─────────────────────────────────────")

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		usage()
	}
}
