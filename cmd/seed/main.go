// Command main runs the database seeder for BookSwap.
package main

import (
	"context"
	"flag"
	"log"

	"bookswap/internal/config"
	"bookswap/internal/database"
	"bookswap/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of users to create")
	numBooks := flag.Int("books", 60, "Number of books to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	dryRun := flag.Bool("dry-run", false, "Log rows instead of inserting them")
	maxDays := flag.Int("max-days", 90, "How far back created_at timestamps reach")
	randSeed := flag.Int64("rand-seed", 0, "Random seed (0 uses the clock)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d users, %d books, clean=%v\n", *numUsers, *numBooks, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.ApplySchema(context.Background(), db, cfg); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	sum, err := seed.Seed(db, seed.Options{
		NumUsers:    *numUsers,
		NumBooks:    *numBooks,
		ShouldClean: *shouldClean,
		DryRun:      *dryRun,
		MaxDays:     *maxDays,
		RandSeed:    *randSeed,
	})
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ All done! %d users, %d books, %d requests.", sum.Users, sum.Books, sum.Requests)
	log.Printf("📧 All seeded users have the password: %s (admin: %s)", seed.DemoPassword, seed.DemoAdminEmail)
}
