package seed

import (
	"fmt"
	"log"
	"time"

	"bookswap/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumBooks    int
	ShouldClean bool
	// SkipBcrypt stores DemoPassword unhashed. Tests only.
	SkipBcrypt bool
	// DryRun logs the rows instead of inserting them.
	DryRun bool
	// MaxDays bounds how far back created_at timestamps reach.
	MaxDays  int
	RandSeed int64
}

// DemoAdminEmail is the seeded administrator account.
const DemoAdminEmail = "admin@bookswap.local"

// tables in child-first order so plain DELETE respects foreign keys
var seededTables = []string{
	"notifications", "disputes", "ratings", "messages", "book_requests", "books", "users",
}

// Summary counts what Seed created.
type Summary struct {
	Users    int
	Books    int
	Requests int
	Messages int
	Ratings  int
	Disputes int
}

// Seed populates the database with demo data covering every request state:
// pending, rejected, approved and due soon, overdue, and returned with ratings.
func Seed(db *gorm.DB, opts Options) (*Summary, error) {
	if opts.NumUsers < 2 {
		opts.NumUsers = 2
	}
	if opts.NumBooks < 1 {
		opts.NumBooks = opts.NumUsers * 2
	}
	log.Printf("🌱 Starting database seeding with %d users and %d books...", opts.NumUsers, opts.NumBooks)

	if opts.ShouldClean && !opts.DryRun {
		if err := clearData(db); err != nil {
			log.Printf("⚠️  Warning: could not clear existing data: %v", err)
		}
	}

	f, err := NewFactory(db, opts)
	if err != nil {
		return nil, err
	}
	sum := &Summary{}

	admin, err := f.CreateUser(func(u *models.User) {
		u.Name = "BookSwap Admin"
		u.Email = DemoAdminEmail
		u.Role = models.UserRoleAdmin
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}
	users := []*models.User{admin}
	for len(users) < opts.NumUsers {
		u, err := f.CreateUser()
		if err != nil {
			return nil, fmt.Errorf("failed to create users: %w", err)
		}
		users = append(users, u)
	}
	sum.Users = len(users)
	log.Printf("✓ %d users created", sum.Users)

	books := make([]*models.Book, 0, opts.NumBooks)
	for i := 0; i < opts.NumBooks; i++ {
		b, err := f.CreateBook(users[i%len(users)])
		if err != nil {
			return nil, fmt.Errorf("failed to create books: %w", err)
		}
		books = append(books, b)
	}
	sum.Books = len(books)
	log.Printf("✓ %d books created", sum.Books)

	if err := seedRequests(f, users, books, sum); err != nil {
		return nil, err
	}
	log.Printf("✓ %d requests, %d messages, %d ratings, %d disputes created",
		sum.Requests, sum.Messages, sum.Ratings, sum.Disputes)

	log.Println("🎉 Database seeding completed successfully!")
	return sum, nil
}

type requestPlan struct {
	status models.LoanStatus
	dueIn  time.Duration
}

// plans cycles through the states the reminder sweep and the UI care about.
var plans = []requestPlan{
	{models.LoanStatusPending, 0},
	{models.LoanStatusApproved, 2 * 24 * time.Hour},
	{models.LoanStatusApproved, -3 * 24 * time.Hour},
	{models.LoanStatusReturned, -10 * 24 * time.Hour},
	{models.LoanStatusRejected, 0},
	{models.LoanStatusApproved, 10 * 24 * time.Hour},
}

func seedRequests(f *Factory, users []*models.User, books []*models.Book, sum *Summary) error {
	byID := make(map[uint]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	for i, book := range books {
		if i%2 == 1 {
			continue
		}
		owner := byID[book.UserID]
		borrower := users[(i+1)%len(users)]
		if borrower.ID == owner.ID {
			borrower = users[(i+2)%len(users)]
		}
		if borrower.ID == owner.ID {
			continue
		}

		plan := plans[(i/2)%len(plans)]
		req, err := f.CreateRequest(book, borrower, plan.status, plan.dueIn)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		sum.Requests++

		if plan.status == models.LoanStatusPending || plan.status == models.LoanStatusRejected {
			continue
		}
		for _, sender := range []uint{req.BorrowerID, req.OwnerID} {
			if _, err := f.CreateMessage(req, sender); err != nil {
				return fmt.Errorf("failed to create message: %w", err)
			}
			sum.Messages++
		}

		switch {
		case plan.status == models.LoanStatusReturned:
			for _, rater := range []uint{req.BorrowerID, req.OwnerID} {
				if _, err := f.CreateRating(req, rater); err != nil {
					return fmt.Errorf("failed to create rating: %w", err)
				}
				sum.Ratings++
			}
		case plan.dueIn < 0 && sum.Disputes == 0:
			if _, err := f.CreateDispute(req, req.OwnerID); err != nil {
				return fmt.Errorf("failed to create dispute: %w", err)
			}
			sum.Disputes++
		}
	}
	return nil
}

func clearData(db *gorm.DB) error {
	log.Println("🗑️  Clearing existing data...")
	if db.Dialector.Name() == "postgres" {
		sql := "TRUNCATE TABLE "
		for i, t := range seededTables {
			if i > 0 {
				sql += ", "
			}
			sql += t
		}
		return db.Exec(sql + " RESTART IDENTITY CASCADE").Error
	}
	for _, t := range seededTables {
		if err := db.Exec("DELETE FROM " + t).Error; err != nil {
			return err
		}
	}
	return nil
}
