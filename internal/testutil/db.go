// Package testutil provides shared test databases and fixtures for backend tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"bookswap/internal/database"
	"bookswap/internal/models"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq atomic.Uint64

// NewTestDB opens a migrated in-memory SQLite database that lives for the test.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every connection to ":memory:" is a separate database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// TestPassword is the plaintext password of every fixture user.
const TestPassword = "Sup3r$ecretPass"

var passwordHash = func() string {
	h, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(h)
}()

// CreateUser inserts a member with a unique email.
func CreateUser(t testing.TB, db *gorm.DB, name string) *models.User {
	t.Helper()
	n := seq.Add(1)
	u := &models.User{
		Name:     name,
		Email:    strings.ToLower(fmt.Sprintf("%s.%d@example.com", strings.ReplaceAll(name, " ", "."), n)),
		Password: passwordHash,
		Role:     models.UserRoleMember,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateAdmin inserts a user with the admin role.
func CreateAdmin(t testing.TB, db *gorm.DB, name string) *models.User {
	t.Helper()
	u := CreateUser(t, db, name)
	require.NoError(t, db.Model(u).Update("role", models.UserRoleAdmin).Error)
	u.Role = models.UserRoleAdmin
	return u
}

// CreateBook inserts an available book owned by ownerID.
func CreateBook(t testing.TB, db *gorm.DB, ownerID uint, title string) *models.Book {
	t.Helper()
	b := &models.Book{
		Title:     title,
		Author:    "Test Author",
		Condition: models.BookConditionGood,
		Status:    models.BookStatusAvailable,
		Location:  "Springfield",
		UserID:    ownerID,
	}
	require.NoError(t, db.Create(b).Error)
	return b
}

// CreateRequest inserts a pending borrow request from borrowerID for book.
func CreateRequest(t testing.TB, db *gorm.DB, book *models.Book, borrowerID uint) *models.LoanRequest {
	t.Helper()
	r := &models.LoanRequest{
		BookID:      book.ID,
		BorrowerID:  borrowerID,
		OwnerID:     book.UserID,
		RequestType: models.RequestTypeBorrow,
		Status:      models.LoanStatusPending,
	}
	require.NoError(t, db.Create(r).Error)
	return r
}

// CreateApprovedLoan inserts an approved loan due at due and marks the book lent out.
func CreateApprovedLoan(t testing.TB, db *gorm.DB, book *models.Book, borrowerID uint, due time.Time) *models.LoanRequest {
	t.Helper()
	borrowed := due.Add(-models.DefaultLoanPeriod)
	r := &models.LoanRequest{
		BookID:      book.ID,
		BorrowerID:  borrowerID,
		OwnerID:     book.UserID,
		RequestType: models.RequestTypeBorrow,
		Status:      models.LoanStatusApproved,
		BorrowedAt:  &borrowed,
		DueDate:     &due,
	}
	require.NoError(t, db.Create(r).Error)
	require.NoError(t, db.Model(book).Update("status", models.BookStatusLentOut).Error)
	book.Status = models.BookStatusLentOut
	return r
}

// CreateReturnedLoan inserts a returned loan for book.
func CreateReturnedLoan(t testing.TB, db *gorm.DB, book *models.Book, borrowerID uint) *models.LoanRequest {
	t.Helper()
	now := time.Now().UTC()
	borrowed := now.AddDate(0, 0, -10)
	due := borrowed.Add(models.DefaultLoanPeriod)
	r := &models.LoanRequest{
		BookID:      book.ID,
		BorrowerID:  borrowerID,
		OwnerID:     book.UserID,
		RequestType: models.RequestTypeBorrow,
		Status:      models.LoanStatusReturned,
		BorrowedAt:  &borrowed,
		DueDate:     &due,
		ReturnedAt:  &now,
	}
	require.NoError(t, db.Create(r).Error)
	return r
}
