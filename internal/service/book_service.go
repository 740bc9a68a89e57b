package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"bookswap/internal/models"
	"bookswap/internal/repository"

	"gorm.io/gorm"
)

const (
	maxBookFieldLength       = 255
	maxGenreLength           = 100
	maxImageLength           = 512
	maxBookDescriptionLength = 1000
)

// BookInput carries the editable fields of a listing.
type BookInput struct {
	Title       string
	Author      string
	Genre       string
	Condition   models.BookCondition
	Description string
	Location    string
	Image       string
}

func (in *BookInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.Genre = strings.TrimSpace(in.Genre)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	in.Image = strings.TrimSpace(in.Image)
	if in.Condition == "" {
		in.Condition = models.BookConditionGood
	}
}

func (in BookInput) validate() error {
	switch {
	case in.Title == "":
		return models.NewValidationError("Title is required")
	case in.Author == "":
		return models.NewValidationError("Author is required")
	case utf8.RuneCountInString(in.Title) > maxBookFieldLength:
		return models.NewValidationError(fmt.Sprintf("Title must be at most %d characters", maxBookFieldLength))
	case utf8.RuneCountInString(in.Author) > maxBookFieldLength:
		return models.NewValidationError(fmt.Sprintf("Author must be at most %d characters", maxBookFieldLength))
	case utf8.RuneCountInString(in.Genre) > maxGenreLength:
		return models.NewValidationError(fmt.Sprintf("Genre must be at most %d characters", maxGenreLength))
	case utf8.RuneCountInString(in.Location) > maxBookFieldLength:
		return models.NewValidationError(fmt.Sprintf("Location must be at most %d characters", maxBookFieldLength))
	case len(in.Image) > maxImageLength:
		return models.NewValidationError(fmt.Sprintf("Image URL must be at most %d characters", maxImageLength))
	case !in.Condition.Valid():
		return models.NewValidationError("Condition must be one of Excellent, Good, Fair, Poor")
	case utf8.RuneCountInString(in.Description) > maxBookDescriptionLength:
		return models.NewValidationError(fmt.Sprintf("Description must be at most %d characters", maxBookDescriptionLength))
	}
	return nil
}

type BookService struct {
	db    *gorm.DB
	books repository.BookRepository
	loans repository.LoanRepository
}

func NewBookService(db *gorm.DB, books repository.BookRepository, loans repository.LoanRepository) *BookService {
	return &BookService{db: db, books: books, loans: loans}
}

func (s *BookService) Search(ctx context.Context, f repository.BookFilter) ([]models.Book, int64, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, models.NewValidationError("Unknown book status")
	}
	return s.books.Search(ctx, f)
}

func (s *BookService) Get(ctx context.Context, id uint) (*models.Book, error) {
	return s.books.GetByID(ctx, id)
}

// ListMine returns actorID's own listings.
func (s *BookService) ListMine(ctx context.Context, actorID uint, limit, offset int) ([]models.Book, int64, error) {
	return s.books.Search(ctx, repository.BookFilter{OwnerID: actorID, Limit: limit, Offset: offset})
}

func (s *BookService) Create(ctx context.Context, actorID uint, in BookInput) (*models.Book, error) {
	if actorID == 0 {
		return nil, models.NewUnauthorizedError("You must be logged in to list a book")
	}
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}
	book := &models.Book{
		Title:       in.Title,
		Author:      in.Author,
		Genre:       in.Genre,
		Condition:   in.Condition,
		Status:      models.BookStatusAvailable,
		Description: in.Description,
		Location:    in.Location,
		Image:       in.Image,
		UserID:      actorID,
	}
	if err := s.books.Create(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

func (s *BookService) owned(ctx context.Context, actorID, id uint) (*models.Book, error) {
	book, err := s.books.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if book.UserID != actorID {
		return nil, models.NewForbiddenError("You can only manage your own books")
	}
	return book, nil
}

// lockOwned locks the book row inside a transaction and checks ownership.
func (s *BookService) lockOwned(ctx context.Context, actorID, id uint) (*models.Book, error) {
	book, err := s.books.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if book.UserID != actorID {
		return nil, models.NewForbiddenError("You can only manage your own books")
	}
	return book, nil
}

// Update replaces the editable fields and returns the stored book.
// Status is changed only through loans or ToggleStatus.
func (s *BookService) Update(ctx context.Context, actorID, id uint, in BookInput) (*models.Book, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}
	book, err := s.owned(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	book.Title = in.Title
	book.Author = in.Author
	book.Genre = in.Genre
	book.Condition = in.Condition
	book.Description = in.Description
	book.Location = in.Location
	book.Image = in.Image
	if err := s.books.Update(ctx, book); err != nil {
		return nil, err
	}
	return s.books.GetByID(ctx, book.ID)
}

// Delete removes a listing; its requests cascade. A book out on loan cannot be deleted.
func (s *BookService) Delete(ctx context.Context, actorID, id uint) error {
	return inTx(ctx, s.db, func(ctx context.Context) error {
		book, err := s.lockOwned(ctx, actorID, id)
		if err != nil {
			return err
		}
		held, err := s.loans.ApprovedForBook(ctx, book.ID, 0)
		if err != nil {
			return err
		}
		if held {
			return models.NewValidationError("This book is currently lent out and cannot be deleted")
		}
		return s.books.Delete(ctx, book.ID)
	})
}

// ToggleStatus flips Available and Lent Out by hand, for loans arranged off the platform.
// It is refused while an approved request holds the book.
func (s *BookService) ToggleStatus(ctx context.Context, actorID, id uint) (*models.Book, error) {
	var book *models.Book
	err := inTx(ctx, s.db, func(ctx context.Context) error {
		var err error
		book, err = s.lockOwned(ctx, actorID, id)
		if err != nil {
			return err
		}
		held, err := s.loans.ApprovedForBook(ctx, book.ID, 0)
		if err != nil {
			return err
		}
		if held {
			return models.NewValidationError("This book is on an approved loan; mark the request returned instead")
		}

		next := models.BookStatusLentOut
		if book.Status == models.BookStatusLentOut {
			next = models.BookStatusAvailable
		}
		if err := s.books.SetStatus(ctx, book.ID, next); err != nil {
			return err
		}
		book.Status = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}
