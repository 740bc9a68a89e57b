package repository

import (
	"context"

	"bookswap/internal/cache"
	"bookswap/internal/models"

	"gorm.io/gorm"
)

// BookFilter narrows a book search. Zero fields are ignored.
type BookFilter struct {
	Query    string
	Location string
	Status   models.BookStatus
	OwnerID  uint
	Limit    int
	Offset   int
}

// BookRepository defines persistence operations for book listings.
type BookRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Book, error)
	GetForUpdate(ctx context.Context, id uint) (*models.Book, error)
	Create(ctx context.Context, book *models.Book) error
	Update(ctx context.Context, book *models.Book) error
	SetStatus(ctx context.Context, id uint, status models.BookStatus) error
	Delete(ctx context.Context, id uint) error
	Search(ctx context.Context, f BookFilter) ([]models.Book, int64, error)
	CountByStatus(ctx context.Context, status models.BookStatus) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type bookRepository struct {
	db *gorm.DB
}

// NewBookRepository returns a new BookRepository implementation.
func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

func (r *bookRepository) GetByID(ctx context.Context, id uint) (*models.Book, error) {
	var book models.Book
	if err := conn(ctx, r.db).Preload("User").First(&book, id).Error; err != nil {
		return nil, notFoundOr(err, "Book", id)
	}
	return &book, nil
}

// GetForUpdate locks the row until the surrounding transaction ends.
func (r *bookRepository) GetForUpdate(ctx context.Context, id uint) (*models.Book, error) {
	var book models.Book
	if err := forUpdate(conn(ctx, r.db)).First(&book, id).Error; err != nil {
		return nil, notFoundOr(err, "Book", id)
	}
	return &book, nil
}

func (r *bookRepository) Create(ctx context.Context, book *models.Book) error {
	if err := conn(ctx, r.db).Omit("User").Create(book).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateDashboard(ctx)
	return nil
}

// editableBookColumns excludes status, which only loans and ToggleStatus write.
var editableBookColumns = []string{
	"title", "author", "genre", "condition", "description", "location", "image", "updated_at",
}

// Update writes the owner-editable columns of book. A concurrent status change survives.
func (r *bookRepository) Update(ctx context.Context, book *models.Book) error {
	res := conn(ctx, r.db).Model(book).Select(editableBookColumns).Omit("User").Updates(book)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Book", book.ID)
	}
	return nil
}

func (r *bookRepository) SetStatus(ctx context.Context, id uint, status models.BookStatus) error {
	res := conn(ctx, r.db).Model(&models.Book{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Book", id)
	}
	cache.InvalidateDashboard(ctx)
	return nil
}

func (r *bookRepository) Delete(ctx context.Context, id uint) error {
	res := conn(ctx, r.db).Delete(&models.Book{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Book", id)
	}
	cache.InvalidateDashboard(ctx)
	return nil
}

// Search matches Query against title or author, case-insensitively, newest first.
func (r *bookRepository) Search(ctx context.Context, f BookFilter) ([]models.Book, int64, error) {
	limit, offset := Page(f.Limit, f.Offset)

	q := conn(ctx, r.db).Model(&models.Book{})
	if f.Query != "" {
		p := likePattern(f.Query)
		q = q.Where("(LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(author) LIKE ? ESCAPE '\\')", p, p)
	}
	if f.Location != "" {
		q = q.Where("LOWER(location) LIKE ? ESCAPE '\\'", likePattern(f.Location))
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.OwnerID != 0 {
		q = q.Where("user_id = ?", f.OwnerID)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var books []models.Book
	if err := q.Preload("User").Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&books).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return books, total, nil
}

func (r *bookRepository) CountByStatus(ctx context.Context, status models.BookStatus) (int64, error) {
	var n int64
	if err := conn(ctx, r.db).Model(&models.Book{}).Where("status = ?", status).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *bookRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := conn(ctx, r.db).Model(&models.Book{}).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
