package service

import (
	"context"

	"bookswap/internal/cache"
	"bookswap/internal/models"
	"bookswap/internal/repository"
)

// DashboardStats are the counters on the admin dashboard.
type DashboardStats struct {
	TotalUsers       int64 `json:"total_users"`
	TotalBooks       int64 `json:"total_books"`
	TotalRequests    int64 `json:"total_requests"`
	PendingDisputes  int64 `json:"pending_disputes"`
	ActiveBorrowings int64 `json:"active_borrowings"`
	AvailableBooks   int64 `json:"available_books"`
}

// AdminService backs the moderation endpoints. Dispute moderation lives in DisputeService.
type AdminService struct {
	users    repository.UserRepository
	books    repository.BookRepository
	loans    repository.LoanRepository
	disputes repository.DisputeRepository
}

func NewAdminService(
	users repository.UserRepository,
	books repository.BookRepository,
	loans repository.LoanRepository,
	disputes repository.DisputeRepository,
) *AdminService {
	return &AdminService{users: users, books: books, loans: loans, disputes: disputes}
}

// DashboardStats is cached briefly; writes that change a counter drop the cache.
func (s *AdminService) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats
	err := cache.Aside(ctx, cache.DashboardStatsKey, &stats, cache.DashboardStatsTTL, func() error {
		var err error
		if stats.TotalUsers, err = s.users.Count(ctx); err != nil {
			return err
		}
		if stats.TotalBooks, err = s.books.Count(ctx); err != nil {
			return err
		}
		if stats.TotalRequests, err = s.loans.Count(ctx); err != nil {
			return err
		}
		if stats.PendingDisputes, err = s.disputes.CountByStatus(ctx, models.DisputeStatusOpen); err != nil {
			return err
		}
		if stats.ActiveBorrowings, err = s.loans.CountByStatus(ctx, models.LoanStatusApproved); err != nil {
			return err
		}
		stats.AvailableBooks, err = s.books.CountByStatus(ctx, models.BookStatusAvailable)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *AdminService) ListUsers(ctx context.Context, search string, limit, offset int) ([]models.User, int64, error) {
	return s.users.List(ctx, search, limit, offset)
}

// DeleteUser removes a member and, by cascade, their books and requests.
func (s *AdminService) DeleteUser(ctx context.Context, adminID, userID uint) error {
	if adminID == userID {
		return models.NewValidationError("You cannot delete your own account")
	}
	return s.users.Delete(ctx, userID)
}

// ToggleRole flips userID between member and admin.
func (s *AdminService) ToggleRole(ctx context.Context, adminID, userID uint) (*models.User, error) {
	if adminID == userID {
		return nil, models.NewValidationError("You cannot change your own role")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	next := models.UserRoleAdmin
	if user.IsAdmin() {
		next = models.UserRoleMember
	}
	if err := s.users.SetRole(ctx, user.ID, next); err != nil {
		return nil, err
	}
	user.Role = next
	return user, nil
}

// SetRole is used by the admin CLI, which has no acting user.
func (s *AdminService) SetRole(ctx context.Context, userID uint, role models.UserRole) (*models.User, error) {
	if role != models.UserRoleAdmin && role != models.UserRoleMember {
		return nil, models.NewValidationError("Role must be admin or member")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetRole(ctx, user.ID, role); err != nil {
		return nil, err
	}
	user.Role = role
	return user, nil
}

func (s *AdminService) ListAdmins(ctx context.Context) ([]models.User, error) {
	return s.users.ListByRole(ctx, models.UserRoleAdmin)
}

func (s *AdminService) ListBooks(ctx context.Context, f repository.BookFilter) ([]models.Book, int64, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, models.NewValidationError("Unknown book status")
	}
	return s.books.Search(ctx, f)
}

// DeleteBook removes any listing regardless of owner.
func (s *AdminService) DeleteBook(ctx context.Context, bookID uint) error {
	return s.books.Delete(ctx, bookID)
}
