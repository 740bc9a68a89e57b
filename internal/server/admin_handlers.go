package server

import (
	"bookswap/internal/models"
	"bookswap/internal/repository"
	"bookswap/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetDashboard handles GET /api/admin/dashboard
// @Summary Platform totals
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} service.DashboardStats
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/dashboard [get]
func (s *Server) GetDashboard(c *fiber.Ctx) error {
	stats, err := s.adminService.DashboardStats(c.UserContext())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(stats)
}

// GetAdminUsers handles GET /api/admin/users
// @Summary List users
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param search query string false "Name or email"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset"
// @Success 200 {object} listResponse
// @Router /admin/users [get]
func (s *Server) GetAdminUsers(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPaginationLimit)
	users, total, err := s.adminService.ListUsers(c.UserContext(), c.Query("search"), page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(listResponse{Items: users, Total: total, Limit: page.Limit, Offset: page.Offset})
}

// DeleteUser handles DELETE /api/admin/users/:id
// @Summary Delete a user
// @Tags admin
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 204
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/users/{id} [delete]
func (s *Server) DeleteUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.adminService.DeleteUser(c.UserContext(), currentUserID(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleUserRole handles POST /api/admin/users/:id/toggle-role
// @Summary Promote or demote a user
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/users/{id}/toggle-role [post]
func (s *Server) ToggleUserRole(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.adminService.ToggleRole(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// GetAdminBooks handles GET /api/admin/books
// @Summary List every book
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param q query string false "Title or author"
// @Param status query string false "Available or Lent Out"
// @Success 200 {object} listResponse
// @Router /admin/books [get]
func (s *Server) GetAdminBooks(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPaginationLimit)
	books, total, err := s.adminService.ListBooks(c.UserContext(), repository.BookFilter{
		Query:  c.Query("q"),
		Status: models.BookStatus(c.Query("status")),
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(listResponse{Items: books, Total: total, Limit: page.Limit, Offset: page.Offset})
}

// AdminDeleteBook handles DELETE /api/admin/books/:id
// @Summary Delete any book
// @Tags admin
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/books/{id} [delete]
func (s *Server) AdminDeleteBook(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.adminService.DeleteBook(c.UserContext(), id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetAdminDisputes handles GET /api/admin/disputes
// @Summary List disputes
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param status query string false "open, in_review, resolved or closed"
// @Success 200 {object} listResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/disputes [get]
func (s *Server) GetAdminDisputes(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPaginationLimit)
	disputes, total, err := s.disputeService.List(c.UserContext(),
		models.DisputeStatus(c.Query("status")), page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(listResponse{Items: disputes, Total: total, Limit: page.Limit, Offset: page.Offset})
}

// UpdateDispute handles PUT /api/admin/disputes/:id
// @Summary Move a dispute through review
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Dispute ID"
// @Param request body object{status=string,admin_notes=string} true "Decision"
// @Success 200 {object} models.Dispute
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/disputes/{id} [put]
func (s *Server) UpdateDispute(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var body struct {
		Status     models.DisputeStatus `json:"status"`
		AdminNotes string               `json:"admin_notes"`
	}
	if err := parseBody(c, &body); err != nil {
		return nil
	}
	dispute, err := s.disputeService.UpdateStatus(c.UserContext(), currentUserID(c), id, service.UpdateDisputeInput{
		Status:     body.Status,
		AdminNotes: body.AdminNotes,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(dispute)
}
