package server

import (
	"bookswap/internal/models"
	"bookswap/internal/repository"
	"bookswap/internal/service"

	"github.com/gofiber/fiber/v2"
)

type bookRequest struct {
	Title       string               `json:"title"`
	Author      string               `json:"author"`
	Genre       string               `json:"genre"`
	Condition   models.BookCondition `json:"condition"`
	Description string               `json:"description"`
	Location    string               `json:"location"`
	Image       string               `json:"image"`
}

func (r bookRequest) input() service.BookInput {
	return service.BookInput{
		Title:       r.Title,
		Author:      r.Author,
		Genre:       r.Genre,
		Condition:   r.Condition,
		Description: r.Description,
		Location:    r.Location,
		Image:       r.Image,
	}
}

// SearchBooks handles GET /api/books
// @Summary Browse books
// @Description Search listings by title or author, location and status
// @Tags books
// @Produce json
// @Param q query string false "Title or author"
// @Param location query string false "Location"
// @Param status query string false "Available or Lent Out"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset"
// @Success 200 {object} listResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /books [get]
func (s *Server) SearchBooks(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPaginationLimit)
	books, total, err := s.bookService.Search(c.UserContext(), repository.BookFilter{
		Query:    c.Query("q"),
		Location: c.Query("location"),
		Status:   models.BookStatus(c.Query("status")),
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(listResponse{Items: books, Total: total, Limit: page.Limit, Offset: page.Offset})
}

// GetBook handles GET /api/books/:id
// @Summary Get a book
// @Tags books
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} models.Book
// @Failure 404 {object} models.ErrorResponse
// @Router /books/{id} [get]
func (s *Server) GetBook(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	book, err := s.bookService.Get(c.UserContext(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(book)
}

// GetMyBooks handles GET /api/books/mine
// @Summary My listings
// @Tags books
// @Security BearerAuth
// @Produce json
// @Success 200 {object} listResponse
// @Router /books/mine [get]
func (s *Server) GetMyBooks(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPaginationLimit)
	books, total, err := s.bookService.ListMine(c.UserContext(), currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(listResponse{Items: books, Total: total, Limit: page.Limit, Offset: page.Offset})
}

// CreateBook handles POST /api/books
// @Summary List a book
// @Tags books
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body bookRequest true "Book"
// @Success 201 {object} models.Book
// @Failure 400 {object} models.ErrorResponse
// @Router /books [post]
func (s *Server) CreateBook(c *fiber.Ctx) error {
	var req bookRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	book, err := s.bookService.Create(c.UserContext(), currentUserID(c), req.input())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(book)
}

// UpdateBook handles PUT /api/books/:id
// @Summary Edit a listing
// @Tags books
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Book ID"
// @Param request body bookRequest true "Book"
// @Success 200 {object} models.Book
// @Failure 403 {object} models.ErrorResponse
// @Router /books/{id} [put]
func (s *Server) UpdateBook(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req bookRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	book, err := s.bookService.Update(c.UserContext(), currentUserID(c), id, req.input())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(book)
}

// DeleteBook handles DELETE /api/books/:id
// @Summary Remove a listing
// @Tags books
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 204
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /books/{id} [delete]
func (s *Server) DeleteBook(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.bookService.Delete(c.UserContext(), currentUserID(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleBookStatus handles POST /api/books/:id/toggle-status
// @Summary Flip Available and Lent Out
// @Tags books
// @Security BearerAuth
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} models.Book
// @Failure 400 {object} models.ErrorResponse
// @Router /books/{id}/toggle-status [post]
func (s *Server) ToggleBookStatus(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	book, err := s.bookService.ToggleStatus(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(book)
}
