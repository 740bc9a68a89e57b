package server

import (
	"context"

	"bookswap/internal/models"
	"bookswap/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createRequestBody struct {
	BookID      uint               `json:"book_id"`
	RequestType models.RequestType `json:"request_type"`
	Message     string             `json:"message"`
	SwapBookID  *uint              `json:"swap_book_id"`
}

// CreateRequest handles POST /api/requests
// @Summary Request a book
// @Description Ask the owner to lend or swap a book
// @Tags requests
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body createRequestBody true "Request"
// @Success 201 {object} models.LoanRequest
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /requests [post]
func (s *Server) CreateRequest(c *fiber.Ctx) error {
	var body createRequestBody
	if err := parseBody(c, &body); err != nil {
		return nil
	}
	req, err := s.loanService.Create(c.UserContext(), currentUserID(c), service.CreateLoanInput{
		BookID:      body.BookID,
		RequestType: body.RequestType,
		Message:     body.Message,
		SwapBookID:  body.SwapBookID,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

// GetIncomingRequests handles GET /api/requests/incoming
// @Summary Requests for my books
// @Tags requests
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.LoanRequest
// @Router /requests/incoming [get]
func (s *Server) GetIncomingRequests(c *fiber.Ctx) error {
	reqs, err := s.loanService.ListIncoming(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(reqs)
}

// GetOutgoingRequests handles GET /api/requests/outgoing
// @Summary Requests I have made
// @Tags requests
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.LoanRequest
// @Router /requests/outgoing [get]
func (s *Server) GetOutgoingRequests(c *fiber.Ctx) error {
	reqs, err := s.loanService.ListOutgoing(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(reqs)
}

// GetRequest handles GET /api/requests/:id
// @Summary Get a request
// @Tags requests
// @Security BearerAuth
// @Produce json
// @Param id path int true "Request ID"
// @Success 200 {object} models.LoanRequest
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /requests/{id} [get]
func (s *Server) GetRequest(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	req, err := s.loanService.Get(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(req)
}

type transitionFunc func(ctx context.Context, actorID, requestID uint) (*models.LoanRequest, error)

func (s *Server) runTransition(c *fiber.Ctx, fn transitionFunc) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	req, err := fn(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(req)
}

// ApproveRequest handles POST /api/requests/:id/approve
// @Summary Approve a pending request
// @Description Owner only. Starts the loan and sets the due date.
// @Tags requests
// @Security BearerAuth
// @Produce json
// @Param id path int true "Request ID"
// @Success 200 {object} models.LoanRequest
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /requests/{id}/approve [post]
func (s *Server) ApproveRequest(c *fiber.Ctx) error {
	return s.runTransition(c, s.loanService.Approve)
}

// RejectRequest handles POST /api/requests/:id/reject
// @Summary Reject a pending request
// @Tags requests
// @Security BearerAuth
// @Produce json
// @Param id path int true "Request ID"
// @Success 200 {object} models.LoanRequest
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /requests/{id}/reject [post]
func (s *Server) RejectRequest(c *fiber.Ctx) error {
	return s.runTransition(c, s.loanService.Reject)
}

// ReturnRequest handles POST /api/requests/:id/return
// @Summary Mark an approved loan returned
// @Tags requests
// @Security BearerAuth
// @Produce json
// @Param id path int true "Request ID"
// @Success 200 {object} models.LoanRequest
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /requests/{id}/return [post]
func (s *Server) ReturnRequest(c *fiber.Ctx) error {
	return s.runTransition(c, s.loanService.Return)
}

// GetRequestMessages handles GET /api/requests/:id/messages
// @Summary Request thread
// @Tags messages
// @Security BearerAuth
// @Produce json
// @Param id path int true "Request ID"
// @Success 200 {array} models.Message
// @Failure 403 {object} models.ErrorResponse
// @Router /requests/{id}/messages [get]
func (s *Server) GetRequestMessages(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	msgs, err := s.messageService.List(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(msgs)
}

// SendRequestMessage handles POST /api/requests/:id/messages
// @Summary Message the other party
// @Tags messages
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Request ID"
// @Param request body object{body=string} true "Message"
// @Success 201 {object} models.Message
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /requests/{id}/messages [post]
func (s *Server) SendRequestMessage(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var body struct {
		Body string `json:"body"`
	}
	if err := parseBody(c, &body); err != nil {
		return nil
	}
	msg, err := s.messageService.Send(c.UserContext(), currentUserID(c), id, body.Body)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// RateRequest handles POST /api/requests/:id/ratings
// @Summary Rate the other party
// @Description Allowed once the request is Returned; rating again replaces the earlier one.
// @Tags ratings
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Request ID"
// @Param request body object{rating=int,review=string} true "Rating"
// @Success 200 {object} models.Rating
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /requests/{id}/ratings [post]
func (s *Server) RateRequest(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var body struct {
		Rating int    `json:"rating"`
		Review string `json:"review"`
	}
	if err := parseBody(c, &body); err != nil {
		return nil
	}
	rating, err := s.ratingService.Upsert(c.UserContext(), currentUserID(c), service.RateInput{
		RequestID: id,
		Rating:    body.Rating,
		Review:    body.Review,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(rating)
}

// GetUserRatings handles GET /api/users/:id/ratings
// @Summary Ratings a user received
// @Tags ratings
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} object{summary=models.RatingSummary,items=[]models.Rating,total=int}
// @Router /users/{id}/ratings [get]
func (s *Server) GetUserRatings(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, defaultPaginationLimit)
	ratings, total, err := s.ratingService.ListForUser(c.UserContext(), id, page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	summary, err := s.ratingService.AverageForUser(c.UserContext(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"summary": summary,
		"items":   ratings,
		"total":   total,
		"limit":   page.Limit,
		"offset":  page.Offset,
	})
}

// OpenDispute handles POST /api/requests/:id/disputes
// @Summary Report a problem with a request
// @Tags disputes
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Request ID"
// @Param request body object{title=string,description=string} true "Dispute"
// @Success 201 {object} models.Dispute
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /requests/{id}/disputes [post]
func (s *Server) OpenDispute(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := parseBody(c, &body); err != nil {
		return nil
	}
	dispute, err := s.disputeService.Open(c.UserContext(), currentUserID(c), service.OpenDisputeInput{
		RequestID:   id,
		Title:       body.Title,
		Description: body.Description,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dispute)
}

// GetMyDisputes handles GET /api/disputes/mine
// @Summary Disputes I reported or am named in
// @Tags disputes
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.Dispute
// @Router /disputes/mine [get]
func (s *Server) GetMyDisputes(c *fiber.Ctx) error {
	disputes, err := s.disputeService.ListMine(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(disputes)
}
