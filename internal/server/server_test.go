package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bookswap/internal/config"
	"bookswap/internal/mail"
	"bookswap/internal/middleware"
	"bookswap/internal/models"
	"bookswap/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

type testEnv struct {
	app    *fiber.App
	db     *gorm.DB
	mailer *mail.Recorder
	redis  *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db := testutil.NewTestDB(t)
	recorder := &mail.Recorder{}
	srv, err := NewServerWithDeps(&config.Config{JWTSecret: testSecret}, db, rdb, recorder)
	require.NoError(t, err)

	return &testEnv{app: srv.App(), db: db, mailer: recorder, redis: mr}
}

func tokenFor(t *testing.T, userID uint) string {
	t.Helper()
	token, _, err := middleware.IssueToken(testSecret, userID, time.Now())
	require.NoError(t, err)
	return token
}

// do sends a JSON request and decodes a JSON response into out when out is non-nil.
func (e *testEnv) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/live", "", nil, nil))

	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/ready", "", nil, &ready))
	assert.Equal(t, "healthy", ready.Status)
	assert.Equal(t, "healthy", ready.Checks["redis"])

	env.redis.Close()
	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodGet, "/health/ready", "", nil, &ready))
	assert.Equal(t, "unhealthy", ready.Checks["redis"])
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)

	var session struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	status := env.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name":     "Ada Lovelace",
		"email":    "Ada@Example.com",
		"password": "Sup3r$ecretPass",
	}, &session)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, session.Token)
	assert.Equal(t, "ada@example.com", session.User.Email)
	assert.Equal(t, models.UserRoleMember, session.User.Role)

	var errBody models.ErrorResponse
	status = env.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name":     "Ada Again",
		"email":    "ada@example.com",
		"password": "Sup3r$ecretPass",
	}, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeValidation, errBody.Code)

	status = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "ada@example.com",
		"password": "wrong",
	}, &errBody)
	assert.Equal(t, http.StatusUnauthorized, status)

	status = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "ada@example.com",
		"password": "Sup3r$ecretPass",
	}, &session)
	require.Equal(t, http.StatusOK, status)
	token := session.Token

	var me models.User
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/auth/me", token, nil, &me))
	assert.Equal(t, "Ada Lovelace", me.Name)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodPost, "/api/auth/logout", token, nil, nil))

	status = env.do(t, http.MethodGet, "/api/auth/me", token, nil, &errBody)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Token has been revoked", errBody.Error)
}

func TestAuthRequired_Rejects(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		token   string
		wantMsg string
	}{
		{"missing", "", "Authorization required"},
		{"garbage", "not-a-jwt", "Invalid or expired token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body models.ErrorResponse
			status := env.do(t, http.MethodGet, "/api/requests/incoming", tt.token, nil, &body)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, tt.wantMsg, body.Error)
			assert.Equal(t, models.CodeUnauthorized, body.Code)
		})
	}
}

func TestLendingFlow(t *testing.T) {
	env := newTestEnv(t)
	owner := testutil.CreateUser(t, env.db, "Olive Owner")
	borrower := testutil.CreateUser(t, env.db, "Bill Borrower")
	ownerToken, borrowerToken := tokenFor(t, owner.ID), tokenFor(t, borrower.ID)

	var book models.Book
	status := env.do(t, http.MethodPost, "/api/books", ownerToken, map[string]string{
		"title": "Dune", "author": "Frank Herbert", "location": "Leeds",
	}, &book)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, models.BookStatusAvailable, book.Status)
	assert.Equal(t, models.BookConditionGood, book.Condition)

	var list struct {
		Items []models.Book `json:"items"`
		Total int64         `json:"total"`
	}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/books?q=dune", "", nil, &list))
	assert.EqualValues(t, 1, list.Total)

	var req models.LoanRequest
	status = env.do(t, http.MethodPost, "/api/requests", borrowerToken, map[string]any{
		"book_id": book.ID, "request_type": "borrow", "message": "May I?",
	}, &req)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, models.LoanStatusPending, req.Status)

	var incoming []models.LoanRequest
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/requests/incoming", ownerToken, nil, &incoming))
	require.Len(t, incoming, 1)

	approvePath := fmt.Sprintf("/api/requests/%d/approve", req.ID)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, approvePath, borrowerToken, nil, nil))

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, approvePath, ownerToken, nil, &req))
	assert.Equal(t, models.LoanStatusApproved, req.Status)
	require.NotNil(t, req.DueDate)
	require.NotNil(t, req.BorrowedAt)
	assert.Equal(t, models.DefaultLoanPeriod, req.DueDate.Sub(*req.BorrowedAt))

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, fmt.Sprintf("/api/books/%d", book.ID), "", nil, &book))
	assert.Equal(t, models.BookStatusLentOut, book.Status)

	var errBody models.ErrorResponse
	status = env.do(t, http.MethodDelete, fmt.Sprintf("/api/books/%d", book.ID), ownerToken, nil, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeValidation, errBody.Code)

	ratePath := fmt.Sprintf("/api/requests/%d/ratings", req.ID)
	status = env.do(t, http.MethodPost, ratePath, borrowerToken, map[string]any{"rating": 5}, &errBody)
	assert.Equal(t, http.StatusBadRequest, status, "rating before return")

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, fmt.Sprintf("/api/requests/%d/return", req.ID), ownerToken, nil, &req))
	assert.Equal(t, models.LoanStatusReturned, req.Status)
	assert.NotNil(t, req.ReturnedAt)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, ratePath, borrowerToken,
		map[string]any{"rating": 4, "review": "Lovely copy"}, nil))

	var ratings struct {
		Summary models.RatingSummary `json:"summary"`
		Total   int64                `json:"total"`
	}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/ratings", owner.ID), "", nil, &ratings))
	assert.EqualValues(t, 1, ratings.Summary.Count)
	assert.InDelta(t, 4.0, ratings.Summary.Average, 0.001)

	kinds := make([]mail.Kind, 0)
	for _, m := range env.mailer.Sent() {
		kinds = append(kinds, m.Kind)
	}
	assert.Contains(t, kinds, mail.KindRequestApproved)
	assert.Contains(t, kinds, mail.KindBookReturned)
}

func TestRequestMessagesAndNotifications(t *testing.T) {
	env := newTestEnv(t)
	owner := testutil.CreateUser(t, env.db, "Olive Owner")
	borrower := testutil.CreateUser(t, env.db, "Bill Borrower")
	outsider := testutil.CreateUser(t, env.db, "Nosy Neighbour")
	book := testutil.CreateBook(t, env.db, owner.ID, "Emma")
	req := testutil.CreateRequest(t, env.db, book, borrower.ID)
	ownerToken := tokenFor(t, owner.ID)

	path := fmt.Sprintf("/api/requests/%d/messages", req.ID)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, path, tokenFor(t, borrower.ID),
		map[string]string{"body": "When can I pick it up?"}, nil))
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, path, tokenFor(t, outsider.ID), nil, nil))

	var thread []models.Message
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, path, ownerToken, nil, &thread))
	require.Len(t, thread, 1)
	assert.Equal(t, owner.ID, thread[0].ReceiverID)

	var count struct {
		Count int64 `json:"count"`
	}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/notifications/unread-count", ownerToken, nil, &count))
	assert.EqualValues(t, 1, count.Count)

	var page struct {
		Items []models.Notification `json:"items"`
	}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/notifications", ownerToken, nil, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, models.NotificationMessageReceived, page.Items[0].Type)

	readPath := fmt.Sprintf("/api/notifications/%d/read", page.Items[0].ID)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, readPath, tokenFor(t, borrower.ID), nil, nil))
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodPost, readPath, ownerToken, nil, nil))

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/notifications/unread-count", ownerToken, nil, &count))
	assert.EqualValues(t, 0, count.Count)
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t)
	admin := testutil.CreateAdmin(t, env.db, "Ann Admin")
	member := testutil.CreateUser(t, env.db, "Mo Member")
	adminToken := tokenFor(t, admin.ID)

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/admin/dashboard", tokenFor(t, member.ID), nil, nil))

	var stats map[string]int64
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/admin/dashboard", adminToken, nil, &stats))
	assert.EqualValues(t, 2, stats["total_users"])

	selfPath := fmt.Sprintf("/api/admin/users/%d/toggle-role", admin.ID)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, selfPath, adminToken, nil, nil))

	var promoted models.User
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost,
		fmt.Sprintf("/api/admin/users/%d/toggle-role", member.ID), adminToken, nil, &promoted))
	assert.Equal(t, models.UserRoleAdmin, promoted.Role)

	var flags struct {
		Evaluated map[string]bool `json:"evaluated"`
	}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/admin/feature-flags", adminToken, nil, &flags))
}

func TestDisputeRoutes(t *testing.T) {
	env := newTestEnv(t)
	admin := testutil.CreateAdmin(t, env.db, "Ann Admin")
	owner := testutil.CreateUser(t, env.db, "Olive Owner")
	borrower := testutil.CreateUser(t, env.db, "Bill Borrower")
	book := testutil.CreateBook(t, env.db, owner.ID, "Middlemarch")
	req := testutil.CreateApprovedLoan(t, env.db, book, borrower.ID, time.Now().Add(48*time.Hour))
	borrowerToken, adminToken := tokenFor(t, borrower.ID), tokenFor(t, admin.ID)

	var dispute models.Dispute
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, fmt.Sprintf("/api/requests/%d/disputes", req.ID),
		borrowerToken, map[string]string{"title": "Pages missing", "description": "Chapter 3 is torn out"}, &dispute))
	assert.Equal(t, models.DisputeStatusOpen, dispute.Status)

	var mine []models.Dispute
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/disputes/mine", tokenFor(t, owner.ID), nil, &mine))
	assert.Len(t, mine, 1)

	updatePath := fmt.Sprintf("/api/admin/disputes/%d", dispute.ID)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, updatePath, adminToken,
		map[string]string{"status": "resolved", "admin_notes": "Refunded"}, &dispute))
	assert.Equal(t, models.DisputeStatusResolved, dispute.Status)

	var errBody models.ErrorResponse
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, updatePath, adminToken,
		map[string]string{"status": "in_review"}, &errBody))
}

func TestNotFoundBody(t *testing.T) {
	env := newTestEnv(t)

	var body models.ErrorResponse
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/books/999", "", nil, &body))
	assert.Equal(t, models.CodeNotFound, body.Code)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/books/abc", "", nil, &body))
	assert.Equal(t, "Invalid ID", body.Error)
}
