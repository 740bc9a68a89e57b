package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bookswap/internal/middleware"
	"bookswap/internal/models"
	"bookswap/internal/repository"
	"bookswap/internal/validation"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// ErrTokenRevoked is returned by CheckRevoked for a blacklisted token.
var ErrTokenRevoked = errors.New("token has been revoked")

// SignupInput is a new account.
type SignupInput struct {
	Name     string
	Email    string
	Password string
	Location string
}

// Session is an issued access token and the user it belongs to.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// AuthService issues and revokes access tokens. Revocation needs Redis; with
// a nil client Logout is a no-op and tokens live until they expire.
type AuthService struct {
	users      repository.UserRepository
	rdb        *redis.Client
	secret     string
	bcryptCost int
	now        func() time.Time
}

func NewAuthService(users repository.UserRepository, rdb *redis.Client, secret string) *AuthService {
	return &AuthService{
		users:      users,
		rdb:        rdb,
		secret:     secret,
		bcryptCost: bcrypt.DefaultCost,
		now:        utcNow,
	}
}

func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = validation.NormalizeEmail(in.Email)
	in.Location = strings.TrimSpace(in.Location)

	if in.Name == "" || in.Email == "" || in.Password == "" {
		return nil, models.NewValidationError("Name, email, and password are required")
	}
	if err := validation.ValidateName(in.Name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewValidationError("An account with this email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(fmt.Errorf("hash password: %w", err))
	}

	user := &models.User{
		Name:     in.Name,
		Email:    in.Email,
		Password: string(hash),
		Role:     models.UserRoleMember,
		Location: in.Location,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login checks credentials. Unknown email and wrong password give the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *models.User) (*Session, error) {
	if s.secret == "" {
		return nil, models.NewInternalError(errors.New("JWT secret not configured"))
	}
	token, claims, err := middleware.IssueToken(s.secret, user.ID, s.now())
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt, User: user}, nil
}

// Logout blacklists the token id until the token would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, claims *middleware.TokenClaims) error {
	if s.rdb == nil || claims == nil || claims.JTI == "" {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, middleware.BlacklistKey(claims.JTI), "1", ttl).Err(); err != nil {
		return models.NewInternalError(fmt.Errorf("blacklist token: %w", err))
	}
	return nil
}

// CheckRevoked fails open when Redis is unavailable.
func (s *AuthService) CheckRevoked(ctx context.Context, jti string) error {
	if s.rdb == nil || jti == "" {
		return nil
	}
	n, err := s.rdb.Exists(ctx, middleware.BlacklistKey(jti)).Result()
	if err != nil {
		middleware.Logger.WarnContext(ctx, "token blacklist lookup failed", "error", err)
		return nil
	}
	if n > 0 {
		return ErrTokenRevoked
	}
	return nil
}

// Authenticate parses a bearer token and rejects revoked ones.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*middleware.TokenClaims, error) {
	if token == "" {
		return nil, middleware.ErrMissingToken
	}
	claims, err := middleware.ParseToken(s.secret, token)
	if err != nil {
		return nil, err
	}
	if err := s.CheckRevoked(ctx, claims.JTI); err != nil {
		return nil, err
	}
	return claims, nil
}

// Me returns the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID uint) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}
