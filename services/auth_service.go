package services

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/stocksim/backend/middleware"
	"github.com/stocksim/backend/models"
	"github.com/stocksim/backend/shared"
)

// AuthService handles registration, login, and token issuance.
type AuthService struct {
	DB           *sql.DB
	secret       []byte
	tokenTTL     time.Duration
	loginLimiter *shared.LoginAttemptLimiter
}

// NewAuthService creates the auth service. Login failures are throttled to
// 5 per email per 15 minutes.
func NewAuthService(db *sql.DB, secret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		DB:           db,
		secret:       []byte(secret),
		tokenTTL:     tokenTTL,
		loginLimiter: shared.NewLoginAttemptLimiter(5, 15*time.Minute),
	}
}

// Register creates a new user account with role user.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, shared.Validation("a valid email is required")
	}
	if len(password) < 8 {
		return nil, shared.Validation("password must be at least 8 characters")
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.Validation("name is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, shared.Internal("failed to hash password", err)
	}

	user := &models.User{
		Email: email,
		Name:  strings.TrimSpace(name),
		Role:  models.RoleUser,
	}

	err = s.DB.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		user.Email, string(hash), user.Name, user.Role,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if classified := shared.Classify(err); classified.Code == shared.CodeDuplicate {
			return nil, shared.Duplicate("email already registered")
		}
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   user.Email,
	}).Info("User registered")

	return user, nil
}

// Login verifies the credentials and returns a signed token plus the user.
// Failed attempts are rate-limited per email.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, shared.Validation("email and password are required")
	}

	if !s.loginLimiter.Allow(email) {
		return "", nil, shared.Forbidden("too many failed login attempts, try again later")
	}

	var user models.User
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, email, password_hash, name, role, created_at
		FROM users WHERE email = $1`,
		email,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Name, &user.Role, &user.CreatedAt)
	if err == sql.ErrNoRows {
		s.loginLimiter.RecordFailure(email)
		return "", nil, shared.Unauthenticated("invalid email or password")
	}
	if err != nil {
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.loginLimiter.RecordFailure(email)
		return "", nil, shared.Unauthenticated("invalid email or password")
	}

	s.loginLimiter.RecordSuccess(email)

	token, err := s.issueToken(&user)
	if err != nil {
		return "", nil, shared.Internal("failed to sign token", err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("User logged in")

	return token, &user, nil
}

func (s *AuthService) issueToken(user *models.User) (string, error) {
	now := time.Now()
	claims := middleware.Claims{
		UserID: user.ID.String(),
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			Subject:   user.ID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
