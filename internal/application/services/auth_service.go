package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/todovault/core/internal/domain/entities"
	"github.com/todovault/core/internal/infrastructure/config"
	"github.com/todovault/core/internal/infrastructure/logger"
	"github.com/todovault/core/internal/ports"
)

// Claims represents the JWT claims
type Claims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// AuthService handles accounts and session tokens. The active session is
// also mirrored into the settings store so it survives restarts.
type AuthService struct {
	users     ports.UserRepository
	todos     ports.TodoRepository
	settings  ports.SettingsStore
	jwtConfig config.JWTConfig
	logger    *logger.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(users ports.UserRepository, todos ports.TodoRepository, settings ports.SettingsStore, jwtConfig config.JWTConfig, logger *logger.Logger) *AuthService {
	return &AuthService{
		users:     users,
		todos:     todos,
		settings:  settings,
		jwtConfig: jwtConfig,
		logger:    logger,
	}
}

// Register creates a new user account and opens a session for it.
func (s *AuthService) Register(ctx context.Context, req ports.RegisterRequest) (*ports.AuthResponse, error) {
	_, err := s.users.GetByEmail(ctx, req.Email)
	switch {
	case err == nil:
		return nil, entities.ErrEmailTaken
	case !errors.Is(err, entities.ErrUserNotFound):
		return nil, fmt.Errorf("check email: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &entities.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
	}

	id, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	user.ID = id

	if err := s.settings.SetActiveUserID(id); err != nil {
		s.logger.Warnw("Failed to persist active user", "error", err.Error(), "user_id", id)
	}

	s.logger.Infow("User registered", "user_id", id, "email", user.Email)

	return s.respondWithToken(user)
}

// Login authenticates a user and opens a session. A missing account and
// a wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, req ports.LoginRequest) (*ports.AuthResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, entities.ErrUserNotFound) {
			return nil, entities.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warnw("Login attempt with invalid password", "email", req.Email)
		return nil, entities.ErrInvalidCredentials
	}

	if err := s.settings.SetActiveUserID(user.ID); err != nil {
		s.logger.Warnw("Failed to persist active user", "error", err.Error(), "user_id", user.ID)
	}

	s.logger.Infow("User logged in", "user_id", user.ID, "email", user.Email)

	return s.respondWithToken(user)
}

// Logout closes the persisted session.
func (s *AuthService) Logout(ctx context.Context) error {
	if err := s.settings.ClearActiveUser(); err != nil {
		return fmt.Errorf("clear active user: %w", err)
	}

	s.logger.Infow("User logged out")
	return nil
}

// Profile returns the user together with task statistics.
func (s *AuthService) Profile(ctx context.Context, userID int64) (*ports.ProfileResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats, err := s.todos.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &ports.ProfileResponse{User: user, Stats: stats}, nil
}

// UpdateProfile changes the account's name and email.
func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, req ports.UpdateProfileRequest) (*entities.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Email != user.Email {
		other, err := s.users.GetByEmail(ctx, req.Email)
		switch {
		case err == nil && other.ID != userID:
			return nil, entities.ErrEmailTaken
		case err != nil && !errors.Is(err, entities.ErrUserNotFound):
			return nil, fmt.Errorf("check email: %w", err)
		}
	}

	user.Name = req.Name
	user.Email = req.Email
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Infow("Profile updated", "user_id", userID)
	return user, nil
}

// DeleteAccount removes the user, all owned todos, and the session.
func (s *AuthService) DeleteAccount(ctx context.Context, userID int64) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}

	if active, ok := s.settings.ActiveUserID(); ok && active == userID {
		if err := s.settings.ClearActiveUser(); err != nil {
			s.logger.Warnw("Failed to clear active user", "error", err.Error(), "user_id", userID)
		}
	}

	s.logger.Infow("Account deleted", "user_id", userID)
	return nil
}

// ValidateToken validates a JWT token and returns its claims.
func (s *AuthService) ValidateToken(tokenString string) (*ports.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtConfig.Secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return &ports.Claims{UserID: claims.UserID, Email: claims.Email}, nil
}

func (s *AuthService) respondWithToken(user *entities.User) (*ports.AuthResponse, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	return &ports.AuthResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.jwtConfig.ExpiresIn.Seconds()),
		User:        user,
	}, nil
}

func (s *AuthService) generateAccessToken(user *entities.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtConfig.ExpiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.jwtConfig.Issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtConfig.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return tokenString, nil
}
