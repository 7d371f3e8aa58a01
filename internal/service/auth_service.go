package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-report-access-service/internal/domain"
	"go-report-access-service/internal/repository"
	"go-report-access-service/internal/security"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

type AuthServiceInterface interface {
	Register(ctx context.Context, email, name, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
}

type AuthService struct {
	users      repository.UserRepository
	jwtMgr     *security.JWTManager
	sessionTTL time.Duration
}

func NewAuthService(users repository.UserRepository, jwtMgr *security.JWTManager, sessionTTL time.Duration) *AuthService {
	return &AuthService{users: users, jwtMgr: jwtMgr, sessionTTL: sessionTTL}
}

func (s *AuthService) Register(ctx context.Context, email, name, password string) (*domain.User, error) {
	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{
		Email:        strings.TrimSpace(strings.ToLower(email)),
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if !security.VerifyPassword(user.PasswordHash, password) {
		return "", nil, ErrInvalidCredentials
	}
	token, err := s.jwtMgr.SignSessionToken(user.ID, user.Email, s.sessionTTL)
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}
	return token, user, nil
}
