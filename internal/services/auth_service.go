package services

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/learnhub/engine/internal/models"
	"github.com/learnhub/engine/internal/repository"
	appErr "github.com/learnhub/engine/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// TokenTTL is how long an issued access token stays valid.
const TokenTTL = 24 * time.Hour

type AuthService interface {
	Register(ctx context.Context, email, password, name string) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, *models.User, error)
}

type authService struct {
	userRepo   repository.UserRepository
	hmacSecret []byte
}

func NewAuthService(userRepo repository.UserRepository, secret []byte) AuthService {
	return &authService{
		userRepo:   userRepo,
		hmacSecret: secret,
	}
}

func (s *authService) Register(ctx context.Context, email, password, name string) (*models.User, error) {
	ph, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInvalid, "password cannot be hashed")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(ph),
		Name:         name,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if appErr.IsCode(err, appErr.CodeAlreadyExists) {
			return nil, appErr.New(appErr.CodeConflict, "email already registered")
		}
		return nil, err
	}
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	var user models.User
	if err := s.userRepo.GetByEmail(ctx, email, &user); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return "", nil, appErr.New(appErr.CodeUnauthorized, "invalid credentials")
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, appErr.New(appErr.CodeUnauthorized, "invalid credentials")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID.String(),
		"exp": time.Now().Add(TokenTTL).Unix(),
	})
	tokenString, err := token.SignedString(s.hmacSecret)
	if err != nil {
		return "", nil, appErr.Wrap(err, appErr.CodeInternal, "sign token")
	}
	return tokenString, &user, nil
}
