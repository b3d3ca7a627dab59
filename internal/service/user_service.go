package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/samuelysliu/pdf-editor/internal/model"
	"github.com/samuelysliu/pdf-editor/internal/repository"
	"github.com/samuelysliu/pdf-editor/internal/util"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

type AuthConfig struct {
	JWTSecret    string
	TokenTTL     time.Duration
	DefaultQuota int
}

// Session is a freshly issued access token.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

type UserService interface {
	Register(ctx context.Context, username, email, password string) (*model.User, error)
	Login(ctx context.Context, username, password string) (*Session, error)
	Get(ctx context.Context, id int64) (*model.User, error)
}

type userService struct {
	userRepo repository.UserRepository
	cfg      AuthConfig
	now      func() time.Time
	logger   zerolog.Logger
}

func NewUserService(userRepo repository.UserRepository, cfg AuthConfig, logger zerolog.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger.With().Str("service", "UserService").Logger(),
	}
}

func (s *userService) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))
	if username == "" || email == "" || len(password) < 6 {
		return nil, invalidArgument("username, email and a password of at least 6 characters are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Quota:        s.cfg.DefaultQuota,
	}
	if err := s.userRepo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		s.logger.Error().Err(err).Str("username", username).Msg("Failed to create user")
		return nil, err
	}
	s.logger.Info().Int64("user_id", u.ID).Msg("User registered")
	return u, nil
}

func (s *userService) Login(ctx context.Context, username, password string) (*Session, error) {
	u, err := s.userRepo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	now := s.now()
	token, err := util.IssueJWT(u.ID, u.Username, s.cfg.JWTSecret, s.cfg.TokenTTL, now)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", u.ID).Msg("Failed to issue token")
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: now.Add(s.cfg.TokenTTL), User: u}, nil
}

func (s *userService) Get(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}
