package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/savingcircle/internal/auth"
	"github.com/mmynk/savingcircle/internal/middleware"
	"github.com/mmynk/savingcircle/internal/models"
	"github.com/mmynk/savingcircle/internal/storage"
	"github.com/mmynk/savingcircle/pkg/wire"
)

// AuthService registers accounts and issues session tokens.
type AuthService struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	users         storage.UserStore
	logger        *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(authenticator auth.Authenticator, jwtManager *auth.JWTManager, users storage.UserStore, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		users:         users,
		logger:        logger,
	}
}

// Register creates a new user account and signs the caller in.
func (s *AuthService) Register(ctx context.Context, req *unaryRequest) (*unaryResponse, error) {
	email := wire.String(req.Msg, wire.FieldEmail)
	s.logger.Info("Register request", "email", email)

	user, err := s.authenticator.Register(ctx,
		email,
		wire.String(req.Msg, wire.FieldName, "display_name"),
		wire.String(req.Msg, wire.FieldAvatar),
		wire.String(req.Msg, wire.FieldPassword),
	)
	if err != nil {
		s.logger.Warn("Registration failed", "email", email, "error", err)
		switch {
		case errors.Is(err, auth.ErrEmailExists):
			return nil, connect.NewError(connect.CodeAlreadyExists, err)
		case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrNameRequired):
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	resp, err := s.session(user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("User registered successfully", "user_id", user.ID, "email", user.Email)
	return resp, nil
}

// Login authenticates a user and returns a session token.
func (s *AuthService) Login(ctx context.Context, req *unaryRequest) (*unaryResponse, error) {
	email := wire.String(req.Msg, wire.FieldEmail)
	password := wire.String(req.Msg, wire.FieldPassword)
	if email == "" || password == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, auth.ErrInvalidCredentials)
	}

	user, err := s.authenticator.Authenticate(ctx, email, password)
	if err != nil {
		s.logger.Warn("Login failed", "email", email, "error", err)
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidCredentials)
	}

	resp, err := s.session(user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("User logged in successfully", "user_id", user.ID)
	return resp, nil
}

// GetProfile returns the authenticated user's account.
func (s *AuthService) GetProfile(ctx context.Context, _ *unaryRequest) (*unaryResponse, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(wire.NewBuilder().Obj(wire.FieldUser, userMessage(user)).Build()), nil
}

// UpdateProfile changes the authenticated user's account and returns it with a
// fresh token, since the token carries the name and email.
func (s *AuthService) UpdateProfile(ctx context.Context, req *unaryRequest) (*unaryResponse, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}

	user, err := s.authenticator.UpdateProfile(ctx, userID, auth.ProfileUpdate{
		Name:       wire.String(req.Msg, wire.FieldName, "display_name"),
		Email:      wire.String(req.Msg, wire.FieldEmail),
		Avatar:     wire.String(req.Msg, wire.FieldAvatar),
		Credential: wire.String(req.Msg, wire.FieldPassword),
	})
	if err != nil {
		s.logger.Warn("Profile update failed", "user_id", userID, "error", err)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return nil, connect.NewError(connect.CodeNotFound, err)
		case errors.Is(err, auth.ErrEmailExists):
			return nil, connect.NewError(connect.CodeAlreadyExists, err)
		case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrInvalidEmail):
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	resp, err := s.session(user)
	if err != nil {
		return nil, err
	}
	resp.Msg.Fields[wire.FieldMessage] = structpb.NewStringValue("Profile updated successfully")
	s.logger.Info("Profile updated", "user_id", user.ID)
	return resp, nil
}

func (s *AuthService) session(user *models.User) (*unaryResponse, error) {
	token, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	msg := wire.NewBuilder().
		Obj(wire.FieldUser, userMessage(user)).
		Str(wire.FieldToken, token).
		Build()
	return connect.NewResponse(msg), nil
}
