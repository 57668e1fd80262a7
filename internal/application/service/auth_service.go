package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vendsur/caja-api/internal/config"
	"github.com/vendsur/caja-api/pkg/apperror"
	"github.com/vendsur/caja-api/pkg/utils"
)

// LoginResult carries the issued tokens
type LoginResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Email        string `json:"email"`
}

// AuthService authenticates the single configured back-office operator.
// There is no user table: the credential is provisioned via config.
type AuthService struct {
	operator   config.OperatorConfig
	jwtManager *utils.JWTManager
	operatorID uuid.UUID
}

// NewAuthService creates a new auth service
func NewAuthService(operator config.OperatorConfig, jwtManager *utils.JWTManager) *AuthService {
	return &AuthService{
		operator:   operator,
		jwtManager: jwtManager,
		// Stable id derived from the operator email so tokens survive restarts
		operatorID: uuid.NewSHA1(uuid.NameSpaceOID, []byte(operator.Email)),
	}
}

// Login verifies the operator credential and issues tokens
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if s.operator.PasswordHash == "" {
		return nil, apperror.NewAppError(503, "Operator login is not provisioned")
	}
	if !strings.EqualFold(email, s.operator.Email) {
		// Burn a bcrypt compare anyway so unknown emails cost the same
		_ = bcrypt.CompareHashAndPassword([]byte(s.operator.PasswordHash), []byte(password))
		return nil, apperror.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.operator.PasswordHash), []byte(password)); err != nil {
		return nil, apperror.ErrInvalidCredentials
	}

	access, err := s.jwtManager.GenerateAccessToken(s.operatorID, s.operator.Email, []string{"operator"})
	if err != nil {
		return nil, err
	}
	refresh, err := s.jwtManager.GenerateRefreshToken(s.operatorID)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		Email:        s.operator.Email,
	}, nil
}

// Refresh exchanges a valid refresh token for a new access token
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	userID, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperror.ErrUnauthorized
	}
	if userID != s.operatorID {
		return nil, apperror.ErrUnauthorized
	}

	access, err := s.jwtManager.GenerateAccessToken(s.operatorID, s.operator.Email, []string{"operator"})
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refreshToken,
		Email:        s.operator.Email,
	}, nil
}
