package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/validate"
)

// ErrInvalidCredentials covers both an unknown email and a wrong password.
var ErrInvalidCredentials = apperr.New(apperr.ErrUnauthenticated, "invalid email or password")

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(userID uuid.UUID, role string) (string, time.Time, error)
}

type Service struct {
	users  UserRepository
	tokens TokenIssuer
}

func NewService(users UserRepository, tokens TokenIssuer) *Service {
	return &Service{users: users, tokens: tokens}
}

// Register creates a PATIENT or DOCTOR account and signs the user in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	role := req.Role
	if role == "" {
		role = auth.RolePatient
	}

	u, err := s.create(ctx, req.Name, req.Email, req.Password, req.Phone, role)
	if err != nil {
		return nil, err
	}
	return s.session(u)
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	u, err := s.users.GetByEmail(ctx, req.Email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := auth.CheckPassword(u.PasswordHash, req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.session(u)
}

// CreateAdmin creates an ADMIN account. ADMIN is never self-registrable.
func (s *Service) CreateAdmin(ctx context.Context, req AdminRequest) (*User, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	return s.create(ctx, req.Name, req.Email, req.Password, nil, auth.RoleAdmin)
}

func (s *Service) create(ctx context.Context, name, email, password string, phone *string, role string) (*User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &User{
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		Name:         name,
		Phone:        phone,
		Role:         role,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) session(u *User) (*Session, error) {
	token, exp, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: exp, User: u}, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}

func (s *Service) ListDoctors(ctx context.Context) ([]Doctor, error) {
	return s.users.ListDoctors(ctx)
}

// PatientIDs returns the ids of every PATIENT user.
func (s *Service) PatientIDs(ctx context.Context) ([]uuid.UUID, error) {
	return s.users.IDsByRole(ctx, auth.RolePatient)
}
