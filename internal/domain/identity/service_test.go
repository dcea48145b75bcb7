package identity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

// -- Mock User Repository --

type mockUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrEmailTaken
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *mockUserRepo) List(_ context.Context, limit, offset int) ([]*User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*User
	for _, u := range m.users {
		result = append(result, u)
	}
	total := len(result)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return result[offset:end], total, nil
}

func (m *mockUserRepo) ListDoctors(_ context.Context) ([]Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doctors := []Doctor{}
	for _, u := range m.users {
		if u.Role == auth.RoleDoctor {
			doctors = append(doctors, Doctor{ID: u.ID, Name: u.Name})
		}
	}
	sort.Slice(doctors, func(i, j int) bool { return doctors[i].Name < doctors[j].Name })
	return doctors, nil
}

func (m *mockUserRepo) IDsByRole(_ context.Context, role string) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for _, u := range m.users {
		if u.Role == role {
			ids = append(ids, u.ID)
		}
	}
	return ids, nil
}

type failingIssuer struct{}

func (failingIssuer) Issue(uuid.UUID, string) (string, time.Time, error) {
	return "", time.Time{}, fmt.Errorf("signing key unavailable")
}

func newTestService() (*Service, *mockUserRepo) {
	repo := newMockUserRepo()
	return NewService(repo, auth.NewTokenManager([]byte("identity-test-secret"), time.Hour)), repo
}

func TestRegister_DefaultsToPatient(t *testing.T) {
	svc, _ := newTestService()

	sess, err := svc.Register(context.Background(), RegisterRequest{
		Name: "Alice", Email: " Alice@Example.com ", Password: "secret1",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if sess.User.Role != auth.RolePatient {
		t.Errorf("expected PATIENT, got %s", sess.User.Role)
	}
	if sess.User.Email != "alice@example.com" {
		t.Errorf("expected normalized email, got %q", sess.User.Email)
	}
	if sess.Token == "" {
		t.Error("expected token")
	}
	if sess.User.PasswordHash == "secret1" {
		t.Error("password stored in plaintext")
	}
}

func TestRegister_Doctor(t *testing.T) {
	svc, _ := newTestService()
	sess, err := svc.Register(context.Background(), RegisterRequest{
		Name: "Dr. Bob", Email: "bob@example.com", Password: "secret1", Role: auth.RoleDoctor,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if sess.User.Role != auth.RoleDoctor {
		t.Errorf("expected DOCTOR, got %s", sess.User.Role)
	}
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{"missing name", RegisterRequest{Email: "a@b.co", Password: "secret1"}},
		{"bad email", RegisterRequest{Name: "A", Email: "nope", Password: "secret1"}},
		{"short password", RegisterRequest{Name: "A", Email: "a@b.co", Password: "123"}},
		{"admin role", RegisterRequest{Name: "A", Email: "a@b.co", Password: "secret1", Role: auth.RoleAdmin}},
		{"unknown role", RegisterRequest{Name: "A", Email: "a@b.co", Password: "secret1", Role: "NURSE"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService()
			_, err := svc.Register(context.Background(), tt.req)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if len(repo.users) != 0 {
				t.Error("expected no user to be created")
			}
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	req := RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "secret1"}

	if _, err := svc.Register(ctx, req); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	req.Email = "ALICE@example.com"
	_, err := svc.Register(ctx, req)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(repo.users) != 1 {
		t.Errorf("expected 1 user, got %d", len(repo.users))
	}
}

func TestRegister_TokenFailure(t *testing.T) {
	svc := NewService(newMockUserRepo(), failingIssuer{})
	_, err := svc.Register(context.Background(), RegisterRequest{Name: "A", Email: "a@b.co", Password: "secret1"})
	if err == nil {
		t.Fatal("expected error when signing fails")
	}
	if apperr.Status(err) != 500 {
		t.Errorf("expected internal error, got status %d", apperr.Status(err))
	}
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	reg, err := svc.Register(ctx, RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	sess, err := svc.Login(ctx, LoginRequest{Email: "Alice@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.User.ID != reg.User.ID {
		t.Errorf("expected same user, got %s", sess.User.ID)
	}

	for _, req := range []LoginRequest{
		{Email: "alice@example.com", Password: "wrong-password"},
		{Email: "nobody@example.com", Password: "secret1"},
	} {
		_, err := svc.Login(ctx, req)
		if !errors.Is(err, apperr.ErrUnauthenticated) {
			t.Fatalf("expected unauthenticated for %s, got %v", req.Email, err)
		}
		if err.Error() != "invalid email or password" {
			t.Errorf("expected uniform message, got %q", err.Error())
		}
	}
}

func TestPaddedEmailIsTrimmedBeforeValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterRequest{Name: "Alice", Email: " alice@x.com ", Password: "secret1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.User.Email != "alice@x.com" {
		t.Errorf("expected trimmed email, got %q", reg.User.Email)
	}

	sess, err := svc.Login(ctx, LoginRequest{Email: "\tALICE@x.com  ", Password: "secret1"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.User.ID != reg.User.ID {
		t.Errorf("expected same user, got %s", sess.User.ID)
	}

	admin, err := svc.CreateAdmin(ctx, AdminRequest{Name: "Root", Email: "  root@x.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	if admin.Email != "root@x.com" {
		t.Errorf("expected trimmed admin email, got %q", admin.Email)
	}
}

func TestCreateAdmin(t *testing.T) {
	svc, _ := newTestService()
	u, err := svc.CreateAdmin(context.Background(), AdminRequest{Name: "Root", Email: "root@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	if u.Role != auth.RoleAdmin {
		t.Errorf("expected ADMIN, got %s", u.Role)
	}

	if _, err := svc.CreateAdmin(context.Background(), AdminRequest{Email: "x@example.com"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestListDoctorsAndPatientIDs(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	for i, role := range []string{auth.RoleDoctor, auth.RolePatient, auth.RolePatient, auth.RoleDoctor} {
		_, err := svc.Register(ctx, RegisterRequest{
			Name: fmt.Sprintf("user-%d", i), Email: fmt.Sprintf("u%d@example.com", i), Password: "secret1", Role: role,
		})
		if err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	doctors, err := svc.ListDoctors(ctx)
	if err != nil {
		t.Fatalf("ListDoctors: %v", err)
	}
	if len(doctors) != 2 {
		t.Errorf("expected 2 doctors, got %d", len(doctors))
	}

	ids, err := svc.PatientIDs(ctx)
	if err != nil {
		t.Fatalf("PatientIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 patients, got %d", len(ids))
	}
}
