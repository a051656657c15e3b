package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/savingcircle/internal/models"
)

type memoryUsers struct {
	byEmail map[string]*models.User
}

func (m *memoryUsers) CreateUser(_ context.Context, u *models.User) error {
	m.byEmail[u.Email] = u
	return nil
}

func (m *memoryUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, errors.New("not found")
	}
	return u, nil
}

func (m *memoryUsers) GetUserByID(_ context.Context, id string) (*models.User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *memoryUsers) UpdateUser(_ context.Context, u *models.User) error {
	for email, existing := range m.byEmail {
		if existing.ID == u.ID {
			delete(m.byEmail, email)
			stored := *u
			m.byEmail[u.Email] = &stored
			return nil
		}
	}
	return errors.New("not found")
}

func TestPasswordAuthenticator(t *testing.T) {
	ctx := context.Background()
	a := NewPasswordAuthenticator(&memoryUsers{byEmail: map[string]*models.User{}}).WithCost(bcrypt.MinCost)

	user, err := a.Register(ctx, " Ana@Example.com ", "Ana", "fox", "correct-horse")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.Email != "ana@example.com" || user.Avatar != "fox" {
		t.Errorf("Register() user = %+v", user)
	}

	tests := []struct {
		name     string
		email    string
		display  string
		password string
		wantErr  error
	}{
		{name: "duplicate email", email: "ANA@example.com", display: "Ana", password: "correct-horse", wantErr: ErrEmailExists},
		{name: "weak password", email: "ben@example.com", display: "Ben", password: "short", wantErr: ErrWeakPassword},
		{name: "bad email", email: "not-an-email", display: "Ben", password: "correct-horse", wantErr: ErrInvalidEmail},
		{name: "missing name", email: "ben@example.com", display: "  ", password: "correct-horse", wantErr: ErrNameRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Register(ctx, tt.email, tt.display, "", tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := a.Authenticate(ctx, "ana@example.com", "correct-horse"); err != nil {
		t.Errorf("Authenticate() error = %v", err)
	}
	if _, err := a.Authenticate(ctx, "ana@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Authenticate() wrong password error = %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	a := NewPasswordAuthenticator(&memoryUsers{byEmail: map[string]*models.User{}}).WithCost(bcrypt.MinCost)

	ana, err := a.Register(ctx, "ana@example.com", "Ana", "", "correct-horse")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := a.Register(ctx, "ben@example.com", "Ben", "", "correct-horse"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	tests := []struct {
		name    string
		update  ProfileUpdate
		wantErr error
	}{
		{name: "email taken", update: ProfileUpdate{Email: "BEN@example.com"}, wantErr: ErrEmailExists},
		{name: "bad email", update: ProfileUpdate{Email: "nope"}, wantErr: ErrInvalidEmail},
		{name: "weak password", update: ProfileUpdate{Credential: "short"}, wantErr: ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.UpdateProfile(ctx, ana.ID, tt.update); !errors.Is(err, tt.wantErr) {
				t.Errorf("UpdateProfile() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	updated, err := a.UpdateProfile(ctx, ana.ID, ProfileUpdate{
		Name:       " Ana Maria ",
		Email:      "Ana.Maria@example.com",
		Credential: "new-secret-pass",
	})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if updated.Name != "Ana Maria" || updated.Email != "ana.maria@example.com" || updated.ID != ana.ID {
		t.Errorf("UpdateProfile() user = %+v", updated)
	}

	if _, err := a.Authenticate(ctx, "ana.maria@example.com", "new-secret-pass"); err != nil {
		t.Errorf("Authenticate() with new credentials error = %v", err)
	}
	if _, err := a.Authenticate(ctx, "ana@example.com", "correct-horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Authenticate() with old email error = %v", err)
	}

	same, err := a.UpdateProfile(ctx, ana.ID, ProfileUpdate{Avatar: "owl"})
	if err != nil {
		t.Fatalf("UpdateProfile(avatar) error = %v", err)
	}
	if same.Name != "Ana Maria" || same.Avatar != "owl" {
		t.Errorf("empty fields should be kept, got %+v", same)
	}
}

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	user := &models.User{ID: "u1", Email: "ana@example.com", Name: "Ana"}

	token, err := m.Generate(user)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if claims.UserID != "u1" || claims.Name != "Ana" || claims.Subject != "u1" {
		t.Errorf("claims = %+v", claims)
	}

	unverified, err := ParseUnverified(token)
	if err != nil || unverified.Email != "ana@example.com" {
		t.Errorf("ParseUnverified() = %+v, %v", unverified, err)
	}

	if _, err := NewJWTManager("other", time.Hour).Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate() with wrong key error = %v", err)
	}
	if _, err := ParseUnverified("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ParseUnverified(garbage) error = %v", err)
	}
}

func TestJWTExpired(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := m.Generate(&models.User{ID: "u1"})
	if err != nil {
		t.Fatal(err)
	}

	m.now = time.Now
	if _, err := m.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate() expired error = %v", err)
	}
}
