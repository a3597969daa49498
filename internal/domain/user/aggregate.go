package user

import (
	"context"
	"time"

	"github.com/example/marketplace-engine/internal/auth"
	"github.com/example/marketplace-engine/internal/fault"
	"github.com/example/marketplace-engine/internal/infrastructure/store"
	"github.com/google/uuid"
)

const AggregateType = "User"

// Role is an account-level role. Artisans sell, customers buy, staff
// arbitrate escalations, admins do everything.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleArtisan  Role = "artisan"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

func ValidRole(r Role) bool {
	switch r {
	case RoleCustomer, RoleArtisan, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// User is the account aggregate. Credentials live here as a bcrypt hash; the
// plaintext password never reaches the event stream.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Service appends account events. Uniqueness of email is enforced at the API
// layer against the read model before Register is called.
type Service struct {
	eventStore store.EventStoreInterface
}

func NewService(es store.EventStoreInterface) *Service {
	return &Service{eventStore: es}
}

// Register opens a customer account.
func (s *Service) Register(ctx context.Context, email, password, name string) (*User, error) {
	return s.RegisterWithRole(ctx, email, password, name, RoleCustomer)
}

// RegisterWithRole opens an account with an explicit role. Password rules
// are enforced by auth.HashPassword.
func (s *Service) RegisterWithRole(ctx context.Context, email, password, name string, role Role) (*User, error) {
	if email == "" {
		return nil, fault.Validationf("email is required")
	}
	if name == "" {
		return nil, fault.Validationf("name is required")
	}
	if !ValidRole(role) {
		return nil, fault.Validationf("unknown role %q", role)
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	userID := uuid.New().String()
	now := time.Now()

	_, err = s.eventStore.Append(ctx, userID, AggregateType, EventUserCreated, UserCreated{
		UserID:       userID,
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Role:         role,
		CreatedAt:    now,
	}, 0)
	if err != nil {
		return nil, err
	}

	return &User{
		ID:        userID,
		Email:     email,
		Name:      name,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
	}, nil
}

// RecordLogin appends an audit event. Callers treat failures as non-fatal.
func (s *Service) RecordLogin(ctx context.Context, userID, sessionID, ipAddress, userAgent string) error {
	return s.append(ctx, userID, EventUserLoggedIn, UserLoggedIn{
		UserID:    userID,
		SessionID: sessionID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		LoggedAt:  time.Now(),
	})
}

// RecordLogout appends an audit event.
func (s *Service) RecordLogout(ctx context.Context, userID, sessionID string) error {
	return s.append(ctx, userID, EventUserLoggedOut, UserLoggedOut{
		UserID:    userID,
		SessionID: sessionID,
		LoggedAt:  time.Now(),
	})
}

// UpdateProfile renames the account.
func (s *Service) UpdateProfile(ctx context.Context, userID, name string) error {
	if name == "" {
		return fault.Validationf("name is required")
	}
	if err := s.mustExist(userID); err != nil {
		return err
	}

	return s.append(ctx, userID, EventUserUpdated, UserUpdated{
		UserID:    userID,
		Name:      name,
		UpdatedAt: time.Now(),
	})
}

// ChangePassword rotates the stored hash. Verification of the current
// password happens at the API layer.
func (s *Service) ChangePassword(ctx context.Context, userID, newPassword string) error {
	if err := s.mustExist(userID); err != nil {
		return err
	}

	passwordHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.append(ctx, userID, EventUserPasswordChanged, UserPasswordChanged{
		UserID:       userID,
		PasswordHash: passwordHash,
		ChangedAt:    time.Now(),
	})
}

// Deactivate locks the account out of login and token refresh.
func (s *Service) Deactivate(ctx context.Context, userID string) error {
	if err := s.mustExist(userID); err != nil {
		return err
	}

	return s.append(ctx, userID, EventUserDeactivated, UserDeactivated{
		UserID:        userID,
		DeactivatedAt: time.Now(),
	})
}

// Activate reverses a deactivation.
func (s *Service) Activate(ctx context.Context, userID string) error {
	if err := s.mustExist(userID); err != nil {
		return err
	}

	return s.append(ctx, userID, EventUserActivated, UserActivated{
		UserID:      userID,
		ActivatedAt: time.Now(),
	})
}

func (s *Service) mustExist(userID string) error {
	if len(s.eventStore.GetEvents(userID)) == 0 {
		return &fault.NotFound{Resource: "user", ID: userID}
	}
	return nil
}

func (s *Service) append(ctx context.Context, userID, eventType string, data any) error {
	version := len(s.eventStore.GetEvents(userID))
	_, err := s.eventStore.Append(ctx, userID, AggregateType, eventType, data, version)
	return err
}
