package collab

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/good-yellow-bee/projectdesk/internal/models"
	"github.com/good-yellow-bee/projectdesk/internal/storage"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// ErrInvalidCredentials is returned by Authenticate for an unknown email or
// a wrong password. The two cases are deliberately indistinguishable.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AccountInput is the payload for registering or creating a user.
type AccountInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,mail"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=User Admin"`
}

// AccountUpdate changes a user. Empty fields are left unchanged.
type AccountUpdate struct {
	Name     string `json:"name" validate:"omitempty,max=100"`
	Email    string `json:"email" validate:"omitempty,mail"`
	Password string `json:"password" validate:"omitempty,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=User Admin"`
}

// AccountService manages user accounts and credentials.
type AccountService struct {
	store storage.Storage
	cost  int
}

// NewAccountService creates an AccountService.
func NewAccountService(store storage.Storage) *AccountService {
	return &AccountService{store: store, cost: bcrypt.DefaultCost}
}

// Register creates a self-service account. The role is always User.
func (s *AccountService) Register(ctx context.Context, in *AccountInput) (*models.User, error) {
	in.Role = ""
	return s.Create(ctx, in)
}

// Create creates an account with the requested role, defaulting to User.
func (s *AccountService) Create(ctx context.Context, in *AccountInput) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if err := ValidateStruct(in); err != nil {
		return nil, err
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}
	user := models.NewUser(in.Name, in.Email, models.ParseRole(in.Role))
	user.PasswordHash = hash

	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, accountErr(err, "create user")
	}
	log.WithFields(log.Fields{"user_id": user.ID, "role": user.Role}).Info("account created")
	return user, nil
}

// Authenticate returns the user whose email and password match.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.store.Users().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Get returns the user with id.
func (s *AccountService) Get(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

// List returns every user ordered by name.
func (s *AccountService) List(ctx context.Context) ([]*models.User, error) {
	users, err := s.store.Users().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []*models.User{}
	}
	return users, nil
}

// Update applies in to the user with id. An admin may not demote itself.
func (s *AccountService) Update(ctx context.Context, id int64, in *AccountUpdate, requester models.Principal) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if err := ValidateStruct(in); err != nil {
		return nil, err
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Role != "" && id == requester.UserID() && models.ParseRole(in.Role) != user.Role {
		return nil, NewValidationError("role", "cannot change your own role")
	}

	if in.Name != "" {
		user.Name = in.Name
	}
	if in.Email != "" {
		user.Email = strings.ToLower(in.Email)
	}
	if in.Role != "" {
		user.Role = models.ParseRole(in.Role)
	}
	if in.Password != "" {
		if user.PasswordHash, err = s.hash(in.Password); err != nil {
			return nil, err
		}
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.store.Users().Update(ctx, user); err != nil {
		return nil, accountErr(err, "update user")
	}
	if in.Password != "" {
		if err := s.store.Tokens().RevokeAllForUser(ctx, user.ID); err != nil {
			log.WithError(err).WithField("user_id", user.ID).Warn("revoke tokens after password change")
		}
	}
	return user, nil
}

// ChangePassword replaces the password of user id after checking the
// current one, then revokes every refresh token of the account.
func (s *AccountService) ChangePassword(ctx context.Context, id int64, current, next string) error {
	if len(next) < MinPasswordLength {
		return NewValidationError("new_password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return NewValidationError("current_password", "current password is incorrect")
	}

	if user.PasswordHash, err = s.hash(next); err != nil {
		return err
	}
	user.UpdatedAt = time.Now().UTC()
	if err := s.store.Users().Update(ctx, user); err != nil {
		return accountErr(err, "update password")
	}
	if err := s.store.Tokens().RevokeAllForUser(ctx, user.ID); err != nil {
		log.WithError(err).WithField("user_id", user.ID).Warn("revoke tokens after password change")
	}
	return nil
}

// Delete removes the user with id. Users still owning projects cannot be
// deleted, and nobody can delete their own account.
func (s *AccountService) Delete(ctx context.Context, id int64, requester models.Principal) error {
	if id == requester.UserID() {
		return NewValidationError("id", "cannot delete your own account")
	}
	if err := s.store.Users().Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrInUse) {
			return &ConflictError{Field: "id", Message: "user still owns projects"}
		}
		return accountErr(err, "delete user")
	}
	log.WithField("user_id", id).Info("account deleted")
	return nil
}

func (s *AccountService) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func accountErr(err error, op string) error {
	if errors.Is(err, storage.ErrDuplicate) {
		return &ConflictError{Field: "email", Message: "email already registered"}
	}
	return mapStorageErr(err, op)
}
