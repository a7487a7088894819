package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/licito/backend/model"
	"github.com/licito/backend/pkg/logger"
	"github.com/licito/backend/store"
)

// MinPasswordLength is the shortest password accepted on create or reset
const MinPasswordLength = 6

type UserService struct {
	users store.Users
	clock clock
}

func NewUserService(users store.Users) *UserService {
	return &UserService{users: users}
}

// UserInput is the writable part of a user. Password is optional on update.
type UserInput struct {
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
	WhatsApp string     `json:"whatsapp"`
	IsActive *bool      `json:"is_active"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Authenticate verifies credentials. Unknown email, wrong password and
// inactive account are indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		logger.Warn(ctx, "login rejected for inactive user", "user_id", u.ID)
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.clock.now()
	if err := s.users.TouchLogin(ctx, u.ID, now); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	u.LastLogin = &now
	return u, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	return s.users.GetUser(ctx, id)
}

func (s *UserService) List(ctx context.Context) ([]*model.User, error) {
	return s.users.ListUsers(ctx)
}

func (s *UserService) Stats(ctx context.Context) (model.UserStats, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return model.UserStats{}, err
	}
	return model.ComputeUserStats(users, s.clock.now()), nil
}

func validateUser(in *UserInput, requirePassword bool) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.WhatsApp = strings.TrimSpace(in.WhatsApp)

	if in.Name == "" {
		return invalid("Nome é obrigatório")
	}
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return invalid("Email inválido")
	}
	if !in.Role.Valid() {
		return invalid("Perfil inválido")
	}
	if requirePassword || in.Password != "" {
		if len(in.Password) < MinPasswordLength {
			return invalid(fmt.Sprintf("A senha deve ter pelo menos %d caracteres", MinPasswordLength))
		}
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func (s *UserService) Create(ctx context.Context, in UserInput) (*model.User, error) {
	if err := validateUser(&in, true); err != nil {
		return nil, err
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.now()
	u := &model.User{
		ID:           newID(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		WhatsApp:     in.WhatsApp,
		IsActive:     in.IsActive == nil || *in.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	logger.Info(ctx, "user created", "new_user_id", u.ID, "new_user_role", u.Role)
	return u, nil
}

func (s *UserService) Update(ctx context.Context, id string, in UserInput) (*model.User, error) {
	if err := validateUser(&in, false); err != nil {
		return nil, err
	}
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	u.Name = in.Name
	u.Email = in.Email
	u.Role = in.Role
	u.WhatsApp = in.WhatsApp
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	if in.Password != "" {
		if u.PasswordHash, err = hashPassword(in.Password); err != nil {
			return nil, err
		}
	}
	u.UpdatedAt = s.clock.now()

	if err := s.users.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ToggleActive flips the active flag. Admins cannot deactivate themselves.
func (s *UserService) ToggleActive(ctx context.Context, actor Actor, id string) (*model.User, error) {
	if actor.ID == id {
		return nil, invalid("Você não pode desativar o próprio usuário")
	}
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	u.IsActive = !u.IsActive
	u.UpdatedAt = s.clock.now()
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return nil, err
	}

	logger.Info(ctx, "user activation toggled", "target_user_id", id, "is_active", u.IsActive)
	return u, nil
}

func (s *UserService) ChangePassword(ctx context.Context, id, password string) error {
	if len(password) < MinPasswordLength {
		return invalid(fmt.Sprintf("A senha deve ter pelo menos %d caracteres", MinPasswordLength))
	}
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if u.PasswordHash, err = hashPassword(password); err != nil {
		return err
	}
	u.UpdatedAt = s.clock.now()
	return s.users.UpdateUser(ctx, u)
}

func (s *UserService) Delete(ctx context.Context, actor Actor, id string) error {
	if actor.ID == id {
		return invalid("Você não pode excluir o próprio usuário")
	}
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return err
	}
	logger.Info(ctx, "user deleted", "target_user_id", id)
	return nil
}
