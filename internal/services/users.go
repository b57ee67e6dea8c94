package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"hoiku-portal/internal/database"
	"hoiku-portal/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLen = 6

// bcrypt refuses longer inputs
const maxPasswordBytes = 72

type RegisterInput struct {
	Email    string
	Password string
	Role     models.UserRole
	Category models.Category // clients only
}

// UserService registers and authenticates users.
type UserService struct {
	db        *gorm.DB
	cost      int
	dummyHash []byte
}

func NewUserService(db *gorm.DB) *UserService {
	return newUserService(db, bcrypt.DefaultCost)
}

func newUserService(db *gorm.DB, cost int) *UserService {
	// compared against when the email is unknown so both paths cost one bcrypt
	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	return &UserService{db: db, cost: cost, dummyHash: dummy}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email", ErrInvalidInput)
	}
	if len(in.Password) < minPasswordLen {
		return nil, ErrWeakPassword
	}
	if len(in.Password) > maxPasswordBytes {
		return nil, ErrPasswordTooLong
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, in.Role)
	}

	user := models.User{Email: email, Role: in.Role}
	if in.Role == models.RoleClient {
		if !in.Category.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, in.Category)
		}
		category := in.Category
		user.Category = &category
	}

	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if count > 0 {
		return nil, ErrDuplicateEmail
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return database.CreateAuditLog(tx, user.ID, "user", user.ID, "register", string(user.Role))
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "user registered", "user_id", user.ID, "role", user.Role)
	return &user, nil
}

// Authenticate returns the user whose credentials match. Unknown emails and
// wrong passwords yield the same error.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}
