package auth

import (
	"context"
	"errors"
	"net/mail"
	"sort"
	"strings"
	"sync"

	"lendmark/internal/domain/user"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInternal               = errors.New("internal error")
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 72 // bcrypt ignores bytes past 72
	MaxFullNameLength = 120
)

// FieldErrors maps request fields to what is wrong with them. It matches
// ErrInvalidInput under errors.Is.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (f FieldErrors) Is(target error) bool { return target == ErrInvalidInput }

func (f FieldErrors) orNil() error {
	if len(f) == 0 {
		return nil
	}
	return f
}

type RegisterInput struct {
	Email    string
	Password string
	FullName string
}

type LoginInput struct {
	Email    string
	Password string
}

type Service struct {
	users user.Repository
	cost  int

	dummyOnce sync.Once
	dummyHash []byte
}

func NewService(users user.Repository) *Service {
	return &Service{users: users, cost: bcrypt.DefaultCost}
}

// WithHashCost is used by tests to keep bcrypt fast.
func (s *Service) WithHashCost(cost int) *Service {
	s.cost = cost
	return s
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (user.User, error) {
	email := NormalizeEmail(in.Email)
	fullName := strings.TrimSpace(in.FullName)

	fields := FieldErrors{}
	if !IsValidEmail(email) {
		fields["email"] = "must be a valid email address"
	}
	if msg := PasswordProblem(in.Password); msg != "" {
		fields["password"] = msg
	}
	if len(fullName) > MaxFullNameLength {
		fields["full_name"] = "must be at most 120 characters"
	}
	if err := fields.orNil(); err != nil {
		return user.User{}, err
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return user.User{}, ErrInternal
	}
	if exists {
		return user.User{}, ErrEmailAlreadyRegistered
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return user.User{}, ErrInternal
	}

	u := user.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     fullName,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return user.User{}, ErrEmailAlreadyRegistered
		}
		return user.User{}, ErrInternal
	}

	created, err := s.users.GetUserByID(ctx, u.ID)
	if err != nil {
		return user.User{}, ErrInternal
	}
	return Sanitize(created), nil
}

// Login spends one bcrypt comparison whether or not the email exists, so
// response time does not reveal registered addresses.
func (s *Service) Login(ctx context.Context, in LoginInput) (user.User, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return user.User{}, ErrInvalidCredentials
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		return user.User{}, ErrInternal
	}

	hash := []byte(u.PasswordHash)
	if err != nil {
		hash = s.dummy()
	}
	if cmpErr := bcrypt.CompareHashAndPassword(hash, []byte(in.Password)); cmpErr != nil || err != nil {
		return user.User{}, ErrInvalidCredentials
	}
	return Sanitize(u), nil
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.cost)
	})
	return s.dummyHash
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func IsValidEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// PasswordProblem describes why pw is unacceptable, or returns "".
func PasswordProblem(pw string) string {
	switch {
	case len(strings.TrimSpace(pw)) < MinPasswordLength:
		return "must be at least 8 characters"
	case len(pw) > MaxPasswordLength:
		return "must be at most 72 bytes"
	default:
		return ""
	}
}

func Sanitize(u user.User) user.User {
	u.PasswordHash = ""
	return u
}
