package user

import (
	"context"
	"errors"
	"strings"

	"lendmark/internal/domain/user"
	ucauth "lendmark/internal/usecase/auth"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidInput = ucauth.ErrInvalidInput
	ErrInternal     = errors.New("internal error")
)

type UpdateMeInput struct {
	FullName *string
	Password *string
}

type Summary struct {
	TotalLentCents     int64          `json:"total_lent_cents"`
	TotalBorrowedCents int64          `json:"total_borrowed_cents"`
	OwedToMeCents      int64          `json:"owed_to_me_cents"`
	IOweCents          int64          `json:"i_owe_cents"`
	NetPositionCents   int64          `json:"net_position_cents"`
	OffersByStatus     map[string]int `json:"offers_by_status"`
	PaymentsMadeCount  int            `json:"payments_made_count"`
	PaymentsMadeCents  int64          `json:"payments_made_cents"`
}

type Service struct {
	users user.Repository
	cost  int
}

func NewService(users user.Repository) *Service {
	return &Service{users: users, cost: bcrypt.DefaultCost}
}

func (s *Service) GetMe(ctx context.Context, userID uuid.UUID) (user.User, error) {
	usr, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, ErrInternal
	}
	return ucauth.Sanitize(usr), nil
}

func (s *Service) UpdateMe(ctx context.Context, userID uuid.UUID, in UpdateMeInput) (user.User, error) {
	if in.FullName == nil && in.Password == nil {
		return user.User{}, ucauth.FieldErrors{"body": "nothing to update"}
	}

	fields := ucauth.FieldErrors{}
	if in.FullName != nil && len(strings.TrimSpace(*in.FullName)) > ucauth.MaxFullNameLength {
		fields["full_name"] = "must be at most 120 characters"
	}
	if in.Password != nil {
		if msg := ucauth.PasswordProblem(*in.Password); msg != "" {
			fields["password"] = msg
		}
	}
	if len(fields) > 0 {
		return user.User{}, fields
	}

	usr, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, ErrInternal
	}

	if in.FullName != nil {
		usr.FullName = strings.TrimSpace(*in.FullName)
	}
	if in.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), s.cost)
		if err != nil {
			return user.User{}, ErrInternal
		}
		usr.PasswordHash = string(hash)
	}

	if err := s.users.UpdateUser(ctx, usr); err != nil {
		return user.User{}, ErrInternal
	}

	updated, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return user.User{}, ErrInternal
	}
	return ucauth.Sanitize(updated), nil
}

func (s *Service) Summary(ctx context.Context, userID uuid.UUID) (Summary, error) {
	ls, err := s.users.GetLedgerSummary(ctx, userID)
	if err != nil {
		return Summary{}, ErrInternal
	}
	byStatus := ls.OffersByStatus
	if byStatus == nil {
		byStatus = map[string]int{}
	}
	return Summary{
		TotalLentCents:     ls.TotalLentCents,
		TotalBorrowedCents: ls.TotalBorrowedCents,
		OwedToMeCents:      ls.OwedToMeCents,
		IOweCents:          ls.IOweCents,
		NetPositionCents:   ls.OwedToMeCents - ls.IOweCents,
		OffersByStatus:     byStatus,
		PaymentsMadeCount:  ls.PaymentsMadeCount,
		PaymentsMadeCents:  ls.PaymentsMadeCents,
	}, nil
}
