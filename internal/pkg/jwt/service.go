package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

type Claims struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	TokenType string    `json:"token_type"`

	jwtlib.RegisteredClaims
}

// Pair is one login session's tokens. RefreshID is the refresh token's jti,
// which the session store tracks for rotation and revocation.
type Pair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshID        string
	RefreshExpiresAt time.Time
}

type Service interface {
	IssuePair(userID uuid.UUID, email string) (Pair, error)
	ParseAccess(token string) (Claims, error)
	ParseRefresh(token string) (Claims, error)
}

type HMACService struct {
	issuer string

	access  signer
	refresh signer

	now func() time.Time
}

// signer binds a token type to its own secret and lifetime, so a token of
// one type never validates as the other.
type signer struct {
	tokenType string
	secret    []byte
	ttl       time.Duration
}

func NewHMACService(issuer, accessSecret, refreshSecret string, accessExpiresIn, refreshExpiresIn time.Duration) *HMACService {
	return &HMACService{
		issuer:  issuer,
		access:  signer{tokenType: TokenTypeAccess, secret: []byte(accessSecret), ttl: accessExpiresIn},
		refresh: signer{tokenType: TokenTypeRefresh, secret: []byte(refreshSecret), ttl: refreshExpiresIn},
		now:     time.Now,
	}
}

func (s *HMACService) IssuePair(userID uuid.UUID, email string) (Pair, error) {
	if userID == uuid.Nil {
		return Pair{}, ErrTokenInvalid
	}
	now := s.now().UTC()

	access, _, accessExp, err := s.sign(s.access, userID, email, now)
	if err != nil {
		return Pair{}, err
	}
	refresh, jti, refreshExp, err := s.sign(s.refresh, userID, "", now)
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshID:        jti,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *HMACService) ParseAccess(token string) (Claims, error) {
	return s.parse(s.access, token)
}

func (s *HMACService) ParseRefresh(token string) (Claims, error) {
	return s.parse(s.refresh, token)
}

func (s *HMACService) sign(sg signer, userID uuid.UUID, email string, now time.Time) (string, string, time.Time, error) {
	if len(sg.secret) == 0 || sg.ttl <= 0 {
		return "", "", time.Time{}, ErrTokenInvalid
	}

	jti := uuid.NewString()
	exp := now.Add(sg.ttl)
	c := Claims{
		UserID:    userID,
		Email:     email,
		TokenType: sg.tokenType,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        jti,
			Issuer:    s.issuer,
			Subject:   userID.String(),
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(exp),
		},
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, c).SignedString(sg.secret)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return signed, jti, exp, nil
}

func (s *HMACService) parse(sg signer, token string) (Claims, error) {
	if token == "" || len(sg.secret) == 0 {
		return Claims{}, ErrTokenInvalid
	}

	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(s.now),
		jwtlib.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(s.issuer))
	}

	var c Claims
	tok, err := jwtlib.NewParser(opts...).ParseWithClaims(token, &c, func(*jwtlib.Token) (any, error) {
		return sg.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	if tok == nil || !tok.Valid || c.TokenType != sg.tokenType || c.UserID == uuid.Nil || c.ID == "" {
		return Claims{}, ErrTokenInvalid
	}
	return c, nil
}
