package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"authsession/internal/domain"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	ErrTokenExpired          = errors.New("token expired")
)

// Config holds the signing material and lifetimes. Access and refresh
// tokens are signed with different secrets.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
	Now           func() time.Time
}

type Service struct {
	secrets map[domain.TokenKind][]byte
	ttls    map[domain.TokenKind]time.Duration
	issuer  string
	leeway  time.Duration
	now     func() time.Time
}

type Claims struct {
	SubjectID int64                 `json:"subject_id"`
	Kind      domain.TokenKind      `json:"kind"`
	Device    domain.DeviceMetadata `json:"device"`
	jwtlib.RegisteredClaims
}

// TokenID returns the unique identifier mirrored in the revocation store.
func (c *Claims) TokenID() string { return c.ID }

// Minted is a freshly signed token plus the values the caller must persist.
type Minted struct {
	Token     string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func New(cfg Config) (*Service, error) {
	if strings.TrimSpace(cfg.AccessSecret) == "" || strings.TrimSpace(cfg.RefreshSecret) == "" {
		return nil, errors.New("jwt: access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("jwt: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("jwt: token lifetimes must be > 0")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("jwt: invalid leeway")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		secrets: map[domain.TokenKind][]byte{
			domain.TokenKindAccess:  []byte(cfg.AccessSecret),
			domain.TokenKindRefresh: []byte(cfg.RefreshSecret),
		},
		ttls: map[domain.TokenKind]time.Duration{
			domain.TokenKindAccess:  cfg.AccessTTL,
			domain.TokenKindRefresh: cfg.RefreshTTL,
		},
		issuer: cfg.Issuer,
		leeway: cfg.Leeway,
		now:    now,
	}, nil
}

// TTL is the configured default lifetime for kind.
func (s *Service) TTL(kind domain.TokenKind) time.Duration {
	return s.ttls[kind]
}

func (s *Service) Mint(subjectID int64, kind domain.TokenKind, device domain.DeviceMetadata) (*Minted, error) {
	return s.MintWithTTL(subjectID, kind, device, s.ttls[kind])
}

// MintWithTTL signs a token of kind with an explicit lifetime, e.g. the
// extended "remember me" refresh lifetime.
func (s *Service) MintWithTTL(subjectID int64, kind domain.TokenKind, device domain.DeviceMetadata, ttl time.Duration) (*Minted, error) {
	secret, ok := s.secrets[kind]
	if !ok {
		return nil, fmt.Errorf("jwt: unknown token kind %q", kind)
	}
	if subjectID <= 0 {
		return nil, errors.New("jwt: subject id is required")
	}
	if ttl <= 0 {
		return nil, errors.New("jwt: ttl must be > 0")
	}

	// NumericDate has second precision; truncate so the persisted expiry
	// mirrors the signed claim exactly.
	issuedAt := s.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(ttl)
	tokenID := uuid.NewString()

	claims := Claims{
		SubjectID: subjectID,
		Kind:      kind,
		Device:    device,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        tokenID,
			Issuer:    s.issuer,
			IssuedAt:  jwtlib.NewNumericDate(issuedAt),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
		},
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return nil, err
	}

	return &Minted{
		Token:     signed,
		TokenID:   tokenID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// ParseAndVerify checks structure, signature (with the secret of expected)
// and expiry. It never touches storage.
func (s *Service) ParseAndVerify(tokenStr string, expected domain.TokenKind) (*Claims, error) {
	secret, ok := s.secrets[expected]
	if !ok {
		return nil, fmt.Errorf("jwt: unknown token kind %q", expected)
	}
	if strings.TrimSpace(tokenStr) == "" {
		return nil, ErrTokenMalformed
	}

	options := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(s.now),
	}
	if s.leeway > 0 {
		options = append(options, jwtlib.WithLeeway(s.leeway))
	}
	if s.issuer != "" {
		options = append(options, jwtlib.WithIssuer(s.issuer))
	}

	parser := jwtlib.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.Kind != expected {
		return nil, fmt.Errorf("%w: unexpected token kind %q", ErrTokenMalformed, claims.Kind)
	}
	if claims.ID == "" || claims.SubjectID <= 0 {
		return nil, fmt.Errorf("%w: missing subject or token id", ErrTokenMalformed)
	}

	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwtlib.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %w", ErrTokenSignatureInvalid, err)
	case errors.Is(err, jwtlib.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
}
