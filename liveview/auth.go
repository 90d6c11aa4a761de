package liveview

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Password hashing configuration.
const (
	// DefaultCost is the bcrypt cost used by HashPassword.
	DefaultCost = 12
	// MinCost is the lowest cost accepted in a configured hash.
	MinCost = 10
)

const authRealm = "irimager"

var (
	// ErrEmptyPassword is returned when hashing an empty password.
	ErrEmptyPassword = errors.New("password cannot be empty")
	// ErrInvalidHash is returned for a hash bcrypt cannot parse.
	ErrInvalidHash = errors.New("invalid password hash format")
	// ErrCostTooLow is returned for a hash weaker than MinCost.
	ErrCostTooLow = errors.New("hash cost is below minimum acceptable value")
)

// HashPassword returns a bcrypt hash suitable for
// IRIMAGER_LIVEVIEW_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	return hashPasswordWithCost(password, DefaultCost)
}

func hashPasswordWithCost(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ValidateHash checks that hash is a bcrypt hash of at least MinCost.
func ValidateHash(hash string) error {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	if cost < MinCost {
		return ErrCostTooLow
	}
	return nil
}

// BasicAuth protects handlers with HTTP basic auth against one bcrypt
// hash. Any username is accepted. Failed attempts are rate limited per
// client address.
type BasicAuth struct {
	hash    []byte
	limiter *RateLimiter
	logger  *zap.Logger
}

// NewBasicAuth creates a BasicAuth. An empty hash disables authentication.
func NewBasicAuth(passwordHash string, limiter *RateLimiter, logger *zap.Logger) (*BasicAuth, error) {
	if passwordHash != "" {
		if err := ValidateHash(passwordHash); err != nil {
			return nil, err
		}
	}
	if limiter == nil {
		limiter = NewRateLimiter(5, 15*time.Minute, 30*time.Minute)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BasicAuth{
		hash:    []byte(passwordHash),
		limiter: limiter,
		logger:  logger,
	}, nil
}

// Enabled reports whether a password is configured.
func (a *BasicAuth) Enabled() bool {
	return len(a.hash) > 0
}

// Middleware wraps next with authentication.
func (a *BasicAuth) Middleware(next http.Handler) http.Handler {
	if !a.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		if allowed, remaining := a.limiter.Allow(ip); !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(remaining.Seconds())+1))
			http.Error(w, "too many failed attempts", http.StatusTooManyRequests)
			return
		}

		_, password, ok := r.BasicAuth()
		if !ok {
			a.challenge(w)
			return
		}
		if err := bcrypt.CompareHashAndPassword(a.hash, []byte(password)); err != nil {
			a.limiter.RecordAttempt(ip)
			a.logger.Warn("live view authentication failed",
				zap.String("remote", ip),
				zap.Int("attempts", a.limiter.AttemptCount(ip)),
			)
			a.challenge(w)
			return
		}

		a.limiter.Reset(ip)
		next.ServeHTTP(w, r)
	})
}

func (a *BasicAuth) challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+authRealm+`"`)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}
