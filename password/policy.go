package password

import (
	"errors"
	"fmt"
	"time"
	"unicode"
	"unicode/utf8"
)

// Violation codes are stable identifiers a caller can map to UI messages.
const (
	ViolationTooShort       = "TOO_SHORT"
	ViolationTooLong        = "TOO_LONG"
	ViolationMissingUpper   = "MISSING_UPPER"
	ViolationMissingLower   = "MISSING_LOWER"
	ViolationMissingDigit   = "MISSING_DIGIT"
	ViolationMissingSpecial = "MISSING_SPECIAL"
)

// PolicyConfig toggles each complexity rule independently. MaxAge <= 0
// disables password expiry.
type PolicyConfig struct {
	MinLength      int
	MaxLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
	MaxAge         time.Duration
}

// DefaultPolicyConfig returns the platform password rules.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		MinLength:      8,
		MaxLength:      256,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: true,
		MaxAge:         90 * 24 * time.Hour,
	}
}

// Violation is a single unmet rule.
type Violation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result lists every rule a candidate password fails.
type Result struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations,omitempty"`
}

// Policy validates password strength and age. It holds no mutable state.
type Policy struct {
	cfg PolicyConfig
}

// NewPolicy validates cfg and returns a Policy.
func NewPolicy(cfg PolicyConfig) (*Policy, error) {
	if cfg.MinLength < 1 {
		return nil, errors.New("password policy min length must be >= 1")
	}
	if cfg.MaxLength != 0 && cfg.MaxLength < cfg.MinLength {
		return nil, errors.New("password policy max length must be >= min length")
	}
	return &Policy{cfg: cfg}, nil
}

// Config returns the policy configuration.
func (p *Policy) Config() PolicyConfig {
	return p.cfg
}

// Validate checks password against every enabled rule and returns all
// violations, not only the first one. Length is counted in runes.
func (p *Policy) Validate(password string) Result {
	var (
		upper, lower, digit, special bool
		violations                   []Violation
	)
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r):
			special = true
		}
	}

	n := utf8.RuneCountInString(password)
	if n < p.cfg.MinLength {
		violations = append(violations, Violation{
			Code:    ViolationTooShort,
			Message: fmt.Sprintf("must be at least %d characters", p.cfg.MinLength),
		})
	}
	if p.cfg.MaxLength > 0 && n > p.cfg.MaxLength {
		violations = append(violations, Violation{
			Code:    ViolationTooLong,
			Message: fmt.Sprintf("must be at most %d characters", p.cfg.MaxLength),
		})
	}
	if p.cfg.RequireUpper && !upper {
		violations = append(violations, Violation{Code: ViolationMissingUpper, Message: "must contain an uppercase letter"})
	}
	if p.cfg.RequireLower && !lower {
		violations = append(violations, Violation{Code: ViolationMissingLower, Message: "must contain a lowercase letter"})
	}
	if p.cfg.RequireDigit && !digit {
		violations = append(violations, Violation{Code: ViolationMissingDigit, Message: "must contain a digit"})
	}
	if p.cfg.RequireSpecial && !special {
		violations = append(violations, Violation{Code: ViolationMissingSpecial, Message: "must contain a special character"})
	}

	return Result{Valid: len(violations) == 0, Violations: violations}
}

// Expired reports whether a password changed at lastChangedAt is past the
// configured MaxAge at now.
func (p *Policy) Expired(lastChangedAt, now time.Time) bool {
	return IsExpired(lastChangedAt, p.cfg.MaxAge, now)
}

// IsExpired reports whether more than maxAge has elapsed since lastChangedAt.
// A zero lastChangedAt counts as expired; maxAge <= 0 never expires.
func IsExpired(lastChangedAt time.Time, maxAge time.Duration, now time.Time) bool {
	if maxAge <= 0 {
		return false
	}
	if lastChangedAt.IsZero() {
		return true
	}
	return now.Sub(lastChangedAt) > maxAge
}
