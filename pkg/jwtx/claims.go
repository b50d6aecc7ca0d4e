package jwtx

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is an unverified view of an access token payload. It is decoded
// locally to drive UI and refresh decisions; it is never a substitute for
// server-side verification.
type Claims struct {
	Subject     string
	Email       string
	TenantID    string
	Roles       []string
	Permissions []string
	Expiry      *jwt.NumericDate
	IssuedAt    *jwt.NumericDate

	// Raw holds every flat string or number claim, including the ones above,
	// so callers can read claims this package does not know about.
	Raw map[string]ClaimValue
}

var _ jwt.Claims = Claims{}

// segmentParser is only used for its base64url decoding; signatures are
// never checked here.
var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// standardToURLSafe lets tokens produced with the standard base64 alphabet
// decode too.
var standardToURLSafe = strings.NewReplacer("+", "-", "/", "_")

// Decode splits token on "." and decodes the payload segment. The signature
// segment, if any, is ignored. It returns false when the token has fewer than
// two segments or the payload is not base64url-encoded JSON.
func Decode(token string) (*Claims, bool) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) < 2 || parts[1] == "" {
		return nil, false
	}

	seg := standardToURLSafe.Replace(strings.TrimRight(parts[1], "="))
	payload, err := segmentParser.DecodeSegment(seg)
	if err != nil {
		return nil, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return nil, false
	}

	c := &Claims{Raw: make(map[string]ClaimValue, len(fields))}
	for name, msg := range fields {
		var v ClaimValue
		if err := json.Unmarshal(msg, &v); err == nil {
			c.Raw[name] = v
		}
	}

	c.Subject = c.str("sub")
	c.Email = c.str("email")
	c.TenantID = c.str("tenantId")
	c.Expiry = c.date("exp")
	c.IssuedAt = c.date("iat")
	c.Roles = stringList(fields["roles"])
	c.Permissions = stringList(fields["permissions"])

	return c, true
}

func (c Claims) str(name string) string {
	s, _ := c.Raw[name].Str()
	return s
}

func (c Claims) date(name string) *jwt.NumericDate {
	v, ok := c.Raw[name]
	if !ok {
		return nil
	}
	n, ok := v.Number()
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil
	}

	sec, frac := math.Modf(n)
	return jwt.NewNumericDate(time.Unix(int64(sec), int64(frac*float64(time.Second))))
}

// stringList accepts a JSON array of strings or a single string.
func stringList(msg json.RawMessage) []string {
	if len(msg) == 0 {
		return nil
	}

	var list []string
	if err := json.Unmarshal(msg, &list); err == nil {
		return list
	}

	var single string
	if err := json.Unmarshal(msg, &single); err == nil && single != "" {
		return []string{single}
	}

	return nil
}

// ExpiresAt returns the exp claim as a time, or the zero time when absent.
func (c Claims) ExpiresAt() time.Time {
	if c.Expiry == nil {
		return time.Time{}
	}
	return c.Expiry.Time
}

// ExpiredAt reports whether the token is expired at now, treating tokens
// within leeway of their expiry as already expired. Tokens without exp never
// expire.
func (c Claims) ExpiredAt(now time.Time, leeway time.Duration) bool {
	if c.Expiry == nil {
		return false
	}
	return !now.Add(leeway).Before(c.Expiry.Time)
}

/* jwt.Claims */

func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) { return c.Expiry, nil }
func (c Claims) GetIssuedAt() (*jwt.NumericDate, error)       { return c.IssuedAt, nil }
func (c Claims) GetNotBefore() (*jwt.NumericDate, error)      { return c.date("nbf"), nil }
func (c Claims) GetIssuer() (string, error)                   { return c.str("iss"), nil }
func (c Claims) GetSubject() (string, error)                  { return c.Subject, nil }

func (c Claims) GetAudience() (jwt.ClaimStrings, error) {
	if aud := c.str("aud"); aud != "" {
		return jwt.ClaimStrings{aud}, nil
	}
	return nil, nil
}
