package jwtx

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// ClaimKind tags the representation held by a ClaimValue.
type ClaimKind uint8

const (
	KindString ClaimKind = iota + 1
	KindNumber
)

var errNotScalar = errors.New("jwtx: claim is neither string nor number")

// ClaimValue is a flat claim that is either a string or a number. Anything
// else (arrays, objects, booleans, null) does not fit and is rejected when
// unmarshalling.
type ClaimValue struct {
	kind ClaimKind
	str  string
	num  float64
}

func StringClaim(s string) ClaimValue  { return ClaimValue{kind: KindString, str: s} }
func NumberClaim(n float64) ClaimValue { return ClaimValue{kind: KindNumber, num: n} }

func (v ClaimValue) Kind() ClaimKind { return v.kind }

// Str returns the value when it was encoded as a JSON string.
func (v ClaimValue) Str() (string, bool) {
	return v.str, v.kind == KindString
}

// Number returns the numeric value. Numeric-looking strings such as "1700000000"
// are accepted as well, since some issuers quote their timestamps.
func (v ClaimValue) Number() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func (v ClaimValue) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return ""
	}
}

// UnmarshalJSON tries a string first, then a number.
func (v *ClaimValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	// json.Unmarshal treats null as a no-op for strings and numbers
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return errNotScalar
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = StringClaim(s)
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*v = NumberClaim(n)
		return nil
	}

	return errNotScalar
}

func (v ClaimValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	default:
		return []byte("null"), nil
	}
}
