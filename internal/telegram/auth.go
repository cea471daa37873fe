// Package telegram verifies Telegram WebApp init data.
package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

var (
	ErrMissingHash = errors.New("init data has no hash")
	ErrBadHash     = errors.New("init data hash mismatch")
	ErrExpired     = errors.New("init data is too old")
	ErrNoUser      = errors.New("init data has no user")
)

const (
	defaultMaxAge = time.Hour
	maxClockSkew  = 5 * time.Minute
)

type WebAppUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// Validator checks the init_data HMAC and that auth_date is recent.
type Validator struct {
	botToken string
	maxAge   time.Duration
	clock    clockwork.Clock
}

func NewValidator(botToken string, maxAge time.Duration, clock clockwork.Clock) *Validator {
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Validator{botToken: botToken, maxAge: maxAge, clock: clock}
}

// Validate verifies initData and returns the signed fields without the hash.
func (v *Validator) Validate(initData string) (url.Values, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, err
	}

	hash := values.Get("hash")
	if hash == "" {
		return nil, ErrMissingHash
	}
	values.Del("hash")

	provided, err := hex.DecodeString(hash)
	if err != nil {
		return nil, ErrBadHash
	}
	if !hmac.Equal(Sign(values, v.botToken), provided) {
		return nil, ErrBadHash
	}

	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return nil, ErrExpired
	}
	age := v.clock.Now().Sub(time.Unix(authDate, 0))
	if age > v.maxAge || age < -maxClockSkew {
		return nil, ErrExpired
	}

	return values, nil
}

// ValidateUser validates initData and decodes its user field.
func (v *Validator) ValidateUser(initData string) (*WebAppUser, error) {
	values, err := v.Validate(initData)
	if err != nil {
		return nil, err
	}
	return parseUser(values)
}

// Sign computes the WebApp data-check HMAC for values.
func Sign(values url.Values, botToken string) []byte {
	var dataCheck []string
	for k, vs := range values {
		dataCheck = append(dataCheck, k+"="+strings.Join(vs, ""))
	}
	sort.Strings(dataCheck)

	secret := sha256.Sum256([]byte(botToken))
	h := hmac.New(sha256.New, secret[:])
	h.Write([]byte(strings.Join(dataCheck, "\n")))
	return h.Sum(nil)
}

// ParseUser decodes the user field without verifying the hash.
func ParseUser(initData string) (*WebAppUser, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, err
	}
	return parseUser(values)
}

func parseUser(values url.Values) (*WebAppUser, error) {
	raw := values.Get("user")
	if raw == "" {
		return nil, ErrNoUser
	}
	var user WebAppUser
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, ErrNoUser
	}
	return &user, nil
}
