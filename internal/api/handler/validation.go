package handler

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var mobileRegexp = regexp.MustCompile(`^09\d{9}$`)

// RegisterValidators adds the custom binding tags used by the request types.
func RegisterValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("ir_mobile", func(fl validator.FieldLevel) bool {
		return IsMobile(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return IsStrongPassword(fl.Field().String())
	})
}

// NormalizeMobile converts an Iranian mobile number to the 09xxxxxxxxx form.
// Persian and Arabic digits are accepted, as are the +989 and 989 prefixes.
func NormalizeMobile(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= '۰' && r <= '۹':
			b.WriteRune('0' + (r - '۰'))
		case r >= '٠' && r <= '٩':
			b.WriteRune('0' + (r - '٠'))
		case r == ' ' || r == '-':
		default:
			b.WriteRune(r)
		}
	}
	n := b.String()
	switch {
	case strings.HasPrefix(n, "+98"):
		n = "0" + n[3:]
	case strings.HasPrefix(n, "98") && len(n) == 12:
		n = "0" + n[2:]
	}
	return n
}

// IsMobile reports whether s is an Iranian mobile number.
func IsMobile(s string) bool {
	return mobileRegexp.MatchString(NormalizeMobile(s))
}

// IsStrongPassword reports whether the password is 8 to 72 bytes long
// and contains at least one letter and one digit.
func IsStrongPassword(s string) bool {
	if len(s) < 8 || len(s) > 72 {
		return false
	}
	var letter, digit bool
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}
