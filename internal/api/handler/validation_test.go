package handler

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMobile(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"09121234567", "09121234567"},
		{"+989121234567", "09121234567"},
		{"989121234567", "09121234567"},
		{"0912 123 4567", "09121234567"},
		{"۰۹۱۲۱۲۳۴۵۶۷", "09121234567"},
		{"٠٩١٢١٢٣٤٥٦٧", "09121234567"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeMobile(tt.in))
		})
	}
}

func TestIsMobile(t *testing.T) {
	assert.True(t, IsMobile("09121234567"))
	assert.True(t, IsMobile("+98 912 123 4567"))
	assert.False(t, IsMobile("0912123456"))
	assert.False(t, IsMobile("08121234567"))
	assert.False(t, IsMobile("phone"))
}

func TestIsStrongPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{"letters and digits", "reader1234", true},
		{"persian letters", "کتابخوان۱۲۳", true},
		{"too short", "abc123", false},
		{"no digit", "onlyletters", false},
		{"no letter", "1234567890", false},
		{"too long", "a1" + string(make([]byte, 71)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsStrongPassword(tt.password))
		})
	}
}

func TestRegisterValidators(t *testing.T) {
	v := validator.New()
	require.NoError(t, RegisterValidators(v))

	type form struct {
		Phone    string `validate:"omitempty,ir_mobile"`
		Password string `validate:"required,password"`
	}
	assert.NoError(t, v.Struct(form{Phone: "+989121234567", Password: "reader1234"}))
	assert.NoError(t, v.Struct(form{Password: "reader1234"}))
	assert.Error(t, v.Struct(form{Phone: "123", Password: "reader1234"}))
	assert.Error(t, v.Struct(form{Password: "weak"}))
}
