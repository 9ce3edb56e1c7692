package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidIdentifier(t *testing.T) {
	for name, tc := range map[string]struct {
		input string
		want  bool
	}{
		"plain id":         {"u_12345", true},
		"uuid":             {"b3a1c9d2-4f6e-4a71-9c1d-8e2f0a5b6c7d", true},
		"padded":           {"  u1  ", true},
		"empty":            {"", false},
		"only whitespace":  {"   ", false},
		"newline":          {"u\n1", false},
		"null byte":        {"u\x001", false},
		"too long":         {strings.Repeat("a", 129), false},
		"max length":       {strings.Repeat("a", 128), true},
		"unicode":          {"пользователь-42", true},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, ValidIdentifier(tc.input))
		})
	}
}

func TestNormalizeIdentifier(t *testing.T) {
	assert.Equal(t, "u1", NormalizeIdentifier("  u1\t"))
	assert.Equal(t, "u1", NormalizeIdentifier("u1"))
}
