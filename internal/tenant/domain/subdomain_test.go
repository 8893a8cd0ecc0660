package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSubdomain(t *testing.T) {
	cases := []struct {
		value string
		ok    bool
	}{
		{"acme", true},
		{"acme-2", true},
		{"a1b", true},
		{"ab", false},
		{"this-name-is-far-too-long", false},
		{"-acme", false},
		{"acme-", false},
		{"ac--me", false},
		{"Acme", false},
		{"ac_me", false},
		{"acmé", false},
	}
	for _, tc := range cases {
		t.Run(tc.value, func(t *testing.T) {
			err := ValidateSubdomain(tc.value)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidSubdomain)
			}
		})
	}
}

func TestSuggestSubdomain(t *testing.T) {
	assert.Equal(t, "toko-budi", SuggestSubdomain("Toko Budi"))
	suggested := SuggestSubdomain("A Very Long Company Name Indeed")
	assert.LessOrEqual(t, len(suggested), SubdomainMaxLength)
	assert.NoError(t, ValidateSubdomain(suggested))
}
