package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressFromBytes(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		wantErr bool
	}{
		{
			name:    "Valid (32 bytes)",
			input:   make([]byte, 32),
			wantErr: false,
		},
		{
			name:    "Too Short (prefix query)",
			input:   []byte{1, 2, 3},
			wantErr: true,
		},
		{
			name:    "Empty",
			input:   nil,
			wantErr: true,
		},
		{
			name:    "Too Long",
			input:   make([]byte, 33),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AddressFromBytes(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAddress)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAddress_String_RoundTrip(t *testing.T) {
	s := strings.Repeat("ab", 32)
	a, err := ParseAddress(s)
	require.NoError(t, err)

	assert.Equal(t, s, a.String())
	assert.Equal(t, "abababa...", a.Short())
	assert.False(t, a.IsZero())

	var zero Address
	assert.True(t, zero.IsZero())
}

func TestParseAddress_Invalid(t *testing.T) {
	_, err := ParseAddress("zz")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = ParseAddress("abcd")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestAddressPrefix_String(t *testing.T) {
	p := AddressPrefix("aa")
	assert.Equal(t, "aa", p.String())
}
