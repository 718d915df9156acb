package storage

import (
	"strings"
	"testing"

	"filevault/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey(t *testing.T) {
	hash := types.Hash("2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824")

	key, err := DeriveKey(hash)
	require.NoError(t, err)
	assert.Equal(t, "2c/f2/4dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824/data", key)

	// 确定性：同一个 Hash 永远派生同一个 Key
	key2, err := DeriveKey(hash)
	require.NoError(t, err)
	assert.Equal(t, key, key2)
}

func TestDeriveKey_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input types.Hash
	}{
		{"Empty", ""},
		{"Too short", "abc"},
		{"Uppercase", types.Hash(strings.Repeat("A", 64))},
		{"Non-hex", types.Hash(strings.Repeat("x", 64))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DeriveKey(tt.input)
			assert.ErrorIs(t, err, ErrInvalidHash)
		})
	}
}

func TestDeriveKey_Injective(t *testing.T) {
	// 不同 Hash 必须派生不同 Key (key(h1)==key(h2) <=> h1==h2)
	h1 := types.Hash(strings.Repeat("a", 64))
	h2 := types.Hash(strings.Repeat("b", 64))

	k1, err := DeriveKey(h1)
	require.NoError(t, err)
	k2, err := DeriveKey(h2)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}
