package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-workbench-auth"
)

func TestHashPasswordFormat(t *testing.T) {
	hash, err := auth.HashPassword("s3cret-password")
	require.NoError(t, err)

	parts := strings.Split(hash, "$")
	require.Len(t, parts, 4)
	assert.Equal(t, "pbkdf2", parts[0])
	assert.Equal(t, "100000", parts[1])
	assert.NotEmpty(t, parts[2])
	assert.NotEmpty(t, parts[3])
}

func TestHashPasswordSaltsDiffer(t *testing.T) {
	first, err := auth.HashPassword("same-password")
	require.NoError(t, err)

	second, err := auth.HashPassword("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := auth.HashPassword("")
	assert.Error(t, err)
}

func TestComparePasswordAndHash(t *testing.T) {
	hash, err := auth.HashPassword("correct horse battery staple")
	require.NoError(t, err)

	t.Run("accepts matching password", func(t *testing.T) {
		assert.NoError(t, auth.ComparePasswordAndHash("correct horse battery staple", hash))
	})

	t.Run("rejects wrong password", func(t *testing.T) {
		err := auth.ComparePasswordAndHash("wrong password", hash)
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("rejects malformed stored values", func(t *testing.T) {
		cases := map[string]string{
			"empty":              "",
			"too few parts":      "pbkdf2$100000$c2FsdA",
			"unknown scheme":     "bcrypt$100000$c2FsdA$a2V5",
			"zero iterations":    "pbkdf2$0$c2FsdA$a2V5",
			"negative":           "pbkdf2$-5$c2FsdA$a2V5",
			"over the ceiling":   "pbkdf2$100001$c2FsdA$a2V5",
			"iterations not int": "pbkdf2$lots$c2FsdA$a2V5",
			"bad salt encoding":  "pbkdf2$100000$!!$a2V5",
			"bad key encoding":   "pbkdf2$100000$c2FsdA$!!",
		}

		for name, stored := range cases {
			t.Run(name, func(t *testing.T) {
				err := auth.ComparePasswordAndHash("anything", stored)
				assert.ErrorIs(t, err, auth.ErrHashFormatInvalid)
			})
		}
	})
}

func TestRandomPassword(t *testing.T) {
	seen := map[string]bool{}

	for i := 0; i < 10; i++ {
		password := auth.RandomPassword(12)
		assert.Len(t, password, 12)
		assert.False(t, seen[password], "generated passwords should not repeat")
		seen[password] = true

		for _, r := range password {
			assert.NotContains(t, "0O1lI", string(r))
		}
	}

	assert.Len(t, auth.RandomPassword(0), 12)
	assert.Len(t, auth.RandomPassword(-3), 12)
	assert.Len(t, auth.RandomPassword(30), 30)
}
