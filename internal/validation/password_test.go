package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	valid := []struct {
		name     string
		password string
	}{
		{"typical", "Chaingang2024!"},
		{"minimum length", "Tt1!aaaaaaaa"},
		{"maximum length", "Tt1!" + strings.Repeat("x", 124)},
		{"accented letters count for case", "Évasion2024!pass"},
	}
	for _, tc := range valid {
		t.Run("accepts "+tc.name, func(t *testing.T) {
			require.NoError(t, ValidatePassword(tc.password))
		})
	}

	rejected := []struct {
		name        string
		password    string
		errContains string
	}{
		{"too short", "Watts99!", "at least 12 characters"},
		{"too long", "Tt1!" + strings.Repeat("x", 125), "not exceed 128"},
		{"missing uppercase", "chaingang2024!", "uppercase"},
		{"missing lowercase", "CHAINGANG2024!", "lowercase"},
		{"missing digit", "Chaingang!!!!", "digit"},
		{"missing special", "Chaingang2024", "special character"},
		{"no letters at all", "12345678901!", "uppercase"},
	}
	for _, tc := range rejected {
		t.Run("rejects "+tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.password)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errContains)
		})
	}
}

func TestValidateUsername(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"kom_hunter", "breakaway-99", "TTT"} {
		assert.NoError(t, ValidateUsername(name), name)
	}

	rejected := []struct {
		name        string
		username    string
		errContains string
	}{
		{"too short", "cx", "at least 3"},
		{"too long", strings.Repeat("w", 31), "not exceed 30"},
		{"illegal characters", "kom.hunter", "letters, numbers"},
		{"leading hyphen", "-sprinter", "start or end"},
		{"trailing underscore", "sprinter_", "start or end"},
	}
	for _, tc := range rejected {
		t.Run("rejects "+tc.name, func(t *testing.T) {
			err := ValidateUsername(tc.username)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errContains)
		})
	}
}

func TestValidateEmail(t *testing.T) {
	t.Parallel()

	// Longest accepted address: 64-char local part, 185-char label, ".com".
	longestOK := strings.Repeat("a", 64) + "@" + strings.Repeat("b", 185) + ".com"

	for _, email := range []string{"rouleur@velomail.cc", "a@b.io", longestOK} {
		assert.NoError(t, ValidateEmail(email), email)
	}

	for _, tc := range []struct {
		name  string
		email string
	}{
		{"bare word", "not-an-email"},
		{"missing domain", "rouleur@"},
		{"double at", "rouleur@@velomail.cc"},
		{"space in local part", "rou leur@velomail.cc"},
		{"trailing dot in domain", "rouleur@velomail.cc."},
		{"over length limit", longestOK + "m"},
	} {
		t.Run("rejects "+tc.name, func(t *testing.T) {
			assert.Error(t, ValidateEmail(tc.email))
		})
	}
}
