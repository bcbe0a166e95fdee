package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicforum/constitution-platform/internal/model"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "civicctl", cmd.Use)
	assert.Contains(t, cmd.Long, "trending")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"seed", "trending"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err, "command %s should exist", name)
			require.NotNil(t, sub)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("db"))
}

func TestSeedCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	seed, _, err := cmd.Find([]string{"seed"})
	require.NoError(t, err)

	users := seed.Flags().Lookup("users")
	require.NotNil(t, users)
	assert.Equal(t, "10", users.DefValue)

	password := seed.Flags().Lookup("password")
	require.NotNil(t, password)
	assert.Equal(t, "12341234", password.DefValue)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInvalidFormat(t *testing.T) {
	db := filepath.Join(t.TempDir(), "civic.db")
	_, err := execute(t, "trending", "--db", db, "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestTrendingEmpty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "civic.db")
	out, err := execute(t, "trending", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "no posts with responses")
}

func TestSeedThenTrending(t *testing.T) {
	db := filepath.Join(t.TempDir(), "nested", "civic.db")

	out, err := execute(t, "seed", "--db", db, "--users", "3", "--posts", "1", "--bcrypt-cost", "4", "--format", "json")
	require.NoError(t, err)

	var seeded SeedResult
	require.NoError(t, json.Unmarshal([]byte(out), &seeded))
	assert.Equal(t, SeedResult{UsersCreated: 3, Posts: 3, Responses: 3}, seeded)

	out, err = execute(t, "trending", "--db", db, "--format", "json")
	require.NoError(t, err)

	var trending []model.TrendingPost
	require.NoError(t, json.Unmarshal([]byte(out), &trending))
	require.Len(t, trending, 3)
	for _, p := range trending {
		assert.Equal(t, 1, p.RecentResponses)
		assert.Equal(t, 1, p.AgreeCount+p.DisagreeCount)
	}

	// Votes older than 48 hours drop out of the ranking.
	out, err = execute(t, "trending", "--db", db, "--at", "2100-01-01T00:00:00Z", "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestSeedIsRepeatable(t *testing.T) {
	db := filepath.Join(t.TempDir(), "civic.db")

	_, err := execute(t, "seed", "--db", db, "--users", "2", "--posts", "1", "--bcrypt-cost", "4")
	require.NoError(t, err)

	out, err := execute(t, "seed", "--db", db, "--users", "2", "--posts", "1", "--bcrypt-cost", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "users created: 0 (skipped 2)")
	assert.Contains(t, out, "posts: 0")
}
