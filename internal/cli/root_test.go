package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/congo_points/internal/auth"
)

const (
	alice    = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	aliceHex = "0xd43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"migrate", "token", "address"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestAddressCommand(t *testing.T) {
	out, err := execute(t, "address", aliceHex)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, alice, lines[0])
	assert.Equal(t, aliceHex, lines[1])

	out, err = execute(t, "--format", "json", "address", alice)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, aliceHex, decoded["hex"])

	_, err = execute(t, "address", "garbage")
	require.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	out, err := execute(t, "token", "--account", alice, "--secret", "s3cret")
	require.NoError(t, err)

	id, err := auth.NewTokens("s3cret").Parse(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, alice, id.String())
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "--format", "yaml", "address", alice)
	require.Error(t, err)
}

func TestMigrateRequiresURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := execute(t, "migrate")
	require.Error(t, err)
}
