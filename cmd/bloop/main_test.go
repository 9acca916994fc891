package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloopsocial/bloop/internal/auth/jwt"
	"github.com/bloopsocial/bloop/pkg/version"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs([]string{})
		rootCmd.SetOut(nil)
		configPath = ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "bloop.yaml")
	cfg := `
logger:
  level: error
database:
  type: sqlite
  dbname: ` + filepath.Join(dir, "bloop.db") + `
jwt:
  secret_key: this-is-a-very-long-secret-key-for-testing
`
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func TestRootCmd_Version(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "bloop version "+version.Get()+"\n", out)
}

func TestRootCmd_Help(t *testing.T) {
	_, err := execute(t, "--help")
	assert.NoError(t, err)
}

func TestUserAddAndToken(t *testing.T) {
	conf := writeConfig(t)

	out, err := execute(t, "--conf", conf, "user", "add", "--username", "alice", "--displayname", "Alice")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	id := strings.TrimPrefix(lines[0], "id: ")

	svc, err := jwt.NewService(jwt.Config{SecretKey: "this-is-a-very-long-secret-key-for-testing", Duration: 1 << 40})
	require.NoError(t, err)
	claims, err := svc.ValidateToken(strings.TrimPrefix(lines[1], "token: "))
	require.NoError(t, err)
	assert.Equal(t, id, claims.Subject())
	assert.Equal(t, "alice", claims.Username)

	out, err = execute(t, "--conf", conf, "token", "--user", id)
	require.NoError(t, err)
	uid, err := svc.Verify(t.Context(), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, id, uid)

	_, err = execute(t, "--conf", conf, "token", "--user", "missing")
	assert.Error(t, err)
}
