package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretVersionName(t *testing.T) {
	assert.Equal(t, "projects/p/secrets/play-key/versions/latest", secretVersionName("p", "play-key"))
	assert.Equal(t, "projects/x/secrets/k/versions/latest", secretVersionName("p", "projects/x/secrets/k"))
	assert.Equal(t, "projects/x/secrets/k/versions/3", secretVersionName("p", "projects/x/secrets/k/versions/3"))
}

func TestLoadServiceAccountKeyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"service_account"}`), 0o600))

	key, err := LoadServiceAccountKey(context.Background(), path, "", "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"service_account"}`, string(key))
}

func TestLoadServiceAccountKeyUnset(t *testing.T) {
	key, err := LoadServiceAccountKey(context.Background(), "", "", "")
	require.NoError(t, err)
	assert.Nil(t, key)
}
