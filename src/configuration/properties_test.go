package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPropertiesDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	config, err := ReadProperties()
	require.NoError(t, err)

	assert.Equal(t, "static", config.Auth.Mode)
	assert.Equal(t, "admin", config.Auth.Username)
	assert.Equal(t, "P@ssw0rd", config.Auth.Password)
	assert.Equal(t, "8088", config.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, config.Server.AllowOrigins)
	assert.Equal(t, "sqlite", config.Store.Driver)
	assert.Equal(t, "memory", config.Session.Driver)
	assert.Equal(t, int64(5<<20), config.Image.MaxSourceBytes)
	assert.Equal(t, 800, config.Image.MaxEdge)
	assert.Equal(t, 800000, config.Image.MaxPayloadChars)
	assert.Equal(t, 24*time.Hour, config.S3.URLExpiry)
	assert.False(t, config.S3.Enabled)
}

func TestReadPropertiesFromEnv(t *testing.T) {
	t.Setenv("ENV_FILE", "")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("HTTP_ALLOW_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("IMAGE_MAX_PAYLOAD_CHARS", "1000")

	config, err := ReadProperties()
	require.NoError(t, err)

	assert.Equal(t, "9000", config.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, config.Server.AllowOrigins)
	assert.Equal(t, "memory", config.Store.Driver)
	assert.Equal(t, 1000, config.Image.MaxPayloadChars)
}

func TestReadPropertiesDotenvDoesNotOverrideEnv(t *testing.T) {
	file := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(file, []byte("STORE_DRIVER=postgres\nAUTH_MODE=bcrypt\n"), 0o600))
	t.Setenv("ENV_FILE", file)
	t.Setenv("STORE_DRIVER", "memory")
	t.Cleanup(func() { os.Unsetenv("AUTH_MODE") })

	config, err := ReadProperties()
	require.NoError(t, err)

	assert.Equal(t, "memory", config.Store.Driver)
	assert.Equal(t, "bcrypt", config.Auth.Mode)
}

func TestReadPropertiesInvalidValue(t *testing.T) {
	t.Setenv("ENV_FILE", "")
	t.Setenv("IMAGE_MAX_EDGE", "wide")

	_, err := ReadProperties()
	assert.Error(t, err)
}
