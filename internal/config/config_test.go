package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, "memory", c.Storage.Type)
	assert.Equal(t, "en", c.Site.DefaultLang)
	assert.Equal(t, "dark", c.Site.DefaultTheme)
	assert.Equal(t, 1200*time.Millisecond, c.Assistant.TypingDelay)
	assert.Equal(t, 600*time.Millisecond, c.Assistant.RevealDelay)
	assert.Equal(t, 2*time.Second, c.Assistant.ReadDelay)
	assert.Equal(t, time.Second, c.Assistant.ResetDelay)
	assert.Equal(t, 500*time.Millisecond, c.Assistant.AutoCloseDelay)
	assert.Equal(t, 15*time.Second, c.Mail.Timeout)
	assert.Same(t, c, Get())
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
storage:
  type: disk
  data_dir: /var/lib/vexl
assistant:
  typing_delay: 2s
  stay_open: true
  actions:
    academy: /academy#apply
mail:
  service_id: service_file
site:
  default_lang: ar
`)
	t.Setenv("VEXL_SERVER_PORT", "9100")
	t.Setenv("VEXL_LOG_LEVEL", "debug")
	t.Setenv("EMAILJS_SERVICE_ID", "service_env")
	t.Setenv("EMAILJS_PUBLIC_KEY", "pub_env")

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, c.Server.Port)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "disk", c.Storage.Type)
	assert.Equal(t, 2*time.Second, c.Assistant.TypingDelay)
	assert.True(t, c.Assistant.StayOpen)
	assert.Equal(t, "/academy#apply", c.Assistant.Actions["academy"])
	assert.Equal(t, "ar", c.Site.DefaultLang)

	// the file wins over the relay variables
	assert.Equal(t, "service_file", c.Mail.ServiceID)
	assert.Equal(t, "pub_env", c.Mail.PublicKey)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"storage type", "storage:\n  type: s3\n"},
		{"redis without url", "storage:\n  type: redis\n"},
		{"language", "site:\n  default_lang: fr\n"},
		{"theme", "site:\n  default_theme: sepia\n"},
		{"negative delay", "assistant:\n  read_delay: -1s\n"},
		{"port", "server:\n  port: 70000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [port\n"))
	assert.Error(t, err)
}

func TestActionOverrides(t *testing.T) {
	c := &Config{
		Site: SiteConfig{WhatsApp: "+201000000000", ContactEmail: "hello@vexl.example"},
		Assistant: AssistantConfig{Actions: map[string]string{
			"email": "mailto:team@vexl.example",
		}},
	}

	got := c.ActionOverrides()
	assert.Equal(t, "https://wa.me/201000000000", got["whatsapp"])
	assert.Equal(t, "mailto:team@vexl.example", got["email"])
}
