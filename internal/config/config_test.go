package config

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("env: local\nmeta:\n  verify_token: tok\n"), 0o600))

	conf, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tok", conf.Meta.VerifyToken)
	assert.Equal(t, "meta-app-secret", conf.Meta.AppSecretName)
	assert.Equal(t, 10*time.Second, conf.Meta.DeliveryTimeout)
	assert.Equal(t, "memory", conf.Queue.Driver)
	assert.Equal(t, 5, conf.Queue.MaxAttempts)
	assert.Equal(t, 8, conf.Queue.Workers)
	assert.Equal(t, "pt-br", conf.Agent.LanguageCode)
	assert.Equal(t, "pull", conf.Queue.Delivery)
	assert.False(t, conf.PushEnabled())
}

func TestLoadReadsNestedValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	yml := `
env: prod
queue:
  driver: pubsub
  workers: 3
  lease: 90s
secrets:
  driver: static
  values:
    meta-app-secret: abc
    wa-token-tenant-123: EAAB
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	conf, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "pubsub", conf.Queue.Driver)
	assert.Equal(t, 3, conf.Queue.Workers)
	assert.Equal(t, 90*time.Second, conf.Queue.Lease)
	assert.Equal(t, "abc", conf.Secrets.Values["meta-app-secret"])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}

func TestLoadRefusesUnauthenticatedPush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("queue:\n  driver: pubsub\n  delivery: push\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push_token")
}

func TestValidatePush(t *testing.T) {
	conf := &Config{}
	conf.Queue.Driver = "pubsub"
	conf.Queue.Delivery = "push"
	assert.True(t, conf.PushEnabled())
	assert.Error(t, conf.Validate())

	conf.Queue.PushToken = "push-secret"
	assert.NoError(t, conf.Validate())

	conf.Queue.PushToken = ""
	conf.Queue.PushAudience = "https://router.example.com/pubsub"
	conf.Queue.PushAccount = "pusher@project.iam.gserviceaccount.com"
	assert.NoError(t, conf.Validate())

	conf.Queue.PushAudience = ""
	assert.Error(t, conf.Validate())

	conf.Queue.Delivery = "pull"
	conf.Queue.PushAccount = ""
	assert.False(t, conf.PushEnabled())
	assert.NoError(t, conf.Validate())
}

func TestValidateRejectsUnknownDelivery(t *testing.T) {
	conf := &Config{}
	conf.Queue.Delivery = "stream"
	assert.Error(t, conf.Validate())
}
