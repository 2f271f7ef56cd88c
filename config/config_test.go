package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racebot-stats/temperrors"
)

func TestDefault(t *testing.T) {
	conf := Default()

	assert.Equal(t, "https://api.jolpi.ca/ergast/f1", conf.API.BaseURL)
	assert.Equal(t, 3, conf.API.MaxAttempts)
	assert.Equal(t, 10*time.Second, conf.API.Timeout.Duration)
	assert.Equal(t, "file", conf.Storage.Driver)
	require.NoError(t, conf.Validate())
}

func TestNewFromFile(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "racestats.toml")
	data := `log_level = "debug"

[api]
timeout = "3s"
max_attempts = 5

[storage]
driver = "sqlite"
path = "/tmp/stats.db"

[refresh]
seasons = [2023, 2024]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	conf, err := New(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", conf.LogLevel)
	assert.Equal(t, 3*time.Second, conf.API.Timeout.Duration)
	assert.Equal(t, 5, conf.API.MaxAttempts)
	assert.Equal(t, "sqlite", conf.Storage.Driver)
	assert.Equal(t, []int{2023, 2024}, conf.Refresh.Seasons)
	// untouched keys keep defaults
	assert.Equal(t, 100, conf.API.PageSize)
}

func TestNewEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RACESTATS_STORAGE", "file")
	t.Setenv("RACESTATS_CODEC", "msgpack")
	t.Setenv("RACETG_BOT", "tg-token")
	t.Setenv("RACEVK_GROUP_ID", "219009582")
	t.Setenv("RACESTATS_SEASONS", "2019-2021,2023")

	conf, err := New("")
	require.NoError(t, err)

	assert.Equal(t, "msgpack", conf.Storage.Codec)
	assert.Equal(t, "tg-token", conf.Bots.TgChatToken)
	assert.Equal(t, 219009582, conf.Bots.VkGroupID)
	assert.Equal(t, []int{2019, 2020, 2021, 2023}, conf.Refresh.Seasons)
}

func TestValidate(t *testing.T) {
	conf := Default()
	conf.Storage.Driver = "s3"
	assert.ErrorIs(t, conf.Validate(), temperrors.ErrInvalidConfig)

	conf.Storage.S3.Bucket = "f1"
	assert.NoError(t, conf.Validate())

	conf.Storage.Codec = "yaml"
	assert.ErrorIs(t, conf.Validate(), temperrors.ErrInvalidConfig)
}

func TestParseSeasons(t *testing.T) {
	seasons, err := ParseSeasons("2021, 2023-2024")
	require.NoError(t, err)
	assert.Equal(t, []int{2021, 2023, 2024}, seasons)

	_, err = ParseSeasons("2024-2021")
	assert.Error(t, err)
	_, err = ParseSeasons("abc")
	assert.Error(t, err)
}
