package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/john/emoterain/internal/emote"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"moonmoon"}, cfg.Twitch.Channels)
	assert.Equal(t, "https://gif-emotes.opl.io", cfg.Catalog.ServiceURL)
	assert.Equal(t, emote.DefaultCatalogURLTemplate, cfg.Catalog.AssetURLTemplate)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 100, cfg.Pipeline.BufferSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Zero(t, cfg.RefreshInterval())

	want := emote.Tier{MaxEmotes: 5, DuplicateLimit: 1}
	assert.Equal(t, emote.Limits{Subscriber: want, Pleb: want}, cfg.Limits())
}

func TestLoad_PlebLimits(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
emotes:
  maximum_emote_limit: 8
  maximum_emote_limit_pleb: 1
  duplicate_emote_limit: 3
`))
	require.NoError(t, err)

	limits := cfg.Limits()
	assert.Equal(t, emote.Tier{MaxEmotes: 8, DuplicateLimit: 3}, limits.Subscriber)
	assert.Equal(t, emote.Tier{MaxEmotes: 1, DuplicateLimit: 3}, limits.Pleb)
}

func TestLoad_ExplicitZeroLimits(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
emotes:
  maximum_emote_limit: 0
  duplicate_emote_limit_pleb: 0
`))
	require.NoError(t, err)

	limits := cfg.Limits()
	assert.Equal(t, emote.Tier{MaxEmotes: 0, DuplicateLimit: 1}, limits.Subscriber)
	assert.Equal(t, emote.Tier{MaxEmotes: 0, DuplicateLimit: 0}, limits.Pleb)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TWITCH_OAUTH", "oauth:secret")
	t.Setenv("CATALOG_SERVICE_URL", "http://localhost:9000")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load(writeConfig(t, `
twitch:
  username: emotebot
  channels: ["#forsen"]
`))
	require.NoError(t, err)

	assert.Equal(t, "oauth:secret", cfg.Twitch.OAuth)
	assert.Equal(t, "http://localhost:9000", cfg.Catalog.ServiceURL)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, []string{"#forsen"}, cfg.Twitch.Channels)
}

func TestLoad_KickChannels(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
kick:
  enabled: true
  channels:
    - slug: xqc
      chatroom_id: 668
    - slug: adinross
`))
	require.NoError(t, err)

	require.Len(t, cfg.Kick.Channels, 2)
	assert.Equal(t, "xqc", cfg.Kick.Channels[0].Slug)
	assert.Equal(t, 668, cfg.Kick.Channels[0].ChatroomID)
	assert.Zero(t, cfg.Kick.Channels[1].ChatroomID)
}

func TestLoad_ValidationErrors(t *testing.T) {
	t.Setenv("TWITCH_OAUTH", "")

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "negative limit",
			body:    "emotes:\n  duplicate_emote_limit: -1\n",
			wantErr: "emotes.duplicate_emote_limit must not be negative",
		},
		{
			name:    "negative pleb limit",
			body:    "emotes:\n  maximum_emote_limit_pleb: -2\n",
			wantErr: "emotes.maximum_emote_limit_pleb must not be negative",
		},
		{
			name:    "username without oauth",
			body:    "twitch:\n  username: emotebot\n",
			wantErr: "twitch.username and twitch.oauth must be set together",
		},
		{
			name:    "kick enabled without channels",
			body:    "kick:\n  enabled: true\n",
			wantErr: "at least one kick channel",
		},
		{
			name:    "asset template without placeholder",
			body:    "catalog:\n  asset_url_template: https://cdn.example.com/emote\n",
			wantErr: "asset_url_template",
		},
		{
			name:    "bucket without credentials",
			body:    "catalog:\n  s3:\n    bucket: emotes\n    region: us-east-1\n",
			wantErr: "catalog.s3.role_arn",
		},
		{
			name:    "access key without secret",
			body:    "catalog:\n  s3:\n    bucket: emotes\n    region: us-east-1\n    access_key_id: AKIA\n",
			wantErr: "secret_access_key",
		},
		{
			name:    "unknown log format",
			body:    "log:\n  format: xml\n",
			wantErr: "log.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
