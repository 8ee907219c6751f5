package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "https://peraturan.bpk.go.id", cfg.Crawler.BaseURL)
	require.Equal(t, 4, cfg.Crawler.Concurrency)
	require.Equal(t, 50, cfg.Crawler.MaxItemsDefault)
	require.Equal(t, []int{2025, 2024, 2023}, cfg.Crawler.YearsDefault)
	require.Equal(t, []int{8, 10, 11, 19}, cfg.Crawler.JenisIDsDefault)
	require.Equal(t, "memory", cfg.Storage.Backend)
	require.True(t, cfg.Crawler.RespectRobots)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	cfg := base
	cfg.Server.Port = 0
	require.Error(t, cfg.Validate())

	cfg = base
	cfg.Crawler.Concurrency = 0
	require.Error(t, cfg.Validate())

	cfg = base
	cfg.Storage.Backend = "s3"
	require.Error(t, cfg.Validate())

	cfg = base
	cfg.Storage.Backend = "gcs"
	require.Error(t, cfg.Validate(), "gcs backend needs a bucket")
	cfg.Storage.GCSBucket = "bucket"
	require.NoError(t, cfg.Validate())

	cfg = base
	cfg.Auth.Enabled = true
	require.Error(t, cfg.Validate())

	cfg = base
	cfg.PubSub.Enabled = true
	require.Error(t, cfg.Validate())
	cfg.PubSub.ProjectID = "proj"
	cfg.PubSub.TopicName = "topic"
	require.NoError(t, cfg.Validate())
}
