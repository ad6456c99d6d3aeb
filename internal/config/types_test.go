package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"Off": LogLevelOff, "error": LogLevelError, "WARN": LogLevelWarn,
		"info": LogLevelInfo, "": LogLevelInfo, "debug": LogLevelDebug,
		"trace": LogLevelTrace, "nonsense": LogLevelInfo,
	}
	for input, want := range cases {
		require.Equal(t, want, ParseLogLevel(input), input)
	}
}

func TestConfigNormalizeSortsFoldersAndBuildsLookups(t *testing.T) {
	cfg := Config{
		Groups: []Group{{Name: "admins", Members: []string{"a@x.com", "b@x.com"}}},
		Folders: []FolderRule{
			{Path: "/b", Allowed: []string{"#admins"}},
			{Path: "/", Allowed: []string{"root@x.com"}},
			{Path: "/a", Allowed: []string{"a@x.com"}},
		},
	}
	cfg.Normalize(3)

	require.Equal(t, []string{"/", "/a", "/b"}, []string{cfg.Folders[0].Path, cfg.Folders[1].Path, cfg.Folders[2].Path})
	require.True(t, cfg.AllKnownEmails("a@x.com"))
	require.False(t, cfg.AllKnownEmails("nobody@x.com"))
	group, ok := cfg.GroupByName("admins")
	require.True(t, ok)
	require.Equal(t, []string{"a@x.com", "b@x.com"}, group.Members)
	require.EqualValues(t, 3, cfg.Generation())
}

func TestConfigValidateRequiresCorePaths(t *testing.T) {
	cfg := DefaultConfig()
	require.Error(t, cfg.Validate())

	cfg.ThumbRootPath = "/thumbs"
	cfg.StaticSitePath = "/site"
	require.NoError(t, cfg.Validate())
}

func TestConfigValidateRejectsDuplicateFolderPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ThumbRootPath = "/thumbs"
	cfg.StaticSitePath = "/site"
	cfg.Folders = []FolderRule{{Path: "/a"}, {Path: "/a"}}
	require.Error(t, cfg.Validate())
}

func TestConfigValidateRejectsRelativeFolderPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ThumbRootPath = "/thumbs"
	cfg.StaticSitePath = "/site"
	cfg.Folders = []FolderRule{{Path: "relative"}}
	require.Error(t, cfg.Validate())
}

func TestConfigValidateRequiresRedisAddressForRedisBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ThumbRootPath = "/thumbs"
	cfg.StaticSitePath = "/site"
	cfg.DecisionCache.Backend = "redis"
	require.Error(t, cfg.Validate())

	cfg.DecisionCache.Redis.Address = "localhost:6379"
	require.NoError(t, cfg.Validate())
}
