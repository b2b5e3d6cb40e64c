package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-dnsfilter/internal/dns/common/log"
	"github.com/haukened/rr-dnsfilter/internal/dns/config"
	"github.com/haukened/rr-dnsfilter/internal/dns/gateways/tap"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, appName+" "+version+"\n", out)
}

func TestFlagOverrides(t *testing.T) {
	root := newRootCmd()
	require.NoError(t, root.ParseFlags([]string{
		"-s", "1.1.1.1",
		"-p", "5353",
		"-v",
		"-f", "/etc/filter.txt",
		"--tap-socket", "/run/dnstap.sock",
	}))

	assert.Equal(t, map[string]any{
		"resolver":       "1.1.1.1",
		"port":           "5353",
		"verbose":        "true",
		"blacklist.file": "/etc/filter.txt",
		"tap.socket":     "/run/dnstap.sock",
	}, flagOverrides(root))
}

func TestFlagOverrides_UnsetFlagsAreOmitted(t *testing.T) {
	root := newRootCmd()
	require.NoError(t, root.ParseFlags(nil))
	assert.Empty(t, flagOverrides(root))
}

func TestRootCmd_ConfigErrorIsReported(t *testing.T) {
	t.Setenv("DNS_RESOLVER", "")
	t.Setenv("DNS_BLACKLIST_FILE", "")
	_, err := execute(t, "-p", "5353")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration error")
}

func TestRootCmd_TapFlagsAreExclusive(t *testing.T) {
	_, err := execute(t, "--tap-file", "/tmp/a", "--tap-socket", "/tmp/b")
	require.Error(t, err)
}

func TestRootCmd_RejectsArgs(t *testing.T) {
	_, err := execute(t, "stray")
	require.Error(t, err)
}

func TestBlacklistImportThenCheck(t *testing.T) {
	filter := writeFile(t, "filter.txt", "ads\n# trackers below\ntracker\n\n")
	db := filepath.Join(t.TempDir(), "filter.db")

	out, err := execute(t, "blacklist", "import", "--filter", filter, "--filter-db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2 entries")
	assert.Contains(t, out, "(version 1)")

	tests := []struct {
		name string
		want string
	}{
		{"ads.example.com", "ads.example.com: refused (matches \"ads\")\n"},
		{"www.tracker.net.", "www.tracker.net: refused (matches \"tracker\")\n"},
		{"example.org", "example.org: allowed\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "blacklist", "check", "--filter-db", db, tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestBlacklistCmd_FlagValidation(t *testing.T) {
	_, err := execute(t, "blacklist", "import", "--filter", "/x")
	assert.EqualError(t, err, "both --filter and --filter-db are required")

	_, err = execute(t, "blacklist", "check", "ads.example.com")
	assert.EqualError(t, err, "one of --filter or --filter-db is required")

	_, err = execute(t, "blacklist", "check", "--filter", "/x")
	assert.Error(t, err, "check needs a name")
}

func TestBlacklistCheck_MissingFile(t *testing.T) {
	_, err := execute(t, "blacklist", "check", "--filter", filepath.Join(t.TempDir(), "missing.txt"), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open filter file")
}

func TestBuildBlacklist(t *testing.T) {
	logger := log.NewNoopLogger()
	db := filepath.Join(t.TempDir(), "filter.db")
	_, err := execute(t, "blacklist", "import", "--filter", writeFile(t, "a.txt", "doubleclick\n"), "--filter-db", db)
	require.NoError(t, err)

	t.Run("snapshot and file are merged", func(t *testing.T) {
		f, err := buildBlacklist(config.BlacklistConfig{
			File:      writeFile(t, "b.txt", "ads\n"),
			DB:        db,
			CacheSize: 8,
			FPRate:    0.01,
		}, logger)
		require.NoError(t, err)
		assert.Equal(t, []string{"doubleclick", "ads"}, f.Entries())
		assert.True(t, f.IsBlacklisted("ad.doubleclick.net"))
		assert.True(t, f.IsBlacklisted("ads.example.com"))
	})

	t.Run("missing file is fatal", func(t *testing.T) {
		_, err := buildBlacklist(config.BlacklistConfig{File: filepath.Join(t.TempDir(), "nope"), FPRate: 0.01}, logger)
		require.Error(t, err)
	})

	t.Run("empty file is allowed", func(t *testing.T) {
		f, err := buildBlacklist(config.BlacklistConfig{File: writeFile(t, "empty.txt", ""), FPRate: 0.01}, logger)
		require.NoError(t, err)
		assert.Zero(t, f.Len())
		assert.False(t, f.IsBlacklisted("anything.example"))
	})

	t.Run("max entries caps the load", func(t *testing.T) {
		f, err := buildBlacklist(config.BlacklistConfig{
			File:       writeFile(t, "many.txt", "one\ntwo\nthree\n"),
			FPRate:     0.01,
			MaxEntries: 2,
		}, logger)
		require.NoError(t, err)
		assert.Equal(t, 2, f.Len())
	})
}

func TestBuildTap(t *testing.T) {
	logger := log.NewNoopLogger()

	noop, err := buildTap(&config.AppConfig{}, logger)
	require.NoError(t, err)
	assert.IsType(t, tap.Noop{}, noop)

	path := filepath.Join(t.TempDir(), "trace.fstrm")
	sink, err := buildTap(&config.AppConfig{Tap: config.TapConfig{File: path}}, logger)
	require.NoError(t, err)
	assert.IsType(t, &tap.Sink{}, sink)
	require.NoError(t, sink.Close())
	assert.FileExists(t, path)

	_, err = buildTap(&config.AppConfig{Tap: config.TapConfig{File: filepath.Join(t.TempDir(), "no", "such", "dir", "x")}}, logger)
	assert.Error(t, err)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "example.com", normalizeName(" example.com. "))
	assert.Equal(t, "example.com", normalizeName("example.com"))
	assert.Equal(t, "", normalizeName("."))
}
