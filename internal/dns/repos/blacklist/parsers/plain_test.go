package parsers

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-dnsfilter/internal/dns/common/log"
	"github.com/haukened/rr-dnsfilter/internal/dns/repos/blacklist"
)

func TestParsePlainList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", []string{}},
		{"single no newline", "ads", []string{"ads"}},
		{"lf lines", "ads\ntracker\n", []string{"ads", "tracker"}},
		{"crlf", "ads\r\n", []string{"ads"}},
		{"blank lines kept", "a\n\nb\n", []string{"a", "", "b"}},
		{"comments kept", "# list\nads\n", []string{"# list", "ads"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePlainList(strings.NewReader(tt.input), "test", log.NewNoopLogger())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePlainList_TruncatesLongLines(t *testing.T) {
	long := strings.Repeat("x", 5000)
	got, err := ParsePlainList(strings.NewReader(long+"\nads\n"+long), "test", log.NewNoopLogger())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Len(t, got[0], blacklist.MaxLineLength)
	assert.Equal(t, "ads", got[1])
	assert.Len(t, got[2], blacklist.MaxLineLength)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestParsePlainList_ReadError(t *testing.T) {
	_, err := ParsePlainList(failingReader{}, "test", log.NewNoopLogger())
	assert.EqualError(t, err, "disk on fire")
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "filter.txt")
	require.NoError(t, os.WriteFile(path, []byte("# ads and trackers\nads\ndoubleclick\n"), 0o600))

	lines, err := FileSource{Path: path}.Lines()
	require.NoError(t, err)

	f := blacklist.Build(lines, blacklist.Options{})
	assert.Equal(t, []string{"ads", "doubleclick"}, f.Entries())
	assert.True(t, f.IsBlacklisted("ads.example.com"))
}

func TestFileSource_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	lines, err := FileSource{Path: path, Logger: log.NewNoopLogger()}.Lines()
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestFileSource_Missing(t *testing.T) {
	_, err := FileSource{Path: filepath.Join(t.TempDir(), "nope.txt")}.Lines()
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
