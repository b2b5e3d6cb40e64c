package blacklist

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEntry(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{"plain", "ads", "ads", true},
		{"trailing newline", "ads\n", "ads", true},
		{"crlf", "ads\r\n", "ads", true},
		{"control ends entry", "ad\ts.example", "ad", true},
		{"comment", "#ads", "", false},
		{"comment after space is an entry", " #ads", " #ads", true},
		{"empty", "", "", false},
		{"only newline", "\n", "", false},
		{"leading control", "\x01ads", "", false},
		{"high bit masked", "a\xe4s", "ads", true},
		{"high bit masked to control", "ab\x8acd", "ab", true},
		{"spaces kept", "bad site", "bad site", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeEntry(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeEntry_TruncatesLongLines(t *testing.T) {
	got, ok := NormalizeEntry(strings.Repeat("a", MaxLineLength+100))
	assert.True(t, ok)
	assert.Len(t, got, MaxLineLength)
}
