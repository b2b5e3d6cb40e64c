package parsers

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/haukened/rr-dnsfilter/internal/dns/common/log"
	"github.com/haukened/rr-dnsfilter/internal/dns/repos/blacklist"
)

// ParsePlainList reads a newline-delimited blacklist and returns its raw lines.
// Lines longer than blacklist.MaxLineLength are cut; the remainder is discarded.
// Normalization (comments, control bytes, 7-bit mask) is left to blacklist.Build.
func ParsePlainList(r io.Reader, source string, logger log.Logger) ([]string, error) {
	br := bufio.NewReader(r)
	out := make([]string, 0, 256)
	logger.Debug(map[string]any{"source": source}, "parse_plain_list_start")

	lineNum := 0
	for {
		line, truncated, err := readLine(br)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Debug(map[string]any{"source": source, "error": err.Error()}, "parse_plain_list_read_error")
			return nil, err
		}
		lineNum++
		if truncated {
			logger.Debug(map[string]any{"source": source, "line": lineNum, "max": blacklist.MaxLineLength}, "truncate_long_line")
		}
		out = append(out, line)
	}
	logger.Debug(map[string]any{"source": source, "lines": len(out)}, "parse_plain_list_done")
	return out, nil
}

// readLine returns one line without its terminator, keeping at most
// blacklist.MaxLineLength bytes.
func readLine(br *bufio.Reader) (string, bool, error) {
	var buf []byte
	truncated := false
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) && len(buf) > 0 {
				return string(buf), truncated, nil
			}
			return "", false, err
		}
		if room := blacklist.MaxLineLength - len(buf); room > 0 {
			if len(chunk) > room {
				chunk = chunk[:room]
				truncated = true
			}
			buf = append(buf, chunk...)
		} else if len(chunk) > 0 {
			truncated = true
		}
		if !isPrefix {
			return string(buf), truncated, nil
		}
	}
}

// FileSource is a blacklist.LineSource backed by a text file.
type FileSource struct {
	Path   string
	Logger log.Logger
}

// Lines opens and parses the file. A missing file is an error; an empty one is not.
func (s FileSource) Lines() ([]string, error) {
	logger := s.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	fh, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open filter file: %w", err)
	}
	defer fh.Close()
	return ParsePlainList(fh, s.Path, logger)
}

var _ blacklist.LineSource = FileSource{}
