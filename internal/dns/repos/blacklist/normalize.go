package blacklist

// MaxLineLength is the longest blacklist line kept; longer lines are cut.
const MaxLineLength = 511

// NormalizeEntry turns one raw blacklist line into a filter entry.
// Lines starting with '#' are comments. Every byte is masked to 7 bits and
// the entry ends at the first control byte, which also drops the trailing
// newline. ok is false when the line yields no entry.
func NormalizeEntry(line string) (entry string, ok bool) {
	if len(line) > 0 && line[0] == '#' {
		return "", false
	}
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength]
	}
	buf := make([]byte, 0, len(line))
	for i := 0; i < len(line); i++ {
		c := line[i] & 0x7f
		if c < ' ' {
			break
		}
		buf = append(buf, c)
	}
	// an empty entry is a substring of every name
	if len(buf) == 0 {
		return "", false
	}
	return string(buf), true
}
