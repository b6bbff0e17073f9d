package protocol

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// LineReader yields non-blank request lines from the input stream.
type LineReader struct {
	r *bufio.Reader
}

// NewLineReader wraps r. Lines may be arbitrarily long.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: bufio.NewReader(r)}
}

// Next blocks until a non-blank line is available and returns it without
// surrounding whitespace. It returns io.EOF once the stream is closed; a final
// line without a trailing newline is still returned before io.EOF.
func (l *LineReader) Next() (string, error) {
	for {
		line, err := l.r.ReadString('\n')
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			return trimmed, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", err
		}
	}
}
