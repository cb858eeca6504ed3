// Package loader reads relations from whitespace-separated integer streams.
package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/wbrown/janus-chainjoin/chainjoin"
)

// maxTokenSize bounds how much of a token is kept. No valid int64 needs more,
// so anything longer is reported as malformed without buffering it whole.
const maxTokenSize = 32

// Load consumes integers from r, width at a time, in encounter order.
// Tokens are split on whitespace with no limit on line length.
// A trailing partial tuple is rejected with an InputFormatError rather than
// silently dropped.
func Load(name string, r io.Reader, width int) (*chainjoin.Relation, error) {
	if width < 1 {
		return nil, chainjoin.Configf(-1, name, "tuple width must be positive, got %d", width)
	}

	br := bufio.NewReaderSize(r, 64*1024)

	rel := chainjoin.NewRelation(name, width, nil)
	current := make(chainjoin.Tuple, 0, width)
	token := make([]byte, 0, maxTokenSize)
	truncated := false
	count := 0
	line := 1

	flush := func() error {
		if len(token) == 0 {
			return nil
		}
		v, err := strconv.ParseInt(string(token), 10, 64)
		if err != nil || truncated {
			text := string(token)
			if truncated {
				text += "..."
			}
			return &chainjoin.InputFormatError{
				Source: name,
				Count:  count,
				Width:  width,
				Line:   line,
				Token:  text,
			}
		}
		count++
		current = append(current, v)
		if len(current) == width {
			rel.Tuples = append(rel.Tuples, current)
			current = make(chainjoin.Tuple, 0, width)
		}
		token = token[:0]
		truncated = false
		return nil
	}

	for {
		c, err := br.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}

		if isSpace(c) {
			if err := flush(); err != nil {
				return nil, err
			}
			if c == '\n' {
				line++
			}
			continue
		}
		if len(token) < maxTokenSize {
			token = append(token, c)
		} else {
			truncated = true
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	if len(current) != 0 {
		return nil, &chainjoin.InputFormatError{
			Source: name,
			Count:  count,
			Width:  width,
		}
	}

	return rel, nil
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

// LoadFile opens path and loads it as relation name
func LoadFile(name, path string, width int) (*chainjoin.Relation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open relation %s: %w", name, err)
	}
	defer f.Close()

	rel, err := Load(name, f, width)
	if err != nil {
		return nil, err
	}
	return rel, nil
}

// Write emits a relation in the same format Load accepts, one tuple per line
func Write(w io.Writer, rel *chainjoin.Relation) error {
	bw := bufio.NewWriter(w)
	for _, t := range rel.Tuples {
		for i, v := range t {
			if i > 0 {
				if err := bw.WriteByte(' '); err != nil {
					return err
				}
			}
			if _, err := bw.WriteString(strconv.FormatInt(v, 10)); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes a relation to path, replacing any existing file
func WriteFile(path string, rel *chainjoin.Relation) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Write(f, rel); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
