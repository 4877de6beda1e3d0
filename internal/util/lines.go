package util

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Line is a non-blank line of a list file together with its 1-based position.
type Line struct {
	Number int
	Text   string
}

// ReadLines reads a line-oriented list file. Lines are trimmed and blank lines are skipped.
func ReadLines(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	return ParseLines(f, path)
}

// ParseLines is ReadLines on an open reader, name is used in errors.
func ParseLines(r io.Reader, name string) ([]Line, error) {
	var lines []Line
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for n := 1; scanner.Scan(); n++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		lines = append(lines, Line{Number: n, Text: text})
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", name)
	}

	return lines, nil
}

// LineTexts drops the line numbers.
func LineTexts(lines []Line) []string {
	res := make([]string, len(lines))
	for i, l := range lines {
		res[i] = l.Text
	}

	return res
}
