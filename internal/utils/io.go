package utils

import (
	"fmt"
	"io"
	"os"
	"unicode/utf8"
)

// MaxFieldSize caps a field value read from stdin.
const MaxFieldSize = 1 << 20

// ReadFieldFromStdin reads the value of the named resource field from piped
// stdin. A terminal, empty input, input over MaxFieldSize and invalid UTF-8
// are all refused with the field name in the error.
func ReadFieldFromStdin(field string) (string, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return "", fmt.Errorf("field %q: failed to stat stdin: %w", field, err)
	}
	if (stat.Mode() & os.ModeCharDevice) != 0 {
		return "", fmt.Errorf("field %q: no data provided on stdin (hint: pipe the value, e.g. cat notes.md | cipherdesk resource set ID --stdin-field %s)", field, field)
	}
	return readField(os.Stdin, field)
}

func readField(r io.Reader, field string) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFieldSize+1))
	if err != nil {
		return "", fmt.Errorf("field %q: failed to read stdin: %w", field, err)
	}

	switch {
	case len(data) == 0:
		return "", fmt.Errorf("field %q: stdin is empty", field)
	case len(data) > MaxFieldSize:
		return "", fmt.Errorf("field %q: value exceeds %d bytes", field, MaxFieldSize)
	case !utf8.Valid(data):
		return "", fmt.Errorf("field %q: value is not valid UTF-8", field)
	}
	return string(data), nil
}
