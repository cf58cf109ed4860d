// Package input expands flag values that reference stdin ("-") or files
// ("@path").
package input

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// ExpandValue resolves a flag value: "-" reads all of stdin, "@path" reads
// the named file, anything else passes through unchanged. Trailing newlines
// are trimmed from expanded content.
func ExpandValue(v string) (string, error) {
	switch {
	case v == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return strings.TrimRight(string(data), "\n"), nil

	case strings.HasPrefix(v, "@"):
		path := strings.TrimPrefix(v, "@")
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		return strings.TrimRight(string(data), "\n"), nil

	default:
		return v, nil
	}
}
