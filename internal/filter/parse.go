package filter

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadFile reads a filter string from a file. Each non-blank line is
// appended to the result, so a long filter can be split over lines;
// lines starting with '#' are comments.
func LoadFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open filter file: %w", err)
	}
	defer f.Close()

	var parts []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts = append(parts, line)
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read filter file %s: %w", path, err)
	}
	return strings.Join(parts, " "), nil
}
