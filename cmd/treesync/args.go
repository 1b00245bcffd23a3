package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// maxArgFileDepth bounds nested argument files.
const maxArgFileDepth = 8

// expandArgFiles replaces each argument of the form "!FILE" with the lines
// of FILE, one argument per line. Blank lines are skipped and expanded
// arguments may themselves name argument files.
func expandArgFiles(args []string) ([]string, error) {
	return expandArgs(args, 0)
}

func expandArgs(args []string, depth int) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if !strings.HasPrefix(arg, "!") || len(arg) == 1 {
			out = append(out, arg)
			continue
		}
		if depth >= maxArgFileDepth {
			return nil, fmt.Errorf("argument file %s: nested too deeply", arg[1:])
		}
		lines, err := readArgFile(arg[1:])
		if err != nil {
			return nil, err
		}
		expanded, err := expandArgs(lines, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}

func readArgFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("argument file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read argument file %s: %w", path, err)
	}
	return lines, nil
}
