// File: internal/envfile/envfile.go
// Brief: KEY=VALUE environment document reader.

// Package envfile reads the config/appsettings and config/secrets
// documents consumed by the vars sync. Order and duplicates are preserved
// so later entries win exactly as the external renderer applies them.
package envfile

import (
	"bufio"
	"os"
	"strings"
)

// Pair is one KEY=VALUE entry.
type Pair struct {
	Key   string
	Value string
}

// Read parses the file at path, skipping blank lines, comments, and lines
// without an assignment.
func Read(path string) ([]Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pairs []Pair
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || !strings.Contains(line, "=") {
			continue
		}
		key, value, _ := strings.Cut(line, "=")
		pairs = append(pairs, Pair{Key: key, Value: value})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return pairs, nil
}

// ToMap collapses pairs into a map; later duplicates win.
func ToMap(pairs []Pair) map[string]string {
	m := make(map[string]string, len(pairs))
	for _, p := range pairs {
		m[p.Key] = p.Value
	}
	return m
}
