package userdb

import (
	"bufio"
	"bytes"
	"strings"
)

// findShadow scans shadow-format data for the named user. Records are padded
// to the full nine fields so partially written entries still resolve.
func findShadow(data []byte, name string) *Shadow {
	s := bufio.NewScanner(bytes.NewReader(data))
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for s.Scan() {
		line := s.Text()
		trim := strings.TrimSpace(line)
		if trim == "" || strings.HasPrefix(trim, "#") {
			continue
		}
		parts := strings.Split(line, ":")
		if len(parts) < 2 || parts[0] != name {
			continue
		}
		for len(parts) < 9 {
			parts = append(parts, "")
		}
		return &Shadow{
			Name:       parts[0],
			Hash:       parts[1],
			LastChange: parts[2],
			Min:        parts[3],
			Max:        parts[4],
			Warn:       parts[5],
			Inactive:   parts[6],
			Expire:     parts[7],
			Reserved:   parts[8],
		}
	}
	return nil
}
