package logx

import (
	"io"
	"strings"
	"sync"
	"unicode/utf8"
)

const redacted = "***"

type secretSet struct {
	mu   sync.RWMutex
	vals []string
}

func (s *secretSet) add(vals ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vals {
		v = strings.TrimSpace(v)
		// Very short values would mangle unrelated output.
		if len(v) < 6 {
			continue
		}
		s.vals = append(s.vals, v)
	}
}

func (s *secretSet) redact(msg string) string {
	if s == nil {
		return msg
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.vals {
		msg = strings.ReplaceAll(msg, v, redacted)
	}
	return msg
}

type redactWriter struct {
	w       io.Writer
	secrets *secretSet
}

func (r *redactWriter) Write(p []byte) (int, error) {
	out := r.secrets.redact(string(p))
	if _, err := io.WriteString(r.w, out); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Redact replaces every occurrence of each secret in msg.
func Redact(msg string, secrets ...string) string {
	s := &secretSet{}
	s.add(secrets...)
	return s.redact(msg)
}

// Bound caps msg at maxN runes, marking the cut with "...".
func Bound(msg string, maxN int) string {
	if maxN <= 0 || utf8.RuneCountInString(msg) <= maxN {
		return msg
	}
	rs := []rune(msg)
	if maxN < 10 {
		return string(rs[:maxN])
	}
	return string(rs[:maxN-3]) + "..."
}

// SafeError renders err for the final log line of a failed run: secrets
// removed, length bounded.
func SafeError(err error, maxN int, secrets ...string) string {
	if err == nil {
		return ""
	}
	return Bound(Redact(err.Error(), secrets...), maxN)
}
