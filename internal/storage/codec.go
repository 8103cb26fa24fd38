package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"slotwatch/internal/domain"
)

func encodeTargets(t *domain.TargetSet) ([]byte, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.Strings())
}

func decodeTargets(b []byte) (*domain.TargetSet, []string) {
	out := domain.NewTargetSet()
	var raw []any
	if err := json.Unmarshal(b, &raw); err != nil {
		return out, []string{fmt.Sprintf("%s: %v", KeyTargets, err)}
	}
	var dropped []string
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			dropped = append(dropped, fmt.Sprintf("%s: %v", KeyTargets, v))
			continue
		}
		d, err := domain.ParseDate(s)
		if err != nil {
			dropped = append(dropped, fmt.Sprintf("%s: %q", KeyTargets, s))
			continue
		}
		out.Add(d)
	}
	return out, dropped
}

func encodeCursor(c domain.Cursor) []byte {
	if !c.IsSet() {
		return []byte("null")
	}
	return []byte(strconv.FormatInt(c.ID(), 10))
}

func decodeCursor(b []byte) (domain.Cursor, []string) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return domain.UnsetCursor(), nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return domain.UnsetCursor(), []string{fmt.Sprintf("%s: %q", KeyCursor, string(b))}
	}
	return domain.CursorAt(n), nil
}

type counterRecord struct {
	Count    int       `json:"count"`
	LastSent time.Time `json:"last_sent"`
}

func encodeCounters(c domain.Counters) ([]byte, error) {
	if c == nil {
		c = domain.Counters{}
	}
	return json.Marshal(c)
}

// decodeCounters accepts {"key":{"count":n,"last_sent":"..."}} and the bare
// {"key":n} form.
func decodeCounters(b []byte) (domain.Counters, []string) {
	out := domain.Counters{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return out, []string{fmt.Sprintf("%s: %v", KeyCounters, err)}
	}
	var dropped []string
	for k, v := range raw {
		if !domain.ValidKey(k) {
			dropped = append(dropped, fmt.Sprintf("%s: key %q", KeyCounters, k))
			continue
		}
		var rec counterRecord
		var n int
		switch {
		case json.Unmarshal(v, &n) == nil:
			rec.Count = n
		case json.Unmarshal(v, &rec) == nil:
		default:
			dropped = append(dropped, fmt.Sprintf("%s: value for %q", KeyCounters, k))
			continue
		}
		if rec.Count < 0 {
			dropped = append(dropped, fmt.Sprintf("%s: negative count for %q", KeyCounters, k))
			continue
		}
		if rec.Count == 0 {
			continue
		}
		out[k] = domain.Counter{Count: rec.Count, LastSent: rec.LastSent}
	}
	return out, dropped
}
