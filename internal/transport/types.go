package transport

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"slotwatch/internal/domain"
)

var ErrNotConfigured = errors.New("messaging not configured")

// ChatID identifies a chat (user, group or channel) on the messaging platform.
type ChatID int64

func (c ChatID) String() string { return strconv.FormatInt(int64(c), 10) }

// Update is one inbound message from the chat stream.
type Update struct {
	ID           int64
	ChatID       ChatID
	FromID       int64
	FromUsername string
	Text         string
	At           time.Time
}

// Sender delivers a plain-text message. A nil error means the platform
// accepted the message.
type Sender interface {
	SendMessage(ctx context.Context, to ChatID, text string) error
}

// Messenger is the full chat surface used by one invocation.
type Messenger interface {
	Sender

	// GetUpdates returns inbound updates with id greater than after, in
	// ascending id order. With an unset cursor it returns at least the
	// newest pending update so the caller can learn the stream head.
	GetUpdates(ctx context.Context, after domain.Cursor) ([]Update, error)

	// AckUpdates confirms every update up to and including through on the
	// platform side. Best-effort: it only narrows duplicate delivery.
	AckUpdates(ctx context.Context, through int64) error
}

var reChatSep = regexp.MustCompile(`[;,\s]+`)

// ParseChatIDs splits "123;-100456, 789" into chat ids. Empty items are
// skipped; anything else that is not an integer is an error.
func ParseChatIDs(raw string) ([]ChatID, error) {
	var out []ChatID
	for _, part := range reChatSep.Split(strings.TrimSpace(raw), -1) {
		if part == "" {
			continue
		}
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat id %q", part)
		}
		out = append(out, ChatID(n))
	}
	return out, nil
}

// MergeRecipients returns the union of the given lists, sorted, zero ids dropped.
func MergeRecipients(lists ...[]ChatID) []ChatID {
	seen := map[ChatID]struct{}{}
	for _, l := range lists {
		for _, id := range l {
			if id == 0 {
				continue
			}
			seen[id] = struct{}{}
		}
	}
	out := make([]ChatID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
