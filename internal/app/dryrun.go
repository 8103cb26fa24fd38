package app

import (
	"context"
	"fmt"
	"io"
	"sync"

	"slotwatch/internal/domain"
	kit "slotwatch/internal/transport"
)

// PrintMessenger writes outbound messages to w and has no inbound stream.
// Dry runs use it in place of the chat transport.
type PrintMessenger struct {
	mu sync.Mutex
	w  io.Writer
}

var _ kit.Messenger = (*PrintMessenger)(nil)

func NewPrintMessenger(w io.Writer) *PrintMessenger { return &PrintMessenger{w: w} }

func (p *PrintMessenger) SendMessage(_ context.Context, to kit.ChatID, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.w, "--- to %s ---\n%s\n", to, text)
	return err
}

func (p *PrintMessenger) GetUpdates(context.Context, domain.Cursor) ([]kit.Update, error) {
	return nil, nil
}

func (p *PrintMessenger) AckUpdates(context.Context, int64) error { return nil }
