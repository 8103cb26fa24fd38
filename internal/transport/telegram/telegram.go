// Package telegram implements the chat transport on the Telegram Bot API.
//
// The adapter never runs a long-poll loop: each invocation fetches pending
// updates once and confirms them through the getUpdates offset.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"slotwatch/internal/domain"
	kit "slotwatch/internal/transport"
	logx "slotwatch/pkg/logx"
)

type Config struct {
	Token string
	// APIURL overrides the Bot API endpoint (tests).
	APIURL       string
	RatePerSec   int
	Timeout      time.Duration
	UpdatesLimit int
}

type Adapter struct {
	cfg Config
	log logx.Logger

	bot     *tele.Bot
	limiter *rate.Limiter

	menuMu   sync.Mutex
	menuHash uint64
}

var _ kit.Messenger = (*Adapter)(nil)

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("telegram token is empty: %w", kit.ErrNotConfigured)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.UpdatesLimit <= 0 || cfg.UpdatesLimit > 100 {
		cfg.UpdatesLimit = 100
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 20
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	b, err := tele.NewBot(tele.Settings{
		URL:     cfg.APIURL,
		Token:   cfg.Token,
		Offline: true,
		Client:  &http.Client{Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{
		cfg:     cfg,
		log:     log.With(logx.String("comp", "telegram")),
		bot:     b,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

// scrub keeps the bot token out of errors; transport errors embed the
// request URL, which contains it.
func (a *Adapter) scrub(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if a.cfg.Token != "" && strings.Contains(msg, a.cfg.Token) {
		return errors.New(strings.ReplaceAll(msg, a.cfg.Token, "***"))
	}
	return err
}

const telegramTextLimit = 4096

// SendMessage sends text as plain text, splitting at the Bot API limit.
func (a *Adapter) SendMessage(ctx context.Context, to kit.ChatID, text string) error {
	chunks := splitTelegramText(text, telegramTextLimit)
	chat := &tele.Chat{ID: int64(to)}
	for _, chunk := range chunks {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
		_, err := a.bot.Send(chat, chunk, &tele.SendOptions{DisableWebPagePreview: true})
		if err != nil {
			return a.scrub(err)
		}
	}
	return nil
}

type updatesResponse struct {
	Result []tele.Update `json:"result"`
}

// GetUpdates fetches pending messages after the cursor. With an unset cursor
// it asks for offset -1, which returns only the newest pending update.
func (a *Adapter) GetUpdates(ctx context.Context, after domain.Cursor) ([]kit.Update, error) {
	params := map[string]any{
		"timeout":         0,
		"allowed_updates": []string{"message"},
	}
	if after.IsSet() {
		params["offset"] = after.ID() + 1
		params["limit"] = a.cfg.UpdatesLimit
	} else {
		params["offset"] = -1
		params["limit"] = 1
	}

	raw, err := a.raw(ctx, "getUpdates", params)
	if err != nil {
		return nil, err
	}
	var resp updatesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode getUpdates: %w", err)
	}

	out := make([]kit.Update, 0, len(resp.Result))
	for _, u := range resp.Result {
		out = append(out, convertUpdate(u))
	}
	return out, nil
}

// AckUpdates confirms everything up to through; the Bot API forgets updates
// below the requested offset.
func (a *Adapter) AckUpdates(ctx context.Context, through int64) error {
	_, err := a.raw(ctx, "getUpdates", map[string]any{
		"offset":  through + 1,
		"limit":   1,
		"timeout": 0,
	})
	return err
}

func (a *Adapter) raw(ctx context.Context, method string, params map[string]any) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	type result struct {
		b   []byte
		err error
	}
	ch := make(chan result, 1)
	go func() {
		b, err := a.bot.Raw(method, params)
		ch <- result{b, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("telegram %s: %w", method, a.scrub(r.err))
		}
		return r.b, nil
	}
}

func convertUpdate(u tele.Update) kit.Update {
	up := kit.Update{ID: int64(u.ID)}
	m := u.Message
	if m == nil {
		return up
	}
	if m.Chat != nil {
		up.ChatID = kit.ChatID(m.Chat.ID)
	}
	if m.Sender != nil {
		up.FromID = m.Sender.ID
		up.FromUsername = m.Sender.Username
	}
	up.Text = m.Text
	if m.Unixtime > 0 {
		up.At = time.Unix(m.Unixtime, 0)
	}
	return up
}

// MenuCommand is one entry of the client-side command menu.
type MenuCommand struct {
	Command     string
	Description string
}

// UpdateMenuCommands publishes the command menu (setMyCommands).
// Best-effort: it only performs a network call when the list changes.
func (a *Adapter) UpdateMenuCommands(ctx context.Context, cmds []MenuCommand) error {
	a.menuMu.Lock()
	defer a.menuMu.Unlock()

	h := fnv.New64a()
	for _, c := range cmds {
		h.Write([]byte(c.Command))
		h.Write([]byte{0})
		h.Write([]byte(c.Description))
		h.Write([]byte{0})
	}
	sum := h.Sum64()
	if sum == a.menuHash {
		return nil
	}

	list := make([]tele.Command, 0, len(cmds))
	for _, c := range cmds {
		if c.Command == "" {
			continue
		}
		d := c.Description
		if d == "" {
			d = c.Command
		}
		if len(d) > 256 {
			d = d[:256]
		}
		list = append(list, tele.Command{Text: c.Command, Description: d})
		if len(list) >= 100 {
			break
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.bot.SetCommands(list); err != nil {
		return fmt.Errorf("telegram setMyCommands: %w", a.scrub(err))
	}

	a.menuHash = sum
	a.log.Info("menu commands updated", logx.Int("count", len(list)))
	return nil
}

// splitTelegramText splits long messages into chunks within limit runes,
// preferring newline boundaries.
func splitTelegramText(s string, limit int) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := min(start+limit, len(rs))

		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				// Avoid extremely small chunks.
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}

		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
