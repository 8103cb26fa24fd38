package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"slotwatch/internal/domain"
	logx "slotwatch/pkg/logx"
)

const testToken = "123456:TEST-TOKEN-abcdef"

type call struct {
	method string
	body   map[string]any
}

type fakeAPI struct {
	mu      sync.Mutex
	calls   []call
	updates string
	failing bool
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix := "/bot" + testToken + "/"
		if !strings.HasPrefix(r.URL.Path, prefix) {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		method := strings.TrimPrefix(r.URL.Path, prefix)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		f.calls = append(f.calls, call{method: method, body: body})
		failing := f.failing
		updates := f.updates
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if failing {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
			return
		}
		switch method {
		case "sendMessage":
			fmt.Fprintf(w, `{"ok":true,"result":{"message_id":1,"date":1700000000,"chat":{"id":%v,"type":"private"},"text":"x"}}`, body["chat_id"])
		case "getUpdates":
			if updates == "" {
				updates = "[]"
			}
			fmt.Fprintf(w, `{"ok":true,"result":%s}`, updates)
		default:
			fmt.Fprint(w, `{"ok":true,"result":true}`)
		}
	})
}

func (f *fakeAPI) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func newTestAdapter(t *testing.T, api *fakeAPI) *Adapter {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)
	a, err := New(Config{Token: testToken, APIURL: srv.URL, RatePerSec: 1000, UpdatesLimit: 50}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{}, logx.Nop()); err == nil {
		t.Fatal("empty token accepted")
	}
}

func TestSendMessage(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{}
	a := newTestAdapter(t, api)
	if err := a.SendMessage(context.Background(), 42, "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	calls := api.snapshot()
	if len(calls) != 1 || calls[0].method != "sendMessage" {
		t.Fatalf("calls = %+v", calls)
	}
	if fmt.Sprint(calls[0].body["chat_id"]) != "42" || calls[0].body["text"] != "hello" {
		t.Fatalf("body = %v", calls[0].body)
	}
}

func TestSendMessageErrorHidesToken(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{failing: true}
	a := newTestAdapter(t, api)
	err := a.SendMessage(context.Background(), 42, "hello")
	if err == nil {
		t.Fatal("failed send returned nil")
	}
	if strings.Contains(err.Error(), testToken) {
		t.Fatalf("token leaked: %v", err)
	}
}

func TestGetUpdatesUnsetCursorAsksForHead(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{updates: `[{"update_id":900,"message":{"message_id":5,"date":1700000000,"chat":{"id":7,"type":"private"},"from":{"id":7,"is_bot":false,"first_name":"A","username":"ann"},"text":"/list"}}]`}
	a := newTestAdapter(t, api)
	ups, err := a.GetUpdates(context.Background(), domain.UnsetCursor())
	if err != nil {
		t.Fatalf("GetUpdates: %v", err)
	}
	if len(ups) != 1 || ups[0].ID != 900 || ups[0].ChatID != 7 || ups[0].Text != "/list" || ups[0].FromUsername != "ann" {
		t.Fatalf("updates = %+v", ups)
	}
	body := api.snapshot()[0].body
	if body["offset"] != float64(-1) || body["limit"] != float64(1) {
		t.Fatalf("params = %v", body)
	}
}

func TestGetUpdatesAfterCursor(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{updates: `[{"update_id":11},{"update_id":12,"message":{"message_id":6,"date":1700000001,"chat":{"id":-100,"type":"group"},"text":"want 2025-06-01"}}]`}
	a := newTestAdapter(t, api)
	ups, err := a.GetUpdates(context.Background(), domain.CursorAt(10))
	if err != nil {
		t.Fatalf("GetUpdates: %v", err)
	}
	if len(ups) != 2 || ups[0].ID != 11 || ups[0].Text != "" || ups[1].ChatID != -100 {
		t.Fatalf("updates = %+v", ups)
	}
	body := api.snapshot()[0].body
	if body["offset"] != float64(11) || body["limit"] != float64(50) {
		t.Fatalf("params = %v", body)
	}
}

func TestAckUpdates(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{}
	a := newTestAdapter(t, api)
	if err := a.AckUpdates(context.Background(), 41); err != nil {
		t.Fatalf("AckUpdates: %v", err)
	}
	c := api.snapshot()[0]
	if c.method != "getUpdates" || c.body["offset"] != float64(42) {
		t.Fatalf("call = %+v", c)
	}
}

func TestUpdateMenuCommandsOnlyOnChange(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{}
	a := newTestAdapter(t, api)
	cmds := []MenuCommand{{Command: "want", Description: "watch dates"}, {Command: "list"}}
	for i := 0; i < 2; i++ {
		if err := a.UpdateMenuCommands(context.Background(), cmds); err != nil {
			t.Fatalf("UpdateMenuCommands: %v", err)
		}
	}
	if n := len(api.snapshot()); n != 1 {
		t.Fatalf("setMyCommands called %d times, want 1", n)
	}
}

func TestSplitTelegramText(t *testing.T) {
	t.Parallel()
	line := strings.Repeat("å", 30) + "\n"
	text := strings.Repeat(line, 10)
	chunks := splitTelegramText(text, 100)
	if len(chunks) < 3 {
		t.Fatalf("chunks = %d", len(chunks))
	}
	var total int
	for _, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 100 {
			t.Fatalf("chunk of %d runes", n)
		}
		total += strings.Count(c, "å")
	}
	if total != 300 {
		t.Fatalf("lost content: %d", total)
	}
	if got := splitTelegramText("short", 100); len(got) != 1 || got[0] != "short" {
		t.Fatalf("short = %v", got)
	}
}
