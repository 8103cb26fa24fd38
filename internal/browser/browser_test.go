package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"
	"time"

	logx "slotwatch/pkg/logx"
)

func TestRemaining(t *testing.T) {
	t.Parallel()
	if got := remaining(context.Background(), 7*time.Second); got != 7*time.Second {
		t.Fatalf("no deadline = %v", got)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	if got := remaining(ctx, time.Second); got < 59*time.Minute {
		t.Fatalf("deadline = %v", got)
	}
}

func findChrome() string {
	for _, name := range []string{"chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}

func TestPageRendersScript(t *testing.T) {
	if testing.Short() {
		t.Skip("browser test skipped in short mode")
	}
	chrome := findChrome()
	if chrome == "" {
		t.Skip("no chrome binary on PATH")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><div id="cal"></div>
<button id="consent">Accept all</button>
<script>
document.getElementById('consent').onclick = function () { this.remove(); };
setTimeout(function () {
  document.getElementById('cal').innerHTML = '<div>18:00 - 19:00 <a href="/b/1">Book</a></div>';
}, 50);
</script></body></html>`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	p, err := Open(ctx, Config{ExecPath: chrome, Headless: true, DismissBanners: true}, logx.Nop())
	if err != nil {
		t.Skipf("browser unavailable: %v", err)
	}
	defer p.Close()

	if err := p.Navigate(ctx, srv.URL+"/day?date=2025-06-01"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if !strings.HasPrefix(p.URL(), srv.URL) {
		t.Fatalf("URL = %q", p.URL())
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		html, err := p.HTML(ctx)
		if err != nil {
			t.Fatalf("HTML: %v", err)
		}
		if strings.Contains(html, "/b/1") {
			if strings.Contains(html, `id="consent"`) {
				t.Fatal("consent banner not dismissed")
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("script content never rendered: %s", html)
		}
		time.Sleep(50 * time.Millisecond)
	}
}
