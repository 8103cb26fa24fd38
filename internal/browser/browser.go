// Package browser provides a chromedp-backed calendar page.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	logx "slotwatch/pkg/logx"
)

type Config struct {
	// RemoteURL is a devtools websocket URL of an already running browser.
	RemoteURL string
	ExecPath  string
	Headless  bool
	UserAgent string

	DismissBanners bool
}

// Page is one browser tab. It is not safe for concurrent navigation; the
// scanner drives it sequentially.
type Page struct {
	log logx.Logger
	cfg Config

	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	mu  sync.Mutex
	url string
}

// Open starts (or attaches to) a browser and opens a blank tab.
func Open(ctx context.Context, cfg Config, log logx.Logger) (*Page, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if remote := strings.TrimSpace(cfg.RemoteURL); remote != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), remote)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", cfg.Headless),
			chromedp.Flag("disable-gpu", cfg.Headless),
		)
		if path := strings.TrimSpace(cfg.ExecPath); path != "" {
			opts = append(opts, chromedp.ExecPath(path))
		}
		if ua := strings.TrimSpace(cfg.UserAgent); ua != "" {
			opts = append(opts, chromedp.UserAgent(ua))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	p := &Page{
		log:         log.With(logx.String("comp", "browser")),
		cfg:         cfg,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
	}

	// The first Run must use the tab context itself; the browser lives as
	// long as the context it was allocated with.
	if err := chromedp.Run(tabCtx); err != nil {
		p.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	if err := p.run(ctx, 30*time.Second, chromedp.Navigate("about:blank")); err != nil {
		p.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return p, nil
}

// run executes actions on the tab, bounded by both ctx and max.
func (p *Page) run(ctx context.Context, max time.Duration, actions ...chromedp.Action) error {
	rctx, cancel := context.WithTimeout(p.tabCtx, max)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(rctx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func remaining(ctx context.Context, def time.Duration) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
		return time.Millisecond
	}
	return def
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	var loc string
	if err := p.run(ctx, remaining(ctx, 30*time.Second),
		chromedp.Navigate(url),
		chromedp.Location(&loc),
	); err != nil {
		return err
	}
	if loc == "" {
		loc = url
	}
	p.mu.Lock()
	p.url = loc
	p.mu.Unlock()

	if p.cfg.DismissBanners {
		p.dismissBanners(ctx)
	}
	return nil
}

// HTML returns the current rendered document.
func (p *Page) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, remaining(ctx, 10*time.Second), chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

const dismissBannersJS = `(() => {
  const re = /^\s*(accept( all)?( cookies)?|i agree|agree|allow all|got it|ok)\s*$/i;
  let n = 0;
  for (const el of document.querySelectorAll('button, [role="button"], a')) {
    if (re.test(el.innerText || el.value || '')) { el.click(); n++; if (n >= 3) break; }
  }
  return n;
})()`

// dismissBanners clicks common cookie consent buttons. Failures are ignored.
func (p *Page) dismissBanners(ctx context.Context) {
	var clicked int
	if err := p.run(ctx, 3*time.Second, chromedp.Evaluate(dismissBannersJS, &clicked)); err != nil {
		p.log.Debug("banner dismissal failed", logx.Err(err))
		return
	}
	if clicked > 0 {
		p.log.Debug("dismissed consent banner", logx.Int("clicked", clicked))
	}
}

func (p *Page) Close() {
	if p.tabCancel != nil {
		p.tabCancel()
	}
	if p.allocCancel != nil {
		p.allocCancel()
	}
}
