// Package scanner drives a rendered calendar page across a date range and
// extracts bookable slots.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"slotwatch/internal/domain"
	logx "slotwatch/pkg/logx"
)

var ErrNotReady = errors.New("calendar view not ready")

// Page is the browser surface the scanner needs.
type Page interface {
	Navigate(ctx context.Context, url string) error
	HTML(ctx context.Context) (string, error)
	URL() string
}

type Options struct {
	Activity string
	// MatchActivity drops controls whose card does not mention Activity.
	MatchActivity bool
	// CalendarURL contains "{date}", replaced with the ISO date.
	CalendarURL string
	Filter      domain.Filter

	ReadyTimeout      time.Duration
	PollInterval      time.Duration
	NavigationTimeout time.Duration
	AncestorDepth     int
	RetryOnEmpty      bool
}

type Result struct {
	Slots   []domain.Slot
	Scanned []domain.Date
	Skipped []domain.Date
	// Retried counts dates reloaded after an empty first parse.
	Retried   int
	Discarded int
	Filtered  int
}

type Scanner struct {
	page Page
	opts Options
	log  logx.Logger
}

func New(page Page, opts Options, log logx.Logger) *Scanner {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 12 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	if opts.AncestorDepth <= 0 {
		opts.AncestorDepth = 6
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scanner{page: page, opts: opts, log: log.With(logx.String("comp", "scanner"))}
}

// DateURL returns the calendar view URL for d.
func (s *Scanner) DateURL(d domain.Date) string {
	return strings.ReplaceAll(s.opts.CalendarURL, "{date}", d.String())
}

// Scan visits from..from+days inclusive. A date that fails to load or render
// is skipped; only a cancelled ctx ends the scan early.
func (s *Scanner) Scan(ctx context.Context, from domain.Date, days int) (Result, error) {
	var res Result
	for i := 0; i <= days; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		d := from.AddDays(i)
		ex, retried, err := s.scanDate(ctx, d)
		if retried {
			res.Retried++
		}
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			s.log.Warn("date skipped", logx.String("date", d.String()), logx.Err(err))
			res.Skipped = append(res.Skipped, d)
			continue
		}
		res.Scanned = append(res.Scanned, d)
		res.Discarded += ex.Discarded
		res.Filtered += ex.Filtered
		res.Slots = append(res.Slots, ex.Slots...)
		s.log.Debug("date scanned",
			logx.String("date", d.String()),
			logx.Int("slots", len(ex.Slots)),
			logx.Int("controls", ex.Controls),
			logx.Int("excluded", ex.Excluded),
			logx.Int("other_activity", ex.OtherActivity),
			logx.Int("discarded", ex.Discarded),
			logx.Int("filtered", ex.Filtered),
			logx.Bool("unavailable", ex.Unavailable),
		)
	}
	res.Slots = domain.DedupSlots(res.Slots)
	domain.SortSlots(res.Slots)
	return res, nil
}

func (s *Scanner) scanDate(ctx context.Context, d domain.Date) (Extraction, bool, error) {
	ex, err := s.load(ctx, d)
	if err != nil {
		return ex, false, err
	}
	if ex.Found > 0 || ex.Unavailable || !s.opts.RetryOnEmpty {
		return ex, false, nil
	}

	s.log.Debug("empty parse; reloading once", logx.String("date", d.String()))
	again, err := s.load(ctx, d)
	if err != nil {
		// The first attempt rendered fine; keep its (empty) answer.
		return ex, true, nil
	}
	return again, true, nil
}

func (s *Scanner) load(ctx context.Context, d domain.Date) (Extraction, error) {
	u := s.DateURL(d)
	nctx, cancel := context.WithTimeout(ctx, s.opts.NavigationTimeout)
	err := s.page.Navigate(nctx, u)
	cancel()
	if err != nil {
		return Extraction{}, fmt.Errorf("navigate: %w", err)
	}

	doc, err := s.waitReady(ctx)
	if err != nil {
		return Extraction{}, err
	}
	link := s.page.URL()
	if link == "" {
		link = u
	}
	return extractDoc(doc, link, d, ExtractOptions{
		Activity:      s.opts.Activity,
		MatchActivity: s.opts.MatchActivity,
		Filter:        s.opts.Filter,
		AncestorDepth: s.opts.AncestorDepth,
	}), nil
}

// waitReady polls the rendered HTML until a booking control, an unavailable
// marker or a time range shows up, bounded by ReadyTimeout.
func (s *Scanner) waitReady(ctx context.Context) (*goquery.Document, error) {
	rctx, cancel := context.WithTimeout(ctx, s.opts.ReadyTimeout)
	defer cancel()

	t := time.NewTicker(s.opts.PollInterval)
	defer t.Stop()
	for {
		html, err := s.page.HTML(rctx)
		if err == nil {
			doc, perr := goquery.NewDocumentFromReader(strings.NewReader(html))
			if perr == nil && checkReady(doc).ready() {
				return doc, nil
			}
		}
		select {
		case <-rctx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w after %s", ErrNotReady, s.opts.ReadyTimeout)
		case <-t.C:
		}
	}
}
