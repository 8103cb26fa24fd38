package scanner

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"slotwatch/internal/domain"
)

const controlSelector = `a, button, [role="button"], input[type="submit"], input[type="button"]`

var (
	reBook        = regexp.MustCompile(`(?i)\bbook\b`)
	reUnavailable = regexp.MustCompile(`(?i)\b(fully booked|booked|unavailable|not available|sold out|no availability|no spaces)\b`)
	reSpace       = regexp.MustCompile(`\s+`)

	// Clock times are H:MM or HH:MM with hour 0-23. A digit or ':' on either
	// side rejects the candidate, so "118:00" or "18:00:00" never yield 18:00
	// while "Padel18:00" still does.
	reTimeRange = regexp.MustCompile(`(?:^|[^\d:])([01]?\d|2[0-3]):([0-5]\d)\s*(?:-|–|—|to)\s*(?:[01]?\d|2[0-3]):[0-5]\d(?:[^\d:]|$)`)
	reStartTime = regexp.MustCompile(`(?:^|[^\d:])([01]?\d|2[0-3]):([0-5]\d)(?:[^\d:]|$)`)
)

// ExtractOptions tune Extract.
type ExtractOptions struct {
	Activity string
	// MatchActivity keeps only controls whose container mentions Activity.
	// Needed on pages that list every activity of a venue.
	MatchActivity bool
	Filter        domain.Filter
	AncestorDepth int
}

// Extraction is the outcome of parsing one rendered date view.
type Extraction struct {
	Slots []domain.Slot

	// Controls counts booking controls seen, bookable or not.
	Controls int
	// Found counts controls that resolved to a valid time, before filtering.
	Found int
	// Excluded counts disabled, hidden or unavailable controls.
	Excluded int
	// OtherActivity counts controls whose container names no Activity.
	OtherActivity int
	// Discarded counts controls whose scoped time text was malformed or missing.
	Discarded int
	// Filtered counts valid slots rejected by the hour/weekday filter.
	Filtered int
	// Unavailable is set when the page explicitly says nothing can be booked.
	Unavailable bool
}

type readiness struct {
	controls    bool
	unavailable bool
	timeRange   bool
}

func (r readiness) ready() bool { return r.controls || r.unavailable || r.timeRange }

func checkReady(doc *goquery.Document) readiness {
	text := pageText(doc)
	return readiness{
		controls:    bookingControls(doc.Selection).Length() > 0,
		unavailable: reUnavailable.MatchString(text),
		timeRange:   reTimeRange.MatchString(text),
	}
}

// Extract parses a rendered calendar view for date and returns the bookable
// slots on it. Each control's time is read from the control itself or its
// nearest enclosing containers, never from page-wide text.
func Extract(html, pageURL string, date domain.Date, opts ExtractOptions) Extraction {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Extraction{}
	}
	return extractDoc(doc, pageURL, date, opts)
}

func extractDoc(doc *goquery.Document, pageURL string, date domain.Date, opts ExtractOptions) Extraction {
	var ex Extraction
	base, _ := url.Parse(pageURL)
	activity := activityPattern(opts)

	controls := bookingControls(doc.Selection)
	ex.Controls = controls.Length()

	controls.Each(func(_ int, c *goquery.Selection) {
		if inactive(c) {
			ex.Excluded++
			return
		}

		sc := scopeOf(c, opts.AncestorDepth)
		if reUnavailable.MatchString(sc.card) {
			ex.Excluded++
			return
		}
		if activity != nil && !activity.MatchString(sc.wide) {
			ex.OtherActivity++
			return
		}
		if sc.start == "" {
			ex.Discarded++
			return
		}

		slot, valid := domain.NewSlot(date, sc.start, opts.Activity, resolveLink(base, c, pageURL))
		if !valid {
			ex.Discarded++
			return
		}
		ex.Found++
		if !opts.Filter.Allow(slot.Weekday, slot.Start) {
			ex.Filtered++
			return
		}
		ex.Slots = append(ex.Slots, slot)
	})

	ex.Slots = domain.DedupSlots(ex.Slots)
	domain.SortSlots(ex.Slots)
	if ex.Found == 0 && reUnavailable.MatchString(pageText(doc)) {
		ex.Unavailable = true
	}
	return ex
}

func activityPattern(opts ExtractOptions) *regexp.Regexp {
	name := strings.TrimSpace(opts.Activity)
	if !opts.MatchActivity || name == "" {
		return nil
	}
	return regexp.MustCompile(`(?i)(?:^|[^\pL\pN])` + regexp.QuoteMeta(name) + `(?:[^\pL\pN]|$)`)
}

func bookingControls(root *goquery.Selection) *goquery.Selection {
	return root.Find(controlSelector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return reBook.MatchString(controlLabel(s))
	})
}

func controlLabel(s *goquery.Selection) string {
	parts := []string{innerText(s)}
	for _, attr := range []string{"value", "aria-label", "title"} {
		if v, ok := s.Attr(attr); ok {
			parts = append(parts, v)
		}
	}
	return normalize(strings.Join(parts, " "))
}

func inactive(s *goquery.Selection) bool {
	if _, ok := s.Attr("disabled"); ok {
		return true
	}
	if _, ok := s.Attr("hidden"); ok {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(s.AttrOr("aria-disabled", "")), "true") {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(s.AttrOr("aria-hidden", "")), "true") {
		return true
	}
	if s.HasClass("disabled") {
		return true
	}
	style := strings.ToLower(strings.ReplaceAll(s.AttrOr("style", ""), " ", ""))
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

// controlScope is what a booking control's surroundings say about it.
type controlScope struct {
	// start is the first valid clock time found walking outwards, or "".
	start string
	// card is the text of the container holding start, at least the
	// control's parent. Unavailable markers are read here.
	card string
	// wide is the text of the outermost container holding no other
	// booking control.
	wide string
}

// scopeOf walks the control and then its ancestors, nearest first, up to
// depth levels. A time range beats a lone time within the same level. The
// walk stops before any ancestor that holds another booking control, so
// neighbouring slots never lend their time or markers.
func scopeOf(c *goquery.Selection, depth int) controlScope {
	var sc controlScope
	cardLevel := -1
	cur := c
	for level := 0; level <= depth && cur.Length() > 0; level++ {
		if level > 0 && bookingControls(cur).Length() > 1 {
			break
		}
		text := controlLabel(cur)
		if level > 0 {
			text = innerText(cur)
		}
		sc.wide = text
		if sc.start == "" {
			if clock, ok := firstTime(text); ok {
				sc.start = clock
				cardLevel = max(level, 1)
			}
		}
		if level == cardLevel {
			sc.card = text
		}
		cur = cur.Parent()
	}
	if sc.card == "" {
		sc.card = sc.wide
	}
	return sc
}

// firstTime returns the start of the first time range in text, else its
// first lone clock time.
func firstTime(text string) (string, bool) {
	for _, re := range []*regexp.Regexp{reTimeRange, reStartTime} {
		if m := re.FindStringSubmatch(text); m != nil {
			if clock, err := domain.ParseClock(m[1] + ":" + m[2]); err == nil {
				return clock, true
			}
		}
	}
	return "", false
}

func resolveLink(base *url.URL, c *goquery.Selection, fallback string) string {
	href := strings.TrimSpace(c.AttrOr("href", ""))
	if href == "" || href == "#" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return fallback
	}
	ref, err := url.Parse(href)
	if err != nil {
		return fallback
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func pageText(doc *goquery.Document) string {
	body := doc.Find("body")
	if body.Length() == 0 {
		return innerText(doc.Selection)
	}
	return innerText(body)
}

// innerText joins the text nodes under s with a space at every element
// boundary, so "<h3>Padel</h3><span>18:00</span>" reads "Padel 18:00".
// Script and style bodies are skipped.
func innerText(s *goquery.Selection) string {
	var b strings.Builder
	writeText(&b, s.Contents())
	return normalize(b.String())
}

func writeText(b *strings.Builder, nodes *goquery.Selection) {
	nodes.Each(func(_ int, n *goquery.Selection) {
		switch goquery.NodeName(n) {
		case "#text":
			b.WriteString(n.Text())
		case "#comment", "script", "style", "template", "noscript":
		default:
			b.WriteByte(' ')
			writeText(b, n.Contents())
			b.WriteByte(' ')
		}
	})
}

func normalize(s string) string { return strings.TrimSpace(reSpace.ReplaceAllString(s, " ")) }
