// Package browser drives the curriculum tree UI through a headless Chrome instance.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"coursetable/internal/components/assert"
	"coursetable/internal/components/telemetry"
	"coursetable/internal/scrapers/tree"

	"github.com/chromedp/chromedp"
)

const (
	report_session_start    = "session.start"
	report_session_language = "session.language"
	report_session_filter   = "session.node-filter"
	report_session_rows     = "session.rows"
)

type Selectors struct {
	LanguageMenu          string `json:"language_menu"`
	EnglishButton         string `json:"english_button"`
	NodeFilterButton      string `json:"node_filter_button"`
	NodeFilterAllExpanded string `json:"node_filter_all_expanded"`
	// Loading lists elements that are visible while the UI is busy.
	Loading    []string `json:"loading"`
	PageSelect string   `json:"page_select"`
	Table      string   `json:"table"`
	// Toggles are only clicked while their style still shows CollapsedMarker.
	RuleToggle      string `json:"rule_toggle"`
	ModuleToggle    string `json:"module_toggle"`
	OfferToggle     string `json:"offer_toggle"`
	CollapsedMarker string `json:"collapsed_marker"`
	EmptyOfferTable string `json:"empty_offer_table"`
	PreviousYear    string `json:"previous_year"`
	// OffsetAnchor is the element of a row (relative to the row) whose horizontal position
	// is written into the row's offset attribute.
	OffsetAnchor string         `json:"offset_anchor"`
	Tree         tree.Selectors `json:"tree"`
}

func DefaultSelectors() Selectors {
	return Selectors{
		LanguageMenu:          "coa-desktop-language-menu",
		EnglishButton:         "button[title='Sprache Englisch']",
		NodeFilterButton:      "button#ca-id-stpvw-elementart-knoten",
		NodeFilterAllExpanded: "a#ca-id-cs-nav-alle-expanded",
		Loading:               []string{".pageLoading", "#id-loader"},
		PageSelect:            ".coTableNaviPageSelect",
		Table:                 "table#tgt",
		RuleToggle:            "tr.coRow:has(img[src*='regelknoten']) a.KnotenLink",
		ModuleToggle:          "tr.coRow:has(img[src*='modulknoten']) a.KnotenLink",
		OfferToggle:           "tr.coRow:has(img[src*='angebot']) a.KnotenLink",
		CollapsedMarker:       "tee_plus",
		EmptyOfferTable:       "tr.coRow td.noEntries",
		PreviousYear:          "tr.coRow:has(td.noEntries) a.coPrevYear",
		OffsetAnchor:          "td:nth-child(1) img",
		Tree:                  tree.DefaultSelectors(),
	}
}

type Config struct {
	Headless           bool      `json:"headless"`
	LoadTimeoutSeconds int       `json:"load_timeout_seconds"`
	PollMillis         int       `json:"poll_millis"`
	Selectors          Selectors `json:"selectors"`
}

func DefaultConfig() Config {
	return Config{
		Headless:           true,
		LoadTimeoutSeconds: 300,
		PollMillis:         250,
		Selectors:          DefaultSelectors(),
	}
}

// Session is a tree.Session backed by a single Chrome tab.
type Session struct {
	tabCtx      context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc

	config Config
	tel    telemetry.API
}

var _ tree.Session = (*Session)(nil)

// NewSessionFactory returns a factory that starts a separate browser for every session.
func NewSessionFactory(config Config, tel telemetry.API) tree.SessionFactory {
	return func(ctx context.Context) (tree.Session, error) {
		return NewSession(ctx, config, tel)
	}
}

func NewSession(ctx context.Context, config Config, tel telemetry.API) (*Session, error) {
	assert.NotNil(tel)
	assert.Positive("load timeout", config.LoadTimeoutSeconds)
	assert.Positive("poll interval", config.PollMillis)

	tel = telemetry.NewScopedAPI("browser", tel)

	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", config.Headless),
		chromedp.Flag("lang", "en-US"),
		chromedp.WindowSize(1600, 1200),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancelTab := chromedp.NewContext(
		allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			tel.ReportDebug(fmt.Sprintf(format, args...))
		}),
	)

	err := chromedp.Run(tabCtx)
	if err != nil {
		cancelTab()
		cancelAlloc()
		tel.ReportBroken(report_session_start, err)
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &Session{
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		config:      config,
		tel:         tel,
	}, nil
}

// run executes actions on the tab, aborting them when ctx is done.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *Session) clickWithin(ctx context.Context, timeout time.Duration, sel string) error {
	clickCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.run(clickCtx, chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible))
}

// Open loads the tree, switches the UI to English and shows every node expanded.
func (s *Session) Open(ctx context.Context, url string) error {
	sel := s.config.Selectors

	err := s.run(ctx, chromedp.Navigate(url))
	if err != nil {
		return err
	}
	err = s.WaitUntilLoaded(ctx)
	if err != nil {
		return err
	}

	err = s.clickWithin(ctx, 10*time.Second, sel.LanguageMenu)
	if err == nil {
		err = s.clickWithin(ctx, 10*time.Second, sel.EnglishButton)
	}
	if err != nil {
		s.tel.ReportBroken(report_session_language, err, url)
		return fmt.Errorf("switch language: %w", err)
	}
	err = s.WaitUntilLoaded(ctx)
	if err != nil {
		return err
	}

	err = s.clickWithin(ctx, 10*time.Second, sel.NodeFilterButton)
	if err == nil {
		err = s.clickWithin(ctx, 10*time.Second, sel.NodeFilterAllExpanded)
	}
	if err != nil {
		s.tel.ReportBroken(report_session_filter, err, url)
		return fmt.Errorf("switch node filter: %w", err)
	}
	return nil
}

func (s *Session) PageCount(ctx context.Context) (int, error) {
	var text string
	err := s.run(ctx, chromedp.Evaluate(textScript(s.config.Selectors.PageSelect), &text))
	if err != nil {
		return 0, err
	}
	return parsePageCount(text)
}

func (s *Session) GoToPage(ctx context.Context, page int) error {
	var ok bool
	err := s.run(ctx, chromedp.Evaluate(selectPageScript(s.config.Selectors.PageSelect, page), &ok))
	if err != nil {
		return err
	}
	if !ok && page != 0 {
		return fmt.Errorf("page %d is not selectable", page)
	}
	return nil
}

func (s *Session) expand(ctx context.Context, sel string) (int, error) {
	var clicked int
	err := s.run(ctx, chromedp.Evaluate(
		clickCollapsedScript(sel, s.config.Selectors.CollapsedMarker),
		&clicked,
	))
	return clicked, err
}

func (s *Session) ExpandRuleNodes(ctx context.Context) (int, error) {
	return s.expand(ctx, s.config.Selectors.RuleToggle)
}

func (s *Session) ExpandModuleNodes(ctx context.Context) (int, error) {
	return s.expand(ctx, s.config.Selectors.ModuleToggle)
}

func (s *Session) ExpandOfferNodes(ctx context.Context) (int, error) {
	return s.expand(ctx, s.config.Selectors.OfferToggle)
}

func (s *Session) EmptyOfferTables(ctx context.Context) (int, error) {
	var count int
	err := s.run(ctx, chromedp.Evaluate(countScript(s.config.Selectors.EmptyOfferTable), &count))
	return count, err
}

func (s *Session) ShowPreviousYear(ctx context.Context) error {
	var clicked int
	return s.run(ctx, chromedp.Evaluate(clickAllScript(s.config.Selectors.PreviousYear), &clicked))
}

// WaitUntilLoaded polls until none of the loading indicators is visible. It fails with
// tree.ErrTreeCrawlTimeout once the configured timeout elapsed.
func (s *Session) WaitUntilLoaded(ctx context.Context) error {
	timeout := time.Duration(s.config.LoadTimeoutSeconds) * time.Second
	poll := time.Duration(s.config.PollMillis) * time.Millisecond
	script := visibleScript(s.config.Selectors.Loading)

	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		var busy bool
		err := s.run(pollCtx, chromedp.Evaluate(script, &busy))
		if err != nil {
			return loadError(ctx, err, timeout)
		}
		if !busy {
			return nil
		}

		select {
		case <-pollCtx.Done():
			return loadError(ctx, pollCtx.Err(), timeout)
		case <-time.After(poll):
		}
	}
}

// loadError turns the expiry of the load deadline into tree.ErrTreeCrawlTimeout. Errors caused
// by parent itself being done are returned as they are.
func loadError(parent context.Context, err error, timeout time.Duration) error {
	if parent.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w (after %s)", tree.ErrTreeCrawlTimeout, timeout)
	}
	return err
}

// Rows writes every row's label offset into the DOM and hands the table to tree.ParseRows.
func (s *Session) Rows(ctx context.Context) ([]tree.Row, error) {
	sel := s.config.Selectors

	var annotated int
	var html string
	err := s.run(
		ctx,
		chromedp.Evaluate(annotateOffsetsScript(sel.Tree.Row, sel.OffsetAnchor, sel.Tree.OffsetAttr), &annotated),
		chromedp.Evaluate(outerHTMLScript(sel.Table), &html),
	)
	if err != nil {
		return nil, err
	}
	s.tel.ReportDebug("annotated rows", annotated)

	rows, err := tree.ParseRows(strings.NewReader(html), sel.Tree)
	if err != nil {
		s.tel.ReportBroken(report_session_rows, err)
		return nil, err
	}
	return rows, nil
}

func (s *Session) Close() error {
	s.cancelTab()
	s.cancelAlloc()
	return nil
}

var pageCountRegex = regexp.MustCompile(`of\s+(\d+)\s*$`)

// parsePageCount reads the total from the pager text ("Page 1 of 12"), a missing pager means
// the tree fits on one page.
func parsePageCount(text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 1, nil
	}
	match := pageCountRegex.FindStringSubmatch(text)
	if match == nil {
		return 0, fmt.Errorf("unrecognized page selector text %q", text)
	}
	count, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, err
	}
	if count < 1 {
		return 0, fmt.Errorf("invalid page count %d", count)
	}
	return count, nil
}

func jsString(s string) string {
	out, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	return string(out)
}

func textScript(sel string) string {
	return fmt.Sprintf(
		`(() => { const e = document.querySelector(%s); return e ? e.innerText : ""; })()`,
		jsString(sel),
	)
}

func outerHTMLScript(sel string) string {
	return fmt.Sprintf(
		`(() => { const e = document.querySelector(%s); return e ? e.outerHTML : ""; })()`,
		jsString(sel),
	)
}

func countScript(sel string) string {
	return fmt.Sprintf(`document.querySelectorAll(%s).length`, jsString(sel))
}

func clickAllScript(sel string) string {
	return fmt.Sprintf(
		`(() => { const all = document.querySelectorAll(%s); for (const e of all) { e.click(); } return all.length; })()`,
		jsString(sel),
	)
}

func clickCollapsedScript(sel, marker string) string {
	return fmt.Sprintf(
		`(() => {
	let n = 0;
	for (const e of document.querySelectorAll(%s)) {
		const style = getComputedStyle(e).backgroundImage + (e.getAttribute("style") || "");
		if (!style.includes(%s)) { continue; }
		e.click();
		n++;
	}
	return n;
})()`,
		jsString(sel),
		jsString(marker),
	)
}

func visibleScript(sels []string) string {
	quoted := make([]string, len(sels))
	for i, sel := range sels {
		quoted[i] = jsString(sel)
	}
	return fmt.Sprintf(
		`[%s].some((sel) => Array.from(document.querySelectorAll(sel)).some((e) => e.offsetParent !== null))`,
		strings.Join(quoted, ", "),
	)
}

func selectPageScript(sel string, page int) string {
	return fmt.Sprintf(
		`(() => {
	const s = document.querySelector(%s + " select");
	if (!s || s.options.length <= %d) { return false; }
	if (s.selectedIndex === %d) { return true; }
	s.selectedIndex = %d;
	s.dispatchEvent(new Event("change", { bubbles: true }));
	return true;
})()`,
		jsString(sel), page, page, page,
	)
}

func annotateOffsetsScript(rowSel, anchorSel, attr string) string {
	return fmt.Sprintf(
		`(() => {
	let n = 0;
	for (const row of document.querySelectorAll(%s)) {
		const anchor = row.querySelector(%s);
		if (!anchor) { continue; }
		row.setAttribute(%s, String(anchor.getBoundingClientRect().left));
		n++;
	}
	return n;
})()`,
		jsString(rowSel),
		jsString(anchorSel),
		jsString(attr),
	)
}
