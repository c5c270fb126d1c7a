package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/user/lead-scraper/internal/entity"
	"github.com/user/lead-scraper/internal/repository"
	"github.com/user/lead-scraper/internal/slackdom"
)

var errFake = errors.New("fake failure")

// fakeNode is the Element handed out by fakePage.
type fakeNode struct {
	html string
}

type fakePage struct {
	mu sync.Mutex

	navErr   error
	visible  map[string]bool
	waitErr  map[string]error
	clickErr map[string]error
	texts    map[string]string
	nodes    map[string][]*fakeNode

	// hideAfter hides a visible selector after that many clicks.
	hideAfter map[string]int

	// urls is consumed one value per URL call; the last value repeats.
	urls []string

	// typeErr fails Type, as a query input that never matches would.
	typeErr error
	// inputTimeouts holds the timeout of every Type and PressEnter call.
	inputTimeouts []time.Duration

	calls       []string
	expandCalls int
	closed      bool
	onClick     func(el repository.Element)
}

func newFakePage() *fakePage {
	return &fakePage{
		visible:   map[string]bool{},
		waitErr:   map[string]error{},
		clickErr:  map[string]error{},
		texts:     map[string]string{},
		nodes:     map[string][]*fakeNode{},
		hideAfter: map[string]int{},
	}
}

func (p *fakePage) record(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
}

func (p *fakePage) called(call string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (p *fakePage) Navigate(_ context.Context, url string, _ time.Duration) error {
	p.record("navigate %s", url)
	return p.navErr
}

func (p *fakePage) WaitLoad(context.Context, time.Duration) error { return nil }

func (p *fakePage) WaitVisible(_ context.Context, sel string, _ time.Duration) error {
	p.record("wait %s", sel)
	return p.waitErr[sel]
}

func (p *fakePage) WaitHidden(_ context.Context, sel string, _ time.Duration) error {
	p.record("hidden %s", sel)
	return nil
}

func (p *fakePage) Visible(_ context.Context, sel string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible[sel]
}

func (p *fakePage) Click(_ context.Context, sel string, _ time.Duration) error {
	p.record("click %s", sel)
	p.mu.Lock()
	defer p.mu.Unlock()
	if n, ok := p.hideAfter[sel]; ok {
		n--
		p.hideAfter[sel] = n
		if n <= 0 {
			p.visible[sel] = false
		}
	}
	return p.clickErr[sel]
}

func (p *fakePage) count(call string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (p *fakePage) ClickElement(_ context.Context, el repository.Element) error {
	p.record("click element")
	if p.onClick != nil {
		p.onClick(el)
	}
	return nil
}

func (p *fakePage) Type(_ context.Context, _, text string, timeout time.Duration) error {
	p.record("type %s", text)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inputTimeouts = append(p.inputTimeouts, timeout)
	return p.typeErr
}

func (p *fakePage) PressEnter(_ context.Context, _ string, timeout time.Duration) error {
	p.record("enter")
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inputTimeouts = append(p.inputTimeouts, timeout)
	return nil
}

func (p *fakePage) PressEscape(context.Context) error {
	p.record("escape")
	return nil
}

func (p *fakePage) Text(_ context.Context, sel string, _ time.Duration) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	text, ok := p.texts[sel]
	if !ok {
		return "", errFake
	}
	return text, nil
}

func (p *fakePage) URL(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.urls) == 0 {
		return "about:blank", nil
	}
	u := p.urls[0]
	if len(p.urls) > 1 {
		p.urls = p.urls[1:]
	}
	return u, nil
}

func (p *fakePage) Elements(_ context.Context, sel string, limit int) ([]repository.Element, error) {
	p.record("elements %s", sel)
	p.mu.Lock()
	defer p.mu.Unlock()
	nodes := p.nodes[sel]
	if limit > 0 && len(nodes) > limit {
		nodes = nodes[:limit]
	}
	out := make([]repository.Element, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}
	return out, nil
}

func (p *fakePage) OuterHTML(_ context.Context, el repository.Element) (string, error) {
	n, ok := el.(*fakeNode)
	if !ok {
		return "", errFake
	}
	return n.html, nil
}

func (p *fakePage) ExpandAll(context.Context, repository.Element, string, time.Duration) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expandCalls++
	return 1, nil
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type fakeSession struct {
	main *fakePage
	// tabs are returned by successive WaitNewPage calls; a nil entry times out.
	tabs   []*fakePage
	next   int
	closed bool
}

func (s *fakeSession) Page(context.Context) (repository.Page, error) { return s.main, nil }

func (s *fakeSession) WaitNewPage(ctx context.Context, trigger func(context.Context) error, _ time.Duration) (repository.Page, error) {
	if err := trigger(ctx); err != nil {
		return nil, err
	}
	if s.next >= len(s.tabs) {
		return nil, errFake
	}
	tab := s.tabs[s.next]
	s.next++
	if tab == nil {
		return nil, errors.New("no new page opened")
	}
	return tab, nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fakeBrowser struct {
	mu       sync.Mutex
	session  *fakeSession
	headless []*fakePage
	opened   int
	closed   int
}

func (b *fakeBrowser) OpenVisible(context.Context) (repository.Session, error) {
	if b.session == nil {
		return nil, errFake
	}
	return b.session, nil
}

func (b *fakeBrowser) NewHeadlessPage(context.Context) (repository.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.opened >= len(b.headless) {
		return nil, errFake
	}
	p := b.headless[b.opened]
	b.opened++
	return p, nil
}

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	return nil
}

// fakeAPI records every collaborator call.
type fakeAPI struct {
	mu sync.Mutex

	connections  []entity.Connection
	keywords     []entity.Keyword
	// advanceOnSuccess moves the reported connection's LastCheckedAt the way
	// the collaborator API does.
	advanceOnSuccess bool
	listErr      error
	createLogErr error
	leadErr      func(entity.Lead) error
	createdLogs  []entity.ScrapeLog
	updatedLogs  []entity.ScrapeLog
	leads        []entity.Lead
	upserts      []entity.Connection
	successes    []entity.HealthReport
	errorsPosted []entity.HealthReport
}

var _ repository.CollaboratorAPI = (*fakeAPI)(nil)

func (a *fakeAPI) ListConnections(context.Context, entity.Credentials) ([]entity.Connection, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]entity.Connection(nil), a.connections...), a.listErr
}

func (a *fakeAPI) UpsertConnection(_ context.Context, _ entity.Credentials, c entity.Connection) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.upserts = append(a.upserts, c)
	return nil
}

func (a *fakeAPI) CreateScrapeLog(_ context.Context, _ entity.Credentials, l entity.ScrapeLog) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.createLogErr != nil {
		return "", a.createLogErr
	}
	a.createdLogs = append(a.createdLogs, l)
	return fmt.Sprintf("log-%d", len(a.createdLogs)), nil
}

func (a *fakeAPI) UpdateScrapeLog(_ context.Context, _ entity.Credentials, id string, l entity.ScrapeLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	l.ID = id
	a.updatedLogs = append(a.updatedLogs, l)
	return nil
}

func (a *fakeAPI) CreateLead(_ context.Context, _ entity.Credentials, l entity.Lead) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.leads = append(a.leads, l)
	if a.leadErr != nil {
		return a.leadErr(l)
	}
	return nil
}

func (a *fakeAPI) ReportSuccess(_ context.Context, _ entity.Credentials, r entity.HealthReport) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.successes = append(a.successes, r)
	if a.advanceOnSuccess {
		for i := range a.connections {
			if a.connections[i].ID == r.ConnectionID {
				checked := r.CheckedAt
				a.connections[i].LastCheckedAt = &checked
			}
		}
	}
	return nil
}

func (a *fakeAPI) ReportError(_ context.Context, _ entity.Credentials, r entity.HealthReport) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errorsPosted = append(a.errorsPosted, r)
	return nil
}

func (a *fakeAPI) ListKeywords(context.Context, entity.Credentials) ([]entity.Keyword, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.keywords, nil
}

// apiCalls is a copy of what fakeAPI recorded.
type apiCalls struct {
	createdLogs  []entity.ScrapeLog
	updatedLogs  []entity.ScrapeLog
	leads        []entity.Lead
	upserts      []entity.Connection
	successes    []entity.HealthReport
	errorsPosted []entity.HealthReport
}

func (a *fakeAPI) snapshot() apiCalls {
	a.mu.Lock()
	defer a.mu.Unlock()
	return apiCalls{
		createdLogs:  append([]entity.ScrapeLog(nil), a.createdLogs...),
		updatedLogs:  append([]entity.ScrapeLog(nil), a.updatedLogs...),
		leads:        append([]entity.Lead(nil), a.leads...),
		upserts:      append([]entity.Connection(nil), a.upserts...),
		successes:    append([]entity.HealthReport(nil), a.successes...),
		errorsPosted: append([]entity.HealthReport(nil), a.errorsPosted...),
	}
}

// searchFunc adapts a function to WorkspaceSearcher.
type searchFunc func(ctx context.Context, ws entity.Workspace, keyword string, lastScrapeDate *int64) ([]entity.SearchResultItem, error)

func (f searchFunc) SearchWorkspace(ctx context.Context, ws entity.Workspace, keyword string, lastScrapeDate *int64) ([]entity.SearchResultItem, error) {
	return f(ctx, ws, keyword, lastScrapeDate)
}

// resultHTML renders one search result the way the web client does.
func resultHTML(ts int64, text string) string {
	return fmt.Sprintf(`<div data-qa="search_message_group">
  <span data-qa="inline_channel_entity__name">#jobs</span>
  <span data-qa="message_sender_name">Sam</span>
  <a class="c-timestamp" data-ts="%d.000100" href="/archives/C1/p%d000100"></a>
  <div data-qa="message-text">%s</div>
</div>`, ts, ts, text)
}

// searchPage is a headless page whose search flow reaches a result list.
func searchPage(items ...string) *fakePage {
	p := newFakePage()
	for _, html := range items {
		p.nodes[slackdom.ResultItem] = append(p.nodes[slackdom.ResultItem], &fakeNode{html: html})
	}
	return p
}

func noSleep(context.Context, time.Duration) error { return nil }
