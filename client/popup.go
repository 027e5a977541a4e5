package client

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/net/html"

	"github.com/Yulian302/lfusys-services-handshake/handshake"
)

// PageOpener is a headless handshake.Opener. Each popup loads its URL with
// an http.Client that shares the host's cookie jar, following the identity
// provider's redirects back to the callback page. Like a browser, Open
// returns as soon as the page exists and loading continues in the
// background. A callback page that asks for its outcome to be claimed gets
// that request once it has loaded.
type PageOpener struct {
	client *http.Client
	logger *slog.Logger

	mu      sync.Mutex
	windows map[string]*Page
}

func NewPageOpener(client *http.Client, logger *slog.Logger) *PageOpener {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageOpener{
		client:  client,
		logger:  logger,
		windows: make(map[string]*Page),
	}
}

func (o *PageOpener) Open(ctx context.Context, url, name string, geometry handshake.Geometry) (handshake.Window, error) {
	page := &Page{name: name, opener: o, loaded: make(chan struct{})}

	o.mu.Lock()
	prev := o.windows[name]
	o.windows[name] = page
	o.mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}

	// the page outlives the call that opened it
	go page.load(context.WithoutCancel(ctx), url)
	return page, nil
}

// Window returns the open page registered under name.
func (o *PageOpener) Window(name string) (*Page, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.windows[name]
	return p, ok
}

// Page is one popup loaded by a PageOpener.
type Page struct {
	name   string
	opener *PageOpener
	loaded chan struct{}

	mu         sync.Mutex
	url        string
	statusCode int
	body       []byte
	err        error
	closed     bool
}

func (p *Page) load(ctx context.Context, rawURL string) {
	defer close(p.loaded)
	log := p.opener.logger.With(slog.String("window", p.name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		p.setResult(rawURL, 0, nil, err)
		return
	}
	resp, err := p.opener.client.Do(req)
	if err != nil {
		log.Warn("popup failed to load", slog.Any("err", err))
		p.setResult(rawURL, 0, nil, err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	p.setResult(resp.Request.URL.String(), resp.StatusCode, body, err)
	log.Debug("popup loaded",
		slog.String("url", resp.Request.URL.Path),
		slog.Int("status", resp.StatusCode),
	)
	if err != nil {
		return
	}

	if ref := reportRef(body); ref != "" {
		p.claim(ctx, resp.Request.URL, ref, log)
	}
}

// claim posts to the page's report URL, as the page's script would.
func (p *Page) claim(ctx context.Context, base *url.URL, ref string, log *slog.Logger) {
	target, err := base.Parse(ref)
	if err != nil {
		log.Warn("bad report url", slog.String("ref", ref), slog.Any("err", err))
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(nil))
	if err != nil {
		log.Warn("building report request", slog.Any("err", err))
		return
	}
	resp, err := p.opener.client.Do(req)
	if err != nil {
		log.Warn("claiming popup outcome", slog.Any("err", err))
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	log.Debug("popup outcome claimed", slog.Int("status", resp.StatusCode))
}

// reportRef returns the data-report attribute of the page's body.
func reportRef(body []byte) string {
	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			t := z.Token()
			if t.Data != "body" {
				continue
			}
			for _, a := range t.Attr {
				if a.Key == "data-report" {
					return a.Val
				}
			}
			return ""
		}
	}
}

func (p *Page) setResult(url string, status int, body []byte, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url, p.statusCode, p.body, p.err = url, status, body, err
}

func (p *Page) Name() string {
	return p.name
}

func (p *Page) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	o := p.opener
	o.mu.Lock()
	if o.windows[p.name] == p {
		delete(o.windows, p.name)
	}
	o.mu.Unlock()
	return nil
}

// Loaded is closed once the page and any outcome claim have finished.
func (p *Page) Loaded() <-chan struct{} {
	return p.loaded
}

// URL is where the page ended up after redirects.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) StatusCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statusCode
}

func (p *Page) Body() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.body
}

func (p *Page) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
