// Package static is a Page that fetches targets over plain HTTP and evaluates
// selectors against the parsed HTML. No scripts run, so it only suits targets
// that render server side.
package static

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"scrapejob/lib/htmlutil"
	"scrapejob/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/PuerkitoBio/purell"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapejob.internal.page.static")

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type Options struct {
	UserAgent string
	Timeout   time.Duration
	// Output receives full request/response dumps when debug logging is on.
	Output restyutil.InstrumentOutput
	// Transport overrides the HTTP transport, the cloudflare bypass is still
	// layered on top of it.
	Transport http.RoundTripper
}

type Page struct {
	http *resty.Client
	doc  *goquery.Document
}

func New(opts Options) *Page {
	client := resty.New()
	if opts.Transport != nil {
		client.SetTransport(opts.Transport)
	}
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client.SetHeader("user-agent", userAgent)

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second * 30
	}
	client.SetTimeout(timeout)

	restyutil.InstrumentClient(client, tracer, opts.Output)

	return &Page{http: client}
}

func normalize(address string) string {
	normalized, err := purell.NormalizeURLString(address, purell.FlagsSafe|purell.FlagRemoveFragment)
	if err != nil {
		return address
	}
	return normalized
}

func (p *Page) Load(ctx context.Context, address string) error {
	ctx, span := tracer.Start(ctx, "Load")
	defer span.End()

	address = normalize(address)
	span.SetAttributes(attribute.String("address", address))

	res, err := p.http.R().
		SetContext(ctx).
		Get(address)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch")
		return err
	}
	if res.IsError() {
		err := fmt.Errorf("load %s: unexpected status %s", address, res.Status())
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return err
	}
	p.doc = doc
	return nil
}

// LoadHTML replaces the current document without fetching anything.
func (p *Page) LoadHTML(contents string) error {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(contents))
	if err != nil {
		return err
	}
	p.doc = doc
	return nil
}

func (p *Page) first(selector string) (*goquery.Selection, error) {
	if p.doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}
	return p.doc.Find(selector).First(), nil
}

func (p *Page) TextContent(ctx context.Context, selector string) (string, error) {
	sel, err := p.first(selector)
	if err != nil {
		return "", err
	}
	if len(sel.Nodes) == 0 {
		return "", nil
	}
	return htmlutil.GetInnerText(sel.Nodes[0]), nil
}

func (p *Page) ChildCount(ctx context.Context, selector string) (int, error) {
	sel, err := p.first(selector)
	if err != nil {
		return 0, err
	}
	if len(sel.Nodes) == 0 {
		return 0, nil
	}
	return htmlutil.CountElementChildren(sel.Nodes[0]), nil
}
