// Package browser is a Page backed by a headless Chromium driven through
// playwright, for targets that need scripts to render.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	pw "github.com/playwright-community/playwright-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapejob.internal.page.browser")

const textContentScript = `(sel) => {
	const e = document.querySelector(sel);
	return e != null ? e.innerText : '';
}`

const childCountScript = `(sel) => {
	const e = document.querySelectorAll(sel)[0];
	return e != null ? e.children.length : 0;
}`

type Options struct {
	Headless bool
	// Timeout for navigation in milliseconds, 0 keeps the playwright default.
	Timeout float64
	// Install downloads the browser binaries before launching.
	Install bool
}

type Page struct {
	pw      *pw.Playwright
	browser pw.Browser
	page    pw.Page
	opts    Options
}

// Launch starts playwright, a browser and one page. The page is reused for
// every target of the run.
func Launch(opts Options) (*Page, error) {
	if opts.Install {
		err := pw.Install(&pw.RunOptions{Browsers: []string{"chromium"}})
		if err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
	}

	runtime, err := pw.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	browser, err := runtime.Chromium.Launch(pw.BrowserTypeLaunchOptions{
		Headless: pw.Bool(opts.Headless),
	})
	if err != nil {
		runtime.Stop()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	page, err := browser.NewPage()
	if err != nil {
		browser.Close()
		runtime.Stop()
		return nil, fmt.Errorf("open page: %w", err)
	}

	return &Page{
		pw:      runtime,
		browser: browser,
		page:    page,
		opts:    opts,
	}, nil
}

func (p *Page) Close() error {
	return errors.Join(
		p.browser.Close(),
		p.pw.Stop(),
	)
}

func (p *Page) Load(ctx context.Context, address string) error {
	_, span := tracer.Start(ctx, "Load")
	defer span.End()
	span.SetAttributes(attribute.String("address", address))

	opts := pw.PageGotoOptions{}
	if p.opts.Timeout > 0 {
		opts.Timeout = pw.Float(p.opts.Timeout)
	}
	res, err := p.page.Goto(address, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "navigation failed")
		return err
	}
	if res != nil && !res.Ok() {
		slog.WarnContext(ctx, "target responded with error status", "address", address, "status", res.Status())
	}
	return nil
}

func (p *Page) TextContent(ctx context.Context, selector string) (string, error) {
	out, err := p.page.Evaluate(textContentScript, selector)
	if err != nil {
		return "", fmt.Errorf("read text at %q: %w", selector, err)
	}
	text, _ := out.(string)
	return text, nil
}

func (p *Page) ChildCount(ctx context.Context, selector string) (int, error) {
	out, err := p.page.Evaluate(childCountScript, selector)
	if err != nil {
		return 0, fmt.Errorf("count children at %q: %w", selector, err)
	}
	return toInt(out), nil
}

func toInt(value any) int {
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
