// Package pagetest provides an in-memory Page for tests.
package pagetest

import (
	"context"
	"fmt"
)

// Page answers reads from fixed maps keyed by selector, anything unknown reads
// as missing. Loads are recorded in order.
type Page struct {
	Texts    map[string]string
	Children map[string]int
	// LoadErr, when set, is returned by every Load.
	LoadErr error

	Loaded       []string
	CountQueries []string
}

func (p *Page) Load(ctx context.Context, address string) error {
	if p.LoadErr != nil {
		return fmt.Errorf("load %s: %w", address, p.LoadErr)
	}
	p.Loaded = append(p.Loaded, address)
	return nil
}

func (p *Page) TextContent(ctx context.Context, selector string) (string, error) {
	return p.Texts[selector], nil
}

func (p *Page) ChildCount(ctx context.Context, selector string) (int, error) {
	p.CountQueries = append(p.CountQueries, selector)
	return p.Children[selector], nil
}
