package render

import (
	"fmt"

	"github.com/aymerick/raymond"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Renderer substitutes a scope's variables into a template string.
type Renderer interface {
	Render(tpl string, view map[string]any) (string, error)
}

// Handlebars renders `{{key}}` style templates. Parsed templates are cached,
// job definitions reuse a handful of templates for every context.
type Handlebars struct {
	cache *lru.Cache[string, *raymond.Template]
}

const defaultCacheSize = 256

func NewHandlebars() *Handlebars {
	cache, err := lru.New[string, *raymond.Template](defaultCacheSize)
	if err != nil {
		panic(err)
	}
	return &Handlebars{cache: cache}
}

func (h *Handlebars) parse(tpl string) (*raymond.Template, error) {
	parsed, ok := h.cache.Get(tpl)
	if ok {
		return parsed, nil
	}
	parsed, err := raymond.Parse(tpl)
	if err != nil {
		return nil, fmt.Errorf("parse template %q: %w", tpl, err)
	}
	h.cache.Add(tpl, parsed)
	return parsed, nil
}

func (h *Handlebars) Render(tpl string, view map[string]any) (string, error) {
	parsed, err := h.parse(tpl)
	if err != nil {
		return "", err
	}
	out, err := parsed.Exec(view)
	if err != nil {
		return "", fmt.Errorf("render template %q: %w", tpl, err)
	}
	return out, nil
}
