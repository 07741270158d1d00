// Package extract resolves declarative field specs into records by reading
// text from the current page.
package extract

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"scrapejob/internal/loop"
	"scrapejob/internal/render"
	"scrapejob/internal/scope"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapejob.internal.extract")

// Page is the part of the rendering surface extraction reads from.
type Page interface {
	loop.Counter
	TextContent(ctx context.Context, selector string) (string, error)
}

type Extractor struct {
	page     Page
	renderer render.Renderer
	regexes  *lru.Cache[string, *regexp.Regexp]
}

func NewExtractor(page Page, renderer render.Renderer) *Extractor {
	regexes, err := lru.New[string, *regexp.Regexp](128)
	if err != nil {
		panic(err)
	}
	return &Extractor{page: page, renderer: renderer, regexes: regexes}
}

// compile translates the flags of the job format into Go inline flags. Only
// i, m and s change matching, g, u and y have no effect on a single match.
func (e *Extractor) compile(pattern, flags string) (*regexp.Regexp, error) {
	key := flags + "/" + pattern
	re, ok := e.regexes.Get(key)
	if ok {
		return re, nil
	}

	inline := ""
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			if !strings.ContainsRune(inline, f) {
				inline += string(f)
			}
		case 'g', 'u', 'y':
		default:
			return nil, fmt.Errorf("unsupported regex flag %q", f)
		}
	}
	source := pattern
	if inline != "" {
		source = "(?" + inline + ")" + pattern
	}
	re, err := regexp.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("compile regex %q: %w", pattern, err)
	}
	e.regexes.Add(key, re)
	return re, nil
}

// lastGroup returns the last element of the first match's submatches, or ""
// when nothing matched.
func lastGroup(re *regexp.Regexp, text string) string {
	match := re.FindStringSubmatch(text)
	if len(match) == 0 {
		return ""
	}
	return match[len(match)-1]
}

func (e *Extractor) option(ctx context.Context, o Option, t DataType) (Value, error) {
	text, err := e.page.TextContent(ctx, o.Selector)
	if err != nil {
		return Value{}, err
	}
	if o.Regex != "" {
		re, err := e.compile(o.Regex, o.RegexFlags)
		if err != nil {
			return Value{}, err
		}
		text = lastGroup(re, text)
	}
	return Coerce(String(o.Pre+text+o.Post), t), nil
}

// Field resolves one field. Literals come back untouched, a single option is
// read from the page and coerced to `t`. A FieldOptions list ignores `t` and
// coerces to its own declared type, string when it declares none.
func (e *Extractor) Field(ctx context.Context, f Field, t DataType) (Value, error) {
	switch f.Kind {
	case FieldLiteral:
		return f.Literal, nil
	case FieldOption:
		return e.combine(ctx, []Option{f.Option}, t)
	case FieldOptions:
		t = f.DataType
		if t == "" {
			t = TypeString
		}
		return e.combine(ctx, f.Options, t)
	}
	return Value{}, fmt.Errorf("unknown field kind %d", f.Kind)
}

func (e *Extractor) combine(ctx context.Context, options []Option, t DataType) (Value, error) {
	if len(options) == 0 {
		return Coerce(String(""), t), nil
	}
	var result Value
	for i, o := range options {
		v, err := e.option(ctx, o, t)
		if err != nil {
			return Value{}, err
		}
		if i == 0 {
			result = v
			continue
		}
		result = result.Add(v)
	}
	return Coerce(result, t), nil
}

// blank reports literals that declare nothing: the empty string, 0 and NaN.
func blank(f Field) bool {
	if f.Kind != FieldLiteral {
		return false
	}
	v := f.Literal
	if v.IsNumber() {
		return v.Float() == 0 || math.IsNaN(v.Float())
	}
	return v.String() == ""
}

// optionalString resolves a year or unit, nil when undeclared or declared as
// a blank literal.
func (e *Extractor) optionalString(ctx context.Context, f *Field) (*string, error) {
	if f == nil || blank(*f) {
		return nil, nil
	}
	v, err := e.Field(ctx, *f, TypeString)
	if err != nil {
		return nil, err
	}
	s := v.String()
	return &s, nil
}

// Entry resolves one record. The name, year and unit are strings, the value
// takes `t`.
func (e *Extractor) Entry(ctx context.Context, entry Entry, t DataType) (Record, error) {
	name, err := e.Field(ctx, entry.Name, TypeString)
	if err != nil {
		return Record{}, fmt.Errorf("name: %w", err)
	}
	value, err := e.Field(ctx, entry.Value, t)
	if err != nil {
		return Record{}, fmt.Errorf("value: %w", err)
	}
	year, err := e.optionalString(ctx, entry.Year)
	if err != nil {
		return Record{}, fmt.Errorf("year: %w", err)
	}
	unit, err := e.optionalString(ctx, entry.Unit)
	if err != nil {
		return Record{}, fmt.Errorf("unit: %w", err)
	}
	return Record{
		Name:  name.String(),
		Value: value,
		Year:  year,
		Unit:  unit,
	}, nil
}

func (e *Extractor) bindOption(o Option, s scope.Scope) (Option, error) {
	if !o.Templated {
		return o, nil
	}
	selector, err := e.renderer.Render(o.Selector, s.View())
	if err != nil {
		return Option{}, err
	}
	o.Selector = selector
	o.Templated = false
	return o, nil
}

func (e *Extractor) bindField(f *Field, s scope.Scope) (*Field, error) {
	if f == nil {
		return nil, nil
	}
	out := *f
	switch f.Kind {
	case FieldOption:
		o, err := e.bindOption(f.Option, s)
		if err != nil {
			return nil, err
		}
		out.Option = o
	case FieldOptions:
		out.Options = make([]Option, len(f.Options))
		for i, o := range f.Options {
			bound, err := e.bindOption(o, s)
			if err != nil {
				return nil, err
			}
			out.Options[i] = bound
		}
	}
	return &out, nil
}

// bind renders every templated selector of the entry against `s`.
func (e *Extractor) bind(entry Entry, s scope.Scope) (Entry, error) {
	name, err := e.bindField(&entry.Name, s)
	if err != nil {
		return Entry{}, err
	}
	value, err := e.bindField(&entry.Value, s)
	if err != nil {
		return Entry{}, err
	}
	year, err := e.bindField(entry.Year, s)
	if err != nil {
		return Entry{}, err
	}
	unit, err := e.bindField(entry.Unit, s)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Name: *name, Value: *value, Year: year, Unit: unit}, nil
}

// Group resolves a group against the base scope of the current context.
// Plain groups yield one record, loop groups one per expanded scope in
// expansion order.
func (e *Extractor) Group(ctx context.Context, g Group, base scope.Scope) ([]Record, error) {
	scopes := []scope.Scope{base}
	if g.Kind == GroupLoop {
		var err error
		scopes, err = loop.Expand(ctx, e.page, e.renderer, g.Loop, base)
		if err != nil {
			return nil, err
		}
	}

	records := make([]Record, 0, len(scopes))
	for _, s := range scopes {
		entry, err := e.bind(g.Entry, s)
		if err != nil {
			return nil, err
		}
		record, err := e.Entry(ctx, entry, g.DataType)
		if err != nil {
			return nil, fmt.Errorf("scope %s: %w", s, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// Resolve runs every group in declaration order and concatenates the results.
func (e *Extractor) Resolve(ctx context.Context, groups []Group, base scope.Scope) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "Resolve")
	defer span.End()

	records := []Record{}
	for i, g := range groups {
		out, err := e.Group(ctx, g, base)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to resolve group")
			return nil, fmt.Errorf("group %d: %w", i, err)
		}
		records = append(records, out...)
	}
	span.SetAttributes(attribute.Int("records", len(records)))
	return records, nil
}
