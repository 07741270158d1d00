package extract

import (
	"bytes"
	"encoding/json"
	"fmt"

	"scrapejob/internal/loop"

	"github.com/titanous/json5"
)

// Option reads one piece of text from the page. When Templated is set the
// selector is a template rendered against the current scope first.
type Option struct {
	Pre        string
	Post       string
	Selector   string
	Templated  bool
	Regex      string
	RegexFlags string
}

type optionJSON struct {
	Pre         string `json:"pre,omitempty"`
	Post        string `json:"post,omitempty"`
	Selector    string `json:"selector,omitempty"`
	TplSelector string `json:"tplSelector,omitempty"`
	Regex       string `json:"regex,omitempty"`
	RegFlag     string `json:"regFlag,omitempty"`
}

func (o *Option) UnmarshalJSON(data []byte) error {
	var raw optionJSON
	err := json5.Unmarshal(data, &raw)
	if err != nil {
		return err
	}
	*o = Option{
		Pre:        raw.Pre,
		Post:       raw.Post,
		Selector:   raw.Selector,
		Regex:      raw.Regex,
		RegexFlags: raw.RegFlag,
	}
	if raw.TplSelector != "" {
		o.Selector = raw.TplSelector
		o.Templated = true
	}
	if o.Selector == "" {
		return fmt.Errorf("extraction option needs a selector or tplSelector")
	}
	return nil
}

func (o Option) MarshalJSON() ([]byte, error) {
	raw := optionJSON{
		Pre:     o.Pre,
		Post:    o.Post,
		Regex:   o.Regex,
		RegFlag: o.RegexFlags,
	}
	if o.Templated {
		raw.TplSelector = o.Selector
	} else {
		raw.Selector = o.Selector
	}
	return json.Marshal(raw)
}

// FieldKind discriminates the Field variants.
type FieldKind int

const (
	// FieldLiteral is a fixed value written as-is.
	FieldLiteral FieldKind = iota
	// FieldOption is a single extraction option.
	FieldOption
	// FieldOptions is a list of options whose values are combined.
	FieldOptions
)

// Field is how one attribute of a record is produced.
type Field struct {
	Kind FieldKind

	Literal Value
	Option  Option
	Options []Option
	// DataType of a FieldOptions list, overriding the type requested by the caller.
	DataType DataType
}

func Literal(v Value) Field {
	return Field{Kind: FieldLiteral, Literal: v}
}

func FromOption(o Option) Field {
	return Field{Kind: FieldOption, Option: o}
}

func FromOptions(t DataType, options ...Option) Field {
	return Field{Kind: FieldOptions, Options: options, DataType: t}
}

type optionsJSON struct {
	DataType DataType `json:"dataType,omitempty"`
	Options  []Option `json:"options"`
}

func (f *Field) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		var v Value
		err := v.UnmarshalJSON(trimmed)
		if err != nil {
			return fmt.Errorf("field must be a literal or an object: %w", err)
		}
		*f = Literal(v)
		return nil
	}

	var probe map[string]any
	err := json5.Unmarshal(trimmed, &probe)
	if err != nil {
		return err
	}
	if _, ok := probe["options"]; ok {
		var raw optionsJSON
		err := json5.Unmarshal(trimmed, &raw)
		if err != nil {
			return err
		}
		*f = FromOptions(raw.DataType, raw.Options...)
		return nil
	}

	var o Option
	err = o.UnmarshalJSON(trimmed)
	if err != nil {
		return err
	}
	*f = FromOption(o)
	return nil
}

func (f Field) MarshalJSON() ([]byte, error) {
	switch f.Kind {
	case FieldLiteral:
		return json.Marshal(f.Literal)
	case FieldOption:
		return json.Marshal(f.Option)
	case FieldOptions:
		return json.Marshal(optionsJSON{DataType: f.DataType, Options: f.Options})
	}
	return nil, fmt.Errorf("unknown field kind %d", f.Kind)
}

// Entry declares the fields of one record.
type Entry struct {
	Name  Field  `json:"name"`
	Value Field  `json:"value"`
	Year  *Field `json:"year,omitempty"`
	Unit  *Field `json:"unit,omitempty"`
}

// GroupKind discriminates the Group variants.
type GroupKind int

const (
	// GroupPlain produces exactly one record.
	GroupPlain GroupKind = iota
	// GroupLoop produces one record per scope the loop expands to.
	GroupLoop
)

// Group is one entry of a job's extraction list.
type Group struct {
	Kind     GroupKind
	Loop     loop.Specs
	Entry    Entry
	DataType DataType
}

type plainGroupJSON struct {
	Entry
	DataType DataType `json:"dataType,omitempty"`
}

type loopGroupJSON struct {
	Loop     loop.Specs `json:"loop"`
	Data     Entry      `json:"data"`
	DataType DataType   `json:"dataType,omitempty"`
}

func (g *Group) UnmarshalJSON(data []byte) error {
	var probe map[string]any
	err := json5.Unmarshal(data, &probe)
	if err != nil {
		return err
	}

	if _, ok := probe["loop"]; ok {
		var raw loopGroupJSON
		err := json5.Unmarshal(data, &raw)
		if err != nil {
			return err
		}
		*g = Group{Kind: GroupLoop, Loop: raw.Loop, Entry: raw.Data, DataType: raw.DataType}
		return g.validate()
	}

	var raw plainGroupJSON
	err = json5.Unmarshal(data, &raw)
	if err != nil {
		return err
	}
	*g = Group{Kind: GroupPlain, Entry: raw.Entry, DataType: raw.DataType}
	return g.validate()
}

func (g Group) validate() error {
	if _, ok := map[DataType]bool{"": true, TypeString: true, TypeNumber: true}[g.DataType]; !ok {
		return fmt.Errorf("unknown dataType %q", g.DataType)
	}
	return nil
}

func (g Group) MarshalJSON() ([]byte, error) {
	switch g.Kind {
	case GroupPlain:
		return json.Marshal(plainGroupJSON{Entry: g.Entry, DataType: g.DataType})
	case GroupLoop:
		return json.Marshal(loopGroupJSON{Loop: g.Loop, Data: g.Entry, DataType: g.DataType})
	}
	return nil, fmt.Errorf("unknown group kind %d", g.Kind)
}

// Record is the unit of extracted output.
type Record struct {
	Name  string  `json:"name"`
	Value Value   `json:"value"`
	Year  *string `json:"year,omitempty"`
	Unit  *string `json:"unit,omitempty"`
}
