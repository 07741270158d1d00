package extract

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// DataType is the declared type an extracted value is coerced to.
type DataType string

const (
	TypeString DataType = "string"
	TypeNumber DataType = "number"
)

// Value is an extracted datum, either a string or a number. Numbers may be NaN
// when the source text did not hold one.
type Value struct {
	str    string
	num    float64
	number bool
}

func String(s string) Value {
	return Value{str: s}
}

func Number(f float64) Value {
	return Value{num: f, number: true}
}

func (v Value) IsNumber() bool {
	return v.number
}

func (v Value) Float() float64 {
	return v.num
}

func (v Value) String() string {
	if v.number {
		return formatNumber(v.num)
	}
	return v.str
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Add combines two values the way the job format always has: two numbers sum,
// anything involving a string concatenates.
func (v Value) Add(other Value) Value {
	if v.number && other.number {
		return Number(v.num + other.num)
	}
	return String(v.String() + other.String())
}

var leadingFloat = regexp.MustCompile(`^[+-]?(Infinity|(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?)`)

// parseLeadingFloat parses the longest numeric prefix of s, ignoring leading
// whitespace. It returns NaN when there is none.
func parseLeadingFloat(s string) float64 {
	match := leadingFloat.FindString(strings.TrimSpace(s))
	if match == "" {
		return math.NaN()
	}
	switch match {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// Coerce converts v to the declared type. Strings are trimmed, numbers have
// thousands separators stripped and keep only their leading numeric part.
func Coerce(v Value, t DataType) Value {
	if t == TypeNumber {
		return Number(parseLeadingFloat(strings.ReplaceAll(v.String(), ",", "")))
	}
	return String(strings.TrimSpace(v.String()))
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.number {
		return json.Marshal(v.str)
	}
	if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v.num)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Number(math.NaN())
		return nil
	}
	var num float64
	if err := json5.Unmarshal(data, &num); err == nil {
		*v = Number(num)
		return nil
	}
	var str string
	if err := json5.Unmarshal(data, &str); err != nil {
		return err
	}
	*v = String(str)
	return nil
}
