package wire

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/structpb"
)

// timeLayouts are tried in order when a timestamp arrives as a string. The last
// two cover ISO timestamps without a zone, which are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Field returns the first present, non-null value among keys.
func Field(s *structpb.Struct, keys ...string) *structpb.Value {
	fields := s.GetFields()
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || v == nil {
			continue
		}
		if _, null := v.GetKind().(*structpb.Value_NullValue); null || v.GetKind() == nil {
			continue
		}
		return v
	}
	return nil
}

// String reads a string field. Numbers and booleans are formatted, so numeric
// identifiers come out as their decimal text.
func String(s *structpb.Struct, keys ...string) string {
	return AsString(Field(s, keys...))
}

// AsString converts a scalar value to a string; anything else yields "".
func AsString(v *structpb.Value) string {
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_NumberValue:
		if math.IsNaN(k.NumberValue) || math.IsInf(k.NumberValue, 0) {
			return ""
		}
		return strconv.FormatFloat(k.NumberValue, 'f', -1, 64)
	case *structpb.Value_BoolValue:
		return strconv.FormatBool(k.BoolValue)
	}
	return ""
}

// Decimal reads a money field sent either as a JSON number or a numeric string.
// Unparseable values yield zero.
func Decimal(s *structpb.Struct, keys ...string) decimal.Decimal {
	d, _ := DecimalOK(s, keys...)
	return d
}

// DecimalOK is Decimal that also reports whether a usable value was present.
func DecimalOK(s *structpb.Struct, keys ...string) (decimal.Decimal, bool) {
	switch k := Field(s, keys...).GetKind().(type) {
	case *structpb.Value_NumberValue:
		if math.IsNaN(k.NumberValue) || math.IsInf(k.NumberValue, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(k.NumberValue), true
	case *structpb.Value_StringValue:
		d, err := decimal.NewFromString(strings.TrimSpace(k.StringValue))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}
	return decimal.Zero, false
}

// Bool reads a boolean field. "true"/"1" strings and non-zero numbers count as true.
func Bool(s *structpb.Struct, keys ...string) bool {
	switch k := Field(s, keys...).GetKind().(type) {
	case *structpb.Value_BoolValue:
		return k.BoolValue
	case *structpb.Value_NumberValue:
		return k.NumberValue != 0
	case *structpb.Value_StringValue:
		b, err := strconv.ParseBool(strings.TrimSpace(k.StringValue))
		return err == nil && b
	}
	return false
}

// Int reads an integer field, truncating fractions.
func Int(s *structpb.Struct, keys ...string) int {
	switch k := Field(s, keys...).GetKind().(type) {
	case *structpb.Value_NumberValue:
		if math.IsNaN(k.NumberValue) || math.IsInf(k.NumberValue, 0) {
			return 0
		}
		return int(k.NumberValue)
	case *structpb.Value_StringValue:
		n, err := strconv.Atoi(strings.TrimSpace(k.StringValue))
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

// Time reads a timestamp sent as an ISO-8601 string or as Unix seconds.
// Unparseable values yield the zero time.
func Time(s *structpb.Struct, keys ...string) time.Time {
	switch k := Field(s, keys...).GetKind().(type) {
	case *structpb.Value_StringValue:
		raw := strings.TrimSpace(k.StringValue)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC()
			}
		}
	case *structpb.Value_NumberValue:
		if math.IsNaN(k.NumberValue) || math.IsInf(k.NumberValue, 0) || k.NumberValue <= 0 {
			return time.Time{}
		}
		sec, frac := math.Modf(k.NumberValue)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}
	return time.Time{}
}

// Object reads a nested object field. Returns nil when absent or not an object.
func Object(s *structpb.Struct, keys ...string) *structpb.Struct {
	return Field(s, keys...).GetStructValue()
}

// List reads an array field. Returns nil when absent or not an array.
func List(s *structpb.Struct, keys ...string) []*structpb.Value {
	return Field(s, keys...).GetListValue().GetValues()
}

// FormatTime renders a timestamp the way the services emit it.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
