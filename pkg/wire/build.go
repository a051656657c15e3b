package wire

import (
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/structpb"
)

// Builder assembles a Struct field by field. Empty optional values are skipped
// by the *Opt setters so requests stay minimal.
type Builder struct {
	s *structpb.Struct
}

// NewBuilder starts an empty object.
func NewBuilder() *Builder {
	return &Builder{s: &structpb.Struct{Fields: map[string]*structpb.Value{}}}
}

// Str sets a string field.
func (b *Builder) Str(key, v string) *Builder {
	b.s.Fields[key] = structpb.NewStringValue(v)
	return b
}

// StrOpt sets a string field when v is not empty.
func (b *Builder) StrOpt(key, v string) *Builder {
	if v != "" {
		b.Str(key, v)
	}
	return b
}

// Money sets a money field as a decimal string, e.g. "19.99". Amounts never
// pass through float64.
func (b *Builder) Money(key string, v decimal.Decimal) *Builder {
	b.s.Fields[key] = structpb.NewStringValue(v.String())
	return b
}

// Int sets an integer field.
func (b *Builder) Int(key string, v int) *Builder {
	b.s.Fields[key] = structpb.NewNumberValue(float64(v))
	return b
}

// Bool sets a boolean field.
func (b *Builder) Bool(key string, v bool) *Builder {
	b.s.Fields[key] = structpb.NewBoolValue(v)
	return b
}

// Time sets a timestamp field; the zero time is written as null.
func (b *Builder) Time(key string, t time.Time) *Builder {
	if t.IsZero() {
		b.s.Fields[key] = structpb.NewNullValue()
		return b
	}
	b.s.Fields[key] = structpb.NewStringValue(FormatTime(t))
	return b
}

// Obj sets a nested object field.
func (b *Builder) Obj(key string, v *structpb.Struct) *Builder {
	b.s.Fields[key] = structpb.NewStructValue(v)
	return b
}

// List sets an array-of-objects field. A nil slice is written as [].
func (b *Builder) List(key string, items []*structpb.Struct) *Builder {
	values := make([]*structpb.Value, len(items))
	for i, item := range items {
		values[i] = structpb.NewStructValue(item)
	}
	b.s.Fields[key] = structpb.NewListValue(&structpb.ListValue{Values: values})
	return b
}

// Build returns the assembled object.
func (b *Builder) Build() *structpb.Struct {
	return b.s
}
