package wire

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestFieldFirstPresentWins(t *testing.T) {
	s := mustStruct(t, map[string]any{
		"targetAmount":  "250",
		"target_amount": nil,
	})
	assert.Equal(t, "250", String(s, FieldTargetAmount, "targetAmount"))
	assert.Nil(t, Field(s, "missing"))
	assert.Nil(t, Field(nil, FieldID))
}

func TestString(t *testing.T) {
	s := mustStruct(t, map[string]any{"id": 42.0, "flag": true, "name": "Trip"})
	assert.Equal(t, "42", String(s, FieldID))
	assert.Equal(t, "true", String(s, "flag"))
	assert.Equal(t, "Trip", String(s, FieldName))
	assert.Equal(t, "", String(s, "absent"))
}

func TestDecimal(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		want   string
		wantOK bool
	}{
		{name: "number", value: 12.5, want: "12.5", wantOK: true},
		{name: "numeric string", value: " 0.10 ", want: "0.1", wantOK: true},
		{name: "garbage", value: "abc", want: "0", wantOK: false},
		{name: "bool", value: true, want: "0", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustStruct(t, map[string]any{"amount": tt.value})
			got, ok := DecimalOK(s, FieldAmount)
			assert.Equal(t, tt.wantOK, ok)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}

	t.Run("non-finite", func(t *testing.T) {
		s := &structpb.Struct{Fields: map[string]*structpb.Value{
			"amount": structpb.NewNumberValue(math.Inf(1)),
		}}
		_, ok := DecimalOK(s, FieldAmount)
		assert.False(t, ok)
	})
}

func TestTime(t *testing.T) {
	want := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	tests := []struct {
		name  string
		value any
		want  time.Time
	}{
		{name: "rfc3339", value: "2024-03-01T10:30:00Z", want: want},
		{name: "offset", value: "2024-03-01T12:30:00+02:00", want: want},
		{name: "no zone", value: "2024-03-01T10:30:00.000000", want: want},
		{name: "space separated", value: "2024-03-01 10:30:00", want: want},
		{name: "unix seconds", value: float64(want.Unix()), want: want},
		{name: "garbage", value: "yesterday", want: time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustStruct(t, map[string]any{"created_at": tt.value})
			assert.True(t, tt.want.Equal(Time(s, FieldCreatedAt)), "got %v", Time(s, FieldCreatedAt))
		})
	}
}

func TestBoolAndInt(t *testing.T) {
	s := mustStruct(t, map[string]any{"a": "true", "b": 1.0, "c": "3", "d": 7.9})
	assert.True(t, Bool(s, "a"))
	assert.True(t, Bool(s, "b"))
	assert.False(t, Bool(s, "missing"))
	assert.Equal(t, 3, Int(s, "c"))
	assert.Equal(t, 7, Int(s, "d"))
}

func TestObjectAndList(t *testing.T) {
	s := mustStruct(t, map[string]any{
		"user":    map[string]any{"id": "u1"},
		"members": []any{map[string]any{"id": "u1"}, "junk"},
		"name":    "not an object",
	})
	assert.Equal(t, "u1", String(Object(s, FieldUser), FieldID))
	assert.Nil(t, Object(s, FieldName))
	assert.Len(t, List(s, FieldMembers), 2)
	assert.Nil(t, List(s, FieldName))
}

func TestMoneyKeepsPrecision(t *testing.T) {
	for _, amount := range []string{"12345678901234567.89", "0.10000000000000000001", "-3.5"} {
		s := NewBuilder().Money(FieldAmount, decimal.RequireFromString(amount)).Build()
		got, ok := DecimalOK(s, FieldAmount)
		require.True(t, ok, amount)
		assert.Equal(t, amount, got.String())
	}
}

func TestBuilder(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s := NewBuilder().
		Str(FieldGroupID, "g1").
		StrOpt(FieldDescription, "").
		Money(FieldAmount, decimal.RequireFromString("19.99")).
		Time(FieldCreatedAt, at).
		Time(FieldProcessedAt, time.Time{}).
		List(FieldMembers, nil).
		Build()

	assert.Equal(t, "g1", String(s, FieldGroupID))
	assert.Nil(t, Field(s, FieldDescription))
	assert.Equal(t, "19.99", s.GetFields()[FieldAmount].GetStringValue())
	assert.True(t, Decimal(s, FieldAmount).Equal(decimal.RequireFromString("19.99")))
	assert.True(t, at.Equal(Time(s, FieldCreatedAt)))
	assert.Nil(t, Field(s, FieldProcessedAt))
	assert.NotNil(t, s.GetFields()[FieldMembers].GetListValue())
}
