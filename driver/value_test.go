// SPDX-FileCopyrightText: 2023 Datafuse Labs
//
// SPDX-License-Identifier: Apache-2.0

package driver

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func strptr(s string) *string { return &s }

func TestDecodeValue(t *testing.T) {
	tests := []struct {
		name string
		raw  *string
		typ  string
		want any
	}{
		{"boolean true", strptr("1"), "Boolean", true},
		{"boolean false", strptr("false"), "Boolean", false},
		{"int8", strptr("-8"), "Int8", int64(-8)},
		{"int64", strptr("-9223372036854775808"), "Int64", int64(-9223372036854775808)},
		{"uint16", strptr("15532"), "UInt16", uint64(15532)},
		{"uint64 max", strptr("18446744073709551615"), "UInt64", uint64(18446744073709551615)},
		{"float32", strptr("1.5"), "Float32", 1.5},
		{"float64", strptr("-0.25"), "Float64", -0.25},
		{"string", strptr("hello"), "String", "hello"},
		{"date", strptr("2024-03-01"), "Date", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"timestamp", strptr("2024-03-01 12:34:56.789"), "Timestamp", time.Date(2024, 3, 1, 12, 34, 56, 789000000, time.UTC)},
		{"timestamp no fraction", strptr("2024-03-01 12:34:56"), "Timestamp", time.Date(2024, 3, 1, 12, 34, 56, 0, time.UTC)},
		{"nullable unwrap", strptr("42"), "Nullable(Int32)", int64(42)},
		{"nullable null", nil, "Nullable(Int32)", nil},
		{"null", nil, "String", nil},
		{"array passthrough", strptr("[1,2,3]"), "Array(Int32)", "[1,2,3]"},
		{"variant passthrough", strptr(`{"a":1}`), "Variant", `{"a":1}`},
		{"unknown passthrough", strptr("xyz"), "Geometry", "xyz"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := decodeValue(test.raw, test.typ)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, test.want) {
				t.Fatalf("got %[1]v (%[1]T), want %[2]v (%[2]T)", got, test.want)
			}
		})
	}
}

func TestDecodeValueDecimal(t *testing.T) {
	got, err := decodeValue(strptr("12345.6789"), "Decimal(15, 4)")
	if err != nil {
		t.Fatal(err)
	}
	want := decimal.RequireFromString("12345.6789")
	if d, ok := got.(decimal.Decimal); !ok || !d.Equal(want) {
		t.Fatalf("got %v", got)
	}
}

func TestDecodeValueErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		typ  string
	}{
		{"bad int", "abc", "Int32"},
		{"bad uint", "-1", "UInt8"},
		{"bad float", "x", "Float64"},
		{"bad bool", "2", "Boolean"},
		{"bad date", "01.03.2024", "Date"},
		{"bad decimal", "one", "Decimal(10, 2)"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := decodeValue(strptr(test.raw), test.typ); err == nil {
				t.Fatalf("expected decode error for %q as %s", test.raw, test.typ)
			}
		})
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want string
	}{
		{"null", nil, "NULL"},
		{"string", "a", "a"},
		{"bool", true, "true"},
		{"int", int64(-5), "-5"},
		{"uint", uint64(5), "5"},
		{"float", 1.25, "1.25"},
		{"decimal", decimal.RequireFromString("1.20"), "1.2"},
		{"date", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "2024-03-01"},
		{"timestamp", time.Date(2024, 3, 1, 12, 0, 0, 500000000, time.UTC), "2024-03-01 12:00:00.5"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := FormatValue(test.v, "NULL"); got != test.want {
				t.Fatalf("got %q, want %q", got, test.want)
			}
		})
	}
}
