// SPDX-FileCopyrightText: 2023 Datafuse Labs
//
// SPDX-License-Identifier: Apache-2.0

package driver

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Textual layouts of temporal values on the wire.
const (
	dateFormat      = "2006-01-02"
	timestampFormat = "2006-01-02 15:04:05.999999"
)

// stripNullable unwraps one level of Nullable(...) from a column type name.
func stripNullable(typ string) (string, bool) {
	const prefix = "nullable("
	if len(typ) > len(prefix)+1 && strings.EqualFold(typ[:len(prefix)], prefix) && typ[len(typ)-1] == ')' {
		return typ[len(prefix) : len(typ)-1], true
	}
	return typ, false
}

// baseTypeName reduces a column type to its lower case constructor name,
// e.g. "Decimal(15, 2)" to "decimal".
func baseTypeName(typ string) string {
	if i := strings.IndexByte(typ, '('); i >= 0 {
		typ = typ[:i]
	}
	return strings.ToLower(strings.TrimSpace(typ))
}

/*
decodeValue converts one textual result cell into a typed Go value driven by
the column type:

	Boolean                    bool
	Int8 .. Int64              int64
	UInt8 .. UInt64            uint64
	Float32, Float64           float64
	Decimal(p, s)              decimal.Decimal
	Date                       time.Time
	Timestamp                  time.Time
	String                     string

A nil cell decodes to nil. Composite and unrecognized types keep their server
side textual form.
*/
func decodeValue(raw *string, typ string) (any, error) {
	if raw == nil {
		return nil, nil
	}
	s := *raw
	base, _ := stripNullable(typ)
	switch baseTypeName(base) {
	case "boolean":
		switch s {
		case "1", "true", "TRUE":
			return true, nil
		case "0", "false", "FALSE":
			return false, nil
		}
		return nil, fmt.Errorf("decode %s value %q", typ, s)
	case "int8", "int16", "int32", "int64":
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode %s value %q: %w", typ, s, err)
		}
		return v, nil
	case "uint8", "uint16", "uint32", "uint64":
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode %s value %q: %w", typ, s, err)
		}
		return v, nil
	case "float32", "float64":
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("decode %s value %q: %w", typ, s, err)
		}
		return v, nil
	case "decimal":
		v, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("decode %s value %q: %w", typ, s, err)
		}
		return v, nil
	case "date":
		v, err := time.Parse(dateFormat, s)
		if err != nil {
			return nil, fmt.Errorf("decode %s value %q: %w", typ, s, err)
		}
		return v, nil
	case "timestamp", "datetime":
		v, err := time.Parse(timestampFormat, s)
		if err != nil {
			return nil, fmt.Errorf("decode %s value %q: %w", typ, s, err)
		}
		return v, nil
	default:
		// String, Array(...), Map(...), Tuple(...), Variant, Bitmap, ...
		return s, nil
	}
}

// FormatValue renders a decoded value back into its textual form. NULL
// renders as nullText.
func FormatValue(v any, nullText string) string {
	switch v := v.(type) {
	case nil:
		return nullText
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case decimal.Decimal:
		return v.String()
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			return v.Format(dateFormat)
		}
		return v.Format(timestampFormat)
	default:
		return fmt.Sprint(v)
	}
}
