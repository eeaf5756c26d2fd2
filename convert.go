package tablemap

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// Date is a calendar date without a time of day. It maps to TypeDate.
type Date struct {
	time.Time
}

// NewDate returns the date y-m-d in UTC.
func NewDate(y int, m time.Month, d int) Date {
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// String returns the date in ISO 8601 form.
func (d Date) String() string { return d.Format(time.DateOnly) }

// Clock is a time of day without a date. It maps to TypeTime.
type Clock struct {
	Hour, Minute, Second int
}

// String returns the time of day as hh:mm:ss.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// ParseClock parses a hh:mm:ss time of day.
func ParseClock(s string) (Clock, error) {
	tm, err := time.Parse(time.TimeOnly, s)
	if err != nil {
		return Clock{}, err
	}
	return clockOf(tm), nil
}

func clockOf(tm time.Time) Clock {
	return Clock{Hour: tm.Hour(), Minute: tm.Minute(), Second: tm.Second()}
}

// isEnum reports whether t is a named integer type, the Go rendering of an
// enumeration.
func isEnum(t reflect.Type) bool {
	if t.PkgPath() == "" {
		return false
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// nullable reports whether t can hold NULL.
func nullable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		return true
	}
	return false
}

// nativeValue unwraps pointers and reduces enumerations to their integral
// representation. A nil pointer yields nil.
func nativeValue(rv reflect.Value) any {
	if !rv.IsValid() {
		return nil
	}
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	t := rv.Type()
	switch {
	case isEnum(t) && rv.CanInt():
		return rv.Int()
	case isEnum(t):
		return int64(rv.Uint())
	case t.Kind() == reflect.String && t.PkgPath() != "":
		return rv.String()
	}
	return rv.Interface()
}

// convertValue coerces a value read from a row into the native type t.
// It returns a ConversionError without the property name set.
func convertValue(t reflect.Type, raw any) (reflect.Value, error) {
	if raw == nil {
		if nullable(t) {
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, &ConversionError{To: t.String()}
	}
	if t.Kind() == reflect.Pointer {
		inner, err := convertValue(t.Elem(), raw)
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(inner)
		return p, nil
	}
	rv := reflect.ValueOf(raw)
	if rv.Type() == t {
		return rv, nil
	}
	out, err := convertSpecial(t, raw)
	if err != nil || out.IsValid() {
		return out, err
	}
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}
	out = reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.String:
		s, err := cast.ToStringE(raw)
		if err != nil {
			return reflect.Value{}, conversionErr(t, raw, err)
		}
		out.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := cast.ToInt64E(raw)
		if err != nil {
			return reflect.Value{}, conversionErr(t, raw, err)
		}
		if out.OverflowInt(n) {
			return reflect.Value{}, conversionErr(t, raw, strconv.ErrRange)
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := cast.ToUint64E(raw)
		if err != nil {
			return reflect.Value{}, conversionErr(t, raw, err)
		}
		if out.OverflowUint(n) {
			return reflect.Value{}, conversionErr(t, raw, strconv.ErrRange)
		}
		out.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return reflect.Value{}, conversionErr(t, raw, err)
		}
		out.SetFloat(f)
	case reflect.Bool:
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return reflect.Value{}, conversionErr(t, raw, err)
		}
		out.SetBool(b)
	case reflect.Interface:
		if !rv.Type().Implements(t) {
			return reflect.Value{}, conversionErr(t, raw, nil)
		}
		out.Set(rv)
	default:
		if !rv.Type().ConvertibleTo(t) {
			return reflect.Value{}, conversionErr(t, raw, nil)
		}
		return rv.Convert(t), nil
	}
	return out, nil
}

// convertSpecial handles the library and calendar types. It returns an
// invalid Value when t is not one of them.
func convertSpecial(t reflect.Type, raw any) (reflect.Value, error) {
	switch t {
	case bytesType:
		switch v := raw.(type) {
		case string:
			return reflect.ValueOf([]byte(v)), nil
		}
		return reflect.Value{}, conversionErr(t, raw, nil)
	case decimalType:
		var (
			d   decimal.Decimal
			err error
		)
		switch v := raw.(type) {
		case float64:
			d = decimal.NewFromFloat(v)
		case float32:
			d = decimal.NewFromFloat32(v)
		case int64:
			d = decimal.NewFromInt(v)
		case []byte:
			d, err = decimal.NewFromString(string(v))
		default:
			var s string
			if s, err = cast.ToStringE(v); err == nil {
				d, err = decimal.NewFromString(s)
			}
		}
		if err != nil {
			return reflect.Value{}, conversionErr(t, raw, err)
		}
		return reflect.ValueOf(d), nil
	case uuidType:
		var (
			id  uuid.UUID
			err error
		)
		switch v := raw.(type) {
		case []byte:
			if len(v) == 16 {
				id, err = uuid.FromBytes(v)
			} else {
				id, err = uuid.ParseBytes(v)
			}
		case string:
			id, err = uuid.Parse(v)
		default:
			err = fmt.Errorf("unsupported source type")
		}
		if err != nil {
			return reflect.Value{}, conversionErr(t, raw, err)
		}
		return reflect.ValueOf(id), nil
	case timeType, dateType:
		tm, err := toTime(raw)
		if err != nil {
			return reflect.Value{}, conversionErr(t, raw, err)
		}
		if t == dateType {
			y, m, d := tm.Date()
			return reflect.ValueOf(NewDate(y, m, d)), nil
		}
		return reflect.ValueOf(tm), nil
	case clockType:
		switch v := raw.(type) {
		case time.Time:
			return reflect.ValueOf(clockOf(v)), nil
		case []byte:
			raw = string(v)
		}
		s, ok := raw.(string)
		if !ok {
			return reflect.Value{}, conversionErr(t, raw, nil)
		}
		c, err := ParseClock(s)
		if err != nil {
			return reflect.Value{}, conversionErr(t, raw, err)
		}
		return reflect.ValueOf(c), nil
	}
	return reflect.Value{}, nil
}

func toTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case []byte:
		return cast.ToTimeE(string(v))
	}
	return cast.ToTimeE(raw)
}

func conversionErr(t reflect.Type, raw any, err error) *ConversionError {
	return &ConversionError{From: raw, To: t.String(), Err: err}
}
