package tablemap

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// ColumnType is the database type tag of a mapped column. Every bound
// parameter is normalized for its column type before it reaches the driver.
type ColumnType uint8

// Column types.
const (
	TypeString ColumnType = iota // generic string, the fallback for unknown types
	TypeText
	TypeVarChar
	TypeInt32
	TypeInt64
	TypeDecimal
	TypeDouble
	TypeBool
	TypeDate
	TypeTime
	TypeDateTime
	TypeBlob
)

var columnTypeNames = [...]string{
	TypeString:   "string",
	TypeText:     "text",
	TypeVarChar:  "varchar",
	TypeInt32:    "int32",
	TypeInt64:    "int64",
	TypeDecimal:  "decimal",
	TypeDouble:   "double",
	TypeBool:     "bool",
	TypeDate:     "date",
	TypeTime:     "time",
	TypeDateTime: "datetime",
	TypeBlob:     "blob",
}

// String returns the column type name.
func (t ColumnType) String() string {
	if int(t) < len(columnTypeNames) {
		return columnTypeNames[t]
	}
	return fmt.Sprintf("ColumnType(%d)", t)
}

// MarshalText implements encoding.TextMarshaler.
func (t ColumnType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

var (
	timeType    = reflect.TypeFor[time.Time]()
	dateType    = reflect.TypeFor[Date]()
	clockType   = reflect.TypeFor[Clock]()
	decimalType = reflect.TypeFor[decimal.Decimal]()
	uuidType    = reflect.TypeFor[uuid.UUID]()
	bytesType   = reflect.TypeFor[[]byte]()
)

// DefaultColumnType infers the column type of a native Go type. Pointers are
// looked through; unknown types map to TypeString.
func DefaultColumnType(t reflect.Type) ColumnType {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t {
	case decimalType:
		return TypeDecimal
	case dateType:
		return TypeDate
	case clockType:
		return TypeTime
	case timeType:
		return TypeDateTime
	case bytesType:
		return TypeBlob
	}
	switch t.Kind() {
	case reflect.String:
		return TypeText
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16:
		return TypeInt32
	case reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		return TypeInt64
	case reflect.Float32, reflect.Float64:
		return TypeDouble
	case reflect.Bool:
		return TypeBool
	}
	return TypeString
}

// bind normalizes a native value for the column type. nil binds NULL.
func (t ColumnType) bind(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case TypeInt32, TypeInt64:
		return cast.ToInt64E(v)
	case TypeDouble:
		return cast.ToFloat64E(v)
	case TypeBool:
		return cast.ToBoolE(v)
	case TypeDecimal:
		if d, ok := v.(decimal.Decimal); ok {
			return d.String(), nil
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, err
		}
		return d.String(), nil
	case TypeDate:
		tm, err := asTime(v)
		if err != nil {
			return nil, err
		}
		return tm.Format(time.DateOnly), nil
	case TypeTime:
		if c, ok := v.(Clock); ok {
			return c.String(), nil
		}
		tm, err := asTime(v)
		if err != nil {
			return nil, err
		}
		return tm.Format(time.TimeOnly), nil
	case TypeDateTime:
		return asTime(v)
	case TypeBlob:
		switch b := v.(type) {
		case []byte:
			return b, nil
		case string:
			return []byte(b), nil
		}
		return nil, fmt.Errorf("cannot bind %T as %s", v, t)
	default:
		if valuer, ok := v.(driver.Valuer); ok {
			return valuer.Value()
		}
		return cast.ToStringE(v)
	}
}

func asTime(v any) (time.Time, error) {
	switch tm := v.(type) {
	case time.Time:
		return tm, nil
	case Date:
		return tm.Time, nil
	}
	return cast.ToTimeE(v)
}
