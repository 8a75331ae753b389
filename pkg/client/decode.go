package client

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/quillorm/quill/pkg/schema"
)

// DecodeRecord copies a record's scalar fields into a struct, matching
// columns by `db` tag or, absent one, by the snake_case of the field name.
func DecodeRecord(rec Record, dest interface{}) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("dest must be a pointer to a struct")
	}
	elem := v.Elem()
	t := elem.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		col := sf.Tag.Get("db")
		if col == "" {
			col = schema.SnakeCase(sf.Name)
		}
		raw, ok := rec[col]
		if !ok || raw == nil {
			continue
		}
		if err := assignValue(elem.Field(i), raw); err != nil {
			return fmt.Errorf("field %s: %w", sf.Name, err)
		}
	}
	return nil
}

func assignValue(fv reflect.Value, raw any) error {
	rv := reflect.ValueOf(raw)
	if rv.Type().AssignableTo(fv.Type()) {
		fv.Set(rv)
		return nil
	}

	switch fv.Interface().(type) {
	case uuid.UUID:
		id, err := uuid.Parse(asString(raw))
		if err != nil {
			return fmt.Errorf("parse uuid: %w", err)
		}
		fv.Set(reflect.ValueOf(id))
		return nil
	case time.Time:
		ts, err := time.Parse(time.RFC3339, asString(raw))
		if err != nil {
			return fmt.Errorf("parse time: %w", err)
		}
		fv.Set(reflect.ValueOf(ts))
		return nil
	}

	if b, ok := raw.([]byte); ok && fv.Kind() == reflect.String {
		fv.SetString(string(b))
		return nil
	}
	if rv.Type().ConvertibleTo(fv.Type()) {
		fv.Set(rv.Convert(fv.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", raw, fv.Type())
}

func asString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
