package binding

import (
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

// parseQuery fills the flat scalar fields of the struct v points to. The
// parameter name comes from the `query` tag, then the `json` tag, then the
// lower-cased field name. Missing parameters fall back to the `default` tag.
func parseQuery(values url.Values, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return &BindError{Type: "bind_error", Message: "v must be a non-nil pointer"}
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return &BindError{Type: "bind_error", Message: "v must be a pointer to struct"}
	}

	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		field := rv.Field(i)
		fieldType := rt.Field(i)
		if !field.CanSet() {
			continue
		}
		name := queryName(fieldType)
		if name == "-" {
			continue
		}

		raw := values.Get(name)
		if raw == "" {
			raw = fieldType.Tag.Get("default")
		}
		if raw == "" {
			continue
		}
		if err := setField(field, raw, fieldType.Name); err != nil {
			return err
		}
	}
	return nil
}

func queryName(fieldType reflect.StructField) string {
	for _, tag := range []string{"query", "json"} {
		if name := strings.Split(fieldType.Tag.Get(tag), ",")[0]; name != "" {
			return name
		}
	}
	return strings.ToLower(fieldType.Name)
}

func setField(field reflect.Value, raw, fieldName string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return &BindError{Type: "bind_error", Field: fieldName, Message: "invalid integer value"}
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, field.Type().Bits())
		if err != nil {
			return &BindError{Type: "bind_error", Field: fieldName, Message: "invalid unsigned integer value"}
		}
		field.SetUint(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return &BindError{Type: "bind_error", Field: fieldName, Message: "invalid boolean value"}
		}
		field.SetBool(b)
	default:
		return &BindError{Type: "bind_error", Field: fieldName, Message: "unsupported field type: " + field.Kind().String()}
	}
	return nil
}
