package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Schema is the subset of JSON Schema used to describe request bodies.
type Schema struct {
	Type        string             `json:"type,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Description string             `json:"description,omitempty"`
	Enum        []any              `json:"enum,omitempty"`
	Minimum     *float64           `json:"minimum,omitempty"`
	Maximum     *float64           `json:"maximum,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
}

// Generate derives a schema from the type of v.
func Generate(v any) (*Schema, error) {
	if v == nil {
		return nil, fmt.Errorf("schema: cannot derive a schema from nil")
	}
	return FromType(reflect.TypeOf(v))
}

// For derives a schema from T.
func For[T any]() (*Schema, error) {
	return FromType(reflect.TypeFor[T]())
}

// FromType derives a schema from t.
func FromType(t reflect.Type) (*Schema, error) {
	return fromType(t, map[reflect.Type]bool{})
}

func fromType(t reflect.Type, visiting map[reflect.Type]bool) (*Schema, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Struct:
		// A self-referencing struct is described as a plain object below
		// the first level.
		if visiting[t] {
			return &Schema{Type: typeObject}, nil
		}
		visiting[t] = true
		defer delete(visiting, t)
		return structSchema(t, visiting)
	case reflect.String:
		return &Schema{Type: typeString}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: typeInteger}, nil
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: typeNumber}, nil
	case reflect.Bool:
		return &Schema{Type: typeBoolean}, nil
	case reflect.Slice, reflect.Array:
		items, err := fromType(t.Elem(), visiting)
		if err != nil {
			return nil, err
		}
		return &Schema{Type: typeArray, Items: items}, nil
	case reflect.Map:
		return &Schema{Type: typeObject}, nil
	case reflect.Interface:
		return &Schema{}, nil
	default:
		return nil, fmt.Errorf("schema: unsupported kind %s", t.Kind())
	}
}

func structSchema(t reflect.Type, visiting map[reflect.Type]bool) (*Schema, error) {
	s := &Schema{
		Type:       typeObject,
		Properties: make(map[string]*Schema),
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name := field.Name
		if tag := field.Tag.Get("json"); tag != "" {
			if tag == "-" {
				continue
			}
			if n, _, _ := strings.Cut(tag, ","); n != "" {
				name = n
			}
		}

		fs, err := fromType(field.Type, visiting)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.Name(), field.Name, err)
		}
		required, err := applyTag(fs, field.Tag.Get("jsonschema"))
		if err != nil {
			return nil, fmt.Errorf("schema: %s.%s: %w", t.Name(), field.Name, err)
		}
		if required {
			s.Required = append(s.Required, name)
		}
		s.Properties[name] = fs
	}

	return s, nil
}

// applyTag reads a jsonschema tag such as
// `jsonschema:"required,minimum=1,enum=small|medium|large"` into s.
func applyTag(s *Schema, tag string) (required bool, err error) {
	if tag == "" {
		return false, nil
	}

	for _, part := range strings.Split(tag, ",") {
		key, value, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch key {
		case "required":
			required = true
		case "description":
			s.Description = value
		case "minimum", "maximum":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return false, fmt.Errorf("invalid %s %q", key, value)
			}
			if key == "minimum" {
				s.Minimum = &f
			} else {
				s.Maximum = &f
			}
		case "enum":
			for _, v := range strings.Split(value, "|") {
				s.Enum = append(s.Enum, v)
			}
		case "":
		default:
			return false, fmt.Errorf("unknown jsonschema option %q", key)
		}
	}
	return required, nil
}
