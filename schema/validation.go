package schema

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

const (
	typeObject  = "object"
	typeArray   = "array"
	typeString  = "string"
	typeInteger = "integer"
	typeNumber  = "number"
	typeBoolean = "boolean"
)

// Violation is one way a document fails its schema.
type Violation struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

func (v *Violation) Error() string {
	if v.Path == "" {
		return v.Message
	}
	return v.Path + ": " + v.Message
}

// Violations is returned by Validate when a document does not match.
type Violations []*Violation

func (v Violations) Error() string {
	switch len(v) {
	case 0:
		return ""
	case 1:
		return v[0].Error()
	}
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d violations: %s", len(v), strings.Join(msgs, "; "))
}

// Validate checks a JSON document against s.
// It returns Violations when the document is valid JSON but does not match.
func (s *Schema) Validate(data []byte) error {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return Violations{{Message: "invalid JSON: " + err.Error()}}
	}

	var out Violations
	s.check("", value, &out)
	if len(out) > 0 {
		return out
	}
	return nil
}

func (s *Schema) check(path string, value any, out *Violations) {
	// null satisfies any type; presence is enforced through Required.
	if value == nil {
		return
	}

	fail := func(format string, args ...any) {
		*out = append(*out, &Violation{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	switch s.Type {
	case typeObject:
		obj, ok := value.(map[string]any)
		if !ok {
			fail("expected object, got %s", jsonType(value))
			return
		}
		for _, name := range s.Required {
			if _, ok := obj[name]; !ok {
				*out = append(*out, &Violation{Path: join(path, name), Message: "required field is missing"})
			}
		}
		names := make([]string, 0, len(s.Properties))
		for name := range s.Properties {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			if v, ok := obj[name]; ok {
				s.Properties[name].check(join(path, name), v, out)
			}
		}

	case typeArray:
		arr, ok := value.([]any)
		if !ok {
			fail("expected array, got %s", jsonType(value))
			return
		}
		if s.Items != nil {
			for i, v := range arr {
				s.Items.check(fmt.Sprintf("%s[%d]", path, i), v, out)
			}
		}

	case typeString:
		str, ok := value.(string)
		if !ok {
			fail("expected string, got %s", jsonType(value))
			return
		}
		if len(s.Enum) > 0 && !slices.Contains(s.Enum, any(str)) {
			fail("must be one of %v", s.Enum)
		}

	case typeInteger, typeNumber:
		num, ok := value.(float64)
		if !ok {
			fail("expected %s, got %s", s.Type, jsonType(value))
			return
		}
		if s.Type == typeInteger && num != float64(int64(num)) {
			fail("expected integer, got %v", num)
			return
		}
		if s.Minimum != nil && num < *s.Minimum {
			fail("%v is less than minimum %v", num, *s.Minimum)
		}
		if s.Maximum != nil && num > *s.Maximum {
			fail("%v is greater than maximum %v", num, *s.Maximum)
		}

	case typeBoolean:
		if _, ok := value.(bool); !ok {
			fail("expected boolean, got %s", jsonType(value))
		}
	}
}

func jsonType(v any) string {
	switch v.(type) {
	case map[string]any:
		return typeObject
	case []any:
		return typeArray
	case string:
		return typeString
	case float64:
		return typeNumber
	case bool:
		return typeBoolean
	}
	return fmt.Sprintf("%T", v)
}

func join(base, field string) string {
	if base == "" {
		return field
	}
	return base + "." + field
}
