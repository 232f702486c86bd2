package write

import (
	"encoding/base64"
	"fmt"
	"math"
	"time"

	"github.com/syssam/deepview/schema"
)

// FieldValidator checks a node's scalar values against its entity
// type's field declarations. It returns one error per offending field;
// an empty result accepts the node.
type FieldValidator interface {
	Validate(t *schema.EntityType, fields map[string]any) map[string]error
}

// TypeValidator is the default FieldValidator: it accepts a value when
// its dynamic type conforms to the declared field type, and nil values
// only for optional fields. Fields absent from the payload are not
// checked; requiredness on create is a storage concern.
type TypeValidator struct{}

// Validate implements FieldValidator.
func (TypeValidator) Validate(t *schema.EntityType, fields map[string]any) map[string]error {
	var issues map[string]error
	for name, value := range fields {
		f, ok := t.Field(name)
		if !ok {
			continue
		}
		if err := checkValue(f, value); err != nil {
			if issues == nil {
				issues = make(map[string]error)
			}
			issues[name] = err
		}
	}
	return issues
}

func checkValue(f schema.Field, value any) error {
	if value == nil {
		if f.Optional {
			return nil
		}
		return fmt.Errorf("field %q is not optional", f.Name)
	}
	switch f.Type {
	case schema.TypeString:
		if _, ok := value.(string); !ok {
			return typeMismatch(f, value)
		}
	case schema.TypeInt:
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		case float64:
			// JSON numbers decode as float64; accept integral values.
			if v != math.Trunc(v) {
				return typeMismatch(f, value)
			}
		default:
			return typeMismatch(f, value)
		}
	case schema.TypeFloat:
		switch value.(type) {
		case float32, float64, int, int64:
		default:
			return typeMismatch(f, value)
		}
	case schema.TypeBool:
		if _, ok := value.(bool); !ok {
			return typeMismatch(f, value)
		}
	case schema.TypeTime:
		switch v := value.(type) {
		case time.Time:
		case string:
			if _, err := time.Parse(time.RFC3339, v); err != nil {
				return fmt.Errorf("field %q: %w", f.Name, err)
			}
		default:
			return typeMismatch(f, value)
		}
	case schema.TypeBytes:
		switch v := value.(type) {
		case []byte:
		case string:
			if _, err := base64.StdEncoding.DecodeString(v); err != nil {
				return fmt.Errorf("field %q: %w", f.Name, err)
			}
		default:
			return typeMismatch(f, value)
		}
	case schema.TypeJSON:
		// Any value round-trips through the JSON column.
	}
	return nil
}

func typeMismatch(f schema.Field, value any) error {
	return fmt.Errorf("field %q expects %s, got %T", f.Name, f.Type, value)
}
