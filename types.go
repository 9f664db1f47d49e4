package action

import (
	"encoding/json"
	"math"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TypeTag names a type accepted by a TypeValidator.
type TypeTag string

// Built-in tags.
const (
	TagString  TypeTag = "string"
	TagInteger TypeTag = "integer"
	TagFloat   TypeTag = "float"
	TagNumeric TypeTag = "numeric"
	TagBoolean TypeTag = "boolean"
	TagUUID    TypeTag = "uuid"
	TagMap     TypeTag = "map"
	TagList    TypeTag = "list"
	TagTime    TypeTag = "time"
)

var builtinTags = map[TypeTag]func(any) bool{
	TagString:  isString,
	TagInteger: isInteger,
	TagFloat:   isFloat,
	TagNumeric: func(v any) bool { return isInteger(v) || isFloat(v) || isJSONNumber(v) },
	TagBoolean: func(v any) bool { _, ok := v.(bool); return ok },
	TagUUID:    isUUID,
	TagMap:     func(v any) bool { return kindOf(v) == reflect.Map },
	TagList:    func(v any) bool { k := kindOf(v); return k == reflect.Slice || k == reflect.Array },
	TagTime:    isTime,
}

// reflectTags holds tags registered through TagFor.
var reflectTags sync.Map // TypeTag -> reflect.Type

// TagFor returns a tag matching values assignable to T. When T is an
// interface, any value implementing it matches.
func TagFor[T any]() TypeTag {
	t := reflect.TypeOf((*T)(nil)).Elem()
	tag := TypeTag("go:" + t.String())
	reflectTags.LoadOrStore(tag, t)
	return tag
}

func knownTag(tag TypeTag) bool {
	if _, ok := builtinTags[tag]; ok {
		return true
	}
	_, ok := reflectTags.Load(tag)
	return ok
}

func matchTag(tag TypeTag, v any) bool {
	if fn, ok := builtinTags[tag]; ok {
		return fn(v)
	}
	t, ok := reflectTags.Load(tag)
	if !ok || v == nil {
		return false
	}
	return reflect.TypeOf(v).AssignableTo(t.(reflect.Type))
}

func kindOf(v any) reflect.Kind {
	if v == nil {
		return reflect.Invalid
	}
	return reflect.TypeOf(v).Kind()
}

func isString(v any) bool {
	if _, ok := v.(json.Number); ok {
		return false
	}
	return kindOf(v) == reflect.String
}

func isInteger(v any) bool {
	switch kindOf(v) {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	case reflect.Float32, reflect.Float64:
		// JSON decodes every number as float64.
		f := reflect.ValueOf(v).Float()
		return !math.IsInf(f, 0) && f == math.Trunc(f)
	}
	if n, ok := v.(json.Number); ok {
		_, err := n.Int64()
		return err == nil
	}
	return false
}

func isFloat(v any) bool {
	if n, ok := v.(json.Number); ok {
		_, err := n.Float64()
		return err == nil
	}
	k := kindOf(v)
	return k == reflect.Float32 || k == reflect.Float64
}

func isJSONNumber(v any) bool {
	_, ok := v.(json.Number)
	return ok
}

func isUUID(v any) bool {
	if u, ok := v.(uuid.UUID); ok {
		return u != uuid.Nil
	}
	s, ok := v.(string)
	if !ok || len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func isTime(v any) bool {
	switch t := v.(type) {
	case time.Time:
		return true
	case *time.Time:
		return t != nil
	}
	return false
}

// isBlank reports whether v is absent or empty: nil, a nil pointer, a
// whitespace-only string, or an empty collection.
func isBlank(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return strings.TrimSpace(rv.String()) == ""
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// tagNames renders tags for messages: "string or integer".
func tagNames(tags []TypeTag) string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = strings.TrimPrefix(string(t), "go:")
	}
	return strings.Join(names, " or ")
}
