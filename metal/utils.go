package metal

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// GuidFor returns a stable identifier for v. Objects use their guid,
// strings hash their contents, other values fall back to their formatted
// form or address.
func GuidFor(v any) string {
	switch t := v.(type) {
	case nil:
		return "(nil)"
	case *Object:
		return "metal" + strconv.FormatUint(t.guid, 10)
	case string:
		return "st" + strconv.FormatUint(xxhash.Sum64String(t), 36)
	case bool:
		return "(" + strconv.FormatBool(t) + ")"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return "nu" + fmt.Sprint(t)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return fmt.Sprintf("%T@%x", v, rv.Pointer())
	}
	return fmt.Sprintf("%T:%v", v, v)
}

// Inspect renders an object and its own plain values for debugging.
func Inspect(obj *Object) string {
	if obj == nil {
		return "<nil>"
	}
	var sb strings.Builder
	sb.WriteString("<Object:")
	sb.WriteString(GuidFor(obj))
	if obj.prototype {
		sb.WriteString(" prototype")
	}
	keys := obj.Keys()
	if len(keys) > 0 {
		sb.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteString(": ")
			switch v := obj.props[k].(type) {
			case *Object:
				sb.WriteString("<Object:" + GuidFor(v) + ">")
			case Descriptor:
				sb.WriteString("<descriptor>")
			default:
				sb.WriteString(fmt.Sprint(v))
			}
		}
		sb.WriteString("}")
	}
	sb.WriteString(">")
	return sb.String()
}

// identical is the "same value" test used to skip no-op sets. Values of
// types that cannot be compared are equal only when they share storage.
func identical(a, b any) (same bool) {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if !ta.Comparable() {
		va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
		switch ta.Kind() {
		case reflect.Map:
			return va.Pointer() == vb.Pointer()
		case reflect.Slice:
			return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
		}
		return false
	}
	// structs holding interfaces can still panic on ==
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
