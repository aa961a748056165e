package vm

import (
	"corevm/internal/errors"
	"corevm/internal/value"
)

// subscrLoad implements SubscrLoad for list/tuple/string (int index, with
// Python-style negative wraparound) and dict (string-coerced key), per
// spec.md §4.4/§3.
func subscrLoad(obj, key value.Value) (value.Value, error) {
	switch {
	case value.IsList(obj):
		els := value.AsList(obj).Elements
		i, err := normalizeIndex(key, len(els))
		if err != nil {
			return value.Nil(), err
		}
		return els[i], nil
	case value.IsTuple(obj):
		els := value.AsTuple(obj).Elements
		i, err := normalizeIndex(key, len(els))
		if err != nil {
			return value.Nil(), err
		}
		return els[i], nil
	case value.IsString(obj):
		s := value.AsString(obj).Value
		i, err := normalizeIndex(key, len(s))
		if err != nil {
			return value.Nil(), err
		}
		return value.String(string(s[i])), nil
	case value.IsMap(obj):
		m := value.AsMap(obj)
		k := value.ToString(key)
		v, ok := m.Items[k]
		if !ok {
			return value.Nil(), errors.New(errors.KeyMissing, "%s", value.Repr(key))
		}
		return v, nil
	default:
		return value.Nil(), errors.New(errors.TypeMismatch, "'%s' object is not subscriptable", value.TypeName(obj))
	}
}

func subscrStore(obj, key, v value.Value) error {
	switch {
	case value.IsList(obj):
		list := value.AsList(obj)
		i, err := normalizeIndex(key, len(list.Elements))
		if err != nil {
			return err
		}
		list.Elements[i] = v
		return nil
	case value.IsMap(obj):
		m := value.AsMap(obj)
		k := value.ToString(key)
		if _, exists := m.Items[k]; !exists {
			m.KeyOrder = append(m.KeyOrder, k)
		}
		m.Items[k] = v
		return nil
	default:
		return errors.New(errors.TypeMismatch, "'%s' object does not support item assignment", value.TypeName(obj))
	}
}

func subscrDelete(obj, key value.Value) error {
	switch {
	case value.IsList(obj):
		list := value.AsList(obj)
		i, err := normalizeIndex(key, len(list.Elements))
		if err != nil {
			return err
		}
		list.Elements = append(list.Elements[:i], list.Elements[i+1:]...)
		return nil
	case value.IsMap(obj):
		m := value.AsMap(obj)
		k := value.ToString(key)
		if _, ok := m.Items[k]; !ok {
			return errors.New(errors.KeyMissing, "%s", value.Repr(key))
		}
		delete(m.Items, k)
		for i, existing := range m.KeyOrder {
			if existing == k {
				m.KeyOrder = append(m.KeyOrder[:i], m.KeyOrder[i+1:]...)
				break
			}
		}
		return nil
	default:
		return errors.New(errors.TypeMismatch, "'%s' object doesn't support item deletion", value.TypeName(obj))
	}
}

func normalizeIndex(key value.Value, length int) (int, error) {
	if !value.IsInt(key) {
		return 0, errors.New(errors.TypeMismatch, "indices must be integers, not '%s'", value.TypeName(key))
	}
	i := int(value.AsInt(key))
	if i < 0 {
		i += length
	}
	if i < 0 || i >= length {
		return 0, errors.New(errors.IndexOutOfRange, "index out of range")
	}
	return i, nil
}

// sliceValue implements the Slice opcode. start/stop/step registers carry
// Nil() for an omitted bound, matching the compiler's convention for
// `a[::2]`-style slices with elided ends.
func sliceValue(obj, startV, stopV, stepV value.Value) (value.Value, error) {
	step := 1
	if !value.IsNil(stepV) {
		step = int(value.AsInt(stepV))
		if step == 0 {
			return value.Nil(), errors.New(errors.ValueInvalid, "slice step cannot be zero")
		}
	}

	switch {
	case value.IsList(obj):
		els := value.AsList(obj).Elements
		start, stop := sliceBounds(startV, stopV, len(els), step)
		return value.List(sliceElements(els, start, stop, step)), nil
	case value.IsTuple(obj):
		els := value.AsTuple(obj).Elements
		start, stop := sliceBounds(startV, stopV, len(els), step)
		return value.Tuple(sliceElements(els, start, stop, step)), nil
	case value.IsString(obj):
		s := value.AsString(obj).Value
		start, stop := sliceBounds(startV, stopV, len(s), step)
		var out []byte
		if step > 0 {
			for i := start; i < stop; i += step {
				out = append(out, s[i])
			}
		} else {
			for i := start; i > stop; i += step {
				out = append(out, s[i])
			}
		}
		return value.String(string(out)), nil
	default:
		return value.Nil(), errors.New(errors.TypeMismatch, "'%s' object is not sliceable", value.TypeName(obj))
	}
}

func sliceBounds(startV, stopV value.Value, length, step int) (int, int) {
	start, stop := 0, length
	if step < 0 {
		start, stop = length-1, -1
	}
	if !value.IsNil(startV) {
		start = clampIndex(int(value.AsInt(startV)), length)
	}
	if !value.IsNil(stopV) {
		stop = clampIndex(int(value.AsInt(stopV)), length)
	}
	return start, stop
}

func clampIndex(i, length int) int {
	if i < 0 {
		i += length
	}
	if i < 0 {
		return 0
	}
	if i > length {
		return length
	}
	return i
}

func sliceElements(els []value.Value, start, stop, step int) []value.Value {
	var out []value.Value
	if step > 0 {
		for i := start; i < stop; i += step {
			out = append(out, els[i])
		}
	} else {
		for i := start; i > stop; i += step {
			out = append(out, els[i])
		}
	}
	return out
}
