package vm

import (
	"corevm/internal/bytecode"
	"corevm/internal/errors"
	"corevm/internal/value"
)

// getIter implements GetIter (spec.md §4.5): "obtains the iteration
// protocol object for a given collection" — containers snapshot into a
// position-tracking IteratorObj, ranges get the dedicated RangeIterObj
// fast path, and generators/coroutines are already their own iterator.
func (vm *VM) getIter(v value.Value) (value.Value, error) {
	switch {
	case value.IsList(v):
		return value.Iterator(append([]value.Value{}, value.AsList(v).Elements...)), nil
	case value.IsTuple(v):
		return value.Iterator(append([]value.Value{}, value.AsTuple(v).Elements...)), nil
	case value.IsString(v):
		s := value.AsString(v).Value
		items := make([]value.Value, len(s))
		for i, r := range []byte(s) {
			items[i] = value.String(string(r))
		}
		return value.Iterator(items), nil
	case value.IsBytes(v):
		b := value.AsBytes(v).Value
		items := make([]value.Value, len(b))
		for i, x := range b {
			items[i] = value.CachedInt(int64(x))
		}
		return value.Iterator(items), nil
	case value.IsSet(v):
		items := make([]value.Value, 0, len(value.AsSet(v).Items))
		for _, e := range value.AsSet(v).Items {
			items = append(items, e)
		}
		return value.Iterator(items), nil
	case value.IsMap(v):
		m := value.AsMap(v)
		items := make([]value.Value, 0, len(m.KeyOrder))
		for _, k := range m.KeyOrder {
			items = append(items, value.String(k))
		}
		return value.Iterator(items), nil
	case value.IsRange(v):
		r := value.AsRange(v)
		return value.RangeIter(r.Start, r.Stop, r.Step), nil
	case value.IsGenerator(v), value.IsCoroutine(v), value.IsIterator(v), value.IsRangeIter(v):
		return v, nil
	default:
		return value.Nil(), errors.New(errors.TypeMismatch, "'%s' object is not iterable", value.TypeName(v))
	}
}

// forIter implements the per-iteration step of the ForIter opcode: advance
// the iterator in register A, deposit the next item in register B, or
// report exhaustion so step() jumps to the loop's end pc.
func (vm *VM) forIter(frame *Frame, instr bytecode.Instruction) (bool, error) {
	it := frame.Registers[instr.A]
	switch {
	case value.IsRangeIter(it):
		r := value.AsRangeIter(it)
		if (r.Step > 0 && r.Current >= r.Stop) || (r.Step < 0 && r.Current <= r.Stop) {
			return true, nil
		}
		frame.Registers[instr.B] = value.CachedInt(r.Current)
		r.Current += r.Step
		return false, nil

	case value.IsIterator(it):
		iter := value.AsIterator(it)
		if iter.Index >= len(iter.Items) {
			return true, nil
		}
		frame.Registers[instr.B] = iter.Items[iter.Index]
		iter.Index++
		return false, nil

	case value.IsGenerator(it):
		val, done, err := vm.resumeGenerator(it)
		if err != nil {
			return false, err
		}
		if done {
			return true, nil
		}
		frame.Registers[instr.B] = val
		return false, nil

	default:
		return false, errors.New(errors.TypeMismatch, "'%s' object is not an iterator", value.TypeName(it))
	}
}

// Next is the exported form of explicitNext, the entry point a hosted
// next() builtin calls (spec.md §6).
func (vm *VM) Next(it value.Value) (value.Value, error) { return vm.explicitNext(it) }

// Iter is the exported form of getIter, the entry point a hosted iter()
// builtin calls.
func (vm *VM) Iter(v value.Value) (value.Value, error) { return vm.getIter(v) }

// explicitNext implements the Next opcode: a single manual advance of an
// iterator (used by the Next opcode and, through Next, the built-in
// next(); YieldFrom resumes its generator directly), raising
// StopIteration on exhaustion rather than signalling a jump the way
// ForIter does.
func (vm *VM) explicitNext(it value.Value) (value.Value, error) {
	switch {
	case value.IsRangeIter(it):
		r := value.AsRangeIter(it)
		if (r.Step > 0 && r.Current >= r.Stop) || (r.Step < 0 && r.Current <= r.Stop) {
			return value.Nil(), errors.New(errors.StopIteration, "")
		}
		v := value.CachedInt(r.Current)
		r.Current += r.Step
		return v, nil

	case value.IsIterator(it):
		iter := value.AsIterator(it)
		if iter.Index >= len(iter.Items) {
			return value.Nil(), errors.New(errors.StopIteration, "")
		}
		v := iter.Items[iter.Index]
		iter.Index++
		return v, nil

	case value.IsGenerator(it):
		val, done, err := vm.resumeGenerator(it)
		if err != nil {
			return value.Nil(), err
		}
		if done {
			return value.Nil(), errors.New(errors.StopIteration, "")
		}
		return val, nil

	default:
		return value.Nil(), errors.New(errors.TypeMismatch, "'%s' object is not an iterator", value.TypeName(it))
	}
}
