package vm

import (
	"corevm/internal/errors"
	"corevm/internal/value"
)

// objectSentinelName is the conventional root class name. computeMRO does
// not append it: a linearization ends with the last ancestor class.
const objectSentinelName = "object"

// computeMRO linearizes a class's ancestry via C3 (spec.md §4.3): for
// each class, concatenate the class, the merge of parents'
// linearizations, and the parents' list; the merge picks the first head
// that does not appear in the tail of any remaining list.
//
// Grounded on the MRO shape vmregister/value.go's ClassObj carries
// (a precomputed []ClassObj list) but the teacher never actually
// computes C3 — it only ever has single inheritance. This is new code
// written to the algorithm spec.md names, since multiple inheritance is
// exactly the gap the distillation calls out as core to this component.
func computeMRO(class *value.ClassObj) ([]*value.ClassObj, error) {
	if len(class.Bases) == 0 {
		return []*value.ClassObj{class}, nil
	}
	sequences := make([][]*value.ClassObj, 0, len(class.Bases)+1)
	for _, base := range class.Bases {
		sequences = append(sequences, append([]*value.ClassObj{}, base.MRO...))
	}
	bases := append([]*value.ClassObj{}, class.Bases...)
	sequences = append(sequences, bases)

	result := []*value.ClassObj{class}
	for {
		sequences = dropEmpty(sequences)
		if len(sequences) == 0 {
			return result, nil
		}
		var head *value.ClassObj
		for _, seq := range sequences {
			candidate := seq[0]
			if !inAnyTail(candidate, sequences) {
				head = candidate
				break
			}
		}
		if head == nil {
			return nil, errors.New(errors.TypeMismatch,
				"cannot create a consistent method resolution order for class %s", class.Name)
		}
		result = append(result, head)
		for i, seq := range sequences {
			sequences[i] = removeFirstOccurrence(seq, head)
		}
	}
}

func dropEmpty(seqs [][]*value.ClassObj) [][]*value.ClassObj {
	out := seqs[:0]
	for _, s := range seqs {
		if len(s) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func inAnyTail(c *value.ClassObj, seqs [][]*value.ClassObj) bool {
	for _, seq := range seqs {
		for _, other := range seq[1:] {
			if other == c {
				return true
			}
		}
	}
	return false
}

func removeFirstOccurrence(seq []*value.ClassObj, c *value.ClassObj) []*value.ClassObj {
	if len(seq) > 0 && seq[0] == c {
		return seq[1:]
	}
	out := make([]*value.ClassObj, 0, len(seq))
	for _, s := range seq {
		if s != c {
			out = append(out, s)
		}
	}
	return out
}

// DefineClass finalizes a class declaration: computes its MRO and bumps
// the method-cache version, since a newly defined class can shadow a
// cached lookup on any existing subclass relationship.
func (vm *VM) DefineClass(class *value.ClassObj) error {
	mro, err := computeMRO(class)
	if err != nil {
		return err
	}
	class.MRO = mro
	vm.bumpMethodCacheVersion()
	return nil
}

// propertyKind distinguishes the two property halves stored in
// ClassObj.Properties under "name:get" / "name:set" keys.
const (
	propGet = ":get"
	propSet = ":set"
)

// resolveMethod walks a class's MRO for the first method-table entry
// named `name`, consulting the global method cache first (spec.md
// §4.3). Returns the owning class alongside the method so callers can
// fill an inline cache slot.
func (vm *VM) resolveMethod(class *value.ClassObj, name string) (value.Value, *value.ClassObj, bool) {
	if cached, ok := vm.lookupGlobalMethodCache(class, name); ok {
		return cached, class, true
	}
	for _, c := range class.MRO {
		if m, ok := c.Methods[name]; ok {
			vm.storeGlobalMethodCache(class, name, m)
			return m, c, true
		}
	}
	return value.Nil(), nil, false
}

// LoadAttr implements spec.md §4.3's attribute load protocol.
func (vm *VM) LoadAttr(obj value.Value, name string) (value.Value, error) {
	if value.IsSuperProxy(obj) {
		return vm.loadSuperAttr(value.AsSuperProxy(obj), name)
	}
	if value.IsModule(obj) {
		mod := value.AsModule(obj)
		if v, ok := mod.Exports[name]; ok {
			return v, nil
		}
		return value.Nil(), errors.New(errors.AttributeMissing, "module %s has no attribute %s", mod.Name, name)
	}
	if value.IsMap(obj) {
		m := value.AsMap(obj)
		if v, ok := m.Items[name]; ok {
			if value.IsCallable(v) {
				return value.BoundMethod(name, obj, v), nil
			}
			return v, nil
		}
		return value.Nil(), errors.New(errors.AttributeMissing, "no attribute %s", name)
	}
	if !value.IsInstance(obj) {
		return value.Nil(), errors.New(errors.AttributeMissing, "'%s' object has no attribute %s", value.TypeName(obj), name)
	}
	inst := value.AsInstance(obj)

	if field, ok := inst.Fields.M[name]; ok {
		if getter, isDescriptor := vm.descriptorGet(field); isDescriptor {
			return vm.invokeDescriptorGet(getter, field, obj, inst.Class)
		}
		return field, nil
	}

	if fget, ok := inst.Class.Properties[name+propGet]; ok {
		return vm.callValue(fget, []value.Value{obj})
	}

	if method, owner, ok := vm.resolveMethod(inst.Class, name); ok {
		switch {
		case value.IsClassMethod(method):
			return value.BoundMethod(name, value.ClassValue(owner), value.AsClassMethod(method).Func), nil
		case value.IsStaticMethod(method):
			return value.AsStaticMethod(method).Func, nil
		default:
			if getter, isDescriptor := vm.descriptorGet(method); isDescriptor {
				return vm.invokeDescriptorGet(getter, method, obj, owner)
			}
			return value.BoundMethod(name, obj, method), nil
		}
	}

	return value.Nil(), errors.New(errors.AttributeMissing, "'%s' object has no attribute %s", inst.Class.Name, name)
}

func (vm *VM) loadSuperAttr(proxy *value.SuperProxyObj, name string) (value.Value, error) {
	mro := proxy.Instance.Class.MRO
	start := 0
	for i, c := range mro {
		if c == proxy.CurrentClass {
			start = i + 1
			break
		}
	}
	for _, c := range mro[start:] {
		if m, ok := c.Methods[name]; ok {
			return value.BoundMethod(name, value.InstanceValue(proxy.Instance), m), nil
		}
	}
	return value.Nil(), errors.New(errors.AttributeMissing, "'super' object has no attribute %s", name)
}

// descriptorGet reports whether a value defines the descriptor protocol
// (`__get__`), per spec.md §4.3 step 2/3. A descriptor here is any
// instance of a class whose method table has a "__get__" entry.
func (vm *VM) descriptorGet(v value.Value) (value.Value, bool) {
	if !value.IsInstance(v) {
		return value.Nil(), false
	}
	inst := value.AsInstance(v)
	if getter, _, ok := vm.resolveMethod(inst.Class, "__get__"); ok {
		return getter, true
	}
	return value.Nil(), false
}

func (vm *VM) descriptorSet(v value.Value) (value.Value, bool) {
	if !value.IsInstance(v) {
		return value.Nil(), false
	}
	inst := value.AsInstance(v)
	if setter, _, ok := vm.resolveMethod(inst.Class, "__set__"); ok {
		return setter, true
	}
	return value.Nil(), false
}

func (vm *VM) invokeDescriptorGet(getter, descriptor, obj value.Value, owner *value.ClassObj) (value.Value, error) {
	return vm.callValue(getter, []value.Value{descriptor, obj, value.ClassValue(owner)})
}

// StoreAttr implements spec.md §4.3's attribute store protocol, including
// the post-store alias rebinding across every holder of the same
// *FieldMap (spec.md: "any alias pointing to the same underlying fields
// cell... is rebound so later reads of those aliases see the mutation").
// Because InstanceObj.Fields is a shared pointer, mutating inst.Fields.M
// in place already makes every alias observe the change — there is no
// separate rebind step required beyond writing through the shared map.
func (vm *VM) StoreAttr(obj value.Value, name string, v value.Value) error {
	if !value.IsInstance(obj) {
		if value.IsModule(obj) {
			value.AsModule(obj).Exports[name] = v
			return nil
		}
		return errors.New(errors.AttributeMissing, "'%s' object attributes are not assignable", value.TypeName(obj))
	}
	inst := value.AsInstance(obj)

	if fset, ok := inst.Class.Properties[name+propSet]; ok {
		_, err := vm.callValue(fset, []value.Value{obj, v})
		return err
	}
	if _, ok := inst.Class.Properties[name+propGet]; ok {
		return errors.New(errors.AttributeMissing, "property %s has no setter", name)
	}

	if existing, ok := inst.Fields.M[name]; ok {
		if setter, isDescriptor := vm.descriptorSet(existing); isDescriptor {
			_, err := vm.callValue(setter, []value.Value{existing, obj, v})
			return err
		}
	} else if method, _, ok := vm.resolveMethod(inst.Class, name); ok {
		// A property() bound only at the class level (the normal case —
		// nothing has stored it into this instance's own fields) still
		// needs its __set__ consulted, the same way LoadAttr's resolveMethod
		// branch already consults __get__.
		if setter, isDescriptor := vm.descriptorSet(method); isDescriptor {
			_, err := vm.callValue(setter, []value.Value{method, obj, v})
			return err
		}
	}

	inst.Fields.M[name] = v
	return nil
}

// DeleteAttr removes an instance field, failing with attribute-missing
// if absent (OpDeleteAttr).
func (vm *VM) DeleteAttr(obj value.Value, name string) error {
	if !value.IsInstance(obj) {
		return errors.New(errors.AttributeMissing, "'%s' object has no attribute %s", value.TypeName(obj), name)
	}
	inst := value.AsInstance(obj)
	if _, ok := inst.Fields.M[name]; !ok {
		return errors.New(errors.AttributeMissing, "'%s' object has no attribute %s", inst.Class.Name, name)
	}
	delete(inst.Fields.M, name)
	return nil
}
