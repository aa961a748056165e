package value

// RcValue is the copy-on-write cell spec.md §3/§5 specifies for frame
// locals and the globals mapping: "if the value has a unique owner,
// in-place mutation is permitted; otherwise a new owner is allocated."
//
// Go's GC reclaims the backing cell regardless of the count below — the
// count exists purely to answer "am I the only RcValue pointing at this
// cell?" for the mutation decision, not for memory management. See
// DESIGN.md Open Question #2.
type RcValue struct {
	cell *rcCell
}

type rcCell struct {
	refs int32
	val  Value
}

func NewRcValue(v Value) *RcValue {
	return &RcValue{cell: &rcCell{refs: 1, val: v}}
}

func (r *RcValue) Get() Value {
	return r.cell.val
}

// Clone returns a new RcValue aliasing the same cell, incrementing its
// ref count. Two locals that both `a = b` should alias through Clone, not
// through copying the *RcValue pointer directly, so the COW count stays
// accurate.
func (r *RcValue) Clone() *RcValue {
	r.cell.refs++
	return &RcValue{cell: r.cell}
}

// Set mutates in place when this is the cell's only owner, otherwise
// detaches into a fresh cell so other aliases keep observing the old
// value — the copy-on-write contract from spec.md §3/§5.
func (r *RcValue) Set(v Value) {
	if r.cell.refs <= 1 {
		r.cell.val = v
		return
	}
	r.cell.refs--
	r.cell = &rcCell{refs: 1, val: v}
}

// Release drops this RcValue's claim on its cell, for frame-pool reuse
// and explicit local rebinding.
func (r *RcValue) Release() {
	if r.cell.refs > 0 {
		r.cell.refs--
	}
}

// Unique reports whether this RcValue is the cell's only owner.
func (r *RcValue) Unique() bool {
	return r.cell.refs <= 1
}
