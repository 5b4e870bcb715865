package object

// TypeSet maps negative "vm type id" integers to live Class pointers
// (§3.8). It is not a GC root; entries are dropped by Class.Finalize when
// the owning class becomes unreachable ("it is swept when classes become
// unreachable" / "the type set is maintained by destructors", §4.1).
type TypeSet struct {
	next    int32
	classes map[int32]*Class
}

// NewTypeSet creates an empty type set. Type ids start at -1 and count
// down, keeping the whole range disjoint from the non-negative ids a VM
// might use for built-in kinds.
func NewTypeSet() *TypeSet {
	return &TypeSet{next: -1, classes: map[int32]*Class{}}
}

// Register assigns cl a fresh vm type id and wires its finalizer so the
// mapping is dropped automatically when cl is collected.
func (ts *TypeSet) Register(cl *Class) int32 {
	id := ts.next
	ts.next--
	cl.VMTypeID = id
	ts.classes[id] = cl
	cl.setFinalizeHook(func(c *Class) { delete(ts.classes, c.VMTypeID) })
	return id
}

// Lookup resolves a vm type id back to its Class, or reports ok=false if
// it has since been collected.
func (ts *TypeSet) Lookup(id int32) (*Class, bool) {
	cl, ok := ts.classes[id]
	return cl, ok
}

// Len reports the number of currently live registered classes.
func (ts *TypeSet) Len() int { return len(ts.classes) }
