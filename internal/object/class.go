package object

import (
	"github.com/li-script/lightning-sub000/internal/heap"
	"github.com/li-script/lightning-sub000/internal/trait"
	"github.com/li-script/lightning-sub000/internal/value"
)

// FieldInfo describes one declared field of a class (§3.8): its type,
// byte offset into either the static or per-instance data area, and
// whether it is static, and/or only assignable dynamically.
type FieldInfo struct {
	Type     value.Kind
	IsAny    bool // field declared `any`, so it must always be traversed
	Offset   int
	IsStatic bool
	IsDyn    bool
}

// Class carries a name, optional superclass, the field table, a static
// data area, a "default" data area used to initialize new instances, and
// an implicit constructor (§3.8).
type Class struct {
	hdr *heap.Header

	Name   *String
	Super  *Class
	Ctor   *Function
	Traits trait.Set

	Fields      map[string]FieldInfo
	fieldOrder  []string
	StaticData  []value.Value // indexed by FieldInfo.Offset for static fields
	DefaultData []value.Value // per-instance initializer template

	// VMTypeID is the negative vm-wide type identifier assigned by the
	// owning TypeSet when the class is registered (§3.8).
	VMTypeID int32

	onFinalize classFinalizeHook
}

// NewClass allocates a class with an empty field table; AddField populates
// it before the class is used to instantiate objects.
func NewClass(h *heap.Heap, name *String, super *Class) (*Class, bool) {
	hdr, ok := h.Alloc(value.KindClass, true, 0)
	if !ok {
		return nil, false
	}
	c := &Class{hdr: hdr, Name: name, Super: super, Fields: map[string]FieldInfo{}}
	hdr.Bind(c)
	return c, true
}

func (c *Class) Value() value.Value { return c.hdr.Value() }

// AddField declares a new field, appending a static or per-instance data
// slot as appropriate and returning the assigned offset.
func (c *Class) AddField(name string, fi FieldInfo) FieldInfo {
	if fi.IsStatic {
		fi.Offset = len(c.StaticData)
		c.StaticData = append(c.StaticData, value.Nil)
	} else {
		fi.Offset = len(c.DefaultData)
		c.DefaultData = append(c.DefaultData, value.Nil)
	}
	c.Fields[name] = fi
	c.fieldOrder = append(c.fieldOrder, name)
	return fi
}

// Field looks up a field by name, walking the superclass chain.
func (c *Class) Field(name string) (FieldInfo, *Class, bool) {
	for cur := c; cur != nil; cur = cur.Super {
		if fi, ok := cur.Fields[name]; ok {
			return fi, cur, true
		}
	}
	return FieldInfo{}, nil, false
}

// ObjectLength returns the per-instance data area size, matching the
// original's object_length (§3.8).
func (c *Class) ObjectLength() int { return len(c.DefaultData) }

// Traverse marks super, name, every static field's Value, the
// constructor, and any attached traits (§4.1: "classes mark super, name,
// fields, constructor").
func (c *Class) Traverse(mark func(value.Value)) {
	if c.Super != nil {
		mark(c.Super.Value())
	}
	if c.Name != nil {
		mark(c.Name.Value())
	}
	if c.Ctor != nil {
		mark(c.Ctor.Value())
	}
	for _, v := range c.StaticData {
		if v.IsGC() {
			mark(v)
		}
	}
	c.Traits.Traverse(mark)
}

// Finalize runs when a class becomes unreachable; the owning TypeSet drops
// its vm_tid -> class mapping (§3.8: "a VM-wide type set ... is swept when
// classes become unreachable").
func (c *Class) Finalize() {
	if c.onFinalize != nil {
		c.onFinalize(c)
	}
}

// onFinalize is wired by TypeSet.Register so Finalize can unregister the
// class without Class depending on TypeSet's package-level state.
type classFinalizeHook = func(*Class)

func (c *Class) setFinalizeHook(fn classFinalizeHook) { c.onFinalize = fn }

// Object is an instance of a user Class (§3.8): its data area is laid out
// according to the class's field table, initialized from the class's
// DefaultData.
type Object struct {
	hdr  *heap.Header
	Cl   *Class
	data []value.Value
}

// NewObject allocates an instance of cl, copying its DefaultData as the
// initial per-field values.
func NewObject(h *heap.Heap, cl *Class) (*Object, bool) {
	hdr, ok := h.Alloc(value.KindObject, true, 0)
	if !ok {
		return nil, false
	}
	o := &Object{hdr: hdr, Cl: cl, data: append([]value.Value(nil), cl.DefaultData...)}
	hdr.Bind(o)
	return o, true
}

func (o *Object) Value() value.Value { return o.hdr.Value() }

// Get reads a declared field by name, returning Nil if undeclared.
func (o *Object) Get(name string) value.Value {
	fi, owner, ok := o.Cl.Field(name)
	if !ok {
		return value.Nil
	}
	if fi.IsStatic {
		return owner.StaticData[fi.Offset]
	}
	if fi.Offset >= len(o.data) {
		return value.Nil
	}
	return o.data[fi.Offset]
}

// Set writes a declared field by name, reporting ok=false if the field is
// undeclared or the class's trait set forbids mutation (freeze).
func (o *Object) Set(name string, v value.Value) (ok bool) {
	if err := o.Cl.Traits.CheckMutable(); err != nil {
		return false
	}
	fi, owner, found := o.Cl.Field(name)
	if !found {
		return false
	}
	if fi.IsStatic {
		owner.StaticData[fi.Offset] = v
		return true
	}
	if fi.Offset >= len(o.data) {
		return false
	}
	o.data[fi.Offset] = v
	return true
}

// Traverse marks the class pointer and every per-field Value whose
// declared type is `any` or a GC kind (§4.1: "objects mark per-field
// pointers using the class's field layout and type tags").
func (o *Object) Traverse(mark func(value.Value)) {
	mark(o.Cl.Value())
	for name, fi := range o.Cl.Fields {
		_ = name
		if fi.IsStatic || fi.Offset >= len(o.data) {
			continue
		}
		if fi.IsAny || fi.Type.IsGC() {
			v := o.data[fi.Offset]
			if v.IsGC() {
				mark(v)
			}
		}
	}
}

// Duplicate creates a shallow copy of the object's data area.
func (o *Object) Duplicate(h *heap.Heap) (*Object, bool) {
	dup, ok := NewObject(h, o.Cl)
	if !ok {
		return nil, false
	}
	copy(dup.data, o.data)
	return dup, true
}
