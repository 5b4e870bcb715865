package mir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/li-script/lightning-sub000/internal/bytecode"
	"github.com/li-script/lightning-sub000/internal/ir"
)

func TestFingerprintIsStableAndDistinguishesCode(t *testing.T) {
	a := &bytecode.Prototype{NumLocals: 2, Code: []bytecode.Insn{bytecode.New(bytecode.MOV, 0, 1, 0)}}
	b := &bytecode.Prototype{NumLocals: 2, Code: []bytecode.Insn{bytecode.New(bytecode.MOV, 0, 1, 0)}}
	c := &bytecode.Prototype{NumLocals: 2, Code: []bytecode.Insn{bytecode.New(bytecode.MOV, 0, 2, 0)}}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))
}

func TestCacheLowerReusesResultForIdenticalPrototype(t *testing.T) {
	cache := NewCache()

	build := func() *ir.Procedure {
		p := ir.NewProcedure(&bytecode.Prototype{NumLocals: 2})
		b := p.Entry()
		ret := p.NewInstruction(ir.OpRet)
		b.Append(ret)
		p.Topological = true
		return p
	}

	proc1 := build()
	mp1 := cache.Lower(proc1)
	require.NotNil(t, mp1)
	assert.Equal(t, 1, cache.Len())

	proc2 := build()
	mp2 := cache.Lower(proc2)
	assert.Same(t, mp1, mp2, "identical prototype fingerprint must hit the cache")
	assert.Equal(t, 1, cache.Len())
}
