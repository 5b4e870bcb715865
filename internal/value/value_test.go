package value

import (
	"math"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilExceptionDistinct(t *testing.T) {
	assert.True(t, Nil.IsNil())
	assert.True(t, Exception.IsException())
	assert.False(t, Nil.Equals(Exception))
	assert.Equal(t, KindNil, Nil.Kind())
	assert.Equal(t, KindException, Exception.Kind())
}

func TestBoolRoundTrip(t *testing.T) {
	tr, fa := Bool(true), Bool(false)
	assert.True(t, tr.IsBool())
	assert.True(t, tr.AsBool())
	assert.False(t, fa.AsBool())
	assert.True(t, tr.CoerceBool())
	assert.False(t, fa.CoerceBool())
	assert.False(t, Nil.CoerceBool())
}

func TestNumberRoundTrip(t *testing.T) {
	samples := []float64{0, 1, -1, 1.5, -1.5, 3.1415926535, 1e300, -1e-300, math.MaxFloat64}
	for _, f := range samples {
		v := Number(f)
		require.True(t, v.IsNumber(), "%v", f)
		assert.Equal(t, f, v.AsNumber())
	}
}

func TestNegativeZeroEqualsPositiveZero(t *testing.T) {
	assert.True(t, Number(0).Equals(Number(math.Copysign(0, -1))))
}

func TestNaNNeverEqual(t *testing.T) {
	n1 := Number(math.NaN())
	n2 := Number(math.NaN())
	assert.False(t, n1.Equals(n1))
	assert.False(t, n1.Equals(n2))
	assert.True(t, n1.IsNumber())
}

func TestEqualityIsBitwiseWithNormalization(t *testing.T) {
	assert.True(t, Number(3).Equals(Number(3)))
	assert.False(t, Number(3).Equals(Number(4)))
	assert.False(t, Number(3).Equals(Bool(true)))
}

func TestGCPointerRoundTrip(t *testing.T) {
	var dummy int
	ptr := unsafe.Pointer(&dummy)
	for _, k := range []Kind{KindObject, KindTable, KindArray, KindFunction, KindString, KindClass} {
		v := FromGC(k, ptr)
		require.Equal(t, k, v.Kind(), "kind %v", k)
		assert.True(t, v.IsGC())
		assert.Equal(t, ptr, v.AsPointer())
	}
}

func TestBitsRoundTrip(t *testing.T) {
	v := Number(42)
	assert.Equal(t, v, FromBits(v.Bits()))
}

func TestHashStable(t *testing.T) {
	a := Number(7)
	b := Number(7)
	assert.Equal(t, a.Hash(), b.Hash())
}
