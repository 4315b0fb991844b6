package foliage

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEcsReflect_ComponentTypeOf(t *testing.T) {
	assert.Equal(t, reflect.TypeOf(Chunk{}), componentTypeOf(Chunk{}))
	assert.Equal(t, reflect.TypeOf(Chunk{}), componentTypeOf(&Chunk{}))
	assert.Panics(t, func() { componentTypeOf(3) })
	assert.Panics(t, func() { componentTypeOf(nil) })
}

func TestEcsReflect_ReflectSliceMake(t *testing.T) {
	slice := reflectSliceMake(reflect.TypeOf(Chunk{}))
	assert.Equal(t, reflect.Slice, reflect.TypeOf(slice).Kind())
	assert.Equal(t, reflect.TypeOf(Chunk{}), reflect.TypeOf(slice).Elem())
	assert.Equal(t, 0, reflectSliceLen(slice))
}

func TestEcsReflect_GetSet(t *testing.T) {
	slice := []Chunk{{X: 1}, {X: 2}}
	assert.Equal(t, int32(2), reflectSliceGet(slice, 1).Interface().(Chunk).X)

	reflectSliceSet(slice, 0, reflect.ValueOf(Chunk{X: 9}))
	assert.Equal(t, int32(9), slice[0].X)

	assert.Panics(t, func() { reflectSliceGet(slice, 10) })
	assert.Panics(t, func() { reflectSliceSet(slice, 0, reflect.ValueOf("wrong type")) })
}

func TestEcsReflect_ReflectSliceAppend(t *testing.T) {
	slice := []int{}
	for i := 0; i < 5; i++ {
		slice = reflectSliceAppend(slice, reflect.ValueOf(i)).([]int)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, slice)
	assert.Panics(t, func() { reflectSliceAppend(slice, reflect.ValueOf("string")) })
	assert.Panics(t, func() { reflectSliceLen(123) })
}
