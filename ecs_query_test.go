package foliage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_Map(t *testing.T) {
	type Comp1 struct{ a int }
	type Comp2 struct{ b float32 }
	type Comp3 struct{}

	ecs := MakeEcs()
	ecs.addEntity(Comp1{a: 1})                                 // comp1 only                       -- shouldn't match
	id2 := ecs.addEntity(Comp1{a: 2}, Comp2{b: 1.37})          // comp1 & comp2                    -- should match
	id3 := ecs.addEntity(Comp1{a: 3}, Comp2{b: 4.20}, Comp3{}) // comp1 & comp2 + something extra  -- should match
	ecs.addEntity(Comp1{a: 4}, Comp3{})                        // comp1 + something extra          -- shouldn't match
	ecs.addEntity(Comp2{b: 3.14})                              // comp2 only                       -- shouldn't match

	query := Query2[Comp1, Comp2]{ecs: ecs}

	got := map[EntityId]Comp1{}
	gotB := map[EntityId]Comp2{}
	query.Map(func(entityId EntityId, comp1 *Comp1, comp2 *Comp2) bool {
		got[entityId] = *comp1
		gotB[entityId] = *comp2
		return true
	})

	assert.Equal(t, map[EntityId]Comp1{id2: {a: 2}, id3: {a: 3}}, got)
	assert.Equal(t, map[EntityId]Comp2{id2: {b: 1.37}, id3: {b: 4.20}}, gotB)
}

func TestQuery_MapStopsEarly(t *testing.T) {
	ecs := MakeEcs()
	for i := 0; i < 5; i++ {
		ecs.addEntity(Chunk{X: int32(i)})
	}

	calls := 0
	Query1[Chunk]{ecs: ecs}.Map(func(EntityId, *Chunk) bool {
		calls++
		return calls < 2
	})
	assert.Equal(t, 2, calls)
	assert.Equal(t, 5, Query1[Chunk]{ecs: ecs}.Count())
}

func TestQuery_Optionals(t *testing.T) {
	ecs := MakeEcs()
	withCulling := ecs.addEntity(Chunk{X: 1}, DistanceCulling{Distance: 4})
	without := ecs.addEntity(Chunk{X: 2})

	seen := map[EntityId]*DistanceCulling{}
	Query2[Chunk, DistanceCulling]{ecs: ecs}.Map(func(id EntityId, _ *Chunk, c *DistanceCulling) bool {
		seen[id] = c
		return true
	}, DistanceCulling{})

	require.Len(t, seen, 2)
	require.NotNil(t, seen[withCulling])
	assert.Equal(t, float32(4), seen[withCulling].Distance)
	assert.Nil(t, seen[without])
}

func TestQuery_MutatesInPlace(t *testing.T) {
	ecs := MakeEcs()
	id := ecs.addEntity(DistanceCulling{Distance: 1})
	cmd := &Commands{world: &world{ecs: ecs}}

	MakeQuery1[DistanceCulling](cmd).Map(func(_ EntityId, c *DistanceCulling) bool {
		c.Distance = 7
		return true
	})

	c, ok := GetComponent[DistanceCulling](cmd, id)
	require.True(t, ok)
	assert.Equal(t, float32(7), c.Distance)

	_, ok = GetComponent[Chunk](cmd, id)
	assert.False(t, ok)
}
