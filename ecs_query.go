package foliage

import (
	"reflect"
)

// Querier is anything that can hand out the world a query runs against:
// *Commands for the main world, *RenderCommands for the render world.
type Querier interface {
	queryWorld() *Ecs
}

type Query1[A any] struct{ ecs *Ecs }
type Query2[A, B any] struct{ ecs *Ecs }
type Query3[A, B, C any] struct{ ecs *Ecs }
type Query4[A, B, C, D any] struct{ ecs *Ecs }
type Query5[A, B, C, D, E any] struct{ ecs *Ecs }

func MakeQuery1[A any](q Querier) Query1[A]             { return Query1[A]{ecs: q.queryWorld()} }
func MakeQuery2[A, B any](q Querier) Query2[A, B]       { return Query2[A, B]{ecs: q.queryWorld()} }
func MakeQuery3[A, B, C any](q Querier) Query3[A, B, C] { return Query3[A, B, C]{ecs: q.queryWorld()} }
func MakeQuery4[A, B, C, D any](q Querier) Query4[A, B, C, D] {
	return Query4[A, B, C, D]{ecs: q.queryWorld()}
}
func MakeQuery5[A, B, C, D, E any](q Querier) Query5[A, B, C, D, E] {
	return Query5[A, B, C, D, E]{ecs: q.queryWorld()}
}

// Map calls m for every entity that has A. Components listed in optionals
// (as zero values) may be missing; m then receives nil for them.
// Returning false from m stops the iteration.
func (q Query1[A]) Map(m func(EntityId, *A) bool, optionals ...any) {
	id1 := identifyComponent[A](q.ecs)
	opt := identifyOptionals(q.ecs, optionals...)

	for _, arch := range q.ecs.archetypes {
		comps1, ok := column[A](arch, id1, opt)
		if !ok {
			continue
		}
		for entityId, r := range arch.entities {
			if !m(entityId, at(comps1, r)) {
				return
			}
		}
	}
}

func (q Query2[A, B]) Map(m func(EntityId, *A, *B) bool, optionals ...any) {
	id1, id2 := identifyComponent[A](q.ecs), identifyComponent[B](q.ecs)
	opt := identifyOptionals(q.ecs, optionals...)

	for _, arch := range q.ecs.archetypes {
		comps1, ok1 := column[A](arch, id1, opt)
		comps2, ok2 := column[B](arch, id2, opt)
		if !ok1 || !ok2 {
			continue
		}
		for entityId, r := range arch.entities {
			if !m(entityId, at(comps1, r), at(comps2, r)) {
				return
			}
		}
	}
}

func (q Query3[A, B, C]) Map(m func(EntityId, *A, *B, *C) bool, optionals ...any) {
	id1, id2, id3 := identifyComponent[A](q.ecs), identifyComponent[B](q.ecs), identifyComponent[C](q.ecs)
	opt := identifyOptionals(q.ecs, optionals...)

	for _, arch := range q.ecs.archetypes {
		comps1, ok1 := column[A](arch, id1, opt)
		comps2, ok2 := column[B](arch, id2, opt)
		comps3, ok3 := column[C](arch, id3, opt)
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		for entityId, r := range arch.entities {
			if !m(entityId, at(comps1, r), at(comps2, r), at(comps3, r)) {
				return
			}
		}
	}
}

func (q Query4[A, B, C, D]) Map(m func(EntityId, *A, *B, *C, *D) bool, optionals ...any) {
	id1, id2 := identifyComponent[A](q.ecs), identifyComponent[B](q.ecs)
	id3, id4 := identifyComponent[C](q.ecs), identifyComponent[D](q.ecs)
	opt := identifyOptionals(q.ecs, optionals...)

	for _, arch := range q.ecs.archetypes {
		comps1, ok1 := column[A](arch, id1, opt)
		comps2, ok2 := column[B](arch, id2, opt)
		comps3, ok3 := column[C](arch, id3, opt)
		comps4, ok4 := column[D](arch, id4, opt)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}
		for entityId, r := range arch.entities {
			if !m(entityId, at(comps1, r), at(comps2, r), at(comps3, r), at(comps4, r)) {
				return
			}
		}
	}
}

func (q Query5[A, B, C, D, E]) Map(m func(EntityId, *A, *B, *C, *D, *E) bool, optionals ...any) {
	id1, id2 := identifyComponent[A](q.ecs), identifyComponent[B](q.ecs)
	id3, id4 := identifyComponent[C](q.ecs), identifyComponent[D](q.ecs)
	id5 := identifyComponent[E](q.ecs)
	opt := identifyOptionals(q.ecs, optionals...)

	for _, arch := range q.ecs.archetypes {
		comps1, ok1 := column[A](arch, id1, opt)
		comps2, ok2 := column[B](arch, id2, opt)
		comps3, ok3 := column[C](arch, id3, opt)
		comps4, ok4 := column[D](arch, id4, opt)
		comps5, ok5 := column[E](arch, id5, opt)
		if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
			continue
		}
		for entityId, r := range arch.entities {
			if !m(entityId, at(comps1, r), at(comps2, r), at(comps3, r), at(comps4, r), at(comps5, r)) {
				return
			}
		}
	}
}

// Count returns the number of entities that have A.
func (q Query1[A]) Count() int {
	n := 0
	q.Map(func(EntityId, *A) bool {
		n++
		return true
	})
	return n
}

// column returns the typed storage of component id in arch. A missing
// optional component yields a nil slice and ok; a missing required one !ok.
func column[T any](arch *archetype, id componentId, opt set[componentId]) ([]T, bool) {
	if data, ok := arch.componentData[id]; ok {
		return data.([]T), true
	}
	if _, ok := opt[id]; ok {
		return nil, true
	}
	return nil, false
}

func at[T any](comps []T, r row) *T {
	if comps == nil {
		return nil
	}
	return &comps[r]
}

func identifyOptionals(ecs *Ecs, components ...any) set[componentId] {
	res := make(set[componentId])
	for _, c := range components {
		res[ecs.getComponentId(componentTypeOf(c))] = struct{}{}
	}
	return res
}

func identifyComponent[T any](ecs *Ecs) componentId {
	var t T
	return ecs.getComponentId(reflect.TypeOf(t))
}

// GetComponent returns entity's component of type T from the world q queries.
func GetComponent[T any](q Querier, entityId EntityId) (*T, bool) {
	var t T
	v, ok := q.queryWorld().component(entityId, reflect.TypeOf(t))
	if !ok {
		return nil, false
	}
	return v.Interface().(*T), true
}
