package foliage

import "reflect"

// Commands buffers structural changes to the main world. They are applied
// when the current stage ends.
type Commands struct {
	app   *App
	world *world
}

// RenderCommands is Commands bound to the render world.
type RenderCommands struct {
	Commands
}

// EntityBatch is one entry of an InsertOrSpawnBatch call.
type EntityBatch struct {
	Entity     EntityId
	Components []any
}

func (cmd *Commands) queryWorld() *Ecs {
	return cmd.world.ecs
}

func (cmd *Commands) resourceMap() map[reflect.Type]any {
	return cmd.app.resources
}

func (cmd *Commands) App() *App {
	return cmd.app
}

func (cmd *Commands) ChangeState(newState State) *Commands {
	cmd.app.changeState(newState)
	return cmd
}

func (cmd *Commands) AddResources(resources ...any) *Commands {
	cmd.app.addResources(resources...)
	return cmd
}

func (cmd *Commands) UseSystem(system systemScheduleBuilder) *Commands {
	cmd.app.UseSystem(system)
	return cmd
}

// Exit stops the app after the current frame.
func (cmd *Commands) Exit() {
	cmd.app.exitRequested = true
}

// AddEntity reserves an id right away; the entity exists after the flush.
// Ids come from the main world so they never collide across worlds.
func (cmd *Commands) AddEntity(components ...any) EntityId {
	eid := cmd.app.main.ecs.nextEntityId()
	cmd.world.pendingAdditions = append(cmd.world.pendingAdditions, pendingComps{
		eid:        eid,
		components: components,
	})
	return eid
}

// InsertOrSpawnBatch writes each batch entry onto the entity with that id,
// spawning it when it does not exist yet.
func (cmd *Commands) InsertOrSpawnBatch(batch []EntityBatch) {
	for _, b := range batch {
		cmd.world.pendingInserts = append(cmd.world.pendingInserts, pendingComps{
			eid:        b.Entity,
			components: b.Components,
		})
	}
}

func (cmd *Commands) AddComponents(entityId EntityId, components ...any) {
	cmd.world.pendingCompAdds = append(cmd.world.pendingCompAdds, pendingComps{
		eid:        entityId,
		components: components,
	})
}

func (cmd *Commands) RemoveComponents(entityId EntityId, components ...any) {
	cmd.world.pendingCompRemovals = append(cmd.world.pendingCompRemovals, pendingComps{
		eid:        entityId,
		components: components,
	})
}

func (cmd *Commands) RemoveEntity(entityId EntityId) {
	cmd.world.pendingRemovals = append(cmd.world.pendingRemovals, entityId)
}

func (cmd *Commands) HasEntity(entityId EntityId) bool {
	return cmd.world.ecs.hasEntity(entityId)
}

func (cmd *Commands) EntityCount() int {
	return cmd.world.ecs.entityCount()
}

func (cmd *Commands) GetAllComponents(entityId EntityId) []any {
	return cmd.world.ecs.allComponents(entityId)
}
