package foliage

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockResource1 struct {
	name string
}
type mockResource2 struct {
	name string
}

func TestApp_changeState(t *testing.T) {
	app := &App{
		stateful:     true,
		initialState: 1,
		state:        1,
		finalState:   2,
	}

	app.changeState(2)
	assert.Equal(t, State(2), app.nextState)
	assert.True(t, app.stateTransitioning)

	app.executeChangeState(2)
	assert.Equal(t, State(2), app.state)
}

func TestApp_addResources(t *testing.T) {
	app := &App{
		resources: make(map[reflect.Type]any),
	}

	resource1 := &mockResource1{name: "Resource1"}
	app.addResources(resource1)
	assert.Contains(t, app.resources, reflect.TypeOf(resource1).Elem(), "Resource1 should be in resources map.")

	require.PanicsWithValue(t, fmt.Sprintf("%s is already in resources", reflect.TypeOf(resource1)), func() {
		app.addResources(resource1)
	})

	resource2 := &mockResource2{name: "Resource2"}
	app.addResources(resource2)
	assert.Contains(t, app.resources, reflect.TypeOf(resource2).Elem(), "Resource2 should be in resources map.")

	assert.Panics(t, func() { app.addResources(mockResource1{}) }, "resources must be pointers")

	got, ok := Resource[mockResource2](app)
	require.True(t, ok)
	assert.Same(t, resource2, got)
}

type stageRecorder struct {
	stages []string
}

func TestApp_UpdateRunsStagesInOrder(t *testing.T) {
	rec := &stageRecorder{}
	app := NewApp()
	app.build()
	app.addResources(rec)
	for _, stage := range defaultStages() {
		name := stage.Name
		app.UseSystem(System(func(r *stageRecorder) { r.stages = append(r.stages, name) }).InStage(stage))
	}

	app.Update()
	assert.Equal(t, []string{"Prelude", "PreUpdate", "Update", "PostUpdate", "Extract", "Prepare", "Queue", "Render", "Finale"}, rec.stages)
}

func TestApp_CommandsFlushAfterStage(t *testing.T) {
	app := NewApp()
	app.build()

	var spawned EntityId
	seenInSameStage := true
	app.UseSystem(System(func(cmd *Commands) {
		spawned = cmd.AddEntity(Chunk{X: 1})
		seenInSameStage = cmd.HasEntity(spawned)
	}).InStage(PreUpdate))

	seenLater := false
	app.UseSystem(System(func(cmd *Commands) {
		seenLater = cmd.HasEntity(spawned)
	}).InStage(Update))

	app.Update()
	assert.False(t, seenInSameStage)
	assert.True(t, seenLater)
	assert.Equal(t, 1, app.Commands().EntityCount())
}

func TestApp_ExtractClearsRenderWorld(t *testing.T) {
	app := NewApp()
	app.build()

	counts := []int{}
	app.UseSystem(System(func(cmd *RenderCommands) {
		counts = append(counts, cmd.EntityCount())
		cmd.AddEntity(Chunk{})
	}).InStage(Extract))

	app.Update()
	app.Update()
	assert.Equal(t, []int{0, 0}, counts)
	assert.Equal(t, 1, app.RenderCommands().EntityCount())
	assert.Equal(t, 0, app.Commands().EntityCount())
}

func TestApp_UnresolvedDependencyPanics(t *testing.T) {
	app := NewApp()
	app.build()
	app.UseSystem(System(func(*mockResource1) {}))
	assert.Panics(t, app.Update)
}

func TestApp_StatefulLifecycle(t *testing.T) {
	const (
		loading State = iota
		running
		done
	)

	var events []string
	app := NewApp().UseStates(loading, done)
	app.build()
	app.UseSystem(System(func(cmd *Commands) {
		events = append(events, "enter loading")
		cmd.ChangeState(running)
	}).InState(OnEnter(loading)))
	app.UseSystem(System(func(cmd *Commands) {
		events = append(events, "run")
		cmd.ChangeState(done)
	}).InState(OnExecute(running)))
	app.UseSystem(System(func() { events = append(events, "exit running") }).InState(OnExit(running)))
	app.UseSystem(System(func() { events = append(events, "always") }).InStage(Finale).RunAlways())

	app.Run()
	assert.True(t, app.Done())
	assert.Equal(t, []string{"enter loading", "always", "run", "always", "exit running"}, events)
}

func TestApp_Exit(t *testing.T) {
	app := NewApp()
	frames := 0
	app.UseModules(moduleFunc(func(app *App, cmd *Commands) {
		cmd.UseSystem(System(func(cmd *Commands) {
			frames++
			if frames == 3 {
				cmd.Exit()
			}
		}))
	}))

	app.Run()
	assert.Equal(t, 3, frames)
}

type moduleFunc func(app *App, cmd *Commands)

func (f moduleFunc) Install(app *App, cmd *Commands) { f(app, cmd) }
