package foliage

import (
	"fmt"
	"reflect"
	"runtime"
)

type systemFn any

type App struct {
	stateful           bool
	stateTransitioning bool
	initialState       State
	finalState         State
	nextState          State
	state              State
	started            bool
	done               bool
	exitRequested      bool
	built              bool
	modules            []Module
	finishers          []Finisher
	installed          set[reflect.Type]
	stages             []Stage
	systems            map[string]map[State]map[statePhase][]systemFn
	systemsStateless   map[string][]systemFn
	resources          map[reflect.Type]any

	main   *world
	render *world
}

// world is one ECS plus its buffered structural changes.
type world struct {
	ecs *Ecs

	pendingAdditions    []pendingComps
	pendingInserts      []pendingComps
	pendingRemovals     []EntityId
	pendingCompAdds     []pendingComps
	pendingCompRemovals []pendingComps
}

type pendingComps struct {
	eid        EntityId
	components []any
}

func newWorld() *world {
	return &world{ecs: MakeEcs()}
}

func (w *world) reset() {
	w.ecs.clear()
	w.pendingAdditions = w.pendingAdditions[:0]
	w.pendingInserts = w.pendingInserts[:0]
	w.pendingRemovals = w.pendingRemovals[:0]
	w.pendingCompAdds = w.pendingCompAdds[:0]
	w.pendingCompRemovals = w.pendingCompRemovals[:0]
}

func (w *world) flush() {
	// Removals first so nothing gets added to dead entities
	for _, eid := range w.pendingRemovals {
		w.ecs.removeEntity(eid)
	}
	w.pendingRemovals = w.pendingRemovals[:0]

	for _, add := range w.pendingAdditions {
		w.ecs.insertEntity(add.eid, add.components...)
	}
	w.pendingAdditions = w.pendingAdditions[:0]

	for _, ins := range w.pendingInserts {
		w.ecs.insertOrReplace(ins.eid, ins.components...)
	}
	w.pendingInserts = w.pendingInserts[:0]

	for _, add := range w.pendingCompAdds {
		w.ecs.addComponents(add.eid, add.components...)
	}
	w.pendingCompAdds = w.pendingCompAdds[:0]

	for _, rem := range w.pendingCompRemovals {
		w.ecs.removeComponents(rem.eid, rem.components...)
	}
	w.pendingCompRemovals = w.pendingCompRemovals[:0]
}

func (app *App) Commands() *Commands {
	return &Commands{app: app, world: app.main}
}

func (app *App) RenderCommands() *RenderCommands {
	return &RenderCommands{Commands{app: app, world: app.render}}
}

// Run builds the app and runs frames until it is done.
func (app *App) Run() {
	for !app.Done() {
		app.Update()
	}
}

// Update runs exactly one frame: every stage in order, flushing commands after each.
func (app *App) Update() {
	if app.done {
		return
	}
	app.start()

	app.callSystems(app.state, execute)

	if app.stateful && app.stateTransitioning {
		app.stateTransitioning = false
		app.executeChangeState(app.nextState)
	}

	if app.stateful && app.state == app.finalState {
		app.callSystems(app.state, exit)
		app.done = true
	}
	if app.exitRequested {
		app.done = true
	}
}

func (app *App) Done() bool {
	return app.done
}

func (app *App) start() {
	if app.started {
		return
	}
	app.build()
	app.started = true

	if app.stateful {
		app.Logger().Infof("Running in stateful mode...")
		app.state = app.initialState
		app.callSystems(app.state, enter)
	} else {
		app.Logger().Infof("Running in stateless mode...")
	}
}

func (app *App) callSystems(state State, phase statePhase) {
	for _, stage := range app.stages {
		if execute == phase && stage.clearsRenderWorld {
			app.render.reset()
		}

		// On execute, call stateless/always run systems first
		if execute == phase {
			for _, system := range app.systemsStateless[stage.Name] {
				app.callSystem(system)
			}
		}

		if app.stateful {
			for _, system := range app.systems[stage.Name][state][phase] {
				app.callSystem(system)
			}
		}
		app.FlushCommands()
	}
}

func (app *App) changeState(newState State) {
	app.nextState = newState
	app.stateTransitioning = true
}

func (app *App) executeChangeState(newState State) {
	app.callSystems(app.state, exit)
	app.state = newState
	app.callSystems(app.state, enter)
}

func (app *App) addResources(resources ...any) *App {
	for _, resource := range resources {
		resourceType := reflect.TypeOf(resource)
		if resourceType.Kind() != reflect.Pointer {
			panic(fmt.Sprintf("resource %s must be a pointer", resourceType))
		}
		if _, ok := app.resources[resourceType.Elem()]; ok {
			panic(fmt.Sprintf("%s is already in resources", resourceType))
		}

		app.resources[resourceType.Elem()] = resource
	}
	return app
}

func (app *App) resourceMap() map[reflect.Type]any {
	return app.resources
}

type resourceSource interface {
	resourceMap() map[reflect.Type]any
}

// Resource looks up the resource of type T on an *App or through *Commands.
func Resource[T any](src resourceSource) (*T, bool) {
	var t T
	res, ok := src.resourceMap()[reflect.TypeOf(t)]
	if !ok {
		return nil, false
	}
	return res.(*T), true
}

func (app *App) callSystem(system systemFn) {
	app.callSystemInternal(system)
}

var (
	typeOfCommands       = reflect.TypeOf(Commands{})
	typeOfRenderCommands = reflect.TypeOf(RenderCommands{})
)

func (app *App) callSystemInternal(system systemFn) {
	systemType := reflect.TypeOf(system)
	systemValue := reflect.ValueOf(system)

	args := make([]reflect.Value, systemType.NumIn())

	for i := 0; i < systemType.NumIn(); i++ {
		argType := systemType.In(i)

		var underlyingType reflect.Type
		if argType.Kind() == reflect.Pointer {
			underlyingType = argType.Elem()
		}

		if underlyingType == typeOfCommands {
			args[i] = reflect.ValueOf(app.Commands())
		} else if underlyingType == typeOfRenderCommands {
			args[i] = reflect.ValueOf(app.RenderCommands())
		} else if resource, argIsResource := app.resources[underlyingType]; underlyingType != nil && argIsResource {
			args[i] = reflect.ValueOf(resource)
		} else {
			msg := fmt.Sprintf("Unable to resolve System dependency.\nSystem: %s\nSystem type: %s\nDependency: %s",
				runtime.FuncForPC(systemValue.Pointer()).Name(),
				fmt.Sprint(systemType),
				fmt.Sprint(argType),
			)
			app.Logger().Errorf("%s", msg)
			panic(msg)
		}
	}
	systemValue.Call(args)
}

func (app *App) FlushCommands() {
	app.main.flush()
	app.render.flush()
}
