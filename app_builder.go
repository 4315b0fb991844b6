package foliage

import (
	"reflect"
)

type Module interface {
	Install(app *App, cmd *Commands)
}

// Finisher is implemented by modules that need every other module installed
// first, typically to build GPU layouts once the render device exists.
type Finisher interface {
	Finish(app *App, cmd *Commands)
}

func NewApp() *App {
	return &App{
		stages:           defaultStages(),
		systems:          make(map[string]map[State]map[statePhase][]systemFn),
		systemsStateless: make(map[string][]systemFn),
		resources:        make(map[reflect.Type]any),
		installed:        make(set[reflect.Type]),
		main:             newWorld(),
		render:           newWorld(),
	}
}

func (app *App) UseStates(initialState State, finalState State) *App {
	app.stateful = true
	app.initialState = initialState
	app.finalState = finalState
	return app
}

func (app *App) UseModules(modules ...Module) *App {
	app.modules = append(app.modules, modules...)
	return app
}

// Build installs every module, then finishes them. It runs once; Update and
// Run call it on demand.
func (app *App) Build() *App {
	app.build()
	return app
}

func (app *App) build() {
	if app.built {
		return
	}
	app.built = true

	for _, stage := range app.stages {
		app.initStatefulStage(stage)
	}

	cmd := app.Commands()
	for _, module := range app.modules {
		app.install(module, cmd)
	}
	for _, f := range app.finishers {
		f.Finish(app, cmd)
	}
	app.FlushCommands()
}

func (app *App) install(module Module, cmd *Commands) bool {
	t := reflect.TypeOf(module)
	if _, ok := app.installed[t]; ok {
		return false
	}
	app.installed[t] = struct{}{}
	module.Install(app, cmd)
	if f, ok := module.(Finisher); ok {
		app.finishers = append(app.finishers, f)
	}
	return true
}

// RequireModule installs module unless a module of the same type already is.
// Modules that share systems use it so those systems run once per frame.
func (app *App) RequireModule(module Module, cmd *Commands) {
	app.install(module, cmd)
}
