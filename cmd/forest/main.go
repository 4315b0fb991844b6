// Command forest renders a 20x20 chunk forest of instanced props and grass.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gekko3d/foliage"
	"github.com/gekko3d/foliage/client"
	"github.com/gekko3d/foliage/config"
	"github.com/gekko3d/foliage/forest"
	"github.com/gekko3d/foliage/gpu"
)

var (
	flagConfig = flag.String("config", "forest.yaml", "Path to config file")
	flagDebug  = flag.Bool("debug", false, "Enable debug logging")
	flagSeed   = flag.Int64("seed", 0, "Placement seed, 0 for a random forest")
	flagVSync  = flag.Bool("vsync", false, "Cap the frame rate to the display")
	flagWrite  = flag.String("write-config", "", "Write the effective config to this path and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*flagConfig)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *flagVSync {
		cfg.Window.VSync = true
	}
	if *flagWrite != "" {
		if err := cfg.SaveTo(*flagWrite); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	bg := cfg.Render.ClearColor
	app := foliage.NewApp().
		UseStates(forest.AssetLoading, forest.Exiting).
		UseModules(
			foliage.LoggingModule{Prefix: "forest", Level: cfg.Logging.Level, File: cfg.Logging.File, Debug: *flagDebug},
			resources{
				&foliage.Msaa{Samples: cfg.Render.Samples},
				&foliage.ClearColor{Color: gpu.Color{R: bg[0], G: bg[1], B: bg[2], A: bg[3]}},
			},
			client.WindowModule{
				Width:           cfg.Window.Width,
				Height:          cfg.Window.Height,
				Title:           cfg.Window.Title,
				VSync:           cfg.Window.VSync,
				ValidateShaders: cfg.Render.ValidateShaders,
			},
			foliage.TimeModule{},
			foliage.OrbitCameraModule{},
			forest.Module{Config: cfg.Forest, Seed: *flagSeed},
			foliage.InstancingModule{},
			foliage.GrassModule{},
			forest.FrameRateModule{Interval: time.Duration(cfg.Logging.FPSInterval * float64(time.Second))},
		).
		Build()

	window, _ := foliage.Resource[client.WindowState](app)
	defer window.Close()
	if logger, ok := foliage.Resource[foliage.ZapLogger](app); ok {
		defer logger.Sync()
	}

	app.Run()
}

// resources installs ready made resources ahead of the modules that would
// otherwise add their defaults.
type resources []any

func (r resources) Install(app *foliage.App, cmd *foliage.Commands) {
	cmd.AddResources(r...)
}
