package forest

import (
	"time"

	"github.com/gekko3d/foliage"
)

// FrameRate counts frames and reports the rate once per Interval.
type FrameRate struct {
	Interval time.Duration

	frames  int
	elapsed time.Duration
	Last    float64
}

// Tick adds one frame of length dt and reports whether a new rate is ready.
func (f *FrameRate) Tick(dt time.Duration) bool {
	f.frames++
	f.elapsed += dt
	if f.Interval <= 0 || f.elapsed < f.Interval {
		return false
	}
	f.Last = float64(f.frames) / f.elapsed.Seconds()
	f.frames = 0
	f.elapsed = 0
	return true
}

type FrameRateModule struct {
	Interval time.Duration
}

func (m FrameRateModule) Install(app *foliage.App, cmd *foliage.Commands) {
	if m.Interval <= 0 {
		return
	}
	app.RequireModule(foliage.TimeModule{}, cmd)
	cmd.AddResources(&FrameRate{Interval: m.Interval})
	cmd.UseSystem(foliage.System(frameRateSystem).InStage(foliage.Finale).RunAlways())
}

func frameRateSystem(cmd *foliage.Commands, t *foliage.Time, fps *FrameRate) {
	if fps.Tick(t.Dt) {
		cmd.App().Logger().Infof("fps %.1f", fps.Last)
	}
}
