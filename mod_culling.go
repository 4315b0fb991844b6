package foliage

// DefaultCullingDistance matches what a zero config falls back to.
const DefaultCullingDistance = 1000.0

// DistanceCulling hides its entity while the camera is farther than Distance.
type DistanceCulling struct {
	Distance float32
}

func DefaultDistanceCulling() DistanceCulling {
	return DistanceCulling{Distance: DefaultCullingDistance}
}

// DistanceCullingModule is required by every module spawning culled chunks,
// so the system is scheduled once no matter how many of them are installed.
type DistanceCullingModule struct{}

func (DistanceCullingModule) Install(app *App, cmd *Commands) {
	cmd.UseSystem(System(DistanceCullingSystem).InStage(Update).RunAlways())
}

// DistanceCullingSystem writes Visibility.Hidden from the distance between
// the single camera and each culled entity, replacing any value set before.
// Without exactly one camera it leaves every entity alone.
func DistanceCullingSystem(cmd *Commands) {
	camId, camTransform, _, ok := singleCamera(cmd)
	if !ok {
		return
	}

	MakeQuery3[TransformComponent, DistanceCulling, Visibility](cmd).Map(
		func(eid EntityId, transform *TransformComponent, culling *DistanceCulling, vis *Visibility) bool {
			if eid == camId {
				return true
			}
			distance := camTransform.Position.Sub(transform.Position).Len()
			vis.Hidden = distance > culling.Distance
			return true
		})
}
