// Package forest builds the demo scene: a ground plane, a square of chunks
// filled with instanced props and grass, and an orbit camera above it.
package forest

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/foliage"
	"github.com/gekko3d/foliage/config"
)

const (
	AssetLoading foliage.State = iota
	InGame
	Exiting
)

// Totals counts what Setup spawned.
type Totals struct {
	Chunks      int
	Instances   int
	GrassStraws int
}

// Scene is the forest resource: its settings and, once loaded, the textures
// every archetype draws with.
type Scene struct {
	Config config.ForestConfig
	Rand   foliage.RandomSource

	groundTexture foliage.AssetId
	propTextures  []foliage.AssetId
	Totals        Totals
}

// Module runs AssetLoading then spawns the scene on entering InGame. Use
// it with app.UseStates(AssetLoading, Exiting).
type Module struct {
	Config config.ForestConfig
	// Seed overrides Config.Seed when non zero.
	Seed int64
}

func (m Module) Install(app *foliage.App, cmd *foliage.Commands) {
	app.RequireModule(foliage.AssetServerModule{}, cmd)
	app.RequireModule(foliage.TimeModule{}, cmd)

	half := m.Config.ChunkSize * float32(m.Config.SideChunks) / 2
	if grid, ok := foliage.Resource[foliage.GridConfig](app); ok {
		if err := grid.Set([2]float32{0, 0}, [2]float32{half, half}); err != nil {
			panic(err)
		}
	} else {
		grid, err := foliage.NewGridConfig([2]float32{0, 0}, [2]float32{half, half})
		if err != nil {
			panic(err)
		}
		cmd.AddResources(grid)
	}
	if _, ok := foliage.Resource[foliage.GrowthTextures](app); !ok {
		cmd.AddResources(&foliage.GrowthTextures{})
	}

	seed := m.Seed
	if seed == 0 {
		seed = m.Config.Seed
	}
	var rng foliage.RandomSource
	if seed != 0 {
		rng = rand.New(rand.NewSource(seed))
	}
	cmd.AddResources(&Scene{Config: m.Config, Rand: rng})

	cmd.UseSystem(foliage.System(loadAssetsSystem).InStage(foliage.Update).InState(foliage.OnEnter(AssetLoading)))
	cmd.UseSystem(foliage.System(setupSystem).InStage(foliage.Update).InState(foliage.OnEnter(InGame)))
}

func loadAssetsSystem(cmd *foliage.Commands, scene *Scene, server *foliage.AssetServer) {
	logger := cmd.App().Logger()
	cfg := scene.Config

	scene.groundTexture = loadOrSolid(logger, server, cfg.GroundTexture, cfg.GroundColor)
	scene.propTextures = scene.propTextures[:0]
	for _, prop := range cfg.Props {
		scene.propTextures = append(scene.propTextures, loadOrSolid(logger, server, prop.Texture, prop.Color))
	}
	cmd.ChangeState(InGame)
}

// loadOrSolid falls back to a 1x1 texture of color when path is empty or
// cannot be read.
func loadOrSolid(logger foliage.Logger, server *foliage.AssetServer, path string, color [3]float32) foliage.AssetId {
	if path != "" {
		id, err := server.LoadTexture(path)
		if err == nil {
			return id
		}
		logger.Warnf("using a solid color instead of %s: %v", path, err)
	}
	return server.CreateSolidTexture(unorm8(color[0]), unorm8(color[1]), unorm8(color[2]), 255)
}

func unorm8(v float32) uint8 {
	return uint8(math.Round(float64(mgl32.Clamp(v, 0, 1)) * 255))
}

func setupSystem(cmd *foliage.Commands, scene *Scene, server *foliage.AssetServer, grid *foliage.GridConfig, growth *foliage.GrowthTextures) {
	totals, err := Setup(cmd, scene, server, grid, growth)
	if err != nil {
		panic(fmt.Errorf("setup forest: %w", err))
	}
	scene.Totals = totals

	logger := cmd.App().Logger()
	logger.Infof("Total instanced objects %d", totals.Instances)
	logger.Infof("Total grass straws %d", totals.GrassStraws)
}

// Setup spawns the ground, every chunk and the camera. The growth textures
// are generated here so grass starts drawing on the next frame.
func Setup(cmd *foliage.Commands, scene *Scene, server *foliage.AssetServer, grid *foliage.GridConfig, growth *foliage.GrowthTextures) (Totals, error) {
	cfg := scene.Config
	rng := scene.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	if len(scene.propTextures) != len(cfg.Props) {
		return Totals{}, fmt.Errorf("%d prop textures for %d props", len(scene.propTextures), len(cfg.Props))
	}

	handle := foliage.BuildGrowthTextures(server, cfg.Growth.Layers, cfg.Growth.Resolution, cfg.Growth.PatternScale)
	growth.Handle = &handle

	spawnGround(cmd, server, grid, scene.groundTexture)

	propMeshes := make([]foliage.Mesh, len(cfg.Props))
	propModels := make([]foliage.TransformComponent, len(cfg.Props))
	for i, prop := range cfg.Props {
		propMeshes[i] = server.AddMesh(PropMesh(prop.Shape))
		propModels[i] = foliage.NewTransform(mgl32.Vec3{}).
			WithRotation(mgl32.QuatRotate(mgl32.DegToRad(prop.RotationX), mgl32.Vec3{1, 0, 0})).
			WithScale(prop.Scale)
	}
	grassMesh := server.AddMesh(foliage.GrassStrawMesh())

	var totals Totals
	perChunk := cfg.InstancesPerChunk()
	side := int32(cfg.SideChunks)
	aabb := foliage.Aabb{HalfExtents: mgl32.Vec3{cfg.ChunkSize, cfg.ChunkSize, 0}}

	for x := int32(0); x < side; x++ {
		for y := int32(0); y < side; y++ {
			chunk := foliage.Chunk{X: x, Y: y}
			origin := foliage.ChunkOrigin(chunk, cfg.ChunkSize, side)
			transform := foliage.NewTransform(origin)

			for i, prop := range cfg.Props {
				n := perChunk / prop.Divisor
				instancing, err := foliage.NewChunkInstancingRand(rng, n, scene.propTextures[i], propModels[i], cfg.ChunkSize)
				if err != nil {
					return totals, fmt.Errorf("chunk %d,%d %s: %w", x, y, prop.Name, err)
				}
				foliage.SpawnChunkInstancing(cmd, foliage.ChunkInstancingBundle{
					Transform:       transform,
					Mesh:            propMeshes[i],
					Aabb:            aabb,
					ChunkInstancing: instancing,
					DistanceCulling: foliage.DistanceCulling{Distance: prop.CullDistance},
					Chunk:           chunk,
				})
				totals.Instances += n
			}

			straws := perChunk * cfg.Grass.Multiplier
			foliage.SpawnChunkGrass(cmd, foliage.ChunkGrassBundle{
				Transform: transform,
				Mesh:      grassMesh,
				Aabb:      aabb,
				ChunkGrass: foliage.NewChunkGrass(
					foliage.DefaultGrassColors(),
					[2]float32{origin.X(), origin.Y()},
					[2]float32{cfg.ChunkSize / 2, cfg.ChunkSize / 2},
					uint32(straws),
					cfg.Grass.GrowthLayer,
					cfg.Grass.Height,
					cfg.Grass.Scale,
				),
				DistanceCulling: foliage.DistanceCulling{Distance: cfg.Grass.CullDistance},
				Chunk:           chunk,
			})
			totals.GrassStraws += straws
			totals.Chunks++
		}
	}

	spawnCamera(cmd, cfg)
	return totals, nil
}

// spawnGround draws the ground quad as a single instance so it goes through
// the same pipeline as the props. It is never distance culled.
func spawnGround(cmd *foliage.Commands, server *foliage.AssetServer, grid *foliage.GridConfig, texture foliage.AssetId) foliage.EntityId {
	half := grid.HalfExtents()
	center := grid.Center()
	return foliage.SpawnChunkInstancing(cmd, foliage.ChunkInstancingBundle{
		Transform: foliage.NewTransform(mgl32.Vec3{center[0], center[1], 0}),
		Mesh:      server.AddMesh(grid.GroundMesh()),
		Aabb:      foliage.Aabb{HalfExtents: mgl32.Vec3{half[0], half[1], 0}},
		ChunkInstancing: foliage.ChunkInstancing{
			Instances:        []foliage.GpuInstance{{Scale: 1}},
			BaseColorTexture: texture,
			ModelTransform:   foliage.NewTransform(mgl32.Vec3{}),
		},
		DistanceCulling: foliage.DistanceCulling{Distance: math.MaxFloat32},
	})
}

func spawnCamera(cmd *foliage.Commands, cfg config.ForestConfig) foliage.EntityId {
	extent := cfg.ChunkSize * float32(cfg.SideChunks)
	orbit := foliage.DefaultOrbitCamera()
	orbit.MinCenter = mgl32.Vec3{-extent, -extent, -extent}
	orbit.MaxCenter = mgl32.Vec3{extent, extent, extent}
	orbit.Distance = 5
	orbit.MaxDistance = 100
	orbit.PanSensitivity = 1.5
	orbit.MinYAngle = mgl32.DegToRad(5)
	orbit.MaxYAngle = mgl32.DegToRad(80)

	return cmd.AddEntity(orbit.Transform(), foliage.DefaultCamera(), orbit)
}

// PropMesh is the procedural stand-in for each prop archetype, sized so the
// archetype scales give trees of about 8 units and rocks under a unit.
func PropMesh(shape string) foliage.MeshAsset {
	switch shape {
	case "tree":
		return foliage.ConeMesh(10, 40, 12)
	case "bush":
		return foliage.SphereMesh(3, 8, 12)
	case "rock":
		return foliage.BoxMesh(mgl32.Vec3{2, 2, 1})
	default:
		return foliage.SphereMesh(6, 6, 10)
	}
}
