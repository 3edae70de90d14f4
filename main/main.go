package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/gcfg.v1"

	"github.com/jkunimune15/Rubber-Earth/imgutil"
	"github.com/jkunimune15/Rubber-Earth/mesh"
)

const ExampleConfigFile = `[Mesh]

# Number of grid nodes from the equator to a pole. The mesh is a
# 2*Resolution by 4*Resolution grid of cells over the whole globe.
Resolution = 40

# The projection the mesh starts from: hammer or sinusoidal.
InitialCondition = hammer

# Eccentricity of the reference spheroid. Defaults to WGS-84.
# Eccentricity = 0.081819

[Physics]

# Lame parameters of the elastic sheet.
Lambda = 1.0
Mu = 1.0

# Principal stress an element must exceed before the sheet may tear there.
Strength = 2.0

# Relaxation stops once a step reduces the total energy by less than this.
Precision = 1e-6

# Total geographic length of tearing the optimizer may open. Zero disables
# tearing entirely.
TearLength = 3.0

[Rasters]

# Optional grayscale TIFF whose values weight the importance of each cell.
# Omit for uniform weighting.
# WeightsFile = data/population.tif
# WeightsLogBase = 10
# WeightsMin = 0.1

# Optional grayscale TIFF that sets the relative scale of each cell.
# ScalesFile = data/topography.tif
# ScalesLogBase = 0
# ScalesMin = 0.5

[Output]

# Where the optimized mesh is saved.
MeshFile = output/mesh.csv
`

type configFile struct {
	Mesh struct {
		Resolution       int
		InitialCondition string
		Eccentricity     float64
	}
	Physics struct {
		Lambda     float64
		Mu         float64
		Strength   float64
		Precision  float64
		TearLength float64
	}
	Rasters struct {
		WeightsFile    string
		WeightsLogBase float64
		WeightsMin     float64
		ScalesFile     string
		ScalesLogBase  float64
		ScalesMin      float64
	}
	Output struct {
		MeshFile string
	}
}

func main() {
	var (
		configPath   string
		printExample bool
	)
	flag.StringVar(&configPath, "config", "", "gcfg configuration file")
	flag.BoolVar(&printExample, "example-config", false, "print an example configuration file and exit")
	flag.Parse()

	if printExample {
		fmt.Print(ExampleConfigFile)
		return
	}
	if configPath == "" {
		log.Fatal("no configuration file given; run with -config <file> " +
			"(see -example-config for the format)")
	}

	var cfg configFile
	if err := gcfg.ReadFileInto(&cfg, configPath); err != nil {
		log.Fatalf("could not read %s: %v", configPath, err)
	}

	cancel := make(chan os.Signal, 1)
	signal.Notify(cancel, os.Interrupt, syscall.SIGTERM)

	m, weights, err := buildMesh(cfg)
	if err != nil {
		log.Fatalf("could not build mesh: %v", err)
	}
	log.Printf("starting mesh optimisation: %d vertices, %d elements, initial energy %.4f",
		m.NumVertices(), m.NumElements(), m.TotalEnergy())

	optimise(m, cancel)
	m.Finalise()
	log.Printf("finished with energy %.6f after %.3f of tearing", m.TotalEnergy(), m.TearLength())

	report(m, cfg, weights)

	if cfg.Output.MeshFile != "" {
		if err := saveMesh(m, cfg.Output.MeshFile); err != nil {
			log.Fatalf("could not save mesh: %v", err)
		}
		log.Printf("saved mesh to %s", cfg.Output.MeshFile)
	}
}

func buildMesh(cfg configFile) (*mesh.Mesh, [][]float64, error) {
	res := cfg.Mesh.Resolution

	weights := imgutil.Uniform(res)
	if cfg.Rasters.WeightsFile != "" {
		loaded, err := imgutil.LoadTIFFData(cfg.Rasters.WeightsFile, res,
			cfg.Rasters.WeightsLogBase, 1, cfg.Rasters.WeightsMin)
		if err != nil {
			log.Printf("warning: unreadable weights raster, using uniform weights: %v", err)
		} else {
			weights = loaded
		}
	}

	scales := imgutil.Uniform(res)
	if cfg.Rasters.ScalesFile != "" {
		loaded, err := imgutil.LoadTIFFData(cfg.Rasters.ScalesFile, res,
			cfg.Rasters.ScalesLogBase, 1, cfg.Rasters.ScalesMin)
		if err != nil {
			log.Printf("warning: unreadable scales raster, using uniform scale: %v", err)
		} else {
			scales = imgutil.Standardised(loaded)
		}
	}

	m, err := mesh.New(mesh.Config{
		Resolution:       res,
		InitialCondition: cfg.Mesh.InitialCondition,
		Eccentricity:     cfg.Mesh.Eccentricity,
		Lambda:           cfg.Physics.Lambda,
		Mu:               cfg.Physics.Mu,
		Strength:         cfg.Physics.Strength,
		Precision:        cfg.Physics.Precision,
		TearLength:       cfg.Physics.TearLength,
		Weights:          weights,
		Scales:           scales,
	})
	return m, weights, err
}

// optimise runs the update/rupture/stitch state machine to completion,
// checking for cancellation between steps. Each call makes exactly one
// attempt; the retry policy lives here, not in the engine.
func optimise(m *mesh.Mesh, cancel <-chan os.Signal) {
	for step := 1; ; step++ {
		select {
		case sig := <-cancel:
			log.Printf("cancelled by %v after %d steps", sig, step-1)
			return
		default:
		}

		if !m.Update() { // make as good a map as you can
			if !m.Rupture() { // or tear if relaxation is done
				if !m.Stitch() { // or mend a tear that stopped paying off
					return // nothing helps; the optimum is local but real
				}
			}
		}

		if step%500 == 0 {
			log.Printf("step %d: energy %.6f, tear length %.3f", step, m.TotalEnergy(), m.TearLength())
		}
		if !m.IsFinite() {
			log.Fatal("the mesh has gone non-finite; aborting")
		}
	}
}

func report(m *mesh.Mesh, cfg configFile, weights [][]float64) {
	meanAreal, stdAreal, meanAngular, err := m.Criteria(imgutil.Uniform(cfg.Mesh.Resolution))
	if err != nil {
		log.Printf("could not evaluate global distortion: %v", err)
	} else {
		log.Printf("global   areal distortion %+.3f +/- %.3f Np, angular distortion %.3f Np",
			meanAreal, stdAreal, meanAngular)
	}

	if cfg.Rasters.WeightsFile == "" {
		return
	}
	meanAreal, stdAreal, meanAngular, err = m.Criteria(weights)
	if err != nil {
		log.Printf("could not evaluate weighted distortion: %v", err)
		return
	}
	log.Printf("weighted areal distortion %+.3f +/- %.3f Np, angular distortion %.3f Np",
		meanAreal, stdAreal, meanAngular)
}

func saveMesh(m *mesh.Mesh, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := m.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
