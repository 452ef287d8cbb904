package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"volslicer/internal/models"
	"volslicer/pkg/config"
	"volslicer/pkg/logging"
	"volslicer/pkg/server"
	"volslicer/pkg/slicer"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "volslicer.yaml", "Path to the YAML configuration file")
	createConfig := flag.Bool("create-config", false, "Write the default configuration to -config and exit")
	volumePath := flag.String("volume", "", "Raw uint8 volume file (zyx order); a phantom is generated when empty")
	shapeArg := flag.String("shape", "64,96,128", "Volume shape d0,d1,d2")
	spacingArg := flag.String("spacing", "", "Voxel spacing d0,d1,d2 (default 1,1,1)")
	axesArg := flag.String("axes", "0,1,2", "Axes to create viewers for")
	thumbArg := flag.String("thumbnail", "", "Thumbnail size, true or false (default from config)")
	address := flag.String("addr", "", "HTTP listen address (default from config)")
	tileServer := flag.String("tile-server", "", "Fetch full-resolution tiles from this server instead of rendering them")
	flag.Parse()

	if *createConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Logging.SetLogger(); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logging.Shutdown()
	if *address != "" {
		cfg.Server.Address = *address
	}

	shape, err := parseShape(*shapeArg)
	if err != nil {
		log.Fatalf("Bad -shape: %v", err)
	}
	vol, err := loadVolume(*volumePath, shape)
	if err != nil {
		log.Fatalf("Failed to load volume: %v", err)
	}
	if *spacingArg != "" {
		spacing, err := parseTriple(*spacingArg)
		if err != nil {
			log.Fatalf("Bad -spacing: %v", err)
		}
		vol.Spacing = spacing
	}

	params := slicer.Params{}
	if *thumbArg != "" {
		if params.Thumbnail, err = config.ParseThumbnail(*thumbArg); err != nil {
			log.Fatalf("Bad -thumbnail: %v", err)
		}
	}

	fmt.Println("================================")
	fmt.Println("VOLSLICER: INTERACTIVE SLICE VIEWERS FOR 3D VOLUMES")
	fmt.Println("================================")

	app := slicer.NewApp(cfg)
	var source slicer.TileSource
	if *tileServer != "" {
		remote, err := server.NewHTTPSource(*tileServer, nil)
		if err != nil {
			log.Fatalf("Bad -tile-server: %v", err)
		}
		source = remote
	} else {
		source = app
	}
	local := server.NewLocalSource(source, cfg.Server.TileCacheMB)
	app.SetTileSource(local)

	axes, err := parseAxes(*axesArg)
	if err != nil {
		log.Fatalf("Bad -axes: %v", err)
	}
	for _, axis := range axes {
		p := params
		p.Axis = axis
		v, err := app.NewViewer(vol, p)
		if err != nil {
			log.Fatalf("Failed to create viewer for axis %d: %v", axis, err)
		}
		if *volumePath == "" {
			if err := showPhantomMask(v, vol); err != nil {
				log.Fatalf("Failed to build overlay: %v", err)
			}
		}
		fmt.Printf("- %s: axis %d, %d slices, scene %s\n", v.Context(), axis, v.NSlices(), v.SceneID())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.Run(ctx) })
	g.Go(func() error { return server.New(app, local).ListenAndServe(ctx) })
	if err := g.Wait(); err != nil && err != context.Canceled {
		logging.Errorf("Stopped: %v\n", err)
	}
	app.Close()

	attempts, hits := local.Stats()
	fmt.Printf("\nServed %d tile lookups, %d from cache\n", attempts, hits)
}

func parseTriple(s string) ([3]float64, error) {
	var out [3]float64
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return out, fmt.Errorf("expected three comma-separated values, got %q", s)
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}

// parseShape reads d0,d1,d2 as positive integers.
func parseShape(s string) ([3]int, error) {
	var out [3]int
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return out, fmt.Errorf("expected three comma-separated values, got %q", s)
	}
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return out, err
		}
		if v <= 0 {
			return out, fmt.Errorf("dimension %d must be positive, got %d", i, v)
		}
		out[i] = v
	}
	return out, nil
}

func parseAxes(s string) ([]int, error) {
	var axes []int
	for _, p := range strings.Split(s, ",") {
		a, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		axes = append(axes, a)
	}
	return axes, nil
}

// loadVolume reads a raw uint8 volume, or generates a phantom when path is
// empty.
func loadVolume(path string, shape [3]int) (*models.Volume, error) {
	if path == "" {
		return phantom(shape[0], shape[1], shape[2])
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return models.NewUint8Volume(data, shape[:]...)
}

// phantom is a blurred sphere over a linear background gradient.
func phantom(d0, d1, d2 int) (*models.Volume, error) {
	data := make([]float64, d0*d1*d2)
	c0, c1, c2 := float64(d0)/2, float64(d1)/2, float64(d2)/2
	radius := 0.35 * math.Min(float64(d0), math.Min(float64(d1), float64(d2)))
	for z := 0; z < d0; z++ {
		for y := 0; y < d1; y++ {
			for x := 0; x < d2; x++ {
				r := math.Sqrt(sq(float64(z)-c0) + sq(float64(y)-c1) + sq(float64(x)-c2))
				sphere := 1 / (1 + math.Exp((r-radius)/1.5))
				data[(z*d1+y)*d2+x] = 40*float64(x)/float64(d2) + 200*sphere
			}
		}
	}
	return models.NewVolume(data, d0, d1, d2)
}

func sq(v float64) float64 { return v * v }

// showPhantomMask overlays the bright core of the phantom.
func showPhantomMask(v *slicer.Viewer, vol *models.Volume) error {
	mask := models.NewMask(vol, func(x float64) bool { return x > 180 })
	set, err := v.CreateOverlayData(mask)
	if err != nil {
		return err
	}
	return v.SetOverlay(set)
}
