package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"curvedmpr/internal/log"
	"curvedmpr/internal/models"
	"curvedmpr/internal/restserver"
	"curvedmpr/pkg/config"
	"curvedmpr/pkg/pipeline"
	"curvedmpr/pkg/visualization"
	"curvedmpr/pkg/volumeio"
)

func main() {
	configPath := flag.String("config", "curvedmpr.yaml", "Path to the YAML configuration file")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file and exit")
	studyDir := flag.String("study-dir", "", "Directory holding <study>.yaml/<study>.raw volumes (overrides config)")
	studyID := flag.String("study", "", "Study to process")
	vesselID := flag.String("vessel", "vessel", "Vessel label used in the cache key")
	points := flag.String("points", "", "Control points as x,y,z;x,y,z;... in mm, start first and end last")
	useMask := flag.Bool("use-mask", false, "Check the centerline against the study's lumen mask")
	outputDir := flag.String("output", "cmpr_output", "Directory to save exported views")
	extractSlices := flag.Bool("extract-slices", false, "Save every cross section and the straightened views as JPEG")
	serve := flag.Bool("serve", false, "Run the REST server instead of a single computation")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *studyDir != "" {
		cfg.Server.StudyDir = *studyDir
	}

	if err := log.Init(*verbose || cfg.Output.Verbose); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger := log.GetSugaredLogger()

	source := volumeio.NewDirSource(cfg.Server.StudyDir)
	service, err := pipeline.NewService(cfg, source, logger.Named("pipeline"))
	if err != nil {
		logger.Fatalf("Failed to create pipeline: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serve {
		runServer(ctx, service, cfg)
		return
	}

	if *studyID == "" || *points == "" {
		flag.Usage()
		os.Exit(1)
	}
	cps, err := parsePoints(*points)
	if err != nil {
		logger.Fatalf("Invalid -points: %v", err)
	}

	req := pipeline.Request{
		StudyID:      *studyID,
		VesselID:     *vesselID,
		Start:        cps[0],
		End:          cps[len(cps)-1],
		Intermediate: cps[1 : len(cps)-1],
		UseMask:      *useMask,
	}

	fmt.Println("================================")
	fmt.Println("CURVED MPR")
	fmt.Println("================================")

	startTime := time.Now()
	res, err := service.ComputeCurvedMPR(ctx, req, func(preview *models.CurvedMPRVolume) {
		logger.Infow("preview ready", "dimensions", preview.Dimensions)
	})
	if err != nil {
		logger.Fatalf("Curved MPR failed: %v", err)
	}

	cl := res.Centerline
	fmt.Printf("\nCenterline: %d samples, %.2f mm\n", len(cl.Points), cl.TotalLength)
	if cl.HasDeviations {
		fmt.Println("Warning: centerline leaves the lumen mask")
	}
	if !res.Validation.Valid {
		fmt.Println("Validation problems:")
		for _, e := range res.Validation.Errors {
			fmt.Printf("- %s\n", e)
		}
	}
	fmt.Printf("Curved MPR: %dx%d px x %d slices, spacing %.2f/%.2f/%.2f mm\n",
		res.Volume.Dimensions[0], res.Volume.Dimensions[1], res.Volume.Dimensions[2],
		res.Volume.Spacing[0], res.Volume.Spacing[1], res.Volume.Spacing[2])
	fmt.Printf("Cache key: %s\n", res.Key)
	fmt.Printf("Completed in %.2f seconds\n", time.Since(startTime).Seconds())

	if *extractSlices {
		if err := exportViews(res.Volume, cfg, *outputDir); err != nil {
			logger.Errorf("Failed to export views: %v", err)
		}
	}
}

func runServer(ctx context.Context, service *pipeline.Service, cfg *config.Config) {
	logger := log.Named("restserver")
	var wg sync.WaitGroup
	ctrl, err := restserver.NewController(ctx, &wg, service, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create REST server: %v", err)
	}
	if err := ctrl.StartController(); err != nil {
		logger.Fatalf("Failed to start REST server: %v", err)
	}
	wg.Wait()
}

// exportViews saves every cross section and both straightened view sequences
func exportViews(vol *models.CurvedMPRVolume, cfg *config.Config, outputDir string) error {
	viewer := visualization.NewViewer(vol, visualization.Window{
		Center: cfg.Output.WindowCenter,
		Width:  cfg.Output.WindowWidth,
	})

	for _, axis := range []string{"z", "x", "y"} {
		axisDir := filepath.Join(outputDir, axis)
		fmt.Printf("Saving %s-axis views to: %s\n", axis, axisDir)
		if err := viewer.SaveSliceSequence(axis, axisDir); err != nil {
			return fmt.Errorf("%s-axis views: %w", axis, err)
		}
	}

	straight, err := viewer.Straightened()
	if err != nil {
		return err
	}
	return viewer.SaveSlice(straight, filepath.Join(outputDir, "straightened.jpg"))
}

// parsePoints reads "x,y,z[,w];..." into control points
func parsePoints(s string) ([]models.ControlPoint, error) {
	var out []models.ControlPoint
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ",")
		if len(fields) != 3 && len(fields) != 4 {
			return nil, fmt.Errorf("point %q needs 3 coordinates and an optional weight", part)
		}
		vals := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, fmt.Errorf("point %q: %w", part, err)
			}
			vals[i] = v
		}
		cp := models.ControlPoint{Point3D: models.Point3D{X: vals[0], Y: vals[1], Z: vals[2]}}
		if len(vals) == 4 {
			cp.Weight = vals[3]
		}
		out = append(out, cp)
	}
	if len(out) < 2 {
		return nil, errors.New("at least a start and an end point are required")
	}
	return out, nil
}
