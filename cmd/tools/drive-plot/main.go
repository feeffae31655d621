// Command drive-plot renders PNG charts from a recorded drive log: per-frame
// processing latency, lateral position in lane, and commanded steering angle.
// Useful for reviewing a run offline without the live dashboard.
//
// Usage:
//
//	go run ./cmd/tools/drive-plot -db drive_log.db -out ./plots
//
// Flags:
//
//	-db    Drive log path (default: drive_log.db)
//	-run   Run ID to plot; empty for the most recent run
//	-out   Output directory (default: .)
//	-n     Maximum decisions to read
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/kestrel-auto/drive.assist/internal/db"
)

func main() {
	dbPath := flag.String("db", "drive_log.db", "drive log path")
	runID := flag.String("run", "", "run ID to plot; empty for most recent")
	outDir := flag.String("out", ".", "output directory")
	limit := flag.Int("n", 10000, "maximum decisions to read")
	flag.Parse()

	driveDB, err := db.NewDriveDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open drive log: %v", err)
	}
	defer driveDB.Close()

	decisions, err := driveDB.DecisionSeries(*runID, *limit)
	if err != nil {
		log.Fatalf("Failed to read decisions: %v", err)
	}
	if len(decisions) == 0 {
		log.Fatal("No decisions recorded for this run")
	}
	log.Printf("Plotting %d decisions from run %s", len(decisions), decisions[0].RunID)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	files, err := renderPlots(decisions, *outDir)
	if err != nil {
		log.Fatalf("Failed to render plots: %v", err)
	}
	for _, f := range files {
		log.Printf("✓ Created: %s", f)
	}
}

// renderPlots writes one chart per signal and returns the files written.
func renderPlots(decisions []db.FrameDecisionRecord, outDir string) ([]string, error) {
	latencyPts := make(plotter.XYs, 0, len(decisions))
	offsetPts := make(plotter.XYs, 0, len(decisions))
	steeringPts := make(plotter.XYs, 0, len(decisions))
	for _, d := range decisions {
		x := float64(d.Frame)
		latencyPts = append(latencyPts, plotter.XY{X: x, Y: d.LatencyMS})
		steeringPts = append(steeringPts, plotter.XY{X: x, Y: d.SteeringAngle})
		if d.VehicleOffset != nil {
			offsetPts = append(offsetPts, plotter.XY{X: x, Y: *d.VehicleOffset})
		}
	}

	charts := []struct {
		file   string
		title  string
		yLabel string
		series string
		pts    plotter.XYs
		color  color.Color
	}{
		{"latency.png", "Frame Processing Latency", "latency (ms)", "latency_ms",
			latencyPts, color.RGBA{R: 220, G: 80, B: 60, A: 255}},
		{"offset.png", "Vehicle Offset in Lane", "offset (px, positive = left of center)", "offset_px",
			offsetPts, color.RGBA{R: 60, G: 140, B: 220, A: 255}},
		{"steering.png", "Steering Assist", "angle (deg, positive = steer right)", "steering_deg",
			steeringPts, color.RGBA{R: 80, G: 180, B: 100, A: 255}},
	}

	var files []string
	for _, c := range charts {
		if len(c.pts) == 0 {
			log.Printf("Skipping %s: no data points", c.file)
			continue
		}
		file := filepath.Join(outDir, c.file)
		if err := savePlot(file, c.title, c.yLabel, c.series, c.pts, c.color); err != nil {
			return files, fmt.Errorf("failed to render %s: %w", c.file, err)
		}
		files = append(files, file)
	}
	return files, nil
}

func savePlot(file, title, yLabel, series string, pts plotter.XYs, clr color.Color) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "frame"
	p.Y.Label.Text = yLabel

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = clr
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add(series, line)
	p.Legend.Top = true

	return p.Save(14*vg.Inch, 6*vg.Inch, file)
}
