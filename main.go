// Command drive.assist runs the ADAS decision service: it ingests video feed
// datagrams over UDP, runs each reassembled frame through the warning
// pipeline, persists events and sampled decisions to the drive log, raises
// cabin alerts over the HUD serial link, and serves the operator HTTP
// surface (API, live dashboard, debug routes).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kestrel-auto/drive.assist/internal/adas"
	"github.com/kestrel-auto/drive.assist/internal/adas/lanes"
	"github.com/kestrel-auto/drive.assist/internal/adas/pipeline"
	"github.com/kestrel-auto/drive.assist/internal/alertmux"
	"github.com/kestrel-auto/drive.assist/internal/api"
	"github.com/kestrel-auto/drive.assist/internal/config"
	"github.com/kestrel-auto/drive.assist/internal/db"
	"github.com/kestrel-auto/drive.assist/internal/feed"
	"github.com/kestrel-auto/drive.assist/internal/fsutil"
	"github.com/kestrel-auto/drive.assist/internal/monitor"
	"github.com/kestrel-auto/drive.assist/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "HTTP listen address")
	feedListen  = flag.String("feed-listen", ":5600", "UDP listen address for the video feed")
	dbFile      = flag.String("db", "drive_log.db", "Drive log database file")
	configPath  = flag.String("config", "", "Tuning config file (JSON); defaults when empty")
	calibration = flag.String("calibration", "", "Camera calibration file, overrides the config value")
	hudPort     = flag.String("hud-port", "", "Serial device for the alert HUD; disabled when empty")
	devMode     = flag.Bool("dev", false, "Run in dev mode (mock HUD, diag logging)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("drive.assist %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	// Ops stream always on; diag only in dev where the volume is tolerable.
	writers := adas.LogWriters{Ops: os.Stderr}
	if *devMode {
		writers.Diag = os.Stderr
	}
	adas.SetLogWriters(writers)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load tuning config: %v", err)
	}

	p, err := buildPipeline(cfg, *calibration)
	if err != nil {
		log.Fatalf("failed to build pipeline: %v", err)
	}

	driveDB, err := db.NewDriveDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to open drive log: %v", err)
	}
	defer driveDB.Close()

	cfgJSON, _ := json.Marshal(cfg)
	runID, err := driveDB.StartRun(version.Version, version.GitSHA, string(cfgJSON))
	if err != nil {
		log.Fatalf("failed to start run: %v", err)
	}
	log.Printf("drive log run %s", runID)

	// Alert HUD: real port, mock in dev, disabled when unconfigured.
	var hud alertmux.AlertMuxInterface
	switch {
	case *devMode:
		hud = alertmux.NewMockAlertMux([]byte("REARM\n"))
	case *hudPort != "":
		hud, err = alertmux.NewRealAlertMux(*hudPort, alertmux.PortOptions{})
		if err != nil {
			log.Fatalf("failed to open alert HUD %s: %v", *hudPort, err)
		}
	default:
		hud = alertmux.NewDisabledAlertMux()
	}
	defer hud.Close()

	// Sinks: durable drive log, live SSE broker, HUD alerts, dashboard ring.
	recorder := db.NewRecorder(driveDB, runID)
	broker := api.NewEventBroker()
	notifier := alertmux.NewNotifier(hud)
	dashboard := monitor.NewDashboard(driveDB, runID)

	pipe := pipelineWithSinks(p, cfg,
		pipeline.MultiEventSink{recorder, broker, notifier},
		pipeline.MultiDecisionSink{recorder, dashboard})

	feedStats := feed.NewStats()
	builder := feed.NewFrameBuilder(func(frame *adas.Frame) {
		pipe.ProcessFrame(frame)
	}, cfg.GetFeedFrameTimeout(), nil, feedStats)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// UDP feed listener
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := feed.Listen(ctx, feed.ListenerConfig{
			Address:       *feedListen,
			ReceiveBuffer: cfg.GetFeedReceiveBuffer(),
		}, builder, feedStats, pipe.RecordIngestError)
		if err != nil && err != context.Canceled {
			log.Printf("feed listener failed: %v", err)
			stop()
		}
		log.Print("feed listener terminated")
	}()

	// drive log writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		recorder.Run(ctx)
		if events, decisions := recorder.Dropped(); events > 0 || decisions > 0 {
			log.Printf("drive log dropped %d events, %d decisions", events, decisions)
		}
		log.Print("recorder terminated")
	}()

	// HUD writer and reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		notifier.Run(ctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hud.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor alert HUD: %v", err)
		}
		log.Print("HUD monitor terminated")
	}()

	// operator button presses coming back from the HUD
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, c := hud.Subscribe()
		defer hud.Unsubscribe(id)
		for {
			select {
			case line := <-c:
				handleHUDLine(pipe, driveDB, runID, line)
			case <-ctx.Done():
				log.Print("HUD subscribe routine terminated")
				return
			}
		}
	}()

	// periodic feed rate logging
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				snap := feedStats.GetAndReset()
				if snap.Packets == 0 {
					continue
				}
				secs := snap.Duration.Seconds()
				log.Printf("feed: %.1f pkt/s %.2f MB/s %.1f fps (dropped=%d decode_errors=%d orphans=%d)",
					float64(snap.Packets)/secs, float64(snap.Bytes)/secs/1e6,
					float64(snap.Frames)/secs, snap.DroppedFrames, snap.DecodeErrors, snap.OrphanTiles)
			case <-ctx.Done():
				return
			}
		}
	}()

	// HTTP server
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// admin debugging routes (accessible only in dev mode or over Tailscale)
		if err := driveDB.AttachAdminRoutes(mux); err != nil {
			log.Printf("failed to attach drive log admin routes: %v", err)
		}
		hud.AttachAdminRoutes(mux)

		apiServer := api.NewServer(pipe, driveDB, feedStats, broker, runID)
		mux.Handle("/api/", apiServer.ServeMux())

		// operator dashboard at /
		dashboard.AttachRoutes(mux)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("HTTP server listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
		log.Print("HTTP server routine stopped")
	}()

	wg.Wait()
	broker.Close()
	if err := driveDB.EndRun(runID); err != nil {
		log.Printf("failed to end run: %v", err)
	}
	log.Print("Graceful shutdown complete")
}

// loadConfig resolves the tuning configuration: an explicit path must load,
// the default path may be absent.
func loadConfig(path string) (*config.TuningConfig, error) {
	if path != "" {
		return config.LoadTuningConfig(path)
	}
	if _, err := os.Stat(config.DefaultConfigPath); err == nil {
		return config.LoadTuningConfig(config.DefaultConfigPath)
	}
	return config.DefaultTuningConfig(), nil
}

// buildPipeline assembles the engines from the tuning config. The returned
// pipeline has no sinks; pipelineWithSinks finishes the wiring.
func buildPipeline(cfg *config.TuningConfig, calibrationOverride string) (*pipelineParts, error) {
	calPath := cfg.GetCalibrationFile()
	if calibrationOverride != "" {
		calPath = calibrationOverride
	}

	var cal *adas.Calibration
	if calPath != "" {
		var err error
		cal, err = adas.LoadCalibration(fsutil.OSFileSystem{}, calPath)
		if err != nil {
			return nil, fmt.Errorf("calibration: %w", err)
		}
		log.Printf("loaded calibration from %s (focal=%.1f)", calPath, cal.FocalLength())
	} else {
		log.Print("no calibration configured, using heuristic distance estimation")
	}

	estimator := adas.NewDistanceEstimator(cal)
	arbiter := lanes.NewFallbackArbiter(lanes.ArbiterConfig{
		ConfidenceThreshold:    cfg.GetCVConfidenceThreshold(),
		MaxConsecutiveFailures: cfg.GetMaxConsecutiveDLFailures(),
	}, lanes.NewInferenceDetector(), lanes.NewClassicalDetector())

	return &pipelineParts{
		estimator: estimator,
		arbiter:   arbiter,
		collision: adas.NewCollisionWarningEngine(adas.CollisionConfig{
			WarningDistance:  cfg.GetFCWSWarningDistance(),
			CriticalDistance: cfg.GetFCWSCriticalDistance(),
		}, estimator),
		departure: adas.NewLaneDepartureEngine(adas.DepartureConfig{
			Threshold: cfg.GetLDWSDepartureThreshold(),
		}),
		assist: adas.NewLaneKeepAssist(adas.AssistConfig{
			Threshold: cfg.GetLKASAssistThreshold(),
		}),
		governor: adas.NewPerformanceGovernor(adas.GovernorConfig{
			MaxLatency:   cfg.GetMaxLatency(),
			WindowSize:   adas.DefaultGovernorConfig().WindowSize,
			BirdsEyeView: cfg.GetBirdsEyeView(),
			Animations:   cfg.GetAnimations(),
		}),
	}, nil
}

// pipelineParts holds the constructed engines between the two build stages.
type pipelineParts struct {
	estimator *adas.DistanceEstimator
	arbiter   *lanes.FallbackArbiter
	collision *adas.CollisionWarningEngine
	departure *adas.LaneDepartureEngine
	assist    *adas.LaneKeepAssist
	governor  *adas.PerformanceGovernor
}

func pipelineWithSinks(parts *pipelineParts, cfg *config.TuningConfig,
	events pipeline.EventSink, decisions pipeline.DecisionSink) *pipeline.Pipeline {

	p, err := pipeline.New(pipeline.Config{
		Estimator:           parts.estimator,
		Arbiter:             parts.arbiter,
		Collision:           parts.collision,
		Departure:           parts.departure,
		Assist:              parts.assist,
		Governor:            parts.governor,
		Events:              events,
		Decisions:           decisions,
		DecisionSampleEvery: cfg.GetDecisionSampleEvery(),
	})
	if err != nil {
		// all engines were constructed above, so this is unreachable
		log.Fatalf("failed to create pipeline: %v", err)
	}
	return p
}

// handleHUDLine reacts to operator button presses arriving from the HUD.
func handleHUDLine(pipe *pipeline.Pipeline, driveDB *db.DriveDB, runID, line string) {
	cmd := alertmux.ClassifyLine(line)
	switch cmd {
	case alertmux.CommandRearm:
		ok := pipe.EnableLearnedLanes()
		log.Printf("HUD re-arm request, enabled=%v", ok)
	case alertmux.CommandResetDisplay:
		pipe.ResetDisplayFeatures()
		log.Print("HUD display reset request")
	case alertmux.CommandAck:
		// acknowledgement of a delivered alert, nothing to do
		return
	default:
		log.Printf("unrecognised HUD line %q", line)
		return
	}

	if err := driveDB.RecordOperatorEvent(db.OperatorEvent{
		RunID:     runID,
		Type:      "hud_command",
		Detail:    cmd,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		log.Printf("failed to record HUD command: %v", err)
	}
}
