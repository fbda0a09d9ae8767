package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/wall.align/internal/align/l1frames"
	"github.com/banshee-data/wall.align/internal/align/l2calib"
	"github.com/banshee-data/wall.align/internal/align/l3layout"
	"github.com/banshee-data/wall.align/internal/align/l4pose"
	"github.com/banshee-data/wall.align/internal/align/l5guidance"
	"github.com/banshee-data/wall.align/internal/align/pipeline"
	"github.com/banshee-data/wall.align/internal/align/report"
	"github.com/banshee-data/wall.align/internal/align/storage/sqlite"
	"github.com/banshee-data/wall.align/internal/config"
	"github.com/banshee-data/wall.align/internal/security"
)

const defaultDBPath = "wallalign.db"

// layoutFile is the import format. Calibration points come either as
// explicit correspondences or as the four camera corners of a wall
// rectangle of known size.
type layoutFile struct {
	Name            string                   `json:"name"`
	Items           []l3layout.PlannedItem   `json:"items"`
	Correspondences []l2calib.Correspondence `json:"correspondences,omitempty"`
	WallQuad        *wallQuad                `json:"wall_quad,omitempty"`
}

type wallQuad struct {
	Width   float64                `json:"width"`
	Height  float64                `json:"height"`
	Corners [4]l2calib.CameraPoint `json:"corners"`
}

func readLayoutFile(path string) (layoutFile, []l2calib.Correspondence, error) {
	var lf layoutFile
	data, err := os.ReadFile(path)
	if err != nil {
		return lf, nil, fmt.Errorf("failed to read layout file: %w", err)
	}
	if err := json.Unmarshal(data, &lf); err != nil {
		return lf, nil, fmt.Errorf("failed to parse layout JSON: %w", err)
	}
	corrs := lf.Correspondences
	if lf.WallQuad != nil {
		if len(corrs) > 0 {
			return lf, nil, errors.New("layout file has both correspondences and wall_quad")
		}
		q := lf.WallQuad
		corrs, err = l2calib.QuadCorrespondences(q.Width, q.Height, l2calib.OrderCorners(q.Corners))
		if err != nil {
			return lf, nil, fmt.Errorf("wall_quad: %w", err)
		}
	}
	return lf, corrs, nil
}

// loadTuning reads path, or the repository defaults file when path is
// empty, falling back to built-in defaults if that is missing.
func loadTuning(path string) (*config.TuningConfig, error) {
	if path != "" {
		return config.LoadTuningConfig(path)
	}
	if cfg, err := config.LoadTuningConfig(config.DefaultConfigPath); err == nil {
		return cfg, nil
	}
	return config.EmptyTuningConfig(), nil
}

func handleMigrate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBPath, "SQLite database path")
	fs.Parse(args)

	db, err := sqlite.Open(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	v, dirty, err := db.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "schema version %d (dirty=%v)\n", v, dirty)
	return nil
}

func handleImport(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBPath, "SQLite database path")
	layoutPath := fs.String("layout", "", "layout JSON file (required)")
	fs.Parse(args)
	if *layoutPath == "" {
		return errors.New("-layout is required")
	}

	lf, corrs, err := readLayoutFile(*layoutPath)
	if err != nil {
		return err
	}
	db, err := sqlite.Open(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	id, err := db.SaveLayout(lf.Name, lf.Items)
	if err != nil {
		return err
	}
	if len(corrs) > 0 {
		if err := db.SaveCorrespondences(id, corrs); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "layout %s: %d items, %d correspondences\n", id, len(lf.Items), len(corrs))
	return nil
}

func handleLayouts(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("layouts", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBPath, "SQLite database path")
	fs.Parse(args)

	db, err := sqlite.Open(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	list, err := db.ListLayouts()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LAYOUT\tNAME\tITEMS\tCREATED")
	for _, l := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", l.LayoutID, l.Name, l.ItemCount, l.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

// calibrateLayout loads the stored correspondences of a layout and fits
// them into a new active calibration.
func calibrateLayout(db *sqlite.DB, layoutID string, tuning *config.TuningConfig) (*l2calib.Active, *l2calib.Calibration, error) {
	corrs, err := db.LoadCorrespondences(layoutID)
	if err != nil {
		return nil, nil, err
	}
	if len(corrs) == 0 {
		return nil, nil, fmt.Errorf("layout %s has no correspondences", layoutID)
	}
	active := l2calib.NewActive(l2calib.CalibrateOptions{MaxConditionNumber: tuning.GetMaxConditionNumber()})
	c, err := active.Recalibrate(corrs)
	if err != nil {
		return nil, nil, err
	}
	return active, c, nil
}

func handleCalibrate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("calibrate", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBPath, "SQLite database path")
	layoutID := fs.String("layout", "", "layout id (required)")
	configPath := fs.String("config", "", "tuning JSON file")
	fs.Parse(args)
	if *layoutID == "" {
		return errors.New("-layout is required")
	}

	tuning, err := loadTuning(*configPath)
	if err != nil {
		return err
	}
	db, err := sqlite.Open(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	_, c, err := calibrateLayout(db, *layoutID, tuning)
	if err != nil {
		return err
	}
	printCalibration(out, c)
	return nil
}

func printCalibration(out io.Writer, c *l2calib.Calibration) {
	m := c.Homography.Matrix()
	fmt.Fprintf(out, "calibration %s from %d points\n", c.ID, len(c.Correspondences))
	for r := 0; r < 3; r++ {
		fmt.Fprintf(out, "  [% 12.6g % 12.6g % 12.6g]\n", m[3*r], m[3*r+1], m[3*r+2])
	}
	fmt.Fprintf(out, "condition %.3g\n", c.Homography.Condition())
	fmt.Fprintf(out, "rmse %.3f px (%s)\n", c.Assessment.RMSE, c.Assessment.Quality)
	for _, issue := range c.Assessment.Issues {
		fmt.Fprintf(out, "  ! %s\n", issue)
	}
}

// detectorFactories builds pose detectors by name. Build-tagged files
// may register more.
var detectorFactories = map[string]func(tuning *config.TuningConfig, templatePath string) (l4pose.Detector, error){
	"contour": func(tuning *config.TuningConfig, _ string) (l4pose.Detector, error) {
		cfg, err := l4pose.ContourConfigFromTuning(tuning)
		if err != nil {
			return nil, err
		}
		return l4pose.NewContourDetector(cfg), nil
	},
	"template": func(tuning *config.TuningConfig, templatePath string) (l4pose.Detector, error) {
		if templatePath == "" {
			return nil, errors.New("-template is required for the template estimator")
		}
		img, err := l1frames.LoadImage(templatePath)
		if err != nil {
			return nil, err
		}
		return l4pose.NewTemplateDetector(img, tuning.GetTemplateCoarseStep())
	},
}

func newDetector(name string, tuning *config.TuningConfig, templatePath string) (l4pose.Detector, error) {
	f, ok := detectorFactories[name]
	if !ok {
		return nil, fmt.Errorf("unknown estimator %q", name)
	}
	return f(tuning, templatePath)
}

type replayOptions struct {
	dbPath     string
	layoutID   string
	itemID     string
	framesDir  string
	estimator  string
	template   string
	configPath string
	record     bool
}

func handleReplay(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	var o replayOptions
	fs.StringVar(&o.dbPath, "db", defaultDBPath, "SQLite database path")
	fs.StringVar(&o.layoutID, "layout", "", "layout id (required)")
	fs.StringVar(&o.itemID, "item", "", "item to align (required)")
	fs.StringVar(&o.framesDir, "frames", "", "directory of frame images (required)")
	fs.StringVar(&o.estimator, "estimator", "contour", "pose estimator: contour or template")
	fs.StringVar(&o.template, "template", "", "template image for the template estimator")
	fs.StringVar(&o.configPath, "config", "", "tuning JSON file")
	fs.BoolVar(&o.record, "record", false, "record guidance to the database")
	fs.Parse(args)
	if o.layoutID == "" || o.itemID == "" || o.framesDir == "" {
		return errors.New("-layout, -item and -frames are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	_, err := replay(ctx, o, out)
	return err
}

// replay runs every frame in o.framesDir through a fresh engine and
// returns the session id.
func replay(ctx context.Context, o replayOptions, out io.Writer) (string, error) {
	tuning, err := loadTuning(o.configPath)
	if err != nil {
		return "", err
	}
	db, err := sqlite.Open(o.dbPath)
	if err != nil {
		return "", err
	}
	defer db.Close()

	_, items, err := db.LoadLayout(o.layoutID)
	if err != nil {
		return "", err
	}
	model := l3layout.NewModel()
	if _, err := model.Publish(items); err != nil {
		return "", err
	}
	active, _, err := calibrateLayout(db, o.layoutID, tuning)
	if err != nil {
		return "", err
	}

	det, err := newDetector(o.estimator, tuning, o.template)
	if err != nil {
		return "", err
	}
	est := l4pose.NewEstimator(det, l4pose.EstimatorConfigFromTuning(tuning))
	engine := l5guidance.NewEngine(est, active, model, l5guidance.ConfigFromTuning(tuning))
	if err := engine.SwitchItem(l3layout.ItemID(o.itemID)); err != nil {
		return "", err
	}
	sess, _ := engine.Session()

	src, err := l1frames.NewDirSource(o.framesDir, nil)
	if err != nil {
		return "", err
	}

	printer := pipeline.SinkFunc(func(res l5guidance.GuidanceResult) error {
		_, err := fmt.Fprintf(out, "%5d  %-9s  %s\n", res.FrameSeq, res.State, res.Primary.Text)
		return err
	})
	sinks := []pipeline.Sink{printer}
	if o.record {
		sinks = append(sinks, sqlite.NewGuidanceRecorder(db))
	}

	rcfg := pipeline.ConfigFromTuning(tuning)
	rcfg.Lossless = true
	runner := pipeline.NewRunner(src, engine, rcfg, sinks...)
	if err := runner.Run(ctx); err != nil {
		return sess.ID, err
	}

	st := runner.Stats()
	fmt.Fprintf(out, "session %s: %d frames processed, final state %s\n", sess.ID, st.Processed, st.LastState)
	return sess.ID, nil
}

func handleSessions(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBPath, "SQLite database path")
	fs.Parse(args)

	db, err := sqlite.Open(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	list, err := db.ListSessions()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tITEM\tFRAMES\tFINAL\tLAST")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", s.SessionID, s.ItemID, s.Frames, s.FinalState, s.LastAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func handleReport(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBPath, "SQLite database path")
	sessionID := fs.String("session", "", "session id (required)")
	htmlPath := fs.String("html", "", "write an HTML chart to this path")
	pngPath := fs.String("png", "", "write a PNG chart to this path")
	outDir := fs.String("out", "", "write both charts to this directory, named after the session")
	fs.Parse(args)
	if *sessionID == "" {
		return errors.New("-session is required")
	}
	if *outDir != "" {
		base := filepath.Join(*outDir, "convergence_"+security.SanitizeFilename(*sessionID))
		if *htmlPath == "" {
			*htmlPath = base + ".html"
		}
		if *pngPath == "" {
			*pngPath = base + ".png"
		}
	}
	return writeReport(*dbPath, *sessionID, *htmlPath, *pngPath, out)
}

func writeReport(dbPath, sessionID, htmlPath, pngPath string, out io.Writer) error {
	for _, p := range []string{htmlPath, pngPath} {
		if p == "" {
			continue
		}
		if err := security.ValidateOutputPath(p); err != nil {
			return err
		}
	}
	db, err := sqlite.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	results, err := db.LoadSession(sessionID)
	if err != nil {
		return err
	}

	s := report.Summarise(results)
	fmt.Fprintf(out, "frames %d, aligned after %d, aligned frames %d, lost %d, stale %d, final %s\n",
		s.Frames, s.FramesToAligned, s.AlignedFrames, s.LostCount, s.StaleFrames, s.FinalState)

	if htmlPath != "" {
		f, err := os.Create(htmlPath)
		if err != nil {
			return err
		}
		if err := report.WriteConvergenceHTML(f, results); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s\n", htmlPath)
	}
	if pngPath != "" {
		if err := report.WriteConvergencePNG(pngPath, results); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s\n", pngPath)
	}
	return nil
}
