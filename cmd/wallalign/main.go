// Command wallalign manages stored layouts and calibrations, replays
// recorded camera frames through the alignment loop and renders
// convergence reports.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/wall.align/internal/align/l5guidance"
	"github.com/banshee-data/wall.align/internal/align/pipeline"
	"github.com/banshee-data/wall.align/internal/monitoring"
	"github.com/banshee-data/wall.align/internal/version"
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	closeLogs := setupLogging()
	defer closeLogs()

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch command {
	case "migrate":
		err = handleMigrate(args, os.Stdout)
	case "import":
		err = handleImport(args, os.Stdout)
	case "layouts":
		err = handleLayouts(args, os.Stdout)
	case "calibrate":
		err = handleCalibrate(args, os.Stdout)
	case "replay":
		err = handleReplay(args, os.Stdout)
	case "sessions":
		err = handleSessions(args, os.Stdout)
	case "report":
		err = handleReport(args, os.Stdout)
	case "version":
		fmt.Println(version.String())
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		closeLogs()
		log.Fatalf("%s: %v", command, err)
	}
}

// setupLogging routes the alignment log streams according to WALLALIGN_LOG.
func setupLogging() func() error {
	w, closeFn, err := monitoring.WritersFromEnv()
	if err != nil {
		log.Printf("WALLALIGN_LOG: %v; logging ops to stderr", err)
	}
	l5guidance.SetLogWriters(w)
	pipeline.SetLogWriters(w)
	if w.Ops == nil {
		monitoring.SetLogger(nil)
	}
	return closeFn
}

func printUsage() {
	fmt.Println(`wallalign - picture hanging alignment tools

Usage: wallalign <command> [options]

Commands:
  migrate    Create or upgrade the database schema
  import     Store a layout and its calibration points from a JSON file
  layouts    List stored layouts
  calibrate  Fit and grade the homography for a stored layout
  replay     Run the alignment loop over a directory of frames
  sessions   List recorded guidance sessions
  report     Render convergence charts for a recorded session
  version    Show version information
  help       Show this help message

Run 'wallalign <command> -h' for command flags.

Logging:
  WALLALIGN_LOG=off|diag|trace|<file>   default logs warnings to stderr

Examples:
  wallalign import -db wall.db -layout living-room.json
  wallalign calibrate -db wall.db -layout <layout-id>
  wallalign replay -db wall.db -layout <layout-id> -item mirror -frames ./frames -record
  wallalign report -db wall.db -session <session-id> -html out.html -png out.png`)
}
