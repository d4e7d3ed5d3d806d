package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/faceservice"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/liveness"
	"github.com/kozaktomas/face-attendance/internal/web"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch a camera and mark attendance",
	Long: `Watch a camera (or replay a directory of frames) and mark attendance for
known people who pass the liveness challenge.

Each recognised person must first blink, then turn their head in the
direction shown. Attendance is recorded once per person per day.

Type q and press Enter, or press Ctrl+C, to stop.

Examples:
  face-attendance run --camera http://192.168.1.20:8080/shot.jpg
  face-attendance run --frames ./recording --http`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("camera", "", "Snapshot URL returning one JPEG/PNG frame per GET")
	runCmd.Flags().String("frames", "", "Replay image files from this directory instead of a camera")
	runCmd.Flags().Duration("interval", 33*time.Millisecond, "Minimum time between camera snapshots")
	runCmd.Flags().Bool("http", false, "Serve the status API while running")
	runCmd.Flags().Bool("rebuild-gallery", false, "Encode the known faces directory even if a gallery index exists")
}

// openSource picks the frame source from --frames or --camera.
func openSource(cmd *cobra.Command) (capture.Source, error) {
	frames := mustGetString(cmd, "frames")
	camera := mustGetString(cmd, "camera")

	switch {
	case frames != "" && camera != "":
		return nil, errors.New("--frames and --camera are mutually exclusive")
	case frames != "":
		src, err := capture.NewDirectorySource(frames)
		if err != nil {
			return nil, err
		}
		fmt.Printf("Replaying %d frame(s) from %s\n", src.Len(), frames)
		return src, nil
	case camera != "":
		return capture.NewSnapshotSource(camera, mustGetDuration(cmd, "interval")), nil
	default:
		return nil, errors.New("either --camera or --frames is required")
	}
}

// watchQuitKey cancels when a line reading "q" arrives on r.
func watchQuitKey(r io.Reader, cancel context.CancelFunc) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if strings.EqualFold(strings.TrimSpace(scanner.Text()), "q") {
			cancel()
			return
		}
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	source, err := openSource(cmd)
	if err != nil {
		return err
	}
	defer source.Close()

	sessionID := uuid.New()
	entry := log.WithField("session", sessionID.String())

	client := faceservice.NewClient(cfg.FaceService.URL, cfg.FaceService.Timeout)
	entry.WithField("url", client.BaseURL()).Info("Using face service")

	var gallery *facematch.Gallery
	if mustGetBool(cmd, "rebuild-gallery") {
		gallery, err = buildGallery(ctx, cfg, client, entry, false)
		if err == nil && cfg.Gallery.IndexPath != "" {
			err = gallery.Save(cfg.Gallery.IndexPath)
		}
	} else {
		gallery, err = loadGallery(ctx, cfg, client, entry)
	}
	if err != nil {
		return fmt.Errorf("loading known faces: %w", err)
	}

	store, closeStore, err := openLedgerStore(ctx, cfg, sessionID)
	if err != nil {
		return fmt.Errorf("opening attendance ledger: %w", err)
	}
	defer closeStore()

	book, err := ledger.Open(ctx, store)
	if err != nil {
		return err
	}
	entry.WithFields(logrus.Fields{
		"ledger":  ledgerLocation(cfg),
		"records": len(book.Records()),
	}).Info("Attendance ledger ready")

	recognizer := facematch.NewRecognizer(client, gallery, cfg.Detection.Scale)
	trackers := liveness.NewRegistry(cfg.Liveness, liveness.RandomDirection)
	orch := attendance.New(recognizer, book, trackers, attendance.Config{
		DetectionScale:       recognizer.Scale(),
		DegradeOnLedgerError: cfg.Ledger.DegradeOnError,
		SessionID:            sessionID,
	}, log)

	if mustGetBool(cmd, "http") {
		server := web.NewServer(web.Deps{
			Attendance: book,
			Trackers:   trackers,
			Info: handlers.Info{
				Version:   Version,
				SessionID: sessionID.String(),
				Backend:   cfg.Ledger.Backend,
			},
			APIToken: cfg.Web.APIToken,
		}, cfg.Web.Host, cfg.Web.Port, entry)

		go func() {
			if err := server.Start(); err != nil {
				entry.WithError(err).Error("Status API stopped")
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				entry.WithError(err).Warn("Status API shutdown")
			}
		}()
	}

	go watchQuitKey(os.Stdin, cancel)

	fmt.Println("Watching for faces. Type q and press Enter to stop.")
	runErr := orch.Run(ctx, source, attendance.NewConsoleRenderer(os.Stdout))

	printRunSummary(os.Stdout, runSummary{
		Stats:        orch.Stats(),
		People:       trackers.Len(),
		PresentToday: len(book.ForDate(book.Today())),
	})
	return runErr
}

// runSummary is what run prints when it stops.
type runSummary struct {
	Stats        attendance.Stats
	People       int // distinct known people seen
	PresentToday int // records for today across all sessions
}

func printRunSummary(w io.Writer, s runSummary) {
	fmt.Fprintf(w, "\nFrames processed: %d\n", s.Stats.Frames)
	fmt.Fprintf(w, "Faces seen:       %d (%d unauthorized)\n", s.Stats.Detections, s.Stats.Unknown)
	fmt.Fprintf(w, "People tracked:   %d\n", s.People)
	fmt.Fprintf(w, "Present today:    %d\n", s.PresentToday)
	if len(s.Stats.Marked) == 0 {
		fmt.Fprintln(w, "No attendance marked this session.")
		return
	}
	fmt.Fprintf(w, "Attendance marked (%d):\n", len(s.Stats.Marked))
	for _, rec := range s.Stats.Marked {
		fmt.Fprintf(w, "  %-24s %s %s\n", rec.Name, rec.Date, rec.Time)
	}
}
