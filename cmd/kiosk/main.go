package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"facetrack/internal/apiclient"
	"facetrack/internal/config"
	"facetrack/internal/facegate"
	"facetrack/internal/kiosk"
	"facetrack/internal/recog"
	"facetrack/internal/roster"
)

var (
	apiBase   string
	companyID int64
	deviceID  string
	framesDir string
)

var rootCmd = &cobra.Command{
	Use:   "kiosk",
	Short: "Attendance kiosk: samples camera frames and records entry/exit by face",
	Long: `The kiosk registers itself with the attendance API, loads the selected
company's roster of face descriptors, and then samples camera frames on a
fixed interval. Live faces matched against the roster record an entry before
the cutoff time and an exit after it.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the capture/recognition session",
	RunE:  runSession,
}

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "List companies available for session selection",
	RunE: func(cmd *cobra.Command, args []string) error {
		api := apiclient.New(apiBase)
		companies, err := api.Companies(cmd.Context())
		if err != nil {
			return err
		}
		for _, c := range companies {
			fmt.Printf("%d\t%s\n", c.ID, c.Name)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiBase, "api", "http://localhost:8081", "Attendance API base URL")
	runCmd.Flags().Int64Var(&companyID, "company", 0, "Company id for this session (required)")
	runCmd.Flags().StringVar(&deviceID, "device", "", "Kiosk device id (required)")
	runCmd.Flags().StringVar(&framesDir, "frames", "/var/spool/facetrack/frames", "Directory the camera grabber writes frames into")
	_ = runCmd.MarkFlagRequired("company")
	_ = runCmd.MarkFlagRequired("device")
	rootCmd.AddCommand(runCmd, companiesCmd)
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("session stopping")
		cancel()
	}()

	api := apiclient.New(apiBase)
	if err := api.RegisterDevice(ctx, deviceID); err != nil {
		return fmt.Errorf("device registration failed: %w", err)
	}

	face := facegate.New(cfg.FaceServiceURL, cfg.FaceSkip)

	// A fresh cache per session: switching companies means a new process run,
	// which rebuilds descriptors from scratch.
	cache := roster.NewCache(api, face, companyID, cfg.RosterBatchSize)
	log.Printf("loading roster for company %d...", companyID)
	if err := cache.Load(ctx); err != nil {
		return fmt.Errorf("roster load failed: %w", err)
	}
	log.Printf("roster loaded: %d descriptors", cache.Len())

	matcher := recog.NewMatcher(cache.Entries(), cfg.MatchThreshold)
	hour, minute := cfg.CutoffClock()

	sess := kiosk.NewSession(kiosk.Config{
		CompanyID:    companyID,
		Interval:     cfg.SampleInterval,
		CutoffHour:   hour,
		CutoffMinute: minute,
	}, kiosk.DirSource{Dir: framesDir}, face, matcher, api, kiosk.LogNotifier{})

	if err := sess.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
