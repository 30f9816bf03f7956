package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"formvoice/native/internal/api"
	"formvoice/native/internal/archive"
	"formvoice/native/internal/config"
	"formvoice/native/internal/domain"
	"formvoice/native/internal/session"
	"formvoice/native/internal/ui"
	"formvoice/native/internal/verify"
	"formvoice/native/internal/webrtc"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an interactive console session",
	Long: `Start an interactive console session.

Type start to connect, stop to end the call and save the transcript,
confirm key=value; key=value to answer the verification form, skip to
dismiss it, and quit to exit. Every line counts as a user interaction,
which unblocks audio playback when VOICECALL_REQUIRE_GESTURE is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(profilePath)
		if err != nil {
			return err
		}
		return runConsole(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runConsole(parent context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer ossignal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			log.Printf("[main] received %s, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	profile := cfg.Profile
	tool, err := verify.NewTool(profile.Verification.Tool, profile.Verification.Fields)
	if err != nil {
		return fmt.Errorf("build verify tool: %w", err)
	}

	backend := api.NewClient(cfg.BackendURL)
	exchanger := webrtc.NewExchanger(cfg.RealtimeURL)
	gestures := ui.NewGestures()
	peerOpts := webrtc.Options{
		AudioInput:     cfg.AudioInput,
		AudioOutput:    cfg.AudioOutput,
		RequireGesture: cfg.RequireGesture,
		GatherTimeout:  cfg.GatherTimeout,
		SDPPolicy:      cfg.SDPPolicy,
		Gestures:       gestures,
	}
	newPeer := func(h domain.PeerHandler) domain.Peer {
		return webrtc.NewPeer(h, exchanger, peerOpts)
	}

	term := ui.NewTerminal(out)
	presenters := ui.Fanout{term}

	var bridge *ui.Bridge
	if cfg.UIListen != "" {
		bridge = ui.NewBridge()
		presenters = append(presenters, bridge)
	}

	opts := session.Options{
		Profile:    profile,
		Tool:       tool,
		OnInteract: gestures.Fire,
	}
	if cfg.ArchivePath != "" {
		journal, err := archive.Open(ctx, cfg.ArchivePath)
		if err != nil {
			return err
		}
		defer journal.Close()
		opts.Archive = journal
	}

	controller := session.New(backend, backend, newPeer, presenters, opts)

	if bridge != nil {
		// Complete the circular dependency
		bridge.SetCommands(controller)

		mux := http.NewServeMux()
		mux.Handle("/ws", bridge)
		srv := &http.Server{Addr: cfg.UIListen, Handler: mux}
		go func() {
			log.Printf("[main] UI bridge listening on %s/ws", cfg.UIListen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("[main] UI bridge: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			srv.Shutdown(shutdownCtx)
		}()
	}

	runErr := term.Run(ctx, in, controller)

	if controller.State().CanStop() {
		log.Printf("[main] stopping active session before exit")
		res, err := controller.Stop(context.Background())
		if err != nil {
			log.Printf("[main] stop: %v", err)
		} else {
			log.Printf("[main] session %s: %d turns, save=%s analyze=%s", res.SessionID, res.Turns, res.SaveStatus, res.AnalyzeStatus)
		}
	}

	log.Printf("[main] done")
	return runErr
}
