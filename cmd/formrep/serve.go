package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ayusman/formrep/internal/app"
	"github.com/ayusman/formrep/internal/config"
	"github.com/ayusman/formrep/internal/replay"
	"github.com/ayusman/formrep/internal/server"
	"github.com/ayusman/formrep/internal/tray"
)

var serveOpts struct {
	addr      string
	camera    string
	webDir    string
	pluginDir string
	record    string
	withTray  bool
	paused    bool
	verbose   bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Count reps from a camera or video and serve the dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	defaults := config.Default()

	f := serveCmd.Flags()
	f.StringVar(&serveOpts.addr, "addr", defaults.Addr, "HTTP listen address")
	f.StringVar(&serveOpts.camera, "camera", defaults.Camera, "camera index or video file")
	f.StringVar(&serveOpts.webDir, "web", "", "directory of static dashboard files (default: search web/ and ~/.formrep/web)")
	f.StringVar(&serveOpts.pluginDir, "plugins", defaults.PluginDir, "directory of hook plugins")
	f.StringVar(&serveOpts.record, "record", "", "write detected keypoints to this JSONL file")
	f.BoolVar(&serveOpts.withTray, "tray", false, "show a system tray menu")
	f.BoolVar(&serveOpts.paused, "paused", false, "start with counting paused")
	f.BoolVarP(&serveOpts.verbose, "verbose", "v", false, "log every API request")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command) error {
	f := cmd.Flags()
	if f.Changed("addr") {
		cfg.Addr = serveOpts.addr
	}
	if f.Changed("camera") {
		cfg.Camera = serveOpts.camera
	}
	if f.Changed("plugins") {
		cfg.PluginDir = serveOpts.pluginDir
	}
	if serveOpts.webDir != "" {
		cfg.WebDir = serveOpts.webDir
	}

	opts := app.Options{Config: cfg, Store: db}

	if serveOpts.record != "" {
		out, err := os.Create(serveOpts.record)
		if err != nil {
			return fmt.Errorf("create recording: %w", err)
		}
		defer out.Close()
		opts.Recorder = replay.NewRecorder(out)
		log.Printf("Recording keypoints to %s", serveOpts.record)
	}

	a, err := app.New(opts)
	if err != nil {
		return err
	}
	if err := a.DiscoverPlugins(); err != nil {
		log.Printf("Plugin discovery failed: %v", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := a.Start(ctx); err != nil {
		return err
	}
	a.SetEnabled(!serveOpts.paused)

	webDir := findWebDir(cfg.WebDir, cfg.DataDir)
	if webDir != "" {
		log.Printf("Serving static files from: %s", webDir)
	}

	srv := server.New(server.Config{
		StaticDir:   webDir,
		Version:     Version,
		LogRequests: serveOpts.verbose,
		Store:       db,
		Pipeline:    a,
		Plugins:     a.PluginManager(),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", cfg.Addr)
		errCh <- srv.Run(ctx, cfg.Addr)
	}()

	if serveOpts.withTray {
		runTray(ctx, cancel, a)
	}

	select {
	case <-ctx.Done():
	case <-a.Done():
		log.Println("Capture finished")
	case err = <-errCh:
	}

	cancel()
	a.Stop()
	printSummary(os.Stdout, a.Summary())

	return err
}

// runTray shows the tray menu on the calling goroutine until it quits or
// ctx is cancelled.
func runTray(ctx context.Context, cancel context.CancelFunc, a *app.App) {
	t := tray.New()
	t.OnToggle(a.SetEnabled)
	t.OnNewSession(func() {
		if _, err := a.NewSession(); err != nil {
			log.Printf("Failed to start session: %v", err)
		}
	})
	t.OnDashboard(func() {
		openBrowser("http://" + cfg.Addr + "/")
	})
	t.OnQuit(cancel)

	t.SetEnabled(a.IsEnabled())

	reports, unsubscribe := a.Subscribe()
	defer unsubscribe()
	go t.Watch(reports)

	go func() {
		<-ctx.Done()
		t.Quit()
	}()

	t.Run()
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
		return
	}
	go cmd.Wait()
}

// findWebDir returns dir if it exists, else the first of "web", "../web"
// and <dataDir>/web that does, else "".
func findWebDir(dir, dataDir string) string {
	candidates := []string{dir, "web", "../web", filepath.Join(dataDir, "web")}
	for _, p := range candidates {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
