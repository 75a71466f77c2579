// Command skintrack loads a skinned character, plays its animations and
// tracks a picked surface point, serving the telemetry over HTTP and gRPC.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/banshee-data/skintrack/internal/config"
	"github.com/banshee-data/skintrack/internal/figure/asset"
	"github.com/banshee-data/skintrack/internal/figure/monitor"
	"github.com/banshee-data/skintrack/internal/figure/storage/sqlite"
	"github.com/banshee-data/skintrack/internal/figure/stream"
	"github.com/banshee-data/skintrack/internal/figure/viewer"
	"github.com/banshee-data/skintrack/internal/monitoring"
	"github.com/banshee-data/skintrack/internal/timeutil"
	"github.com/banshee-data/skintrack/internal/version"
)

var (
	configPath  = flag.String("config", "", "Viewer config JSON (defaults apply to missing fields)")
	modelPath   = flag.String("model", "", "Base glTF/GLB model with skin and optional clips")
	idleClip    = flag.String("idle", "", "Name of the idle clip (overrides config)")
	listen      = flag.String("listen", "", "HTTP listen address (overrides config)")
	grpcListen  = flag.String("grpc-listen", "", "gRPC listen address (overrides config); \"off\" disables")
	recordPath  = flag.String("record", "", "SQLite file to record samples into (overrides config)")
	frameRate   = flag.Float64("fps", 0, "Frame rate (overrides config)")
	pickAt      = flag.String("pick", "", "Initial pick as window coordinates \"x,y\"")
	plotDir     = flag.String("plot-dir", "", "Write PNG plots of the final telemetry here on exit")
	tailAddr    = flag.String("tail", "", "Print samples streamed from a running instance at this gRPC address and exit")
	tailEvery   = flag.Int("tail-every", 1, "With -tail, print one sample in N")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
	anims       animFlags
)

func init() {
	flag.Var(&anims, "anim", "Additional animation as name=path (repeatable)")
}

// animFlags collects repeated -anim name=path values.
type animFlags []asset.Source

func (a *animFlags) String() string {
	parts := make([]string, len(*a))
	for i, s := range *a {
		parts[i] = s.Name + "=" + s.Path
	}
	return strings.Join(parts, ",")
}

func (a *animFlags) Set(v string) error {
	name, path, ok := strings.Cut(v, "=")
	if !ok || name == "" || path == "" {
		return fmt.Errorf("want name=path, got %q", v)
	}
	*a = append(*a, asset.Source{Name: name, Path: path})
	return nil
}

// parsePick parses "x,y".
func parsePick(v string) (x, y float64, err error) {
	xs, ys, ok := strings.Cut(v, ",")
	if !ok {
		return 0, 0, fmt.Errorf("want x,y, got %q", v)
	}
	if x, err = strconv.ParseFloat(strings.TrimSpace(xs), 64); err != nil {
		return 0, 0, fmt.Errorf("pick x: %w", err)
	}
	if y, err = strconv.ParseFloat(strings.TrimSpace(ys), 64); err != nil {
		return 0, 0, fmt.Errorf("pick y: %w", err)
	}
	return x, y, nil
}

// loadConfig reads the config file, or the repository defaults when none
// is given, and applies flag overrides on top.
func loadConfig() (*config.ViewerConfig, error) {
	cfg := config.EmptyViewerConfig()
	path := *configPath
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err == nil {
			path = config.DefaultConfigPath
		}
	}
	if path != "" {
		var err error
		if cfg, err = config.LoadViewerConfig(path); err != nil {
			return nil, err
		}
	}
	applyOverrides(cfg)
	return cfg, cfg.Validate()
}

func applyOverrides(cfg *config.ViewerConfig) {
	if *idleClip != "" {
		cfg.IdleClip = idleClip
	}
	if *listen != "" {
		cfg.Listen = listen
	}
	if *grpcListen != "" {
		cfg.GRPCListen = grpcListen
	}
	if *recordPath != "" {
		cfg.RecordPath = recordPath
	}
	if *frameRate > 0 {
		cfg.FrameRate = frameRate
	}
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("skintrack %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	monitoring.SetDebug(*debug)

	if *tailAddr != "" {
		if err := tail(*tailAddr, *tailEvery); err != nil {
			log.Fatalf("tail: %v", err)
		}
		return
	}

	if *modelPath == "" {
		log.Fatal("-model is required")
	}
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := timeutil.RealClock{}
	opts := viewer.OptionsFromConfig(cfg)
	opts.Clock = clock
	session := viewer.NewSession(opts)

	var store *sqlite.Store
	var recorder *sqlite.Recorder
	if p := cfg.GetRecordPath(); p != "" {
		if store, err = sqlite.Open(p); err != nil {
			log.Fatalf("open recording database: %v", err)
		}
		defer store.Close()
		if recorder, err = sqlite.NewRecorder(ctx, store, filepath.Base(*modelPath), clock, cfg.GetFlushInterval()); err != nil {
			log.Fatalf("start recording: %v", err)
		}
		session.AddSink(recorder)
	}

	var publisher *stream.Publisher
	if addr := cfg.GetGRPCListen(); addr != "off" {
		publisher = stream.NewPublisher(stream.Config{ListenAddr: addr})
		if err := publisher.Start(); err != nil {
			log.Fatalf("start gRPC publisher: %v", err)
		}
		defer publisher.Stop()
		session.AddSink(publisher)
	}

	var wg sync.WaitGroup

	// The HTTP server comes up before the model so the dashboard can show
	// the loading state.
	wsConfig := monitor.WebServerConfig{Address: cfg.GetListen(), Session: session}
	if store != nil {
		wsConfig.Recordings = store
	}
	if publisher != nil {
		wsConfig.Stream = publisher
	}
	ws := monitor.NewWebServer(wsConfig)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ws.Start(ctx); err != nil {
			log.Printf("HTTP server: %v", err)
			stop()
		}
	}()

	if recorder != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := recorder.Run(ctx); err != nil {
				log.Printf("final recording flush: %v", err)
			}
		}()
	}

	model, err := asset.Load(*modelPath, anims, asset.Options{Idle: cfg.GetIdleClip()})
	if err != nil {
		stop()
		wg.Wait()
		log.Fatalf("load model: %v", err)
	}
	if err := session.SetModel(model); err != nil {
		stop()
		wg.Wait()
		log.Fatalf("install model: %v", err)
	}
	if *pickAt != "" {
		x, y, err := parsePick(*pickAt)
		if err != nil {
			log.Fatalf("-pick: %v", err)
		}
		if _, ok, err := session.Pick(x, y); err != nil || !ok {
			log.Printf("initial pick at (%.1f, %.1f) did not hit the model", x, y)
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := viewer.NewDriver(session, clock, cfg.GetFrameInterval()).Run(ctx); err != nil {
			log.Printf("frame loop: %v", err)
		}
		log.Print("frame loop terminated")
	}()

	wg.Wait()

	if *plotDir != "" {
		if err := monitor.SavePlots(*plotDir, session.Series()); err != nil {
			log.Printf("save plots: %v", err)
		} else {
			log.Printf("plots written to %s", *plotDir)
		}
	}
	log.Printf("Graceful shutdown complete")
}

// tail prints samples from a running instance as JSON lines.
func tail(addr string, every int) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()

	sub, err := stream.Subscribe(ctx, conn, stream.SubscribeOptions{Every: every})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	for {
		s, err := sub.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := enc.Encode(s); err != nil {
			return err
		}
	}
}
