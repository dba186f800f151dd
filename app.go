package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kwv/focusreticle/reticle"
)

// frameBuffer is how many decoded frames may wait for the update loop
const frameBuffer = 16

// App encapsulates the application state and dependencies
type App struct {
	Config     *reticle.Config
	Recorder   *reticle.Recorder
	MQTTClient *reticle.MQTTClient
	Publisher  *reticle.Publisher

	// CLI Flags (effectively dependencies)
	ConfigFile   string
	ReplayFile   string
	OutputFile   string
	SnapshotFile string
	HttpPort     int
	MqttMode     bool
	HttpMode     bool
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		Recorder: reticle.NewRecorder(),
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.ReplayFile = opts.ReplayFile
	a.OutputFile = opts.OutputFile
	a.SnapshotFile = opts.SnapshotFile
	a.HttpPort = opts.HttpPort
	a.MqttMode = opts.MqttMode
	a.HttpMode = opts.HttpMode
}

// loadConfig reads the config file, falling back to defaults when the file
// does not exist. An unreadable or invalid file is an error.
func (a *App) loadConfig() (*reticle.Config, error) {
	if a.ConfigFile == "" {
		return reticle.DefaultConfig(), nil
	}
	if _, err := os.Stat(a.ConfigFile); errors.Is(err, os.ErrNotExist) {
		log.Printf("No config at %s, using defaults", a.ConfigFile)
		return reticle.DefaultConfig(), nil
	}
	config, err := reticle.LoadConfig(a.ConfigFile)
	if err != nil {
		return nil, err
	}
	log.Printf("Loaded config from %s", a.ConfigFile)
	return config, nil
}

// httpPort resolves the listen port: flag, then config
func (a *App) httpPort() int {
	if a.HttpPort > 0 {
		return a.HttpPort
	}
	if a.Config != nil && a.Config.HTTP.Port > 0 {
		return a.Config.HTTP.Port
	}
	return 8080
}

// RunReplay drives the indicator through a recorded frame stream and writes
// the final frame out
func (a *App) RunReplay() {
	if err := a.replay(); err != nil {
		log.Fatalf("Replay failed: %v", err)
	}
}

func (a *App) replay() error {
	config, err := a.loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.Config = config

	frames, err := reticle.LoadRecording(a.ReplayFile)
	if err != nil {
		return err
	}
	fmt.Printf("Replaying %d frame(s) from %s\n", len(frames), a.ReplayFile)

	transitions := 0
	ind, err := reticle.Replay(frames, config.Indicator, a.Recorder, func(step reticle.ReplayStep) {
		if !step.Result.VisualChange() {
			return
		}
		transitions++
		logTransition(step.Index, step.Result)
	})
	if err != nil {
		return err
	}

	anchor, _ := ind.PlaneAnchor()
	fmt.Printf("Final state: %s (plane anchor %q, open=%t, %d transition(s))\n",
		ind.State(), anchor, ind.IsOpen(), transitions)

	snap, ok := a.Recorder.Snapshot()
	if !ok {
		fmt.Println("No frames replayed; nothing to write")
		return nil
	}

	if a.OutputFile != "" {
		if err := writeSVG(a.OutputFile, config.Indicator, snap); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", a.OutputFile)
	}
	if a.SnapshotFile != "" {
		if err := reticle.SaveSnapshot(snap, a.SnapshotFile); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", a.SnapshotFile)
	}
	return nil
}

// writeSVG renders a snapshot to an SVG file
func writeSVG(path string, cfg reticle.IndicatorConfig, snap reticle.Snapshot) error {
	renderer, err := reticle.NewVectorRenderer(cfg)
	if err != nil {
		return fmt.Errorf("creating vector renderer: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := renderer.RenderToSVG(f, snap); err != nil {
		f.Close()
		return fmt.Errorf("rendering SVG: %w", err)
	}
	return f.Close()
}

// logTransition logs a visual change of the indicator
func logTransition(frame int, r reticle.TransitionResult) {
	switch {
	case r.Discovery:
		log.Printf("frame %d: %s -> %s (new surface)", frame, r.Previous, r.Current)
	case r.Cancelled:
		log.Printf("frame %d: %s -> %s (animation restarted)", frame, r.Previous, r.Current)
	default:
		log.Printf("frame %d: %s -> %s", frame, r.Previous, r.Current)
	}
}

// RunService runs the MQTT and/or HTTP service until interrupted
func (a *App) RunService() {
	fmt.Println("Starting focusreticle service...")

	config, err := a.loadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v (looked at %s)", err, a.ConfigFile)
	}
	a.Config = config

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	renderers := reticle.MultiRenderer{a.Recorder}
	frames := make(chan *reticle.FrameMessage, frameBuffer)

	// 1. Start MQTT if enabled
	if a.MqttMode {
		mqttClient, err := reticle.InitMQTT(config, frameHandler(frames))
		if err != nil {
			log.Fatalf("Failed to initialize MQTT: %v", err)
		}
		if mqttClient == nil {
			log.Fatal("MQTT broker not configured in config.yaml")
		}
		a.MQTTClient = mqttClient

		a.Publisher = reticle.NewPublisher(mqttClient.GetClient(), config.MQTT.PublishPrefix)
		renderers = append(renderers, a.Publisher)
		fmt.Println("MQTT frame publisher initialized")
	}

	// 2. One goroutine owns the indicator
	ind := reticle.New(config.Indicator, renderers)
	ind.Update(nil, nil) // push the billboard so /state has a frame before tracking starts
	done := make(chan struct{})
	go func() {
		defer close(done)
		updateLoop(ctx, ind, frames)
	}()

	// 3. Start HTTP server if enabled
	var server *http.Server
	if a.HttpMode {
		server = &http.Server{
			Addr:              fmt.Sprintf("0.0.0.0:%d", a.httpPort()),
			Handler:           newHTTPServer(a.Recorder, config),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Printf("[HTTP] Starting server on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("[HTTP] Server error: %v", err)
			}
		}()
	}

	// 4. Print service info
	a.printServiceInfo()
	fmt.Println("\nPress Ctrl+C to stop")

	// 5. Wait for interrupt signal
	<-ctx.Done()

	fmt.Println("\nShutting down service...")
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	<-done
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[HTTP] Shutdown error: %v", err)
		}
	}
	fmt.Println("Service stopped")
}

func (a *App) printServiceInfo() {
	fmt.Println("\nService Running")
	fmt.Println("===============")

	if a.MqttMode {
		fmt.Println("\nMQTT:")
		fmt.Printf("  Subscribed topic: %s\n", a.Config.MQTT.FrameTopic)
		if a.Publisher != nil {
			fmt.Printf("  Instance: %s\n", a.Publisher.InstanceID())
		}
		fmt.Printf("  Publishing to: %s/frame\n", a.Config.MQTT.PublishPrefix)
		fmt.Printf("  Status (retained): %s/status\n", a.Config.MQTT.PublishPrefix)
	}

	if a.HttpMode {
		fmt.Printf("\nHTTP endpoints (port %d):\n", a.httpPort())
		fmt.Println("  GET /health            - Health check")
		fmt.Println("  GET /state             - Latest indicator frame as JSON")
		fmt.Println("  GET /reticle.svg       - Vector preview of the segments")
		fmt.Println("  GET /reticle.png       - Rasterized vector preview")
		fmt.Println("  GET /preview.png       - Labelled pixel preview")
		fmt.Println("  GET /segments.geojson  - Segment outlines as GeoJSON")
	}
}

// frameHandler adapts MQTT deliveries onto the frame channel. It never
// blocks the paho callback goroutine; frames that do not fit are dropped.
func frameHandler(frames chan<- *reticle.FrameMessage) reticle.FrameHandler {
	dropped := 0
	return func(frame *reticle.FrameMessage, err error) {
		if err != nil {
			log.Printf("Error decoding frame: %v", err)
			return
		}
		select {
		case frames <- frame:
			if dropped > 0 {
				log.Printf("Update loop caught up after dropping %d frame(s)", dropped)
				dropped = 0
			}
		default:
			dropped++
			if dropped == 1 {
				log.Printf("Update loop is behind; dropping frames")
			}
		}
	}
}

// updateLoop feeds frames to the indicator until ctx is cancelled
func updateLoop(ctx context.Context, ind *reticle.Indicator, frames <-chan *reticle.FrameMessage) {
	n := 0
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-frames:
			result := ind.Update(frame.ToSample(), frame.ToCamera())
			if result.VisualChange() {
				logTransition(n, result)
			}
			n++
		}
	}
}
