package main

import (
	"flag"
	"fmt"
	"io"
	"os"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds the parsed command line
type AppOptions struct {
	ConfigFile   string
	MqttMode     bool
	HttpMode     bool
	HttpPort     int
	ReplayFile   string
	OutputFile   string
	SnapshotFile string
}

// Runner is what main dispatches to; App implements it
type Runner interface {
	ApplyOptions(opts AppOptions)
	RunService()
	RunReplay()
}

// run parses args and dispatches to the selected mode
func run(args []string, out io.Writer, app Runner) error {
	fs := flag.NewFlagSet("focusreticle", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to configuration file")
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Consume frames from MQTT and publish indicator output")
	fs.BoolVar(&opts.HttpMode, "http", false, "Serve indicator diagnostics over HTTP")
	fs.IntVar(&opts.HttpPort, "http-port", 0, "HTTP server port (default from config, else 8080)")
	fs.StringVar(&opts.ReplayFile, "replay", "", "Replay a JSON-lines frame recording and exit")
	fs.StringVar(&opts.OutputFile, "output", "", "Write an SVG of the final replayed frame to this file")
	fs.StringVar(&opts.SnapshotFile, "snapshot", "", "Write the final replayed frame as JSON to this file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprintf(out, "focusreticle version: %s\n", Version)
	app.ApplyOptions(opts)

	switch {
	case opts.ReplayFile != "":
		app.RunReplay()
	case opts.MqttMode || opts.HttpMode:
		app.RunService()
	default:
		fmt.Fprintln(out, "Use --replay=FILE to replay a recorded frame stream")
		fmt.Fprintln(out, "Use --mqtt to drive the indicator from MQTT frames")
		fmt.Fprintln(out, "Use --http to serve diagnostics (state, previews, GeoJSON)")
		fmt.Fprintln(out, "Use --mqtt --http to run both together")
	}
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout, NewApp()); err != nil {
		os.Exit(2)
	}
}
