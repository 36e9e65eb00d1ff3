// Command rn2903ctl talks to an RN2903 radio from the command line.
//
// Usage:
//
//	rn2903ctl [flags]                       print the radio configuration
//	rn2903ctl [flags] <category> <cmd> ...  run one command, e.g. "radio get freq"
//	rn2903ctl [flags] shell                 interactive session
//	rn2903ctl [flags] pull                  read the full configuration
//	rn2903ctl [flags] push <file.json>      apply radio settings from a file
//	rn2903ctl [flags] config show           print the configuration (see --format)
//	rn2903ctl [flags] validate <cmd> ...    check a command without a radio
//	rn2903ctl [flags] scan                  list candidate ports
//	rn2903ctl [flags] trace <file.cbor>     dump a wire trace
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"rn2903-service/internal/command"
	"rn2903-service/internal/config"
	"rn2903-service/internal/model"
	"rn2903-service/internal/protocol"
	"rn2903-service/internal/repository"
	"rn2903-service/internal/service"
	"rn2903-service/internal/session"
	"rn2903-service/internal/simulator"
	"rn2903-service/internal/trace"
	"rn2903-service/internal/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type ctl struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *protocol.Registry
	radio    *service.RadioService

	format string
	wait   bool
	in     io.ReadCloser
	out    io.Writer
	errOut io.Writer
}

func run(ctx context.Context, args []string, stdin io.ReadCloser, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("rn2903ctl", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	// command tokens such as "radio set pwr -3" must not be read as flags
	fs.SetInterspersed(false)

	configPath := fs.StringP("config", "c", "", "Configuration file path")
	address := fs.StringP("address", "a", "", "Radio address (serial path, tcp://host:port or sim://name)")
	format := fs.StringP("format", "f", "json", "Configuration output format: json or yaml")
	verbose := fs.BoolP("verbose", "v", false, "Log at debug level to stderr")
	noWait := fs.Bool("no-wait", false, "Do not wait for the outcome of radio rx and radio tx")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *format != "json" && *format != "yaml" {
		fmt.Fprintf(stderr, "unknown format %q\n", *format)
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	if *address != "" {
		cfg.Device.Address = *address
	}
	cfg.Logging.Output = "stderr"
	cfg.Logging.Format = "console"
	cfg.Logging.Level = "warn"
	if *verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	registry := protocol.NewRegistry()
	simulator.Register(registry)

	c := &ctl{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		format:   *format,
		wait:     !*noWait,
		in:       stdin,
		out:      stdout,
		errOut:   stderr,
	}

	rest := fs.Args()
	if len(rest) > 0 {
		// commands that never open the radio
		switch rest[0] {
		case "scan":
			return c.scan(ctx)
		case "trace":
			return c.dumpTrace(rest[1:])
		case "validate":
			return c.validate(rest[1:])
		}
	}

	if code := c.open(ctx); code != 0 {
		return code
	}
	defer c.radio.Stop()

	if len(rest) == 0 {
		return c.showConfig()
	}

	switch rest[0] {
	case "shell":
		return c.shell(ctx)
	case "pull":
		return c.pull(ctx)
	case "push":
		return c.push(ctx, rest[1:])
	case "config":
		if len(rest) == 2 && rest[1] == "show" {
			return c.showConfig()
		}
		fmt.Fprintln(stderr, "usage: rn2903ctl config show")
		return 2
	default:
		return c.execute(ctx, strings.Join(rest, " "))
	}
}

// open starts the radio service the same way the server does
func (c *ctl) open(ctx context.Context) int {
	var repo repository.SnapshotRepository
	if c.cfg.Persistence.Driver == "file" {
		repo = repository.NewFileRepository(c.cfg.Persistence.Path, c.logger)
	}

	c.radio = service.NewRadioService(c.registry, service.OptionsFromConfig(c.cfg), repo, nil, c.logger)
	report, err := c.radio.Start(ctx)
	if err != nil {
		fmt.Fprintf(c.errOut, "open %s: %v\n", c.cfg.Device.Address, err)
		if report == nil {
			return 1
		}
		// the session is open; configuration reconciliation failed
		return 0
	}
	for _, f := range report.PullFailures {
		fmt.Fprintf(c.errOut, "warning: %s\n", f.Error())
	}
	return 0
}

func (c *ctl) execute(ctx context.Context, raw string) int {
	result, err := c.radio.Execute(ctx, raw)
	if err != nil {
		fmt.Fprintln(c.errOut, err)
		return 2
	}
	printResult(c.out, result)

	if result.OK() && c.wait && isTwoPhase(raw) {
		event, err := c.radio.NextEvent(ctx)
		if err != nil {
			fmt.Fprintln(c.errOut, err)
			return 1
		}
		printEvent(c.out, event)
	}
	if !result.OK() {
		return 1
	}
	return 0
}

func (c *ctl) validate(args []string) int {
	canonical, err := command.Validate(strings.Join(args, " "))
	if err != nil {
		fmt.Fprintln(c.errOut, err)
		return 1
	}
	fmt.Fprintln(c.out, canonical.String())
	return 0
}

func (c *ctl) pull(ctx context.Context) int {
	cfg, failures, err := c.radio.Pull(ctx)
	if err != nil {
		fmt.Fprintf(c.errOut, "pull: %v\n", err)
		return 1
	}
	for _, f := range failures {
		fmt.Fprintf(c.errOut, "warning: %s\n", f.Error())
	}
	return c.writeConfig(cfg)
}

func (c *ctl) push(ctx context.Context, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(c.errOut, "usage: rn2903ctl push <file.json>")
		return 2
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(c.errOut, "push: %v\n", err)
		return 1
	}

	var cfg model.DeviceConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		fmt.Fprintf(c.errOut, "push: %s is not a configuration document: %v\n", args[0], err)
		return 1
	}

	result, err := c.radio.Push(ctx, &cfg)
	if err != nil {
		fmt.Fprintf(c.errOut, "push: %v\n", err)
		return 1
	}
	fmt.Fprintf(c.out, "applied %s\n", strings.Join(result.Applied, " "))
	if !result.OK {
		if f := result.FirstFailure(); f != nil {
			fmt.Fprintf(c.errOut, "push: %s\n", f.Error())
		}
		return 1
	}
	fmt.Fprintf(c.out, "saved %t resumed %t\n", result.Saved, result.Resumed)
	return 0
}

func (c *ctl) showConfig() int {
	cfg, err := c.radio.Config()
	if err != nil {
		fmt.Fprintln(c.errOut, err)
		return 1
	}
	return c.writeConfig(cfg)
}

func (c *ctl) writeConfig(cfg *model.DeviceConfig) int {
	var err error
	if c.format == "yaml" {
		enc := yaml.NewEncoder(c.out)
		enc.SetIndent(2)
		err = enc.Encode(cfg)
		if err == nil {
			err = enc.Close()
		}
	} else {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		err = enc.Encode(cfg)
	}
	if err != nil {
		fmt.Fprintln(c.errOut, err)
		return 1
	}
	return 0
}

func (c *ctl) scan(ctx context.Context) int {
	ds := service.NewDiscoveryService(c.cfg, c.registry, "", nil, c.logger)
	result, err := ds.ScanDevices(ctx, &service.ScanRequest{ScanType: "all"})
	if err != nil {
		fmt.Fprintln(c.errOut, err)
		return 1
	}
	for _, d := range result.Devices {
		address := d.Address
		if address == "" {
			address = d.Location
		}
		line := fmt.Sprintf("%-24s %-6s %.2f %s", address, d.Scanner, d.Confidence, d.Description)
		if d.Firmware != "" {
			line += " [" + d.Firmware + "]"
		}
		fmt.Fprintln(c.out, strings.TrimRight(line, " "))
	}
	return 0
}

func (c *ctl) dumpTrace(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(c.errOut, "usage: rn2903ctl trace <file.cbor>")
		return 2
	}
	events, err := trace.ReadFile(args[0])
	if err != nil {
		fmt.Fprintln(c.errOut, err)
		return 1
	}
	for _, e := range events {
		arrow := ">>"
		if e.Direction == trace.DirectionIn {
			arrow = "<<"
		}
		conn := e.ConnectionID
		if len(conn) > 8 {
			conn = conn[:8]
		}
		fmt.Fprintf(c.out, "%s %s %s %s\n", e.Timestamp.Format("15:04:05.000"), conn, arrow, e.Line)
	}
	return 0
}

func printResult(w io.Writer, result session.Result) {
	status := string(result.Status)
	if result.Status == session.StatusDeviceError {
		status = string(result.Code)
	}
	if result.Payload == "" || result.Payload == status {
		fmt.Fprintln(w, status)
		return
	}
	fmt.Fprintf(w, "%s %s\n", status, result.Payload)
}

func printEvent(w io.Writer, event model.RadioEvent) {
	if event.Data != "" {
		fmt.Fprintf(w, "%s %s\n", event.Kind, event.Data)
		return
	}
	fmt.Fprintln(w, event.Kind)
}

func isTwoPhase(raw string) bool {
	c, err := command.Validate(raw)
	if err != nil {
		return false
	}
	return c.HasPrefix("radio", "rx") || c.HasPrefix("radio", "tx")
}
