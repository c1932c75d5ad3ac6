// Package cliapp parses the process's command-line flags and drives one
// end-to-end debug-agent session: open the message/control endpoints, start
// firmware log capture, optionally arm a demonstration probe slot, run
// until the context is cancelled, then tear everything down and report a
// short summary.
package cliapp

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/intel/fdk-debug-agent-sub000/internal/compressstream"
	"github.com/intel/fdk-debug-agent-sub000/internal/device"
	"github.com/intel/fdk-debug-agent-sub000/internal/dspfw"
	"github.com/intel/fdk-debug-agent-sub000/internal/logger"
	"github.com/intel/fdk-debug-agent-sub000/internal/logging"
	"github.com/intel/fdk-debug-agent-sub000/internal/module"
	"github.com/intel/fdk-debug-agent-sub000/internal/probe"
)

// Config holds the flags a session is built from.
type Config struct {
	MessageDevice     string
	ControlRoot       string
	LogSourcePattern  string // fmt pattern taking one %d core id
	RunFor            time.Duration
	EnableProbeDemo   bool
	ProbeModuleID     uint
	ProbeInstanceID   uint
	ProbeType         uint
	ProbeSinkPattern  string
}

func parseFlags(args []string, stderr io.Writer) (Config, bool, error) {
	fs := flag.NewFlagSet("cavsdbg", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cfg := Config{}
	fs.StringVar(&cfg.MessageDevice, "message-device", "/dev/cavs-message", "message endpoint character device path")
	fs.StringVar(&cfg.ControlRoot, "control-root", "/sys/kernel/debug/cavs", "root directory of named control files")
	fs.StringVar(&cfg.LogSourcePattern, "log-source-pattern", "cavs.core%d.log", "pulse source name pattern for per-core log capture")
	fs.DurationVar(&cfg.RunFor, "run-for", 0, "stop the session after this long (0 = run until interrupted)")
	fs.BoolVar(&cfg.EnableProbeDemo, "probe-demo", false, "arm a single extraction probe slot for demonstration")
	fs.UintVar(&cfg.ProbeModuleID, "probe-module-id", 0, "module type id for the demo extraction probe")
	fs.UintVar(&cfg.ProbeInstanceID, "probe-instance-id", 0, "module instance id for the demo extraction probe")
	fs.UintVar(&cfg.ProbeType, "probe-type", 0, "probe point type (0=input,1=output,2=internal) for the demo probe")
	fs.StringVar(&cfg.ProbeSinkPattern, "probe-sink-pattern", "cavs.probe%d.inject", "pulse sink name pattern for injection probe slots")

	if err := fs.Parse(args); err != nil {
		return Config{}, false, err
	}
	return cfg, true, nil
}

// Execute is the package entrypoint used by cmd/cavsdbg/main.go.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, ok, err := parseFlags(args, stderr)
	if !ok {
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
		}
		return 2
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	log := logRuntime.Logger
	log.Info("session start", "message_device", cfg.MessageDevice, "control_root", cfg.ControlRoot, "log", logRuntime.Path)

	msgEndpoint, err := device.NewFileMessageEndpoint(cfg.MessageDevice)
	if err != nil {
		fmt.Fprintf(stderr, "error: open message endpoint: %v\n", err)
		return 1
	}
	defer msgEndpoint.Close()

	ctl := device.NewFileControlEndpoint(cfg.ControlRoot)
	handler := module.NewHandler(msgEndpoint)

	streams := &pulseLogStreamFactory{handler: handler, sourcePattern: cfg.LogSourcePattern}
	logSession := logger.New(ctl, handler, streams, log)

	if err := logSession.SetParameters(ctx, logger.Parameters{Started: true, Level: dspfw.LogPriorityMedium, Output: logger.OutputSram}); err != nil {
		fmt.Fprintf(stderr, "error: start log capture: %v\n", err)
		return 1
	}

	var prober *probe.Prober
	if cfg.EnableProbeDemo {
		devices := &pulseProbeDeviceFactory{sinkPattern: cfg.ProbeSinkPattern}
		prober = probe.New(ctl, handler, devices, log)

		point, err := dspfw.NewProbePointId(uint16(cfg.ProbeModuleID), uint8(cfg.ProbeInstanceID), dspfw.ProbeType(cfg.ProbeType), 0)
		if err != nil {
			fmt.Fprintf(stderr, "error: invalid demo probe point: %v\n", err)
		} else if err := prober.SetProbeConfig(0, dspfw.ProbeConfig{PointID: point, Purpose: dspfw.ProbePurposeExtract, Enabled: true}); err != nil {
			fmt.Fprintf(stderr, "error: configure demo probe: %v\n", err)
		} else if err := prober.SetState(ctx, true); err != nil {
			fmt.Fprintf(stderr, "error: activate demo probe: %v\n", err)
			prober = nil
		}
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if cfg.RunFor > 0 {
		runCtx, cancel = context.WithTimeout(ctx, cfg.RunFor)
		defer cancel()
	}

	blockCount := 0
	byteCount := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			block, ok := logSession.ReadLogBlock()
			if !ok {
				return
			}
			blockCount++
			byteCount += len(block.Data)
		}
	}()

	<-runCtx.Done()

	if err := logSession.SetParameters(ctx, logger.Parameters{Started: false, Level: dspfw.LogPriorityMedium, Output: logger.OutputSram}); err != nil {
		log.Warn("stop log capture failed", "error", err)
	}
	<-done

	if prober != nil {
		if err := prober.SetState(ctx, false); err != nil {
			log.Warn("stop probe session failed", "error", err)
		}
	}

	fmt.Fprintf(stdout, "session complete: %d log blocks, %d bytes captured\n", blockCount, byteCount)
	log.Info("session complete", "blocks", blockCount, "bytes", byteCount)
	return 0
}

// pulseLogStreamFactory implements logger.StreamFactory over the DSP's
// hardware core count and one Pulse capture source per core.
type pulseLogStreamFactory struct {
	handler       *module.Handler
	sourcePattern string
}

func (f *pulseLogStreamFactory) ActiveCores(ctx context.Context) ([]dspfw.CoreId, error) {
	hw, err := f.handler.GetHwConfig(ctx)
	if err != nil {
		return nil, err
	}
	cores := make([]dspfw.CoreId, 0, hw.CoreCount)
	for i := uint32(0); i < hw.CoreCount; i++ {
		cores = append(cores, dspfw.CoreId(i))
	}
	return cores, nil
}

func (f *pulseLogStreamFactory) OpenLogStream(ctx context.Context, coreID dspfw.CoreId) (compressstream.CompressedStream, error) {
	return compressstream.NewPulseCaptureStream(fmt.Sprintf(f.sourcePattern, coreID)), nil
}

// pulseProbeDeviceFactory implements probe.DeviceFactory: one shared Pulse
// extraction source and one Pulse injection sink per armed probe slot.
type pulseProbeDeviceFactory struct {
	sinkPattern string
}

func (f *pulseProbeDeviceFactory) OpenExtractionStream(ctx context.Context) (compressstream.CompressedStream, error) {
	return compressstream.NewPulseCaptureStream("cavs.probe.extract"), nil
}

func (f *pulseProbeDeviceFactory) OpenInjectionStream(ctx context.Context, probeIndex int) (compressstream.CompressedStream, error) {
	return compressstream.NewPulsePlaybackStream(fmt.Sprintf(f.sinkPattern, probeIndex)), nil
}
