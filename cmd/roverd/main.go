// roverd runs the robot control loop against a serial command link,
// with a simulated actuator rig standing in for the drive hardware.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/apwcr/rover.go/pkg/actuator"
	"github.com/apwcr/rover.go/pkg/bridge"
	"github.com/apwcr/rover.go/pkg/clock"
	"github.com/apwcr/rover.go/pkg/config"
	"github.com/apwcr/rover.go/pkg/link"
	"github.com/apwcr/rover.go/pkg/run"
	"github.com/apwcr/rover.go/pkg/sim"
	"github.com/apwcr/rover.go/pkg/supervisor"
)

const statsInterval = time.Second

// mirroredStream tees every telemetry write onto the MQTT mirror.
type mirroredStream struct {
	link.ByteStream
	mirror *bridge.Mirror
}

func (m *mirroredStream) Write(p []byte) (int, error) {
	m.mirror.PublishTelemetry(p)
	return m.ByteStream.Write(p)
}

func main() {
	cfg := config.DefaultConfig()
	var cfgPath string
	var watchConfig bool

	root := &cobra.Command{
		Use:   "roverd",
		Short: "Robot control loop daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfgPath != "" {
				fromFlags := cfg
				loaded, err := config.Load(cfgPath)
				if err != nil {
					return err
				}
				cfg = loaded
				// Flags win over the file.
				cmd.Flags().Visit(func(f *pflag.Flag) {
					switch f.Name {
					case "port":
						cfg.Port = fromFlags.Port
					case "baud":
						cfg.Baud = fromFlags.Baud
					case "mqtt":
						cfg.MQTTBroker = fromFlags.MQTTBroker
					}
				})
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cfg, cfgPath, watchConfig)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to TOML config file")
	root.Flags().StringVar(&cfg.Port, "port", cfg.Port, "serial device of the command link")
	root.Flags().IntVar(&cfg.Baud, "baud", cfg.Baud, "serial baud rate")
	root.Flags().StringVar(&cfg.MQTTBroker, "mqtt", cfg.MQTTBroker, "MQTT broker URL for the telemetry mirror")
	root.Flags().BoolVar(&watchConfig, "watch-config", false, "reload tunables when the config file changes")
	root.Flags().AddGoFlagSet(flag.CommandLine) // glog flags
	flag.CommandLine.Parse(nil)                 // keep glog from complaining

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(cfg config.Config, cfgPath string, watchConfig bool) error {
	defer glog.Flush()

	stream, err := openSerial(cfg.Port, cfg.Baud)
	if err != nil {
		return err
	}
	defer stream.Close()
	glog.Infof("command link on %s @ %d", cfg.Port, cfg.Baud)

	var mirror *bridge.Mirror
	var linkStream link.ByteStream = stream
	if cfg.MQTTBroker != "" {
		mirror, err = bridge.New(cfg.MQTTBroker)
		if err != nil {
			return fmt.Errorf("mqtt mirror: %w", err)
		}
		defer mirror.Close()
		linkStream = &mirroredStream{ByteStream: stream, mirror: mirror}
	}

	src := clock.NewSystem()
	l := link.New(linkStream, cfg.RxBufferBytes)
	drivetrain := sim.NewDrivetrain(sim.DefaultDrivetrainConfig())
	rhs, _ := sim.NewMotor("RHS", 90)
	lhs, _ := sim.NewMotor("LHS", 90)
	now := src.Now()
	lid := actuator.NewServo(cfg.Lid.ServoConfig("LID"), sim.NewServoHorn("LID"), cfg.Lid.InitialDeg, now)
	sweep := actuator.NewServo(cfg.Sweep.ServoConfig("SWEEP"), sim.NewServoHorn("SWEEP"), cfg.Sweep.InitialDeg, now)

	sup := supervisor.New(cfg, l, drivetrain, rhs, lhs, lid, sweep, drivetrain)

	g := run.NewGroup(context.Background()).HandleSignals()
	g.Go(run.Named("control-loop", run.TaskFunc(func(ctx context.Context) error {
		return sup.Run(ctx, src, time.Millisecond)
	})))

	if mirror != nil {
		if err := mirror.Connect(context.Background()); err != nil {
			glog.Warningf("mqtt connect: %v (will keep retrying)", err)
		}
		g.Go(run.Named("stats-mirror", run.TaskFunc(func(ctx context.Context) error {
			mirror.RunStats(ctx, statsInterval, sup.Stats)
			return ctx.Err()
		})))
	}

	if watchConfig && cfgPath != "" {
		watcher, err := config.NewWatcher(cfgPath, sup.ApplyConfig)
		if err != nil {
			return fmt.Errorf("config watcher: %w", err)
		}
		g.Go(run.Named("config-watcher", watcher))
	}

	return g.Wait()
}
