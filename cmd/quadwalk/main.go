// Quadwalk - operator console for the linear-path walking study.
//
// Runs the motion supervisor against either the simulated loopback twin or
// the UDP simulator bridge, serves the dashboard API, optionally publishes
// MQTT telemetry, and takes operator commands on stdin.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/walklab/go-quadwalk/internal/config"
	"github.com/walklab/go-quadwalk/internal/log"
	"github.com/walklab/go-quadwalk/pkg/motion"
	"github.com/walklab/go-quadwalk/pkg/telemetry"
	"github.com/walklab/go-quadwalk/pkg/transport"
	"github.com/walklab/go-quadwalk/pkg/web"
)

const telemetryPeriod = time.Second

func main() {
	var (
		transportName = flag.String("transport", "loopback", "transport: loopback or udp")
		bridgeAddr    = flag.String("bridge", config.BridgeAddr(), "simulator command endpoint (udp transport)")
		bridgeListen  = flag.String("listen", config.BridgeListen(), "simulator status listen address (udp transport)")
		webPort       = flag.String("web", config.WebPort(), "dashboard API port, empty to disable")
		mqttBroker    = flag.String("mqtt", "", "MQTT broker URL for telemetry, empty to disable")
		policyName    = flag.String("policy", string(motion.PolicyRampUp), "initial speed policy")
		modeName      = flag.String("mode", "forward", "initial travel mode: forward or lateral")
		gazeEnabled   = flag.Bool("gaze", false, "enable the oscillating gaze bias")
		pathLength    = flag.Float64("path-length", motion.DefaultPathLength, "path length in meters")
		tickPeriod    = flag.Duration("tick", motion.DefaultTickPeriod, "control loop period")
		studyName     = flag.String("study", "walking_study", "study name for session directories")
		studyDir      = flag.String("study-dir", "study_data", "base directory for study sessions")
		logLevel      = flag.String("log-level", config.LogLevel(), "log level: debug, info, warn, error")
	)
	flag.Parse()

	log.Init(*logLevel)

	cfg := motion.DefaultConfig()
	cfg.PathLength = *pathLength
	cfg.TickPeriod = *tickPeriod

	port, err := buildTransport(*transportName, *bridgeAddr, *bridgeListen)
	if err != nil {
		log.Error("transport setup failed", "err", err)
		os.Exit(1)
	}

	sup, err := motion.NewSupervisor(cfg, port)
	if err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	if err := applyIntent(sup, *modeName, *policyName, *gazeEnabled); err != nil {
		log.Error("invalid intent flags", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- sup.Run(ctx) }()

	var dashboard *web.Server
	if *webPort != "" {
		dashboard = web.NewServer(*webPort, sup)
		dashboard.StartAsync()
	}

	if *mqttBroker != "" {
		pub, err := telemetry.NewPublisher(*mqttBroker, "quadwalk-console")
		if err != nil {
			log.Error("telemetry setup failed", "err", err)
			os.Exit(1)
		}
		defer pub.Close()
		go publishTelemetry(ctx, pub, sup)
	}

	go console(ctx, cancel, sup, *studyName, *studyDir)

	// The run loop owns the stop-before-disconnect obligation; wait for it.
	runErr := <-runDone

	if dashboard != nil {
		if err := dashboard.Shutdown(); err != nil {
			log.Warn("dashboard shutdown", "err", err)
		}
	}

	if runErr != nil {
		log.Error("supervisor stopped", "err", runErr)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// buildTransport selects the robot link. The supervisor never knows which
// one it got.
func buildTransport(name, bridgeAddr, bridgeListen string) (motion.Transport, error) {
	switch name {
	case "loopback":
		return transport.NewLoopback(), nil
	case "udp":
		return transport.NewBridge(transport.BridgeConfig{
			RemoteAddr: bridgeAddr,
			ListenAddr: bridgeListen,
		}), nil
	}
	return nil, fmt.Errorf("unknown transport %q", name)
}

func applyIntent(sup *motion.Supervisor, modeName, policyName string, gaze bool) error {
	mode, err := motion.ParseTravelMode(modeName)
	if err != nil {
		return err
	}
	sup.SetTravelMode(mode)

	policy, err := motion.ParsePolicy(policyName)
	if err != nil {
		return err
	}
	if err := sup.SetSpeedPolicy(policy); err != nil {
		return err
	}

	sup.SetGazeEnabled(gaze)
	return nil
}

// publishTelemetry pushes periodic status snapshots to the broker.
func publishTelemetry(ctx context.Context, pub *telemetry.Publisher, sup *motion.Supervisor) {
	ticker := time.NewTicker(telemetryPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := pub.PublishStatus(sup.Status()); err != nil {
				log.Warn("telemetry publish failed", "err", err)
			}
		}
	}
}

// console reads operator commands from stdin until quit or EOF.
func console(ctx context.Context, cancel context.CancelFunc, sup *motion.Supervisor, studyName, studyDir string) {
	session := &studySession{name: studyName, baseDir: studyDir, sup: sup}

	fmt.Println("quadwalk console")
	fmt.Println("commands: start | stop | reset | mode f|l | policy <id> | gaze on|off | status")
	fmt.Println("          study begin <participant> | study next | study skip | study progress | quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			cancel()
			return
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch strings.ToLower(fields[0]) {
		case "start":
			if err := sup.Start(); err != nil {
				fmt.Println("error:", err)
			}

		case "stop":
			sup.Stop()

		case "reset":
			if err := sup.Reset(); err != nil {
				fmt.Println("error:", err)
			}

		case "mode":
			if len(fields) < 2 {
				fmt.Println("usage: mode f|l")
				continue
			}
			mode, err := motion.ParseTravelMode(strings.ToLower(fields[1]))
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			sup.SetTravelMode(mode)

		case "policy":
			if len(fields) < 2 {
				fmt.Println("policies:", policyList())
				continue
			}
			policy, err := motion.ParsePolicy(strings.ToLower(fields[1]))
			if err != nil {
				fmt.Println("error:", err)
				fmt.Println("policies:", policyList())
				continue
			}
			if err := sup.SetSpeedPolicy(policy); err != nil {
				fmt.Println("error:", err)
			}

		case "gaze":
			arg := ""
			if len(fields) >= 2 {
				arg = strings.ToLower(fields[1])
			}
			if arg != "on" && arg != "off" {
				fmt.Println("usage: gaze on|off")
				continue
			}
			sup.SetGazeEnabled(arg == "on")

		case "status":
			printStatus(sup.Status())

		case "study":
			session.command(ctx, fields[1:])

		case "quit", "exit":
			cancel()
			return

		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
}

func policyList() string {
	names := make([]string, len(motion.Policies))
	for i, p := range motion.Policies {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

func printStatus(st motion.Status) {
	fmt.Printf("state:     %s (connected=%v)\n", st.State, st.Connected)
	fmt.Printf("pose:      x=%.2f y=%.2f heading=%.2f\n", st.Position.X, st.Position.Y, st.Heading)
	fmt.Printf("progress:  %.2f / %.2f m, %.1fs elapsed\n", st.Distance, st.PathLength, st.Elapsed)
	fmt.Printf("intent:    mode=%s policy=%s gaze=%v\n", st.TravelMode, st.SpeedPolicy, st.GazeEnabled)
}
