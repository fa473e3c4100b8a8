// Command acc runs the arm control container: the HTTP API, the single-job
// command executor and the perception frame pipeline in one process.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/arm-control/acc/internal/actuator"
	"github.com/arm-control/acc/internal/actuator/mock"
	"github.com/arm-control/acc/internal/api"
	"github.com/arm-control/acc/internal/audit"
	"github.com/arm-control/acc/internal/auth"
	"github.com/arm-control/acc/internal/config"
	"github.com/arm-control/acc/internal/executor"
	"github.com/arm-control/acc/internal/perception"
	"github.com/arm-control/acc/internal/policy"
	"github.com/arm-control/acc/internal/safety"
	"github.com/arm-control/acc/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatalf("acc: %v", err)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	hub := telemetry.NewHub(
		telemetry.WithBufferSize(cfg.Telemetry.EventBufferSize),
		telemetry.WithHeartbeat(cfg.Telemetry.HeartbeatInterval),
		telemetry.WithHeartbeatJitter(cfg.Telemetry.HeartbeatJitter),
	)
	defer hub.Close()

	if err := os.MkdirAll(cfg.Audit.Dir, 0o755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}
	auditLog := audit.New(filepath.Join(cfg.Audit.Dir, "audit.log"),
		cfg.Audit.MaxSizeMB, cfg.Audit.MaxBackups, 0)
	defer auditLog.Close()

	arm, err := buildArm(cfg.Arm)
	if err != nil {
		return err
	}
	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 10*time.Second)
	err = arm.Connect(connectCtx)
	cancelConnect()
	if err != nil {
		return fmt.Errorf("connect arm: %w", err)
	}

	gate := safety.NewGate(cfg.Safety)

	scripted := policy.NewScriptedSource(policy.DefaultScripts(cfg.Safety.ReferencePoses))
	learned := policy.NewLearnedSource(
		policy.NewInferenceClient(cfg.Policy.InferenceURL, cfg.Policy.InferenceTimeout),
		cfg.Policy.MaxChunksPerPlan,
	)

	var sink perception.EventSink
	if cfg.Perception.EventSinkURL != "" {
		sink = perception.NewHTTPEventSink(cfg.Perception.EventSinkURL, cfg.Perception.Timeout)
	}
	pipeline := perception.New(perception.Params{
		Analyzer:  perception.NewClient(cfg.Perception.URL, cfg.Perception.EnabledModels, cfg.Perception.Timeout),
		Sink:      sink,
		Events:    hub,
		Gate:      gate,
		Capacity:  cfg.Perception.QueueCapacity,
		Workers:   cfg.Perception.Workers,
		Timeout:   cfg.Perception.Timeout,
		Threshold: cfg.Perception.ConfidenceThreshold,
	})
	pipeline.Start()
	defer pipeline.Stop()

	exec := executor.New(executor.Params{
		Port:      arm,
		Gate:      gate,
		Scripted:  scripted,
		Learned:   learned,
		Control:   cfg.Control,
		ReadyPose: cfg.Safety.ReferencePoses["ready_to_throw"],
		Registry:  executor.NewRegistry(0),
		Events:    hub,
		Audit:     auditLog,
		Frames:    pipeline,
	})

	verifier, err := auth.NewVerifier(cfg.Auth)
	if err != nil {
		return err
	}

	server := api.New(cfg.Server, api.Deps{
		Jobs:     exec,
		Frames:   pipeline,
		Arm:      arm,
		Stream:   hub,
		Audit:    auditLog,
		Verifier: verifier,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", cfg.Server.Addr)
		errCh <- server.ListenAndServe()
	}()
	hub.Publish(telemetry.EventReady, "", map[string]string{"addr": cfg.Server.Addr})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received %s, shutting down", sig)
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	if err := exec.Stop(shutdownCtx); err != nil {
		log.Printf("executor stop: %v", err)
	}
	return nil
}

func buildArm(cfg config.ArmConfig) (actuator.Port, error) {
	switch cfg.Driver {
	case "mock":
		return mock.NewArm(cfg.DOF), nil
	default:
		return nil, fmt.Errorf("unknown arm driver %q", cfg.Driver)
	}
}
