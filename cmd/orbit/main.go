package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/orbitmesh/orbit/internal/services/filesink"
	"github.com/orbitmesh/orbit/internal/services/wsbridge"
	"github.com/orbitmesh/orbit/pkg/lifecycle"
	"github.com/orbitmesh/orbit/pkg/log"
	"github.com/orbitmesh/orbit/pkg/metrics"
	"github.com/orbitmesh/orbit/pkg/orchestrator"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "orbit",
	Short: "orbit - an in-process pub/sub service host",
	Long: `orbit groups long-running services into isolated execution pools
and routes messages between them over a process-wide publish/subscribe bus.

Each pool owns one dedicated thread with a cooperative scheduler; services
within a pool communicate with services in any other pool by topic name.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"orbit version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the configured pools until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		cfg, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		o, err := orchestrator.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to construct orchestrator: %w", err)
		}

		go func() {
			http.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(metricsAddr, nil); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
			}
		}()
		fmt.Printf("metrics endpoint: http://%s/metrics\n", metricsAddr)

		return o.Run(context.Background())
	},
}

func init() {
	runCmd.Flags().String("config", "configs/orbit.yaml", "Path to the pool configuration file")
	runCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address the Prometheus metrics endpoint listens on")
}

// fileConfig is the on-disk shape of a pool configuration file: a list of
// pools, each naming the built-in services it owns. This binary only wires
// up the two sample services shipped with this repository; a deployment
// embedding orbit as a library constructs an orchestrator.Config directly
// instead of going through YAML.
type fileConfig struct {
	Pools []struct {
		Key      string `yaml:"key"`
		Services []struct {
			Type          string `yaml:"type"`
			Path          string `yaml:"path,omitempty"`
			Topic         string `yaml:"topic,omitempty"`
			FlushInterval string `yaml:"flush_interval,omitempty"`
			Addr          string `yaml:"addr,omitempty"`
		} `yaml:"services"`
	} `yaml:"pools"`
}

func loadConfig(path string) (orchestrator.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	cfg := make(orchestrator.Config, len(fc.Pools))
	for _, pool := range fc.Pools {
		services := make([]lifecycle.Service, 0, len(pool.Services))
		for _, svc := range pool.Services {
			built, err := buildService(svc.Type, svc.Path, svc.Topic, svc.FlushInterval, svc.Addr)
			if err != nil {
				return nil, fmt.Errorf("pool %q: %w", pool.Key, err)
			}
			services = append(services, built)
		}
		cfg[pool.Key] = services
	}
	return cfg, nil
}

func buildService(kind, path, topic, flushInterval, addr string) (lifecycle.Service, error) {
	switch kind {
	case "filesink":
		interval := filesink.DefaultFlushInterval
		if flushInterval != "" {
			parsed, err := time.ParseDuration(flushInterval)
			if err != nil {
				return nil, fmt.Errorf("invalid flush_interval %q: %w", flushInterval, err)
			}
			interval = parsed
		}
		return filesink.New(path, topic, interval), nil
	case "wsbridge":
		return wsbridge.New(addr), nil
	default:
		return nil, fmt.Errorf("unknown service type %q", kind)
	}
}
