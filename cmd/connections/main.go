package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hzerrad/buildable-connections/pkg/config"
	"github.com/hzerrad/buildable-connections/pkg/destination/registry"
	"github.com/hzerrad/buildable-connections/pkg/logger"

	// Import all available drivers to register them
	_ "github.com/hzerrad/buildable-connections/pkg/destination/bigquery"
	_ "github.com/hzerrad/buildable-connections/pkg/destination/elasticsearch"
	_ "github.com/hzerrad/buildable-connections/pkg/destination/xero"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	var logLevel string

	root := &cobra.Command{
		Use:   "connections",
		Short: "Connections - uniform destination drivers",
		Long: `Connections wraps third-party destinations (BigQuery, Elasticsearch, Xero)
behind a uniform connect/disconnect/testConnection/action lifecycle so a host
platform can invoke arbitrary destinations through one interface.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Init(logger.Config{Level: logLevel, Encoding: "console"})
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "error", "Log level (debug, info, warn, error)")

	// Version command
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Connections v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	// List command to show registered drivers and their actions
	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered destination drivers",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Available Destination Drivers:")
			for _, name := range registry.List() {
				handle, err := registry.Open(name, &config.DestinationConfig{Name: name, Type: name})
				if err != nil {
					return err
				}
				fmt.Printf("  - %s\n", name)
				for _, action := range handle.Actions() {
					fmt.Printf("      %s\n", action)
				}
			}
			return nil
		},
	})

	// Test command to verify a destination's connectivity
	var testConfigFile string
	var testTimeout time.Duration

	testCmd := &cobra.Command{
		Use:   "test <driver>",
		Short: "Test connectivity against a configured destination",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadDestinationConfig(testConfigFile)
			if err != nil {
				return err
			}

			handle, err := registry.Open(args[0], cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), testTimeout)
			defer cancel()

			result, err := handle.TestConnection(ctx)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	testCmd.Flags().StringVarP(&testConfigFile, "config", "c", "", "Path to destination configuration YAML file (required)")
	testCmd.Flags().DurationVar(&testTimeout, "timeout", 30*time.Second, "Connection test timeout")
	_ = testCmd.MarkFlagRequired("config")
	root.AddCommand(testCmd)

	// Invoke command to run one action through the lifecycle wrapper
	var invokeConfigFile, payloadJSON, payloadFile string
	var invokeTimeout time.Duration

	invokeCmd := &cobra.Command{
		Use:   "invoke <driver> <action>",
		Short: "Invoke a destination action",
		Long: `Invoke a single action on a configured destination. The driver connects
before the action and disconnects after it, success or failure.

Example:
  connections invoke bigquery insert -c dest.yaml -p '{"dataset":"d","table":"t","data":{"id":1}}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadDestinationConfig(invokeConfigFile)
			if err != nil {
				return err
			}

			payload, err := loadPayload(payloadJSON, payloadFile)
			if err != nil {
				return err
			}

			handle, err := registry.Open(args[0], cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), invokeTimeout)
			defer cancel()

			result, err := handle.Do(ctx, args[1], payload)
			if err != nil {
				return err
			}
			if result == nil {
				return nil
			}
			return printJSON(result)
		},
	}
	invokeCmd.Flags().StringVarP(&invokeConfigFile, "config", "c", "", "Path to destination configuration YAML file (required)")
	invokeCmd.Flags().StringVarP(&payloadJSON, "payload", "p", "", "Action payload as inline JSON")
	invokeCmd.Flags().StringVar(&payloadFile, "payload-file", "", "Path to action payload JSON file")
	invokeCmd.Flags().DurationVar(&invokeTimeout, "timeout", 2*time.Minute, "Action timeout")
	_ = invokeCmd.MarkFlagRequired("config")
	root.AddCommand(invokeCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadDestinationConfig loads a DestinationConfig from a YAML file
func loadDestinationConfig(filename string) (*config.DestinationConfig, error) {
	var cfg config.DestinationConfig
	if err := config.Load(filename, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadPayload parses the action payload from inline JSON or a file
func loadPayload(inline, filename string) (map[string]interface{}, error) {
	var data []byte
	switch {
	case inline != "":
		data = []byte(inline)
	case filename != "":
		raw, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read payload file %s: %w", filename, err)
		}
		data = raw
	default:
		return map[string]interface{}{}, nil
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse payload: %w", err)
	}
	return payload, nil
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
