package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/evhart/preserve/pkg/config"
	"github.com/evhart/preserve/pkg/connector/registry"
	"github.com/evhart/preserve/pkg/connector/spec"
	"github.com/evhart/preserve/pkg/logger"
	"github.com/evhart/preserve/pkg/preserve"

	// Import all available backends to register them
	_ "github.com/evhart/preserve/pkg/connector/backends/memory"
	_ "github.com/evhart/preserve/pkg/connector/backends/mongodb"
	_ "github.com/evhart/preserve/pkg/connector/backends/shelf"
	_ "github.com/evhart/preserve/pkg/connector/backends/sqlite"
)

var version = "0.1.0"

// cfg is loaded once at startup; connection aliases resolve through it.
var cfg = config.Default()

func main() {
	if loaded, err := config.LoadDefault(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	} else {
		cfg = loaded
	}

	var logLevel string

	root := &cobra.Command{
		Use:   "preserve",
		Short: "Preserve - a simple key/value database with multiple backends",
		Long: `Preserve is a uniform key-value access layer over heterogeneous storage
backends. One URI scheme addresses every backend, and data can be migrated
between any two of them.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Init(logger.Config{Level: logLevel, Encoding: "console"})
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Preserve v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(connectorsCommand())
	root.AddCommand(headCommand())
	root.AddCommand(exportCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// connectorsCommand lists the registered backends and their parameters.
func connectorsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "connectors",
		Short: "List available backends",
		Run: func(cmd *cobra.Command, args []string) {
			for _, desc := range registry.Descriptors() {
				fmt.Printf("%s\t%s\n", desc.Name, desc.Description)

				names := make([]string, 0, len(desc.Params))
				for name := range desc.Params {
					names = append(names, name)
				}
				sort.Strings(names)

				for _, name := range names {
					param := desc.Params[name]
					line := fmt.Sprintf("    %s (%s)", name, param.Type)
					if param.Required {
						line += " [required]"
					} else if param.Default != nil {
						line += fmt.Sprintf(" [default: %v]", param.Default)
					}
					if param.Description != "" {
						line += " " + param.Description
					}
					fmt.Println(line)
				}
			}
		},
	}
}

// headCommand previews the first records of a store.
func headCommand() *cobra.Command {
	var rows int

	cmd := &cobra.Command{
		Use:   "head <uri>",
		Short: "Show the first records of a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			records, err := preserve.Peek(ctx, cfg.Resolve(args[0]), rows)
			if err != nil {
				return err
			}

			for _, rec := range records {
				value, err := gojson.Marshal(rec.Value)
				if err != nil {
					return fmt.Errorf("cannot render value for key %q: %w", rec.Key, err)
				}
				fmt.Printf("%s\t%s\n", rec.Key, value)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&rows, "nb", "n", 10, "Number of records to display")
	return cmd
}

// exportCommand migrates every record from one store to another.
func exportCommand() *cobra.Command {
	var input, output string
	var failFast bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a database to a different backend (e.g. from shelf to mongodb)",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, output := cfg.Resolve(input), cfg.Resolve(output)
			if input == output {
				return fmt.Errorf("input and output URIs must differ")
			}

			// Validate both URIs before opening anything.
			if _, err := spec.Parse(input); err != nil {
				return fmt.Errorf("input: %w", err)
			}
			if _, err := spec.Parse(output); err != nil {
				return fmt.Errorf("output: %w", err)
			}

			ctx := context.Background()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			src, err := preserve.FromURI(input)
			if err != nil {
				return fmt.Errorf("cannot open input: %w", err)
			}
			defer closeStore(ctx, src, "input")

			dst, err := preserve.FromURI(output)
			if err != nil {
				return fmt.Errorf("cannot open output: %w", err)
			}
			defer closeStore(ctx, dst, "output")

			report, err := preserve.Migrate(ctx, src, dst, &preserve.MigrateOptions{
				FailFast:      failFast,
				ProgressEvery: 10000,
			})
			if report != nil {
				rendered, _ := gojson.MarshalIndent(report, "", "  ")
				fmt.Println(string(rendered))
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "URI or configured alias of the input database (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "URI or configured alias of the output database (required)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Abort on the first per-record failure")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Overall migration timeout (0 = none)")

	return cmd
}

func closeStore(ctx context.Context, store *preserve.Store, role string) {
	if err := store.Close(ctx); err != nil {
		logger.Get().Warn("failed to close store",
			zap.String("role", role), zap.Error(err))
	}
}
