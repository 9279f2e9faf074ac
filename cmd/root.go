package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/clsizeof/internal/compute"
	_ "github.com/cwbudde/clsizeof/internal/compute/sim"
	"github.com/cwbudde/clsizeof/internal/sizeof"
)

var (
	logLevel    string
	logger      *slog.Logger
	backendName string
	occaProps   string
	dataDir     string
)

var rootCmd = &cobra.Command{
	Use:   "clsizeof",
	Short: "Report OpenCL device type sizes",
	Long: `clsizeof compiles a small kernel on a compute device, runs it as a single
task and reports sizeof() of scalar, vector and struct types as seen by the
device. It is a smoke test for the host binding: platform and device
enumeration, program builds, buffers, kernel arguments and blocking reads.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Setup logger
		var level slog.Level
		switch logLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		// Stdout carries the report.
		opts := &slog.HandlerOptions{Level: level}
		handler := slog.NewJSONHandler(os.Stderr, opts)
		logger = slog.New(handler)
		slog.SetDefault(logger)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&backendName, "backend", "opencl", "Compute backend (opencl, occa, sim)")
	rootCmd.PersistentFlags().StringVar(&occaProps, "occa-props", compute.DefaultOCCAProps, "OCCA device properties for the occa backend")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "Base directory for saved reports")
}

// openRuntime opens the selected backend. In-process backends answer the
// size kernel from the host layout model of types.
func openRuntime(types sizeof.TypeList) (compute.Runtime, error) {
	return compute.Open(backendName, compute.Options{
		OCCAProps:   occaProps,
		HostKernels: sizeof.HostKernels(types),
	})
}
