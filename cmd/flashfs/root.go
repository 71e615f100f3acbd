package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rstms/flashfs/config"
	"github.com/rstms/flashfs/image"
	"github.com/rstms/flashfs/internal/logger"
	"github.com/rstms/flashfs/metrics"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	imageFile string
	logLevel  string
	showStats bool

	cfg      *config.Config
	registry *prometheus.Registry
)

var rootCmd = &cobra.Command{
	Use:           "flashfs",
	Short:         "flat file system for page erase serial flash",
	Long:          `Manage a flat file system on a simulated AT45DB serial flash chip.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return Fatal(err)
		}
		if imageFile != "" {
			cfg.Device.Store.Type = "file"
			cfg.Device.Store.File["path"] = imageFile
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		logger.SetLevel(cfg.Logging.Level)
		if err := logger.SetFormat(cfg.Logging.Format); err != nil {
			return Fatal(err)
		}
		if err := logger.SetOutput(cfg.Logging.Output); err != nil {
			return Fatal(err)
		}
		if cfg.Metrics.Enabled || showStats {
			registry = prometheus.NewRegistry()
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if !showStats || registry == nil {
			return nil
		}
		stats, err := metrics.Summary(registry)
		if err != nil {
			return Fatal(err)
		}
		for _, s := range stats {
			fmt.Fprintf(os.Stderr, "%-20s %8.0f ops %10.0f bytes\n", s.Op, s.Operations, s.Bytes)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $XDG_CONFIG_HOME/flashfs/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&imageFile, "image", "i", "", "flash image file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&showStats, "stats", false, "print device operation counts")
}

// openImage mounts the configured device, formatting it if format is set.
func openImage(format bool) (*image.Image, error) {
	var reg prometheus.Registerer
	if registry != nil {
		reg = registry
	}
	sim, created, err := config.CreateDevice(&cfg.Device, metrics.NewDeviceMetrics(reg))
	if err != nil {
		return nil, Fatal(err)
	}
	if created && !format {
		sim.Close()
		return nil, Fatalf("device has no file system; run format first")
	}
	img, err := image.Mount(sim, format)
	if err != nil {
		sim.Close()
		return nil, Fatal(err)
	}
	if path, ok := cfg.Device.Store.File["path"].(string); ok && cfg.Device.Store.Type == "file" {
		img.Filename = path
	}
	return img, nil
}

// withImage runs fn on the mounted device and closes it.
func withImage(fn func(*image.Image) error) error {
	img, err := openImage(false)
	if err != nil {
		return err
	}
	err = fn(img)
	cerr := img.Close()
	if err != nil {
		return err
	}
	return cerr
}
