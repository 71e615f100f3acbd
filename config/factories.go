package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/rstms/flashfs/device"
	"github.com/rstms/flashfs/internal/logger"
)

// FileStoreConfig is the file page store section.
type FileStoreConfig struct {
	Path string `mapstructure:"path"`
}

// CreateDevice builds the simulated chip over the configured page store.
// It reports whether the store was newly created and needs formatting.
func CreateDevice(cfg *DeviceConfig, m device.Metrics) (*device.Sim, bool, error) {
	geom, err := device.Lookup(cfg.Density)
	if err != nil {
		return nil, false, err
	}

	var store device.PageStore
	density := cfg.Density
	created := false
	switch cfg.Store.Type {
	case "memory":
		store = device.NewMemoryStore(geom)
		created = true
	case "file":
		store, density, created, err = createFileStore(cfg.Store.File, cfg.Density)
	case "badger":
		store, err = createBadgerStore(cfg.Store.Badger, cfg.Density)
	default:
		return nil, false, fmt.Errorf("unknown page store type: %q", cfg.Store.Type)
	}
	if err != nil {
		return nil, false, err
	}

	sim, err := device.NewSim(device.IDForDensity(density), store, device.SimConfig{
		Latency: cfg.Latency,
		Metrics: m,
	})
	if err != nil {
		store.Close()
		return nil, false, err
	}
	logger.Debug("device %s on %s store", sim.Geometry().Name, cfg.Store.Type)
	return sim, created, nil
}

// createFileStore opens the image file, or creates an erased one, and
// returns the density of the chip it holds. An existing image's density
// comes from its size and overrides the configured one.
func createFileStore(options map[string]any, density int) (device.PageStore, int, bool, error) {
	var storeCfg FileStoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, 0, false, fmt.Errorf("failed to decode file store config: %w", err)
	}
	if storeCfg.Path == "" {
		return nil, 0, false, fmt.Errorf("file store: path is required")
	}

	info, err := os.Stat(storeCfg.Path)
	if err == nil {
		existing, geom, err := device.LookupSize(info.Size())
		if err != nil {
			return nil, 0, false, fmt.Errorf("%s: %w", storeCfg.Path, err)
		}
		if existing != density {
			logger.Debug("%s holds a %s image, ignoring density %d", storeCfg.Path, geom.Name, density)
		}
		store, err := device.OpenFileStore(storeCfg.Path, geom)
		if err != nil {
			return nil, 0, false, err
		}
		return store, existing, false, nil
	}
	if !os.IsNotExist(err) {
		return nil, 0, false, err
	}
	geom, err := device.Lookup(density)
	if err != nil {
		return nil, 0, false, err
	}
	store, err := device.CreateFileStore(storeCfg.Path, geom)
	return store, density, true, err
}

func decodeBadgerOptions(options map[string]any) (device.BadgerStoreConfig, error) {
	var storeCfg device.BadgerStoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return storeCfg, fmt.Errorf("failed to decode badger store config: %w", err)
	}
	if storeCfg.Path == "" && !storeCfg.InMemory {
		return storeCfg, fmt.Errorf("badger store: path is required unless in_memory is set")
	}
	return storeCfg, nil
}

func createBadgerStore(options map[string]any, density int) (device.PageStore, error) {
	storeCfg, err := decodeBadgerOptions(options)
	if err != nil {
		return nil, err
	}
	geom, err := device.Lookup(density)
	if err != nil {
		return nil, err
	}
	return device.OpenBadgerStore(storeCfg, geom)
}
