// Package config loads the node's startup record from a YAML file using
// camelCase field names, following the teacher's gopkg.in/yaml.v3 usage.
package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/felipemeriga/artemis-network/internal/nodeerr"
)

// File is the on-disk, camelCase YAML representation of a node's startup
// configuration.
type File struct {
	TCPAddress         string `yaml:"tcpAddress"`
	HTTPAddress        string `yaml:"httpAddress"`
	BootstrapAddress   string `yaml:"bootstrapAddress,omitempty"`
	NodeID             string `yaml:"nodeId"`
	MinerWalletAddress string `yaml:"minerWalletAddress"`
}

// Load reads and parses the YAML configuration at path.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nodeerr.Wrap(nodeerr.KindStoreIO, err, "read config file %q", path)
	}

	var cfg File
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, nodeerr.Wrap(nodeerr.KindWireDecode, err, "parse config file %q", path)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (f *File) validate() error {
	if f.TCPAddress == "" {
		return errors.New("config: tcpAddress is required")
	}
	if f.HTTPAddress == "" {
		return errors.New("config: httpAddress is required")
	}
	if f.NodeID == "" {
		return errors.New("config: nodeId is required")
	}
	if f.MinerWalletAddress == "" {
		return errors.New("config: minerWalletAddress is required")
	}
	return nil
}

// HasBootstrap reports whether a bootstrap address was supplied.
func (f *File) HasBootstrap() bool {
	return f.BootstrapAddress != ""
}
