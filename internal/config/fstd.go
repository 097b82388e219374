package config

import (
	"fmt"
	"time"

	"github.com/eoscore/metacore/internal/econfig"
)

// FstdGlobal is the [global] section of an fstd config file.
type FstdGlobal struct {
	MgmHostPort string // the MGM's opaque-query address
	SymKeyFile  string
	ListenAddr  string // balance pull-endpoint + opaque-query listen address
	MetricsAddr string

	FmdDir          string // directory holding the per-fsid bbolt shards
	FlagLayoutError bool
	ResyncOnStart   bool

	BalancePullInterval string // how often each filesystem polls mgmd for balance work
}

// FstdFilesystem is one [filesystem "name"] section: one locally-hosted fsid.
type FstdFilesystem struct {
	Fsid        uint32
	MountPrefix string
}

// FstdConfig is the full fstd config file shape.
type FstdConfig struct {
	Global     FstdGlobal
	Filesystem map[string]*FstdFilesystem
}

// LoadFstdConfig reads and validates an fstd config file.
func LoadFstdConfig(path string) (*FstdConfig, error) {
	var c FstdConfig
	if err := econfig.LoadFile(&c, path); err != nil {
		return nil, err
	}
	econfig.ApplyEnvOverlay("FSTD", map[string]*string{
		"mgmhostport": &c.Global.MgmHostPort,
		"symkeyfile":  &c.Global.SymKeyFile,
		"listenaddr":  &c.Global.ListenAddr,
		"metricsaddr": &c.Global.MetricsAddr,
	})
	if c.Global.MgmHostPort == "" {
		return nil, fmt.Errorf("config: global.mgmhostport is required")
	}
	if c.Global.FmdDir == "" {
		return nil, fmt.Errorf("config: global.fmddir is required")
	}
	if len(c.Filesystem) == 0 {
		return nil, fmt.Errorf("config: at least one [filesystem] section is required")
	}
	for name, fs := range c.Filesystem {
		if fs.MountPrefix == "" {
			return nil, fmt.Errorf("config: filesystem %q missing mountprefix", name)
		}
	}
	return &c, nil
}

// DefaultPullInterval is how often a filesystem polls mgmd for balance
// work when Global.BalancePullInterval is unset.
const DefaultPullInterval = 30 * time.Second

// PullInterval parses Global.BalancePullInterval, falling back to
// DefaultPullInterval if unset or unparsable.
func (c *FstdConfig) PullInterval() time.Duration {
	if c.Global.BalancePullInterval == "" {
		return DefaultPullInterval
	}
	if parsed, err := econfig.ParseDuration(c.Global.BalancePullInterval); err == nil {
		return parsed
	}
	return DefaultPullInterval
}
