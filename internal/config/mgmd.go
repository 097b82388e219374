// Package config implements the gcfg-backed config structs for mgmd and
// fstd, following the teacher's ingester convention of a Global section
// plus named-section maps for per-instance policy (collectd's Collector
// map, fileFollow's Follower map, netflow's Listener map).
package config

import (
	"fmt"
	"time"

	"github.com/eoscore/metacore/internal/econfig"
)

// MgmdGlobal is the [global] section of an mgmd config file.
type MgmdGlobal struct {
	ListenAddr    string // opaque-query listen address
	MetricsAddr   string // prometheus /metrics listen address
	SymKeyFile    string // path to the shared symmetric key file
	NamespaceAddr string // base URL of the external namespace service
	FsckStateFile string // path fsck's enabled/interval state persists to
	Master        bool   // static master flag (§9: no leader election implemented)

	FsckWorkers       int
	FsckMaxQueuedJobs int
	FsckShowOffline   bool

	RebalanceThreshold   float64
	RebalanceNtx         int
	DrainNtx             int
	BalanceCapabilityTTL string
}

// MgmdSpace is one [space "name"] section: placement policy plus per-space
// rebalance/drain toggles.
type MgmdSpace struct {
	GroupSize       int
	GroupMod        int
	SchedGroup      string
	RebalanceDryRun bool
	DrainDryRun     bool
}

// MgmdConfig is the full mgmd config file shape.
type MgmdConfig struct {
	Global MgmdGlobal
	Space  map[string]*MgmdSpace
}

// LoadMgmdConfig reads and validates an mgmd config file.
func LoadMgmdConfig(path string) (*MgmdConfig, error) {
	var c MgmdConfig
	if err := econfig.LoadFile(&c, path); err != nil {
		return nil, err
	}
	econfig.ApplyEnvOverlay("MGMD", map[string]*string{
		"listenaddr":    &c.Global.ListenAddr,
		"namespaceaddr": &c.Global.NamespaceAddr,
		"symkeyfile":    &c.Global.SymKeyFile,
		"metricsaddr":   &c.Global.MetricsAddr,
	})
	if c.Global.ListenAddr == "" {
		return nil, fmt.Errorf("config: global.listenaddr is required")
	}
	if c.Global.FsckWorkers <= 0 {
		c.Global.FsckWorkers = 4
	}
	if c.Global.FsckMaxQueuedJobs <= 0 {
		c.Global.FsckMaxQueuedJobs = 4096
	}
	if c.Global.RebalanceNtx <= 0 {
		c.Global.RebalanceNtx = 10
	}
	if c.Global.DrainNtx <= 0 {
		c.Global.DrainNtx = 10
	}
	if c.Global.RebalanceThreshold <= 0 {
		c.Global.RebalanceThreshold = 0.05
	}
	return &c, nil
}

// BalanceCapabilityTTL parses Global.BalanceCapabilityTTL, falling back to
// d if the field is unset or unparsable.
func (c *MgmdConfig) BalanceCapabilityTTL(d time.Duration) time.Duration {
	if c.Global.BalanceCapabilityTTL == "" {
		return d
	}
	if parsed, err := econfig.ParseDuration(c.Global.BalanceCapabilityTTL); err == nil {
		return parsed
	}
	return d
}
