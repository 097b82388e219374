package fsck

import (
	"fmt"
	"os"
	"time"

	"github.com/eoscore/metacore/internal/econfig"
)

// persistedConfig is the gcfg-tagged struct fsck's on-disk state round
// trips through; LoadFile/LoadBytes already know how to decode it.
type persistedConfig struct {
	Fsck struct {
		Enabled  bool
		Interval string
	}
}

// FileConfigStore persists fsck's enabled/interval state to a small
// standalone ini file using econfig's ini dialect. gcfg (econfig's decoder)
// is read-only, so writes are hand-rolled here; see DESIGN.md for why no
// write-capable config library from the example pack could serve this.
type FileConfigStore struct {
	Path string
}

// SaveFsckState implements ConfigStore.
func (f FileConfigStore) SaveFsckState(enabled bool, interval time.Duration) error {
	body := fmt.Sprintf("[fsck]\nenabled = %t\ninterval = %s\n", enabled, interval.String())
	return os.WriteFile(f.Path, []byte(body), 0644)
}

// LoadFsckState reads back a previously-persisted enabled/interval pair.
// Missing files are treated as DISABLED at DefaultInterval.
func LoadFsckState(path string) (enabled bool, interval time.Duration, err error) {
	var pc persistedConfig
	if err := econfig.LoadFile(&pc, path); err != nil {
		if os.IsNotExist(err) {
			return false, DefaultInterval, nil
		}
		return false, 0, err
	}
	interval = DefaultInterval
	if pc.Fsck.Interval != "" {
		if d, perr := econfig.ParseDuration(pc.Fsck.Interval); perr == nil {
			interval = d
		}
	}
	return pc.Fsck.Enabled, interval, nil
}
