// Package config implements the single JSON configuration document of spec
// §6: general daemon behavior, configured disks and sync pairs, filter
// rules, cache eviction policy, and advanced tuning knobs.
package config

import (
	"encoding/json"

	"github.com/driftmirror/driftmirror/pkg/cacheevictor"
	"github.com/driftmirror/driftmirror/pkg/dmerrors"
	"github.com/driftmirror/driftmirror/pkg/encoding"
	"github.com/driftmirror/driftmirror/pkg/syncengine"
)

// General holds menu-bar-facing and daemon-wide behavior toggles.
type General struct {
	AutoSyncEnabled bool   `json:"autoSyncEnabled"`
	LaunchAtLogin   bool   `json:"launchAtLogin"`
	MenuBarStyle    string `json:"menuBarStyle"`
	Language        string `json:"language"`
}

// Disk describes one configured external volume.
type Disk struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	MountPath  string `json:"mountPath"`
	Priority   int    `json:"priority"`
	Enabled    bool   `json:"enabled"`
	FileSystem string `json:"fileSystem"`
}

// SyncPair describes one configured sync pair, per spec §3's SyncPair
// entity.
type SyncPair struct {
	ID                   string                       `json:"id"`
	DiskID               string                       `json:"diskId"`
	LocalPath            string                       `json:"localPath"`
	ExternalRelativePath string                       `json:"externalRelativePath"`
	Direction            syncengine.Direction         `json:"direction"`
	CreateSymlink        bool                         `json:"createSymlink"`
	Enabled              bool                         `json:"enabled"`
	MaxLocalCacheSize    int64                        `json:"maxLocalCacheSize"`
	AutoEvictionEnabled  bool                         `json:"autoEvictionEnabled"`
	TargetFreeSpace      int64                        `json:"targetFreeSpace"`
	ExcludePatterns      []string                     `json:"excludePatterns"`
	IncludePatterns      []string                     `json:"includePatterns"`
	ConflictStrategy     syncengine.ConflictStrategy   `json:"conflictStrategy"`
}

// Filters holds the global filter defaults applied ahead of any sync pair's
// own include/exclude patterns, per spec §4.8.
type Filters struct {
	ExcludePatterns []string `json:"excludePatterns"`
	IncludePatterns []string `json:"includePatterns"`
	ExcludeHidden   bool     `json:"excludeHidden"`
	MaxFileSize     int64    `json:"maxFileSize,omitempty"`
	MinFileSize     int64    `json:"minFileSize,omitempty"`
}

// Cache holds the global CacheEvictor defaults, per spec §4.6.
type Cache struct {
	ReserveBuffer    int64                   `json:"reserveBuffer"`
	EvictionStrategy cacheevictor.Strategy   `json:"evictionStrategy"`
	CheckInterval    int                     `json:"checkInterval"`
}

// Advanced holds tuning knobs for debouncing, batching, retries, and
// logging verbosity.
type Advanced struct {
	DebounceDelay int    `json:"debounceDelay"`
	BatchSize     int    `json:"batchSize"`
	RetryCount    int    `json:"retryCount"`
	Timeout       int    `json:"timeout"`
	LogLevel      string `json:"logLevel"`
}

// Document is the full configuration document of spec §6.
type Document struct {
	General    General    `json:"general"`
	Disks      []Disk     `json:"disks"`
	SyncPairs  []SyncPair `json:"syncPairs"`
	Filters    Filters    `json:"filters"`
	Cache      Cache      `json:"cache"`
	Advanced   Advanced   `json:"advanced"`
}

// Default returns a Document populated with the defaults referenced
// elsewhere in the spec: 30s lock timeout tuning aside, the debounce window
// is 5s (matching pkg/state.Coalescer's existing default window), eviction
// strategy is modifiedTime, and checkInterval/periodic sync default to one
// hour (3600s).
func Default() *Document {
	return &Document{
		General: General{AutoSyncEnabled: true, MenuBarStyle: "icon", Language: "en"},
		Cache:   Cache{EvictionStrategy: cacheevictor.StrategyModifiedTime, CheckInterval: 3600},
		Advanced: Advanced{
			DebounceDelay: 5, BatchSize: 100, RetryCount: 1, Timeout: 30, LogLevel: "info",
		},
	}
}

// Load reads a configuration document from path. A missing file is reported
// via the underlying os.IsNotExist-compatible error so callers can fall back
// to Default.
func Load(path string) (*Document, error) {
	doc := &Document{}
	if err := encoding.LoadAndUnmarshal(path, func(data []byte) error {
		return json.Unmarshal(data, doc)
	}); err != nil {
		return nil, err
	}
	if err := Validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Save writes doc to path atomically, as indented JSON.
func Save(path string, doc *Document) error {
	return encoding.MarshalAndSave(path, func() ([]byte, error) {
		return json.MarshalIndent(doc, "", "  ")
	})
}

// Validate checks the cross-field invariants a configuration document must
// satisfy before it is accepted: every sync pair that names a diskId must
// reference a known disk (an empty diskId is accepted), and every ID must be
// unique.
func Validate(doc *Document) error {
	diskIDs := make(map[string]bool, len(doc.Disks))
	for _, disk := range doc.Disks {
		if disk.ID == "" {
			return dmerrors.New(dmerrors.CodeInvalidConfig, "disk entry missing id")
		}
		if diskIDs[disk.ID] {
			return dmerrors.New(dmerrors.CodeInvalidConfig, "duplicate disk id").With("id", disk.ID)
		}
		diskIDs[disk.ID] = true
	}

	pairIDs := make(map[string]bool, len(doc.SyncPairs))
	for _, pair := range doc.SyncPairs {
		if pair.ID == "" {
			return dmerrors.New(dmerrors.CodeInvalidConfig, "sync pair entry missing id")
		}
		if pairIDs[pair.ID] {
			return dmerrors.New(dmerrors.CodeInvalidConfig, "duplicate sync pair id").With("id", pair.ID)
		}
		pairIDs[pair.ID] = true
		if pair.DiskID != "" && !diskIDs[pair.DiskID] {
			return dmerrors.New(dmerrors.CodeInvalidConfig, "sync pair references unknown disk").
				With("syncPairId", pair.ID).With("diskId", pair.DiskID)
		}
	}

	return nil
}
