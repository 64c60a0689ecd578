// Package stash persists the collection, its settings, snapshot records and
// the scheduler bookkeeping in one durable key-value store.
package stash

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/stashd/internal/domain"
	"github.com/vadiminshakov/stashd/internal/storage/kv"
)

const (
	keyCatalog        = "catalog"
	keySettings       = "settings"
	keyLastCycle      = "last_cycle_completed_at"
	keyInstallationID = "installation_id"
	snapshotKeyPrefix = "snapshot/"
)

// Store is the typed persistence layer of the scheduler core.
type Store struct {
	kv *kv.Store
}

// Open opens (or creates) the store under dir.
func Open(dir string) (*Store, error) {
	inner, err := kv.Open(dir)
	if err != nil {
		return nil, errors.Wrap(err, "open stash store")
	}
	return &Store{kv: inner}, nil
}

// Catalog loads the current catalog. A store that has never seen a catalog
// returns an empty one.
func (s *Store) Catalog() (domain.Catalog, error) {
	var cat domain.Catalog
	if _, err := s.kv.Get(keyCatalog, &cat); err != nil {
		return domain.Catalog{}, errors.Wrap(err, "load catalog")
	}
	return cat, nil
}

// SaveCatalog writes the whole catalog as one batch.
func (s *Store) SaveCatalog(cat domain.Catalog) error {
	return errors.Wrap(s.kv.Set(keyCatalog, cat), "save catalog")
}

// Settings loads settings with defaults filled for missing fields.
func (s *Store) Settings() (domain.Settings, error) {
	settings := domain.DefaultSettings()
	if _, err := s.kv.Get(keySettings, &settings); err != nil {
		return domain.Settings{}, errors.Wrap(err, "load settings")
	}
	settings.Normalize()
	return settings, nil
}

// SaveSettings persists settings.
func (s *Store) SaveSettings(settings domain.Settings) error {
	return errors.Wrap(s.kv.Set(keySettings, settings), "save settings")
}

// SeedSettings persists settings only when none were ever saved, so a
// config file cannot clobber what the settings surface wrote later.
func (s *Store) SeedSettings(settings domain.Settings) error {
	if s.kv.Has(keySettings) {
		return nil
	}
	settings.Normalize()
	return s.SaveSettings(settings)
}

// LastCycleCompletedAt returns the completion time of the last refresh
// cycle. The boolean is false when no cycle ever completed.
func (s *Store) LastCycleCompletedAt() (time.Time, bool, error) {
	var ts time.Time
	ok, err := s.kv.Get(keyLastCycle, &ts)
	if err != nil {
		return time.Time{}, false, errors.Wrap(err, "load last cycle time")
	}
	return ts, ok, nil
}

// SetLastCycleCompletedAt persists the cycle completion time.
func (s *Store) SetLastCycleCompletedAt(ts time.Time) error {
	return errors.Wrap(s.kv.Set(keyLastCycle, ts), "save last cycle time")
}

// Snapshot loads the snapshot record for (scope, dateKey) if one exists.
func (s *Store) Snapshot(scope, dateKey string) (domain.SnapshotRecord, bool, error) {
	var rec domain.SnapshotRecord
	ok, err := s.kv.Get(snapshotKey(scope, dateKey), &rec)
	if err != nil {
		return domain.SnapshotRecord{}, false, errors.Wrap(err, "load snapshot")
	}
	return rec, ok, nil
}

// SaveSnapshot writes a snapshot record. A record that already exists for
// the same (scope, dateKey) is left untouched, snapshots are write-once.
func (s *Store) SaveSnapshot(rec domain.SnapshotRecord) error {
	key := snapshotKey(rec.Scope, rec.DateKey)
	if s.kv.Has(key) {
		return nil
	}
	return errors.Wrap(s.kv.Set(key, rec), "save snapshot")
}

// Snapshots returns all recorded snapshots ordered by scope then date.
func (s *Store) Snapshots() ([]domain.SnapshotRecord, error) {
	keys := s.kv.Keys()
	sort.Strings(keys)

	var records []domain.SnapshotRecord
	for _, key := range keys {
		if !strings.HasPrefix(key, snapshotKeyPrefix) {
			continue
		}
		var rec domain.SnapshotRecord
		if _, err := s.kv.Get(key, &rec); err != nil {
			return nil, errors.Wrap(err, "load snapshots")
		}
		records = append(records, rec)
	}
	return records, nil
}

// InstallationID returns the stable per-installation identifier, generating
// and persisting one on first use.
func (s *Store) InstallationID() (string, error) {
	var id string
	ok, err := s.kv.Get(keyInstallationID, &id)
	if err != nil {
		return "", errors.Wrap(err, "load installation id")
	}
	if ok && id != "" {
		return id, nil
	}

	id = uuid.New().String()
	if err := s.kv.Set(keyInstallationID, id); err != nil {
		return "", errors.Wrap(err, "persist installation id")
	}
	return id, nil
}

// Close closes the underlying store.
func (s *Store) Close() error {
	return s.kv.Close()
}

func snapshotKey(scope, dateKey string) string {
	return snapshotKeyPrefix + scope + "/" + dateKey
}
