package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/lehigh-university-libraries/biocapture/internal/models"
	"github.com/lehigh-university-libraries/biocapture/internal/notify"
	"github.com/lehigh-university-libraries/biocapture/internal/storage"
)

var (
	ErrNoActiveSession = errors.New("no active session")
	ErrInvalidName     = errors.New("invalid session name")
	ErrNameTaken       = errors.New("session name already exists")
	ErrNotFound        = errors.New("session not found")
)

// Workspace holds every named session collection in memory and writes them
// through to the persistence store.
type Workspace struct {
	store     storage.Store
	notifier  notify.Notifier
	databases map[string][]models.CapturedDataSet
	active    string
	mu        sync.Mutex
}

func New(store storage.Store, notifier notify.Notifier) *Workspace {
	return &Workspace{
		store:     store,
		notifier:  notifier,
		databases: make(map[string][]models.CapturedDataSet),
	}
}

// Load reads every saved collection from the store
func (w *Workspace) Load(ctx context.Context) error {
	dbs, err := w.store.LoadAll(ctx)
	if err != nil {
		notify.Error(w.notifier, "Error", "Could not load saved databases.")
		return fmt.Errorf("failed to load databases: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.databases = dbs
	slog.Info("Databases loaded", "count", len(dbs))
	return nil
}

// Names lists saved collection names in sorted order
func (w *Workspace) Names() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return storage.SortedNames(w.databases)
}

// Counts returns the number of records in each collection
func (w *Workspace) Counts() map[string]int {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]int, len(w.databases))
	for name, records := range w.databases {
		out[name] = len(records)
	}
	return out
}

// Select makes name the active collection, creating it in memory on first use
func (w *Workspace) Select(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.databases[name]; !ok {
		w.databases[name] = []models.CapturedDataSet{}
	}
	w.active = name
	notify.Info(w.notifier, "Database Ready", fmt.Sprintf("Database '%s' is active.", name))
	return nil
}

// Leave deactivates the current collection without touching the store
func (w *Workspace) Leave() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.active = ""
}

// Active returns the active collection name, empty when none is selected
func (w *Workspace) Active() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// Records returns a copy of the active collection
func (w *Workspace) Records() []models.CapturedDataSet {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active == "" {
		return nil
	}
	return models.CloneRecords(w.databases[w.active])
}

// Get returns a copy of a named collection
func (w *Workspace) Get(name string) ([]models.CapturedDataSet, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	records, ok := w.databases[name]
	if !ok {
		return nil, false
	}
	return models.CloneRecords(records), true
}

// SaveRecord upserts rec into the active collection by id and persists the
// collection. The in-memory update is kept even when persistence fails.
func (w *Workspace) SaveRecord(ctx context.Context, rec *models.CapturedDataSet) error {
	w.mu.Lock()
	name := w.active
	if name == "" {
		w.mu.Unlock()
		return ErrNoActiveSession
	}

	stored := *rec.Clone()
	records := w.databases[name]
	replaced := false
	for i := range records {
		if records[i].ID == stored.ID {
			records[i] = stored
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, stored)
	}
	w.databases[name] = records
	snapshot := models.CloneRecords(records)
	w.mu.Unlock()

	if err := w.persist(ctx, name, snapshot); err != nil {
		return err
	}

	slog.Info("Record saved", "session", name, "record_id", rec.ID, "replaced", replaced)
	notify.Info(w.notifier, "Record Saved", fmt.Sprintf("Data for ID %s has been saved to database '%s'.", rec.ID, name))
	return nil
}

// Save persists the active collection as it stands
func (w *Workspace) Save(ctx context.Context) error {
	w.mu.Lock()
	name := w.active
	if name == "" {
		w.mu.Unlock()
		return ErrNoActiveSession
	}
	snapshot := models.CloneRecords(w.databases[name])
	w.mu.Unlock()

	if err := w.persist(ctx, name, snapshot); err != nil {
		return err
	}
	notify.Info(w.notifier, "Database Saved", fmt.Sprintf("Your current database '%s' has been saved.", name))
	return nil
}

// Delete removes a collection from memory and the store. Deleting a name
// that does not exist is a no-op.
func (w *Workspace) Delete(ctx context.Context, name string) error {
	w.mu.Lock()
	_, existed := w.databases[name]
	delete(w.databases, name)
	if w.active == name {
		w.active = ""
	}
	w.mu.Unlock()

	if err := w.store.Delete(ctx, name); err != nil {
		notify.Error(w.notifier, "Error", "Could not update saved databases.")
		return fmt.Errorf("failed to delete database %q: %w", name, err)
	}
	if existed {
		notify.Info(w.notifier, "Database Deleted", fmt.Sprintf("Database '%s' has been removed.", name))
	}
	return nil
}

// Rename moves a collection to a new name. The store is updated first and
// the in-memory name only changes once that write succeeds.
func (w *Workspace) Rename(ctx context.Context, from, to string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return ErrInvalidName
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	records, ok := w.databases[from]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, from)
	}
	if from == to {
		return nil
	}
	if _, taken := w.databases[to]; taken {
		return fmt.Errorf("%w: %s", ErrNameTaken, to)
	}

	if err := w.store.Rename(ctx, from, to, models.CloneRecords(records)); err != nil {
		w.reportSaveError(to, err)
		return fmt.Errorf("failed to rename database %q: %w", from, err)
	}

	w.databases[to] = records
	delete(w.databases, from)
	if w.active == from {
		w.active = to
	}
	notify.Info(w.notifier, "Database Renamed", fmt.Sprintf("Database '%s' is now '%s'.", from, to))
	return nil
}

func (w *Workspace) persist(ctx context.Context, name string, records []models.CapturedDataSet) error {
	if err := w.store.Put(ctx, name, records); err != nil {
		w.reportSaveError(name, err)
		return fmt.Errorf("failed to persist database %q: %w", name, err)
	}
	return nil
}

func (w *Workspace) reportSaveError(name string, err error) {
	description := "Could not save database to local storage."
	if errors.Is(err, storage.ErrQuotaExceeded) {
		description = "Storage quota exceeded. Please free up space or reduce data size."
	}
	slog.Error("Failed to persist database", "session", name, "err", err)
	notify.Error(w.notifier, "Save Error", description)
}
