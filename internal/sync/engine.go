// Package sync reconciles the in-memory entity store against the remote
// per-user document store, with a local durable cache for offline
// operation.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"budgetcore/pkg/domain"
)

// Status is the engine's externally visible synchronization state.
type Status string

// Engine states. Offline runs in parallel to the save cycle: it is
// entered on a connectivity loss signal and exited when connectivity
// returns, at which point a deferred save is retried automatically.
const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusSynced  Status = "synced"
	StatusError   Status = "error"
	StatusOffline Status = "offline"
)

// maxSaveAttempts bounds the fetch-merge-write loop when a conditional
// write keeps losing to concurrent sessions.
const maxSaveAttempts = 3

// Stateful is the slice of the entity store the engine drives: wholesale
// document import on load and remote push, export on save.
type Stateful interface {
	ImportDocument(domain.UserDocument)
	ExportDocument() domain.UserDocument
}

// Engine persists the entity store to the remote document store, merging
// conflicting remote writes at group granularity, and mirrors every
// successful save into the local cache.
type Engine struct {
	mu     sync.Mutex
	store  Stateful
	remote domain.RemoteStore
	cache  domain.SnapshotCache

	metrics *Metrics
	nowFn   func() time.Time

	userID      string
	lastLoaded  time.Time // merge watermark: remote lastUpdated as of the last load
	offline     bool
	pendingSave bool
	watchCancel context.CancelFunc

	stMu   sync.RWMutex
	status Status
}

// NewEngine constructs a sync engine over the given store and backends.
func NewEngine(store Stateful, remote domain.RemoteStore, cache domain.SnapshotCache) *Engine {
	return &Engine{
		store:  store,
		remote: remote,
		cache:  cache,
		nowFn:  func() time.Time { return time.Now().UTC() },
		status: StatusIdle,
	}
}

// SetMetrics attaches a metrics recorder. Nil disables instrumentation.
func (e *Engine) SetMetrics(m *Metrics) { e.metrics = m }

// SetNowFunc overrides the clock. Test hook.
func (e *Engine) SetNowFunc(fn func() time.Time) { e.nowFn = fn }

// Status returns the current synchronization state.
func (e *Engine) Status() Status {
	e.stMu.RLock()
	defer e.stMu.RUnlock()
	return e.status
}

// LastLoaded returns the merge watermark.
func (e *Engine) LastLoaded() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastLoaded
}

func (e *Engine) setStatus(s Status) {
	e.stMu.Lock()
	e.status = s
	e.stMu.Unlock()
	e.metrics.observeStatus(s)
}

// Load fetches the user's document and replaces the in-memory state with
// it. A missing remote document is seeded with the default dashboard. A
// failed or offline remote falls back to the local cache, or to the
// default document when the cache is empty too. On success the engine
// subscribes to remote change notifications for the rest of the session.
func (e *Engine) Load(ctx context.Context, userID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.userID = userID

	if e.offline {
		err := e.loadFromCacheLocked(ctx)
		e.setStatus(StatusOffline)
		e.metrics.observeLoad("cache", err == nil)
		return err
	}

	e.setStatus(StatusSyncing)
	doc, err := e.remote.Fetch(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrDocumentNotFound):
		doc = domain.NewDefaultDocument(e.nowFn())
		if putErr := e.remote.Put(ctx, userID, doc, time.Time{}); putErr != nil {
			e.adoptLocked(ctx, doc)
			e.setStatus(StatusError)
			e.metrics.observeLoad("seed", false)
			return fmt.Errorf("seed remote document: %w", putErr)
		}
		e.metrics.observeLoad("seed", true)
	case err != nil:
		cacheErr := e.loadFromCacheLocked(ctx)
		e.setStatus(StatusError)
		e.metrics.observeLoad("cache", cacheErr == nil)
		if cacheErr != nil {
			return fmt.Errorf("fetch remote document: %w", err)
		}
		return nil
	default:
		e.metrics.observeLoad("remote", true)
	}

	e.adoptLocked(ctx, doc)
	e.startWatchLocked(userID)
	e.setStatus(StatusSynced)
	return nil
}

// adoptLocked imports a document, mirrors it to the cache, and advances
// the watermark.
func (e *Engine) adoptLocked(ctx context.Context, doc domain.UserDocument) {
	e.store.ImportDocument(doc)
	_ = e.cache.Write(ctx, e.userID, doc)
	if doc.LastUpdated.IsZero() {
		e.lastLoaded = e.nowFn()
	} else {
		e.lastLoaded = doc.LastUpdated
	}
}

func (e *Engine) loadFromCacheLocked(ctx context.Context) error {
	doc, err := e.cache.Read(ctx, e.userID)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		doc = domain.NewDefaultDocument(e.nowFn())
	} else if err != nil {
		return fmt.Errorf("read cache: %w", err)
	}
	e.store.ImportDocument(doc)
	if doc.LastUpdated.IsZero() {
		e.lastLoaded = e.nowFn()
	} else {
		e.lastLoaded = doc.LastUpdated
	}
	return nil
}

// Save persists the current in-memory state wholesale. When another
// session wrote after this session's last load, the remote group maps are
// taken as the base and the local maps overlaid per group id before
// writing. While offline the save is deferred and retried on reconnect.
// On failure the in-memory state is left untouched and the status turns
// to error.
func (e *Engine) Save(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.userID == "" {
		return nil
	}
	if e.offline {
		e.pendingSave = true
		e.setStatus(StatusOffline)
		return nil
	}

	e.setStatus(StatusSyncing)
	start := e.nowFn()
	err := e.saveLocked(ctx)
	e.metrics.observeSave(err == nil, e.nowFn().Sub(start))
	if err != nil {
		e.setStatus(StatusError)
		return err
	}
	e.setStatus(StatusSynced)
	return nil
}

func (e *Engine) saveLocked(ctx context.Context) error {
	local := e.store.ExportDocument()

	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		final := local
		merged := false
		var expect time.Time

		remoteDoc, err := e.remote.Fetch(ctx, e.userID)
		switch {
		case errors.Is(err, domain.ErrDocumentNotFound):
			// First write for this user; unconditional create.
		case err != nil:
			return fmt.Errorf("fetch remote document: %w", err)
		default:
			expect = remoteDoc.LastUpdated
			if remoteDoc.LastUpdated.After(e.lastLoaded) {
				final = MergeDocuments(remoteDoc, local)
				merged = true
				e.metrics.observeMerge()
			}
		}

		now := e.nowFn()
		final.Version = domain.SchemaVersion
		final.LastUpdated = now

		err = e.remote.Put(ctx, e.userID, final, expect)
		if errors.Is(err, domain.ErrVersionConflict) {
			// Lost the conditional write; re-fetch and re-merge.
			continue
		}
		if err != nil {
			return fmt.Errorf("write remote document: %w", err)
		}
		if merged {
			e.store.ImportDocument(final)
		}
		_ = e.cache.Write(ctx, e.userID, final)
		e.lastLoaded = now
		return nil
	}
	return fmt.Errorf("save after %d attempts: %w", maxSaveAttempts, domain.ErrVersionConflict)
}

// SetOnline feeds the environment's connectivity signal. Going offline
// flips the status; coming back online re-enters synced and retries a
// deferred save automatically.
func (e *Engine) SetOnline(ctx context.Context, online bool) error {
	e.mu.Lock()
	if !online {
		e.offline = true
		e.setStatus(StatusOffline)
		e.mu.Unlock()
		return nil
	}
	e.offline = false
	pending := e.pendingSave
	e.pendingSave = false
	e.setStatus(StatusSynced)
	e.mu.Unlock()

	if pending {
		return e.Save(ctx)
	}
	return nil
}

// startWatchLocked subscribes to remote pushes when the driver supports
// them. Each push replaces the in-memory dashboards wholesale, which can
// overwrite an unsaved in-flight local edit; that matches the remote
// store's last-push-wins read semantics.
func (e *Engine) startWatchLocked(userID string) {
	if e.watchCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := e.remote.Watch(ctx, userID)
	if err != nil {
		// Drivers without push support degrade to save-time merge only.
		cancel()
		return
	}
	e.watchCancel = cancel
	go func() {
		for doc := range ch {
			e.mu.Lock()
			e.store.ImportDocument(doc)
			if doc.LastUpdated.IsZero() {
				e.lastLoaded = e.nowFn()
			} else {
				e.lastLoaded = doc.LastUpdated
			}
			e.mu.Unlock()
			e.metrics.observePush()
		}
	}()
}

// Close tears down the remote change subscription.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.watchCancel != nil {
		e.watchCancel()
		e.watchCancel = nil
	}
}

// MergeDocuments reconciles a newer remote document with the local one.
// The merge is shallow at the group level: per dashboard, the remote
// group map is the base and the local map is overlaid on top, so local
// wins on group id collisions and remote-only groups survive. Dashboards
// present only on the remote side are preserved wholesale. Item-level
// merge is deliberately out of scope: two sessions adding different items
// to the same group while apart lose the earlier write for that group.
func MergeDocuments(remote, local domain.UserDocument) domain.UserDocument {
	out := domain.CloneDocument(local)

	seen := make(map[string]bool, len(out.Dashboards))
	for _, d := range out.Dashboards {
		seen[d.ID] = true
	}
	for _, d := range remote.Dashboards {
		if !seen[d.ID] {
			out.Dashboards = append(out.Dashboards, d)
		}
	}

	for id, remoteData := range remote.DashboardData {
		localData, ok := out.DashboardData[id]
		if !ok {
			out.DashboardData[id] = domain.CloneDashboardData(remoteData)
			continue
		}
		groups := domain.CloneGroups(remoteData.ScheduleGroups)
		for gid, g := range localData.ScheduleGroups {
			groups[gid] = g
		}
		localData.ScheduleGroups = groups
		if remoteData.LastModified.After(localData.LastModified) {
			localData.LastModified = remoteData.LastModified
		}
		out.DashboardData[id] = localData
	}
	return out
}
