// Package inbox exchanges tool approval requests and decisions with other
// processes through files, so `relay approve` can answer a running relay.
package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ShayCichocki/relay/internal/orchestrator"
)

// ErrUnknownRequest is returned when deciding a request that is not pending.
var ErrUnknownRequest = errors.New("no pending approval request with that id")

// Resolver settles approval requests.
type Resolver interface {
	Resolve(id string, allow bool) bool
}

// Decision is the content of a decision file.
type Decision struct {
	ID        string    `json:"id"`
	Allow     bool      `json:"allow"`
	DecidedAt time.Time `json:"decidedAt"`
}

// Inbox stores requests under pending/ and decisions under decisions/.
type Inbox struct {
	dir string
}

// New creates an inbox rooted at dir.
func New(dir string) *Inbox {
	return &Inbox{dir: dir}
}

// ForWorkspace returns the inbox at <workspace>/.relay/approvals.
func ForWorkspace(workspace string) *Inbox {
	return New(filepath.Join(workspace, ".relay", "approvals"))
}

func (b *Inbox) pendingDir() string   { return filepath.Join(b.dir, "pending") }
func (b *Inbox) decisionsDir() string { return filepath.Join(b.dir, "decisions") }

// Ensure creates the inbox directories.
func (b *Inbox) Ensure() error {
	for _, dir := range []string{b.pendingDir(), b.decisionsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Publish records req as pending.
func (b *Inbox) Publish(req orchestrator.ToolApprovalRequest) error {
	data, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return writeAtomic(b.pendingDir(), req.ID+".json", data)
}

// Decide writes a decision for a pending request.
func (b *Inbox) Decide(id string, allow bool) error {
	if _, err := os.Stat(filepath.Join(b.pendingDir(), id+".json")); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", id, ErrUnknownRequest)
		}
		return fmt.Errorf("stat request: %w", err)
	}

	data, err := json.Marshal(Decision{ID: id, Allow: allow, DecidedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}
	return writeAtomic(b.decisionsDir(), id+".json", data)
}

// ListPending returns pending requests, oldest first.
func (b *Inbox) ListPending() ([]orchestrator.ToolApprovalRequest, error) {
	entries, err := os.ReadDir(b.pendingDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read pending dir: %w", err)
	}

	var reqs []orchestrator.ToolApprovalRequest
	for _, e := range entries {
		if !isJSON(e.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(b.pendingDir(), e.Name()))
		if err != nil {
			continue
		}
		var req orchestrator.ToolApprovalRequest
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		reqs = append(reqs, req)
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].CreatedAt.Before(reqs[j].CreatedAt) })
	return reqs, nil
}

// Remove deletes the pending request and decision for id.
func (b *Inbox) Remove(id string) {
	os.Remove(filepath.Join(b.pendingDir(), id+".json"))
	os.Remove(filepath.Join(b.decisionsDir(), id+".json"))
}

// Attach mirrors the gate's requests into the inbox and clears them once
// decided by any means.
func (b *Inbox) Attach(bus *orchestrator.EventBus) func() {
	offReq := bus.Subscribe(orchestrator.EventToolRequest, func(e orchestrator.Event) {
		if req, ok := e.Data.(orchestrator.ToolApprovalRequest); ok {
			if err := b.Publish(req); err != nil {
				log.Printf("[inbox] publish %s: %v", req.ID, err)
			}
		}
	})
	offDec := bus.Subscribe(orchestrator.EventToolDecision, func(e orchestrator.Event) {
		if d, ok := e.Data.(orchestrator.ToolDecision); ok {
			b.Remove(d.ID)
		}
	})
	return func() {
		offReq()
		offDec()
	}
}

// Watch applies decisions to resolver until ctx ends. Decisions already
// on disk are applied first.
func (b *Inbox) Watch(ctx context.Context, resolver Resolver) error {
	if err := b.Ensure(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(b.decisionsDir()); err != nil {
		return fmt.Errorf("watch decisions: %w", err)
	}

	// Scan after Add so a decision written in between is not missed.
	entries, err := os.ReadDir(b.decisionsDir())
	if err != nil {
		return fmt.Errorf("read decisions dir: %w", err)
	}
	for _, e := range entries {
		b.apply(filepath.Join(b.decisionsDir(), e.Name()), resolver)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				b.apply(event.Name, resolver)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[inbox] watcher error: %v", err)
		}
	}
}

func (b *Inbox) apply(path string, resolver Resolver) {
	if !isJSON(filepath.Base(path)) {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var d Decision
	if err := json.Unmarshal(data, &d); err != nil || d.ID == "" {
		log.Printf("[inbox] ignoring malformed decision %s", filepath.Base(path))
		return
	}

	if !resolver.Resolve(d.ID, d.Allow) {
		log.Printf("[inbox] decision for %s arrived after it was resolved", d.ID)
	}
	b.Remove(d.ID)
}

func isJSON(name string) bool {
	return strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".")
}

// writeAtomic writes through a hidden temp file and renames it so
// watchers never see partial content.
func writeAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}
