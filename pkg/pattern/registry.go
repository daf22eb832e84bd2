package pattern

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/fsnotify.v1"
	"gopkg.in/yaml.v3"
)

// Registry manages a collection of classification rule sets, keyed by ID.
type Registry interface {
	// Register adds a rule set to the registry
	Register(rs *RuleSet) error

	// Unregister removes a rule set from the registry
	Unregister(id string) error

	// Get returns a rule set by its ID
	Get(id string) (*RuleSet, bool)

	// List returns all registered rule sets
	List() []*RuleSet

	// Reload reloads all rule sets from the configured directory
	Reload() error

	// Watch starts watching the rule directory for changes
	Watch() error

	// StopWatch stops watching the rule directory
	StopWatch()

	// LoadDirectory loads all rule files from a directory
	LoadDirectory(dir string) error

	// LoadFile loads a single rule file
	LoadFile(path string) error
}

// DefaultRegistry is the default implementation of the rule Registry. The
// built-in Chilean rule set is registered at construction, so a registry with
// no configured directory is still usable.
type DefaultRegistry struct {
	mu       sync.RWMutex
	rules    map[string]*RuleSet
	dir      string
	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	onChange func(event string, rs *RuleSet)
}

// NewRegistry creates a new rule registry seeded with the default rule set.
func NewRegistry() *DefaultRegistry {
	r := &DefaultRegistry{
		rules: make(map[string]*RuleSet),
	}
	def := Default()
	r.rules[def.ID] = def
	return r
}

// NewRegistryWithDirectory creates a new registry and loads rule sets from the
// directory. Files in the directory may override the built-in set by reusing
// its ID with a different version.
func NewRegistryWithDirectory(dir string) (*DefaultRegistry, error) {
	r := NewRegistry()
	r.dir = dir

	if err := r.LoadDirectory(dir); err != nil {
		return nil, err
	}

	return r, nil
}

// Register adds a rule set to the registry.
func (r *DefaultRegistry) Register(rs *RuleSet) error {
	if rs == nil {
		return fmt.Errorf("rule set cannot be nil")
	}

	if err := rs.Validate(); err != nil {
		return fmt.Errorf("invalid rule set: %w", err)
	}

	if !rs.IsCompiled() {
		if err := rs.Compile(); err != nil {
			return fmt.Errorf("compiling rule set %q: %w", rs.ID, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Same ID may only replace a different version.
	if existing, ok := r.rules[rs.ID]; ok {
		if existing.Version == rs.Version {
			return fmt.Errorf("rule set %q version %s already registered", rs.ID, rs.Version)
		}
	}

	r.rules[rs.ID] = rs
	return nil
}

// Unregister removes a rule set from the registry.
func (r *DefaultRegistry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rules[id]; !ok {
		return fmt.Errorf("rule set %q not found", id)
	}

	delete(r.rules, id)
	return nil
}

// Get returns a rule set by its ID.
func (r *DefaultRegistry) Get(id string) (*RuleSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rs, ok := r.rules[id]
	return rs, ok
}

// List returns all registered rule sets.
func (r *DefaultRegistry) List() []*RuleSet {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*RuleSet, 0, len(r.rules))
	for _, rs := range r.rules {
		out = append(out, rs)
	}
	return out
}

// Count returns the number of registered rule sets.
func (r *DefaultRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

// LoadDirectory loads all YAML rule files from a directory.
func (r *DefaultRegistry) LoadDirectory(dir string) error {
	r.dir = dir

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			// Directory doesn't exist, nothing to load
			return nil
		}
		return fmt.Errorf("checking directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var loadErrors []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, name)
		if err := r.LoadFile(path); err != nil {
			loadErrors = append(loadErrors, fmt.Sprintf("%s: %v", name, err))
		}
	}

	if len(loadErrors) > 0 {
		return fmt.Errorf("errors loading rule sets: %s", strings.Join(loadErrors, "; "))
	}

	return nil
}

// LoadFile loads a single rule file.
func (r *DefaultRegistry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	if err := r.Register(&rs); err != nil {
		return fmt.Errorf("registering rule set: %w", err)
	}

	return nil
}

// Reload clears everything but the built-in set and reloads the configured
// directory.
func (r *DefaultRegistry) Reload() error {
	if r.dir == "" {
		return fmt.Errorf("no directory configured for reload")
	}

	r.mu.Lock()
	r.rules = make(map[string]*RuleSet)
	def := Default()
	r.rules[def.ID] = def
	r.mu.Unlock()

	return r.LoadDirectory(r.dir)
}

// SetOnChange sets a callback function that is called when rule sets change.
func (r *DefaultRegistry) SetOnChange(fn func(event string, rs *RuleSet)) {
	r.onChange = fn
}

// Watch starts watching the rule directory for changes.
func (r *DefaultRegistry) Watch() error {
	if r.dir == "" {
		return fmt.Errorf("no directory configured for watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	r.watcher = watcher
	r.stopChan = make(chan struct{})

	go r.watchLoop()

	if err := watcher.Add(r.dir); err != nil {
		r.watcher.Close()
		return fmt.Errorf("watching directory %s: %w", r.dir, err)
	}

	return nil
}

// watchLoop handles file system events.
func (r *DefaultRegistry) watchLoop() {
	for {
		select {
		case <-r.stopChan:
			return

		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}

			if !strings.HasSuffix(event.Name, ".yaml") && !strings.HasSuffix(event.Name, ".yml") {
				continue
			}

			switch {
			case event.Op&fsnotify.Create == fsnotify.Create:
				r.handleFileChange(event.Name, "create")

			case event.Op&fsnotify.Write == fsnotify.Write:
				r.handleFileChange(event.Name, "modify")

			case event.Op&fsnotify.Remove == fsnotify.Remove:
				r.handleFileRemove(event.Name)

			case event.Op&fsnotify.Rename == fsnotify.Rename:
				r.handleFileRemove(event.Name)
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			_ = err
		}
	}
}

// handleFileChange handles file creation or modification.
func (r *DefaultRegistry) handleFileChange(path string, eventType string) {
	if err := r.LoadFile(path); err != nil {
		_ = err
		return
	}

	if r.onChange != nil {
		rs, ok := r.getByFile(path)
		if ok {
			r.onChange(eventType, rs)
		}
	}
}

// handleFileRemove handles file removal. File-to-ID mapping is not tracked,
// so the whole directory is reloaded.
func (r *DefaultRegistry) handleFileRemove(path string) {
	if err := r.Reload(); err != nil {
		_ = err
	}

	if r.onChange != nil {
		r.onChange("remove", nil)
	}
}

// getByFile attempts to find a rule set loaded from the given file, using the
// filename as the ID heuristic.
func (r *DefaultRegistry) getByFile(path string) (*RuleSet, bool) {
	base := filepath.Base(path)
	id := strings.TrimSuffix(strings.TrimSuffix(base, ".yaml"), ".yml")

	return r.Get(id)
}

// StopWatch stops watching the rule directory.
func (r *DefaultRegistry) StopWatch() {
	if r.stopChan != nil {
		close(r.stopChan)
	}
	if r.watcher != nil {
		r.watcher.Close()
	}
}

// Clear removes all rule sets from the registry, including the built-in set.
func (r *DefaultRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = make(map[string]*RuleSet)
}
