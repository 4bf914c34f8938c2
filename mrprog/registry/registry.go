// Package registry maintains a derived, eventually-consistent view of
// every trade worker from the retained worker/<id>/<field> state channel
// topics. The registry only reads these values; workers own them.
package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/wchill/MrProgDiscordBot/mrprog/statechannel"
	"github.com/wchill/MrProgDiscordBot/mrprog/trade"
)

// State is the derived three-state worker status. It is recomputed from
// the availability and enabled flags on every read, never stored.
type State int

const (
	StateOffline State = iota
	StateDisabled
	StateOnline
)

func (s State) String() string {
	switch s {
	case StateOnline:
		return "online"
	case StateDisabled:
		return "disabled"
	default:
		return "offline"
	}
}

// Worker is the typed record rebuilt from one worker's retained topics.
type Worker struct {
	ID           string
	Hostname     string
	Address      string
	Platform     trade.Platform
	Game         int
	Available    bool
	Enabled      bool
	Version      map[string]string
	CurrentTrade *trade.Request
}

// State derives online/disabled/offline from the two most recent flags.
func (w *Worker) State() State {
	switch {
	case w.Available && w.Enabled:
		return StateOnline
	case w.Available:
		return StateDisabled
	default:
		return StateOffline
	}
}

var topicPattern = regexp.MustCompile(`^worker/([A-Za-z0-9_-]+)/(.+)$`)

// fieldSetters maps a worker topic field to its typed setter. Unknown
// fields are logged and ignored; a malformed payload never takes down the
// delivery loop.
var fieldSetters = map[string]func(*Worker, []byte) error{
	"hostname": func(w *Worker, p []byte) error {
		w.Hostname = string(p)
		return nil
	},
	"address": func(w *Worker, p []byte) error {
		w.Address = string(p)
		return nil
	},
	"system": func(w *Worker, p []byte) error {
		w.Platform = trade.Platform(p)
		return nil
	},
	"game": func(w *Worker, p []byte) error {
		game, err := strconv.Atoi(string(p))
		if err != nil {
			return fmt.Errorf("bad game number %q: %w", p, err)
		}
		w.Game = game
		return nil
	},
	"available": func(w *Worker, p []byte) error {
		w.Available = string(p) == "1"
		return nil
	},
	"enabled": func(w *Worker, p []byte) error {
		w.Enabled = string(p) == "1"
		return nil
	},
	"version": func(w *Worker, p []byte) error {
		var version map[string]string
		if err := json.Unmarshal(p, &version); err != nil {
			return fmt.Errorf("bad version map: %w", err)
		}
		w.Version = version
		return nil
	},
	"current_trade": func(w *Worker, p []byte) error {
		if len(p) == 0 {
			w.CurrentTrade = nil
			return nil
		}
		request, err := trade.DecodeRequest(p)
		if err != nil {
			return fmt.Errorf("bad current trade: %w", err)
		}
		w.CurrentTrade = request
		return nil
	},
}

// Registry holds the worker records. It owns them exclusively; all
// mutation happens on the state channel delivery path.
type Registry struct {
	mu       sync.RWMutex
	workers  map[string]*Worker
	modified atomic.Bool
}

func New() *Registry {
	return &Registry{workers: make(map[string]*Worker)}
}

// Bind subscribes the registry to the worker topics of a state channel.
func (r *Registry) Bind(sc statechannel.Client) {
	sc.Watch(statechannel.WorkerFilter, r.handle)
}

func (r *Registry) handle(msg statechannel.Message) {
	m := topicPattern.FindStringSubmatch(msg.Topic)
	if m == nil {
		slog.Warn("Unparseable worker topic",
			slog.String("type", "registry"),
			slog.String("topic", msg.Topic))
		return
	}
	workerID, field := m[1], m[2]

	setter, ok := fieldSetters[field]
	if !ok {
		slog.Debug("Ignoring unknown worker field",
			slog.String("type", "registry"),
			slog.String("worker_id", workerID),
			slog.String("field", field))
		return
	}

	r.mu.Lock()
	worker, ok := r.workers[workerID]
	if !ok {
		worker = &Worker{ID: workerID}
		r.workers[workerID] = worker
	}
	err := setter(worker, msg.Payload)
	r.mu.Unlock()

	if err != nil {
		slog.Warn("Skipping malformed worker field update",
			slog.String("type", "registry"),
			slog.String("worker_id", workerID),
			slog.String("field", field),
			slog.Any("error", err))
		return
	}
	r.modified.Store(true)
}

// Get returns a copy of one worker's record.
func (r *Registry) Get(workerID string) (Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	worker, ok := r.workers[workerID]
	if !ok {
		return Worker{}, false
	}
	return *worker, true
}

// Workers returns copies of every known worker record, ordered by id.
func (r *Registry) Workers() []Worker {
	r.mu.RLock()
	out := make([]Worker, 0, len(r.workers))
	for _, worker := range r.workers {
		out = append(out, *worker)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs returns every known worker id, ordered.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.workers))
	for id := range r.workers {
		out = append(out, id)
	}
	r.mu.RUnlock()

	sort.Strings(out)
	return out
}

// Modified reports whether any record changed since the last Reset,
// letting display code refresh only when needed.
func (r *Registry) Modified() bool {
	return r.modified.Load()
}

func (r *Registry) ResetModified() {
	r.modified.Store(false)
}
