package session

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/schemaboard/internal/diagrams"
	"github.com/MarcoPoloResearchLab/schemaboard/internal/gist"
	"go.uber.org/zap"
)

// LocalStore is the on-device store of diagrams and templates.
type LocalStore interface {
	Get(ctx context.Context, id string) (diagrams.Diagram, bool, error)
	Add(ctx context.Context, diagram diagrams.Diagram) (string, error)
	Update(ctx context.Context, id string, diagram diagrams.Diagram) error
	Put(ctx context.Context, diagram diagrams.Diagram) error
	QueryLatestByModifiedTime(ctx context.Context) (diagrams.Diagram, bool, error)
	FindByImportedGistID(ctx context.Context, gistID string) (diagrams.Diagram, bool, error)
	GetTemplate(ctx context.Context, id string) (diagrams.Template, bool, error)
	UpdateTemplate(ctx context.Context, id string, template diagrams.Template) error
}

// RemoteStore is the cross-device store of record.
type RemoteStore interface {
	GetByID(ctx context.Context, localID string) (diagrams.RemoteRecord, bool, error)
	Upsert(ctx context.Context, record diagrams.RemoteRecord) error
	GetLatest(ctx context.Context, limit int) ([]diagrams.RemoteRecord, error)
}

// GistFetcher downloads shared diagrams.
type GistFetcher interface {
	Fetch(ctx context.Context, shareID string) (gist.Document, error)
}

// History is the undo/redo stack, consumed only to reset it.
type History interface {
	Reset()
}

// Prompter surfaces user-visible prompts and notices.
type Prompter interface {
	PromptForDialect()
	Notify(notice Notice)
}

// QueryParams exposes the share identifier carried by the session entry point.
type QueryParams interface {
	ShareID() string
	ClearShareID()
}

type noopHistory struct{}

func (noopHistory) Reset() {}

type noopPrompter struct{}

func (noopPrompter) PromptForDialect() {}

func (noopPrompter) Notify(Notice) {}

type noopQueryParams struct{}

func (noopQueryParams) ShareID() string { return "" }

func (noopQueryParams) ClearShareID() {}

// Config describes the collaborators of a Controller.
type Config struct {
	Local       LocalStore
	Remote      RemoteStore
	Gist        GistFetcher
	History     History
	Prompter    Prompter
	QueryParams QueryParams
	IDProvider  diagrams.IDProvider
	Clock       func() time.Time
	Logger      *zap.Logger
	// Token restores the session identity; malformed tokens start a fresh session.
	Token string
}

// Controller owns the working diagram, the session identity and the save state.
type Controller struct {
	local    LocalStore
	remote   RemoteStore
	gist     GistFetcher
	history  History
	prompter Prompter
	query    QueryParams
	ids      diagrams.IDProvider
	clock    func() time.Time
	logger   *zap.Logger

	saveMu sync.Mutex

	mu            sync.Mutex
	working       diagrams.Diagram
	identity      Identity
	state         SaveState
	revision      uint64
	savedRevision uint64
	generation    uint64
	loading       bool
	saveRequested bool
	lastSaved     time.Time
	lastErr       error
	listeners     []StateListener
	changes       chan struct{}
}

// NewController validates the configuration and constructs a Controller.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Local == nil {
		return nil, newServiceError(opControllerNew, reasonMissingLocalStore, errMissingLocalStore)
	}
	if cfg.Remote == nil {
		return nil, newServiceError(opControllerNew, reasonMissingRemoteStore, errMissingRemoteStore)
	}

	controller := &Controller{
		local:    cfg.Local,
		remote:   cfg.Remote,
		gist:     cfg.Gist,
		history:  cfg.History,
		prompter: cfg.Prompter,
		query:    cfg.QueryParams,
		ids:      cfg.IDProvider,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		working:  diagrams.New(diagrams.DatabaseGeneric),
		state:    StateIdle,
		changes:  make(chan struct{}, 1),
	}
	if controller.history == nil {
		controller.history = noopHistory{}
	}
	if controller.prompter == nil {
		controller.prompter = noopPrompter{}
	}
	if controller.query == nil {
		controller.query = noopQueryParams{}
	}
	if controller.ids == nil {
		controller.ids = diagrams.NewUUIDProvider()
	}
	if controller.clock == nil {
		controller.clock = time.Now
	}
	if controller.logger == nil {
		controller.logger = zap.NewNop()
	}

	identity, err := ParseIdentity(cfg.Token)
	if err != nil {
		controller.logError(opControllerNew, reasonMalformedToken, err, zap.String("token", cfg.Token))
		identity = Identity{}
	}
	controller.identity = identity
	return controller, nil
}

// OnStateChange registers a listener for every save-state transition.
func (c *Controller) OnStateChange(listener StateListener) {
	if listener == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, listener)
}

// Changes signals working-state edits. Signals coalesce while unread.
func (c *Controller) Changes() <-chan struct{} {
	return c.changes
}

// Working returns a deep copy of the working diagram.
func (c *Controller) Working() diagrams.Diagram {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.working.Clone()
}

// Identity returns the current session identity.
func (c *Controller) Identity() Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Token returns the encoded session identity.
func (c *Controller) Token() string {
	return c.Identity().Token()
}

// State returns the current save state.
func (c *Controller) State() SaveState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Dirty reports whether working state changed since the last successful save or load.
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revision != c.savedRevision
}

// LastSaved returns the time of the last successful save, or zero.
func (c *Controller) LastSaved() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSaved
}

// LastError returns the most recent load or save failure, or nil.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// StartNew replaces working state with an empty diagram for the dialect and
// detaches it from any persisted record.
func (c *Controller) StartNew(kind diagrams.DatabaseKind) {
	c.mu.Lock()
	c.working = diagrams.New(kind)
	c.identity = Identity{}
	c.generation++
	c.revision++
	c.savedRevision = c.revision
	c.mu.Unlock()
	c.history.Reset()
}

// SetName renames the working diagram.
func (c *Controller) SetName(name string) {
	c.mutate(func(d *diagrams.Diagram) {
		d.Name = name
	})
}

// SetDatabase changes the target dialect.
func (c *Controller) SetDatabase(kind diagrams.DatabaseKind) {
	c.mutate(func(d *diagrams.Diagram) {
		d.Database = diagrams.ParseDatabaseKind(string(kind))
	})
}

// SetTables replaces the table elements.
func (c *Controller) SetTables(tables []json.RawMessage) {
	c.mutate(func(d *diagrams.Diagram) {
		d.Tables = copyElements(tables)
	})
}

// SetRelationships replaces the relationship elements.
func (c *Controller) SetRelationships(relationships []json.RawMessage) {
	c.mutate(func(d *diagrams.Diagram) {
		d.Relationships = copyElements(relationships)
	})
}

// SetNotes replaces the note elements.
func (c *Controller) SetNotes(notes []json.RawMessage) {
	c.mutate(func(d *diagrams.Diagram) {
		d.Notes = copyElements(notes)
	})
}

// SetAreas replaces the subject area elements.
func (c *Controller) SetAreas(areas []json.RawMessage) {
	c.mutate(func(d *diagrams.Diagram) {
		d.Areas = copyElements(areas)
	})
}

// SetTasks replaces the task elements.
func (c *Controller) SetTasks(tasks []json.RawMessage) {
	c.mutate(func(d *diagrams.Diagram) {
		d.Tasks = copyElements(tasks)
	})
}

// SetTypes replaces the custom type elements.
func (c *Controller) SetTypes(types []json.RawMessage) {
	c.mutate(func(d *diagrams.Diagram) {
		d.Types = copyElements(types)
	})
}

// SetEnums replaces the enum elements.
func (c *Controller) SetEnums(enums []json.RawMessage) {
	c.mutate(func(d *diagrams.Diagram) {
		d.Enums = copyElements(enums)
	})
}

// SetTransform moves the viewport.
func (c *Controller) SetTransform(transform diagrams.Transform) {
	c.mutate(func(d *diagrams.Diagram) {
		d.Transform = transform
	})
}

// SetGistID records the gist the diagram publishes to. A non-empty id
// requests a save on the next autosave tick.
func (c *Controller) SetGistID(gistID string) {
	gistID = strings.TrimSpace(gistID)
	c.mu.Lock()
	c.working.GistID = gistID
	c.revision++
	if gistID != "" {
		c.saveRequested = true
	}
	c.mu.Unlock()
	c.signal()
}

func (c *Controller) mutate(apply func(*diagrams.Diagram)) {
	c.mu.Lock()
	apply(&c.working)
	c.revision++
	c.mu.Unlock()
	c.signal()
}

func (c *Controller) signal() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

func (c *Controller) transition(state SaveState) {
	c.mu.Lock()
	c.state = state
	listeners := append([]StateListener(nil), c.listeners...)
	c.mu.Unlock()
	for _, listener := range listeners {
		listener(state)
	}
}

func (c *Controller) recordFailure(state SaveState, err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	c.transition(state)
}

// adopt replaces working state atomically, resets history and marks it clean
// unless dirty is set.
func (c *Controller) adopt(diagram diagrams.Diagram, identity Identity, dirty bool) {
	c.mu.Lock()
	c.working = diagram.Normalize().Clone()
	c.identity = identity
	c.generation++
	c.revision++
	if !dirty {
		c.savedRevision = c.revision
	}
	resetState := c.state == StateFailedToLoad || c.state == StateError
	c.mu.Unlock()

	c.history.Reset()
	if resetState {
		c.transition(StateIdle)
	}
	if dirty {
		c.signal()
	}
}

func copyElements(elements []json.RawMessage) []json.RawMessage {
	if elements == nil {
		return nil
	}
	copied := make([]json.RawMessage, len(elements))
	for index, element := range elements {
		copied[index] = append(json.RawMessage(nil), element...)
	}
	return copied
}
