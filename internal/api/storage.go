package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"gql2sql/internal/dsl"
	"gql2sql/internal/metrics"
	"gql2sql/internal/pg"
	"gql2sql/internal/schema"
)

// Revision is one built schema snapshot and the DDL generated from it.
// Revisions are immutable once published.
type Revision struct {
	ID       string            `json:"id"`
	LoadedAt time.Time         `json:"loadedAt"`
	Source   string            `json:"source"`
	Entities []*dsl.Entity     `json:"-"`
	Schema   *schema.Snapshot  `json:"schema"`
	DDL      map[string]string `json:"-"`
}

// Pipeline turns a schema source into a Revision.
type Pipeline struct {
	Translator *schema.Translator
	Options    schema.Options
	DDL        pg.DDLOptions
}

// Load reads source (file or directory) and builds it.
func (p Pipeline) Load(source string) (*Revision, error) {
	entities, err := dsl.Load(source)
	if err != nil {
		return nil, err
	}
	rev, err := p.Build(entities)
	if err != nil {
		return nil, err
	}
	rev.Source = source
	return rev, nil
}

// Build resolves entities and generates DDL. Nothing is published.
func (p Pipeline) Build(entities []*dsl.Entity) (*Revision, error) {
	snap, err := schema.Build(entities, p.Translator, p.Options)
	if err != nil {
		return nil, err
	}
	ddl, err := pg.GenerateDDL(snap.Tables, p.DDL)
	if err != nil {
		return nil, err
	}
	return &Revision{Entities: entities, Schema: snap, DDL: ddl}, nil
}

// Catalog holds the published revision. Readers take the read lock only to
// grab the pointer; a reload builds off-lock and swaps under the write lock.
type Catalog struct {
	mu      sync.RWMutex
	current *Revision

	pipeline Pipeline
	source   string
	metrics  *metrics.Metrics
	logger   *slog.Logger

	idMu    sync.Mutex
	entropy io.Reader
}

// NewCatalog returns an empty catalog. source is the default reload source.
func NewCatalog(p Pipeline, source string, m *metrics.Metrics, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Catalog{
		pipeline: p,
		source:   source,
		metrics:  m,
		logger:   logger,
		entropy:  ulid.Monotonic(src, 0),
	}
}

func (c *Catalog) newID(t time.Time) string {
	c.idMu.Lock()
	defer c.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), c.entropy).String()
}

// Current returns the published revision, or nil before the first load.
func (c *Catalog) Current() *Revision {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Publish stamps rev and makes it current.
func (c *Catalog) Publish(rev *Revision) *Revision {
	rev.LoadedAt = time.Now().UTC()
	rev.ID = c.newID(rev.LoadedAt)

	c.mu.Lock()
	c.current = rev
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.Tables.Set(float64(len(rev.Schema.Tables)))
		c.metrics.Relations.Set(float64(len(rev.Schema.Relations)))
	}
	c.logger.Info("schema revision published",
		"revision", rev.ID, "source", rev.Source,
		"tables", len(rev.Schema.Tables), "relations", len(rev.Schema.Relations))
	return rev
}

// ErrOutsideRoot is returned by Reload for a source outside the schema root.
var ErrOutsideRoot = errors.New("source outside schema root")

// Root is the directory reload sources must stay in: the configured source
// when it is a directory, otherwise the directory holding it.
func (c *Catalog) Root() string {
	if fi, err := os.Stat(c.source); err == nil && fi.IsDir() {
		return filepath.Clean(c.source)
	}
	return filepath.Dir(c.source)
}

// Within resolves source against Root and rejects paths that leave it.
// Relative sources are taken relative to the root.
func (c *Catalog) Within(source string) (string, error) {
	root, err := filepath.Abs(c.Root())
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(source) {
		source = filepath.Join(root, source)
	}
	abs, err := filepath.Abs(source)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, source)
	}
	return abs, nil
}

// Reload rebuilds from source (the catalog default when empty) and
// publishes the result. A failed build leaves the current revision alone.
// A non-empty source must lie under Root.
func (c *Catalog) Reload(source, trigger string) (*Revision, error) {
	if source == "" {
		source = c.source
	} else {
		abs, err := c.Within(source)
		if err != nil {
			c.logger.Warn("reload source rejected", "source", source, "root", c.Root(), "error", err)
			return nil, err
		}
		source = abs
	}
	rev, err := c.pipeline.Load(source)
	if c.metrics != nil {
		c.metrics.Builds.WithLabelValues(trigger, metrics.Outcome(err)).Inc()
	}
	if err != nil {
		c.logger.Warn("schema build failed", "source", source, "error", err)
		return nil, err
	}
	return c.Publish(rev), nil
}
