package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"gql2sql/internal/pg"
	"gql2sql/internal/registrar"
	"gql2sql/internal/schema"
)

// ===== META HANDLERS =====

type metaTableListItem struct {
	Entity    string `json:"entity"`
	Table     string `json:"table"`
	Columns   int    `json:"columns"`
	Relations int    `json:"relations"`
	Lookups   int    `json:"lookups,omitempty"`
}

// current aborts with 503 until the first revision is published.
func current(c *gin.Context, cat *Catalog) (*Revision, bool) {
	rev := cat.Current()
	if rev == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no schema loaded"})
		return nil, false
	}
	return rev, true
}

func MetaListHandler(cat *Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		rev, ok := current(c, cat)
		if !ok {
			return
		}
		out := make([]metaTableListItem, 0, len(rev.Schema.Tables))
		for _, t := range rev.Schema.Tables {
			out = append(out, metaTableListItem{
				Entity:    t.Entity,
				Table:     t.Name,
				Columns:   len(t.Columns),
				Relations: len(t.Relations),
				Lookups:   len(t.Lookups),
			})
		}
		c.JSON(http.StatusOK, gin.H{"revision": rev.ID, "tables": out})
	}
}

type metaTable struct {
	schema.TableDefinition
	// Incoming lists relations owned by other tables that point here.
	Incoming []schema.Relation `json:"incoming,omitempty"`
}

func MetaTableHandler(cat *Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		rev, ok := current(c, cat)
		if !ok {
			return
		}
		t, ok := rev.ResolveTable(c.Param("table"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Table not found"})
			return
		}
		out := metaTable{TableDefinition: t}
		for _, rel := range rev.Schema.Relations {
			if rel.Target == t.Entity && rel.Source != t.Entity {
				out.Incoming = append(out.Incoming, rel)
			}
		}
		c.JSON(http.StatusOK, out)
	}
}

// RelationsHandler lists canonical relations and the registrations a
// metadata service would receive for them.
func RelationsHandler(cat *Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		rev, ok := current(c, cat)
		if !ok {
			return
		}
		rels := rev.Schema.Relations
		if kind := strings.TrimSpace(c.Query("kind")); kind != "" {
			filtered := make([]schema.Relation, 0, len(rels))
			for _, r := range rels {
				if strings.EqualFold(r.Kind.String(), kind) {
					filtered = append(filtered, r)
				}
			}
			rels = filtered
		}
		c.JSON(http.StatusOK, gin.H{
			"revision":      rev.ID,
			"relations":     rels,
			"registrations": registrar.Plan(rels),
		})
	}
}

// DDLHandler serves the generated DDL as one script, or as the phase map
// with ?format=json.
func DDLHandler(cat *Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		rev, ok := current(c, cat)
		if !ok {
			return
		}
		if strings.EqualFold(c.Query("format"), "json") {
			c.JSON(http.StatusOK, gin.H{"revision": rev.ID, "phases": pg.Keys(rev.DDL), "ddl": rev.DDL})
			return
		}
		c.Header("X-Schema-Revision", rev.ID)
		c.String(http.StatusOK, pg.Script(rev.DDL))
	}
}

func HealthHandler(cat *Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		rev := cat.Current()
		if rev == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "revision": rev.ID, "loadedAt": rev.LoadedAt})
	}
}
