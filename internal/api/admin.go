package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"gql2sql/internal/schema"
)

type reloadReq struct {
	Source string `json:"source"` // schema file or directory under the catalog root; empty = configured source
}

func AdminReloadHandler(cat *Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reloadReq
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}

		// build off-lock; the published revision stays current on failure
		rev, err := cat.Reload(strings.TrimSpace(req.Source), "reload")
		if errors.Is(err, ErrOutsideRoot) {
			c.JSON(http.StatusForbidden, gin.H{"error": ErrOutsideRoot.Error()})
			return
		}
		if err != nil {
			var issues schema.ValidationErrors
			var ve *schema.ValidationError
			switch {
			case errors.As(err, &issues):
			case errors.As(err, &ve):
				issues = schema.ValidationErrors{ve}
			}
			if len(issues) > 0 {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":  "schema has blocking issues",
					"issues": issues,
					"hint":   "fix the schema and retry",
				})
				return
			}
			if schema.IsConfigError(err) {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "configuration error", "details": err.Error()})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "schema load error", "details": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"ok":        true,
			"revision":  rev.ID,
			"source":    rev.Source,
			"entities":  len(rev.Entities),
			"tables":    len(rev.Schema.Tables),
			"relations": len(rev.Schema.Relations),
		})
	}
}
