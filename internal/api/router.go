// api/router.go
package api

import (
	"github.com/gin-gonic/gin"

	"gql2sql/internal/metrics"
)

// NewRouter wires the metadata API. /metrics is mounted when m is set.
func NewRouter(cat *Catalog, m *metrics.Metrics) *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", HealthHandler(cat))
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/meta", MetaListHandler(cat))
		apiGroup.GET("/meta/:table", MetaTableHandler(cat))
		apiGroup.GET("/relations", RelationsHandler(cat))
		apiGroup.GET("/ddl", DDLHandler(cat))
		apiGroup.POST("/admin/reload", AdminReloadHandler(cat))
	}
	return r
}

// RunServer serves the API on addr until the listener fails.
func RunServer(addr string, cat *Catalog, m *metrics.Metrics) error {
	return NewRouter(cat, m).Run(addr)
}
