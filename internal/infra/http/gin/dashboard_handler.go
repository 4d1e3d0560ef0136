package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	dashboardsvc "stayfinder/internal/app/services/dashboard"
	domainlisting "stayfinder/internal/domain/listing"
)

type DashboardHandler struct {
	Service *dashboardsvc.Service
	Logger  *slog.Logger
}

func (h DashboardHandler) Stats(c *gin.Context) {
	p, ok := requireUser(c)
	if !ok {
		return
	}
	stats, err := h.Service.Stats(c.Request.Context(), domainlisting.HostID(p.ID))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

var _ DashboardHTTP = (*DashboardHandler)(nil)
