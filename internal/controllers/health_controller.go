package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/osvaldoandrade/tokengate/pkg/auth/certs"
)

type healthController struct {
	cache *certs.Cache
	now   func() time.Time
}

func NewHealthController(cache *certs.Cache) *healthController {
	return &healthController{cache: cache, now: time.Now}
}

// Live always succeeds while the process serves HTTP.
func (h *healthController) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports 503 until the first certificate refresh has succeeded.
func (h *healthController) Ready(c *gin.Context) {
	set, ok := h.cache.Current()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "keys_unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"certificates":       set.Len(),
		"fetchedAt":          set.FetchedAt().UTC().Format(time.RFC3339),
		"snapshotAgeSeconds": int64(h.now().Sub(set.FetchedAt()).Seconds()),
	})
}
