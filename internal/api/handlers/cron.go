package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// PostCron runs one maintenance pass: expired-key sweep, log backlog
// trim, run-counter bump. The endpoint exists for external schedulers;
// the same runner can also tick internally.
func (h *Handler) PostCron(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	report, err := h.maint.Run(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "maintenance failed: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, report)
}
