package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Regdarim/arni-worker/internal/proxy"
)

// PostProxy forwards a caller-described request upstream and returns
// the decoded response. The proxy needs no store; it works even when
// the collaborator is unbound.
func (h *Handler) PostProxy(c *gin.Context) {
	var req proxy.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid JSON body")
		return
	}
	if req.URL == "" {
		respondBadRequest(c, "url is required")
		return
	}

	resp, err := h.proxy.Do(c.Request.Context(), req)
	if err != nil {
		respondError(c, http.StatusBadGateway, err.Error())
		return
	}
	c.JSON(http.StatusOK, resp)
}
