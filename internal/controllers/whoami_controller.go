package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/osvaldoandrade/tokengate/internal/middleware"
)

type whoAmIController struct{}

func NewWhoAmIController() *whoAmIController {
	return &whoAmIController{}
}

func (h *whoAmIController) Handle(c *gin.Context) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		middleware.GetLogger(c).Warn("whoami reached without an authenticated principal")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"userId":    p.UserID,
		"claimType": p.ClaimType,
	})
}
