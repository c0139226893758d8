package http

import (
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"

	"github.com/layer-3/wallet2fa/core"
	"github.com/layer-3/wallet2fa/service"
)

const (
	APIVersion  = "1.0.0"
	serviceName = "Wallet2FA Backend"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
	clock       clock.Clock
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, clk clock.Clock) *AuthHandlers {
	if clk == nil {
		clk = clock.New()
	}
	return &AuthHandlers{
		authService: authService,
		clock:       clk,
	}
}

type nonceRequest struct {
	Address string `json:"address"`
}

type verifyRequest struct {
	Message   string `json:"message"`
	Signature string `json:"signature"`
	Address   string `json:"address"`
}

type verifyResponse struct {
	Success      bool              `json:"success"`
	Token        string            `json:"token"`
	Address      string            `json:"address"`
	ExpiresAt    time.Time         `json:"expiresAt"`
	ProofSummary core.ProofSummary `json:"proofSummary"`
	Message      string            `json:"message"`
	Degraded     bool              `json:"degraded,omitempty"`
}

type profileResponse struct {
	Address       string                       `json:"address"`
	Authenticated bool                         `json:"authenticated"`
	TotalLogins   int                          `json:"totalLogins"`
	LastLogin     *time.Time                   `json:"lastLogin"`
	RecentLogins  []*core.AuthenticationRecord `json:"recentLogins"`
}

// Nonce issues a challenge nonce for the posted address
func (h *AuthHandlers) Nonce(c *gin.Context) {
	var req nonceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidRequest})
		return
	}

	nonce, err := h.authService.RequestNonce(c.Request.Context(), req.Address)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

// Verify checks a signed challenge and returns a session token
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msgInvalidRequest})
		return
	}

	res, err := h.authService.Verify(c.Request.Context(), service.VerifyRequest{
		Message:   req.Message,
		Signature: req.Signature,
		Address:   req.Address,
	})
	if err != nil {
		writeVerifyError(c, err)
		return
	}

	c.JSON(http.StatusOK, verifyResponse{
		Success:      true,
		Token:        res.Token,
		Address:      res.Address,
		ExpiresAt:    res.ExpiresAt,
		ProofSummary: res.ProofSummary,
		Message:      "Authentication successful",
		Degraded:     res.Degraded,
	})
}

// Profile returns the caller's recent sign-in history
func (h *AuthHandlers) Profile(c *gin.Context) {
	profile, err := h.authService.Profile(c.Request.Context(), c.GetString(userAddressKey))
	if err != nil {
		writeError(c, err)
		return
	}

	recent := profile.RecentLogins
	if recent == nil {
		recent = []*core.AuthenticationRecord{}
	}

	c.JSON(http.StatusOK, profileResponse{
		Address:       profile.Address,
		Authenticated: profile.Authenticated,
		TotalLogins:   profile.TotalLogins,
		LastLogin:     profile.LastLogin,
		RecentLogins:  recent,
	})
}

// Milestone returns the caller's login milestone metadata
func (h *AuthHandlers) Milestone(c *gin.Context) {
	metadata, err := h.authService.Milestone(c.Request.Context(), c.GetString(userAddressKey))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, metadata)
}

// VerifyProof runs the structural check on a posted proof artifact
func (h *AuthHandlers) VerifyProof(c *gin.Context) {
	var artifact core.ProofArtifact
	if err := c.ShouldBindJSON(&artifact); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidRequest})
		return
	}

	c.JSON(http.StatusOK, h.authService.VerifyProof(&artifact))
}

func (h *AuthHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": h.clock.Now().UnixMilli(),
		"service":   serviceName,
	})
}

func (h *AuthHandlers) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Wallet2FA API",
		"version": APIVersion,
		"endpoints": []string{
			"POST /auth/nonce",
			"POST /auth/verify",
			"GET /user/profile",
			"GET /user/milestone",
			"POST /proof/verify",
			"GET /health",
		},
	})
}

func (h *AuthHandlers) NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Route " + c.Request.URL.Path + " not found"})
}
