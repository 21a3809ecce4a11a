package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// WellKnownHandler serves the OIDC-style discovery endpoints. The service
// signs with a symmetric key that is never published, so the JWKS document
// carries an empty key set; resource servers validate through the token
// introspection surface instead.
type WellKnownHandler struct {
	issuer  string
	baseURL string
}

// NewWellKnownHandler creates a new well-known handler.
func NewWellKnownHandler(issuer, baseURL string) *WellKnownHandler {
	return &WellKnownHandler{
		issuer:  issuer,
		baseURL: baseURL,
	}
}

// JWKS serves the (empty) JSON Web Key Set.
func (h *WellKnownHandler) JWKS(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"keys": []gin.H{},
	})
}

// OpenIDConfiguration serves the discovery document.
func (h *WellKnownHandler) OpenIDConfiguration(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"issuer":                                h.issuer,
		"token_endpoint":                        h.baseURL + "/api/v1/auth/login",
		"jwks_uri":                              h.baseURL + "/.well-known/jwks.json",
		"grant_types_supported":                 []string{"password", "refresh_token"},
		"token_endpoint_auth_methods_supported": []string{"client_secret_post"},
		"id_token_signing_alg_values_supported": []string{"HS256"},
	})
}
