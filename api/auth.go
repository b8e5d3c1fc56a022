package api

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/jdamiba/sandstone-project/common"
)

// Principal is the authenticated caller extracted from the JWT.
type Principal struct {
	UserID   string
	Username string
}

// principal reads the verified token placed in the context by the jwt
// middleware. A missing or malformed subject is an auth failure, not a
// server error.
func principal(c echo.Context) (Principal, error) {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok || token == nil {
		return Principal{}, common.Unauthorized("authentication required")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, common.Unauthorized("invalid token claims")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Principal{}, common.Unauthorized("token has no subject")
	}

	name, _ := claims["name"].(string)
	return Principal{UserID: sub, Username: name}, nil
}

type TokenRequest struct {
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// GenerateToken mints a development token. The route is only mounted
// when security.allow_token_mint is set; production deployments get
// tokens from the external identity provider.
func (h *Handlers) GenerateToken(c echo.Context) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		return common.BadRequest("invalid request body")
	}
	if req.UserID == "" {
		return common.BadRequest("user_id is required")
	}

	token, err := h.JWT.GenerateToken(req.UserID, req.Username, 24*time.Hour)
	if err != nil {
		return common.Internal("failed to generate token")
	}

	return c.JSON(http.StatusOK, TokenResponse{Token: token})
}
