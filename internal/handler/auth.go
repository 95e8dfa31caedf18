package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tablebook/tablebook/internal/config"
	"github.com/tablebook/tablebook/internal/model"
	"github.com/tablebook/tablebook/internal/repository"
	"github.com/tablebook/tablebook/internal/session"
	"github.com/tablebook/tablebook/internal/utils"
)

// AuthHandler bundles dependencies for session endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Sessions *session.Store
}

func NewAuthHandler(cfg config.Config, s *session.Store) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Sessions: s}
}

// ----- DTOs -----

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type sessionResp struct {
	User  model.User `json:"user"`
	Token tokenPart  `json:"token"`
}
type meResp struct {
	User          *model.User `json:"user"`
	Authenticated bool        `json:"authenticated"`
	DisplayName   string      `json:"displayName"`
}

// Login validates the supplied name and email, starts a session and
// returns the session user together with a signed session token.
func (h *AuthHandler) Login(c echo.Context) error {
	var creds session.Credentials
	if err := c.Bind(&creds); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	u, err := h.Sessions.Login(c.Request().Context(), creds)
	if err != nil {
		var verr *repository.ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Reason})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}
	tok, err := utils.NewSessionToken(h.Cfg.JWTSecret, u.ID, u.Name, h.Cfg.SessionTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	return c.JSON(http.StatusOK, sessionResp{
		User:  u,
		Token: tokenPart{Token: tok.Token, Expires: tok.Exp},
	})
}

// Logout clears the current session.  It always succeeds.
func (h *AuthHandler) Logout(c echo.Context) error {
	h.Sessions.Logout(c.Request().Context())
	return c.NoContent(http.StatusNoContent)
}

// Me returns the current session user, the authenticated flag and the
// display name (the guest fallback when logged out).
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, meResp{
		User:          h.Sessions.Current(),
		Authenticated: h.Sessions.IsAuthenticated(),
		DisplayName:   h.Sessions.DisplayName(),
	})
}

// UpdateMe merges the supplied fields over the session user,
// re-validating touched fields with the login rules.
func (h *AuthHandler) UpdateMe(c echo.Context) error {
	if !h.Sessions.IsAuthenticated() {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "no active session"})
	}
	var patch session.UserPatch
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	u, err := h.Sessions.UpdateUser(c.Request().Context(), patch)
	if err != nil {
		var verr *repository.ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Reason})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, u)
}
