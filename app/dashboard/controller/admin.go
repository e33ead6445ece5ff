package controller

import (
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4/json"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// HandleAdminLogin handles admin login
func (c *Controller) HandleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	u, ok := c.Users[in.Username]
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword(u.Hash, []byte(in.Password)); err != nil {
		c.logger(r).Info("admin login rejected", zap.String("user", in.Username))
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := c.IssueSession(w, u); err != nil {
		c.logger(r).Error("unable to sign session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "session error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "1"})
}

// HandleAdminLogout handles admin logout
func (c *Controller) HandleAdminLogout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
	w.WriteHeader(http.StatusNoContent)
}

// HandleCachePurge drops every cached result so the next page load queries again.
func (c *Controller) HandleCachePurge(w http.ResponseWriter, r *http.Request) {
	n, err := c.App.Fetcher.Purge(r.Context())
	if err != nil {
		c.logger(r).Error("cache purge failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	c.logger(r).Info("cache purged", zap.String("by", c.currentUser(r)), zap.Int64("entries", n))
	writeJSON(w, http.StatusOK, map[string]any{"purged": n})
}
