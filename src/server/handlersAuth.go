package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"labeladmin/src/auth"
	"labeladmin/src/session"
)

const (
	gateContextKey  = "gate"
	clientCookieAge = 365 * 24 * 60 * 60

	msgCredentialsRequired = "Username and password are required"
	msgLoginSuccessful     = "Login successful"
	msgInvalidCredentials  = "Invalid username or password"
	msgServerError         = "Server error. Please try again."
	msgInvalidJSON         = "Invalid JSON"
)

type (
	// AuthHandler owns the credential check and the per-browser session flag.
	// A browser is identified by a random client id cookie; all of its tabs
	// share that cookie and therefore one flag.
	AuthHandler struct {
		verifier   auth.Verifier
		sessions   session.Store
		cookieName string
		logger     *zap.Logger
	}

	LoginBody struct {
		Username string `json:"username" form:"username"`
		Password string `json:"password" form:"password"`
	}

	loginView struct {
		Brand    string
		Username string
		Error    string
	}
)

func NewAuthHandler(verifier auth.Verifier, sessions session.Store, cookieName string, logger *zap.Logger) *AuthHandler {
	if cookieName == "" {
		cookieName = "labeladmin_client"
	}
	return &AuthHandler{
		verifier:   verifier,
		sessions:   sessions,
		cookieName: cookieName,
		logger:     logger,
	}
}

// clientID returns the browser's id, issuing a new cookie when it has none.
func (a *AuthHandler) clientID(c *gin.Context) string {
	if id, err := c.Cookie(a.cookieName); err == nil {
		if _, err := uuid.Parse(id); err == nil {
			return id
		}
	}
	id := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(a.cookieName, id, clientCookieAge, "/", "", c.Request.TLS != nil, true)
	return id
}

func (a *AuthHandler) gate(c *gin.Context) *session.Gate {
	if g, ok := c.Get(gateContextKey); ok {
		return g.(*session.Gate)
	}
	g := session.NewGate(a.sessions, a.clientID(c))
	c.Set(gateContextKey, g)
	return g
}

// Gate runs the session check for the requested page and redirects when the
// page may not be rendered.
func (a *AuthHandler) Gate(c *gin.Context) {
	g := a.gate(c)
	d, err := g.Check(c.Request.Context(), c.Request.URL.Path)
	if err != nil {
		a.logger.Warn("session check failed", zap.Error(err))
	}
	if d.Redirect != "" {
		c.Redirect(http.StatusSeeOther, d.Redirect)
		c.Abort()
		return
	}
	c.Next()
}

// verify maps a credential check onto status code and message.
func (a *AuthHandler) verify(c *gin.Context, body LoginBody) (int, string) {
	if body.Username == "" || body.Password == "" {
		return http.StatusBadRequest, msgCredentialsRequired
	}
	err := a.verifier.Verify(c.Request.Context(), body.Username, body.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		a.logger.Info("login rejected", zap.String("username", body.Username))
		return http.StatusUnauthorized, msgInvalidCredentials
	case err != nil:
		a.logger.Error("login failed", zap.Error(err))
		return http.StatusInternalServerError, msgServerError
	}
	if err := a.gate(c).Login(c.Request.Context()); err != nil {
		a.logger.Error("store session flag", zap.Error(err))
		return http.StatusInternalServerError, msgServerError
	}
	return http.StatusOK, msgLoginSuccessful
}

// Login is the JSON credential endpoint.
func (a *AuthHandler) Login(c *gin.Context) {
	var body LoginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msgInvalidJSON})
		return
	}
	status, msg := a.verify(c, body)
	if status != http.StatusOK {
		c.JSON(status, gin.H{"success": false, "error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}

func (a *AuthHandler) LoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.tmpl", loginView{Brand: brandOf(c)})
}

func (a *AuthHandler) LoginForm(c *gin.Context) {
	body := LoginBody{
		Username: c.PostForm("username"),
		Password: c.PostForm("password"),
	}
	status, msg := a.verify(c, body)
	if status != http.StatusOK {
		c.HTML(status, "login.tmpl", loginView{Brand: brandOf(c), Username: strings.TrimSpace(body.Username), Error: msg})
		return
	}
	c.Redirect(http.StatusSeeOther, session.HomeRoute)
}

func (a *AuthHandler) Logout(c *gin.Context) {
	if err := a.gate(c).Logout(c.Request.Context()); err != nil {
		a.logger.Error("clear session flag", zap.Error(err))
		c.String(http.StatusInternalServerError, msgServerError)
		return
	}
	c.Redirect(http.StatusSeeOther, session.LoginRoute)
}

// Events streams the gate decision for the page named by the route query
// parameter: once as "ready", then as "change" whenever this browser's flag
// is set or cleared.
func (a *AuthHandler) Events(c *gin.Context) {
	ctx := c.Request.Context()
	g := a.gate(c)
	route := c.DefaultQuery("route", session.HomeRoute)

	decisions := make(chan session.Decision)
	go func() {
		err := g.Watch(ctx, func() string { return route }, func(d session.Decision) {
			select {
			case decisions <- d:
			case <-ctx.Done():
			}
		})
		if err != nil && !errors.Is(err, ctx.Err()) {
			a.logger.Warn("session watch ended", zap.Error(err))
		}
		close(decisions)
	}()

	initial, err := g.Check(ctx, route)
	if err != nil {
		a.logger.Warn("session check failed", zap.Error(err))
	}
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"state": initial.State.String(), "redirect": initial.Redirect})
	c.Writer.Flush()

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()
	c.Stream(func(w io.Writer) bool {
		select {
		case d, ok := <-decisions:
			if !ok {
				return false
			}
			c.SSEvent("change", gin.H{"state": d.State.String(), "redirect": d.Redirect})
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", "")
			return true
		case <-ctx.Done():
			return false
		}
	})
	for range decisions {
	}
}
