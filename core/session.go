package core

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

const (
	sessionName = "blog_session"

	sessionKeyUserID   = "uid"
	sessionKeyIssuedAt = "issued_at"
	sessionKeyCSRF     = "csrf_token"
	sessionKeyFlash    = "flash"

	contextSessionKey = "session"
	contextCallerKey  = "caller"
)

// sessionRevoker is implemented by stores that keep server-side state per session ID.
type sessionRevoker interface {
	Revoke(ctx context.Context, session *sessions.Session) error
}

// SessionAuthority binds a request's session to an authenticated user.
type SessionAuthority struct {
	cfg   Config
	store sessions.Store
	auth  AuthService
	dir   *UserDirectory
	now   func() time.Time
}

func NewSessionAuthority(cfg Config, store sessions.Store, auth AuthService, dir *UserDirectory) *SessionAuthority {
	return &SessionAuthority{cfg: cfg, store: store, auth: auth, dir: dir, now: time.Now}
}

// Login verifies credentials and binds the session to the user.
// Any failure to match credentials is ErrAuthentication, whatever the cause.
func (a *SessionAuthority) Login(c *gin.Context, username, password string) (Caller, error) {
	caller, err := a.auth.Authenticate(c.Request.Context(), username, password)
	if err != nil {
		return Anonymous, err
	}

	sess := sessionFrom(c)
	if sess == nil {
		return Anonymous, errors.New("no session in context")
	}
	if r, ok := a.store.(sessionRevoker); ok {
		if err := r.Revoke(c.Request.Context(), sess); err != nil {
			log.Printf("[%s] revoke session before login: %v", requestID(c), err)
		}
	}

	// reset session values (rotation)
	sess.Values = map[interface{}]interface{}{}
	sess.Values[sessionKeyUserID] = caller.ID
	sess.Values[sessionKeyIssuedAt] = a.now().Unix()
	applySessionOptions(a.cfg, sess)
	if err := sess.Save(c.Request, c.Writer); err != nil {
		return Anonymous, err
	}

	c.Set(contextCallerKey, caller)
	return caller, nil
}

// Logout clears the binding and expires the cookie. Safe to call when anonymous.
func (a *SessionAuthority) Logout(c *gin.Context) error {
	sess := sessionFrom(c)
	if sess == nil {
		return nil
	}
	sess.Values = map[interface{}]interface{}{}
	applySessionOptions(a.cfg, sess)
	sess.Options.MaxAge = -1 // Must be set AFTER applySessionOptions to properly delete cookie
	if err := sess.Save(c.Request, c.Writer); err != nil {
		return err
	}
	c.Set(contextCallerKey, Anonymous)
	return nil
}

// Resolve maps the request's session to a caller without modifying it.
// Sessions older than the configured lifetime and sessions of deleted users resolve to Anonymous.
func (a *SessionAuthority) Resolve(c *gin.Context) (Caller, error) {
	sess := sessionFrom(c)
	if sess == nil {
		return Anonymous, nil
	}
	uid := readInt64(sess.Values[sessionKeyUserID])
	if uid <= 0 {
		return Anonymous, nil
	}
	issuedAt := readInt64(sess.Values[sessionKeyIssuedAt])
	lifetime := time.Duration(a.cfg.SessionMaxAgeSeconds) * time.Second
	if issuedAt <= 0 || a.now().Sub(time.Unix(issuedAt, 0)) > lifetime {
		return Anonymous, nil
	}

	u, err := a.dir.FindByID(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Anonymous, nil
		}
		return Anonymous, err
	}
	return PrincipalFromUser(*u), nil
}

// CallerMiddleware resolves the caller once per request and stores it on the gin context.
func (a *SessionAuthority) CallerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, err := a.Resolve(c)
		if err != nil {
			log.Printf("[%s] resolve caller: %v", requestID(c), err)
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "session error")
			c.Abort()
			return
		}
		c.Set(contextCallerKey, caller)
		c.Next()
	}
}

// CurrentCaller returns the caller resolved by CallerMiddleware, or Anonymous.
func CurrentCaller(c *gin.Context) Caller {
	v, ok := c.Get(contextCallerKey)
	if !ok {
		return Anonymous
	}
	caller, _ := v.(Caller)
	return caller
}

// callerHandler is a handler that needs the caller passed to it explicitly.
type callerHandler func(c *gin.Context, caller Caller)

// withCaller passes the resolved caller, anonymous or not.
func withCaller(h callerHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		h(c, CurrentCaller(c))
	}
}

// requireCaller redirects anonymous callers to the login page. Only GET targets are
// remembered as next, since the post-login redirect is itself a GET.
func requireCaller(h callerHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := CurrentCaller(c)
		if !caller.Authenticated() {
			next := ""
			if c.Request.Method == http.MethodGet {
				next = c.Request.URL.RequestURI()
			}
			c.Redirect(http.StatusSeeOther, loginURL(next))
			c.Abort()
			return
		}
		h(c, caller)
	}
}

func loginURL(next string) string {
	if next == "" || next == "/" {
		return "/login"
	}
	return "/login?next=" + url.QueryEscape(next)
}

// safeNext only allows local absolute paths as post-login targets.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	if u, err := url.Parse(next); err != nil || u.Host != "" || u.Scheme != "" {
		return "/"
	}
	return next
}

func sessionFrom(c *gin.Context) *sessions.Session {
	v, ok := c.Get(contextSessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*sessions.Session)
	return sess
}

// setFlash stores a one-shot message shown on the next rendered page.
func setFlash(c *gin.Context, msg string) {
	sess := sessionFrom(c)
	if sess == nil {
		return
	}
	sess.Values[sessionKeyFlash] = msg
	if err := sess.Save(c.Request, c.Writer); err != nil {
		log.Printf("[%s] save flash: %v", requestID(c), err)
	}
}

// popFlash returns and clears the pending flash message.
func popFlash(c *gin.Context) string {
	sess := sessionFrom(c)
	if sess == nil {
		return ""
	}
	msg, _ := sess.Values[sessionKeyFlash].(string)
	if msg == "" {
		return ""
	}
	delete(sess.Values, sessionKeyFlash)
	if err := sess.Save(c.Request, c.Writer); err != nil {
		log.Printf("[%s] clear flash: %v", requestID(c), err)
	}
	return msg
}

func readInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}
