package core

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

const (
	csrfHeader    = "X-CSRF-Token"
	csrfFormField = "csrf_token"
)

func abortWith(c *gin.Context, status int, code, message string) {
	respondError(c, status, code, message)
	c.Abort()
}

// SessionMiddleware puts the request's session on the context.
// A cookie that no longer verifies (key rotation, tampering) starts a fresh session.
func SessionMiddleware(cfg Config, store sessions.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := store.Get(c.Request, sessionName)
		switch {
		case err != nil && session == nil:
			abortWith(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "session error")
			return
		case err != nil:
			log.Printf("[%s] discarding unreadable session: %v", requestID(c), err)
			session.Values = map[interface{}]interface{}{}
		}
		applySessionOptions(cfg, session)
		c.Set(contextSessionKey, session)
		c.Next()
	}
}

// OriginRefererMiddleware rejects unsafe requests whose Origin (or Referer) is
// neither the request host nor listed in cfg.AllowedOrigins.
func OriginRefererMiddleware(cfg Config) gin.HandlerFunc {
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.ToLower(strings.TrimRight(o, "/"))] = true
	}

	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}
		origin := requestOrigin(c.Request)
		if origin != "" && !allowed[origin] && !sameHost(origin, c.Request.Host) {
			abortWith(c, http.StatusForbidden, "FORBIDDEN", "origin not allowed")
			return
		}
		c.Next()
	}
}

// requestOrigin is the lower-cased Origin header, falling back to the Referer's scheme and host.
// Empty means the browser sent neither.
func requestOrigin(r *http.Request) string {
	if o := r.Header.Get("Origin"); o != "" {
		return strings.ToLower(o)
	}
	ref := r.Header.Get("Referer")
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return "invalid"
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

func sameHost(origin, host string) bool {
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, host)
}

// CSRFMiddleware keeps one token per session and demands it back on unsafe requests,
// either in the csrf_token form field or the X-CSRF-Token header.
func CSRFMiddleware(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessionFrom(c)
		if session == nil {
			abortWith(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "session error")
			return
		}
		token, err := ensureCSRFToken(cfg, c, session)
		if err != nil {
			log.Printf("[%s] issue csrf token: %v", requestID(c), err)
			abortWith(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to issue csrf token")
			return
		}

		if !isSafeMethod(c.Request.Method) && !csrfExemptPath(c.Request.URL.Path) {
			sent := submittedCSRFToken(c)
			if sent == "" || subtle.ConstantTimeCompare([]byte(sent), []byte(token)) != 1 {
				abortWith(c, http.StatusForbidden, "FORBIDDEN", "invalid csrf token")
				return
			}
		}

		c.Set(sessionKeyCSRF, token)
		c.Header(csrfHeader, token)
		c.Next()
	}
}

func ensureCSRFToken(cfg Config, c *gin.Context, session *sessions.Session) (string, error) {
	if token, _ := session.Values[sessionKeyCSRF].(string); token != "" {
		return token, nil
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(b)
	session.Values[sessionKeyCSRF] = token
	applySessionOptions(cfg, session)
	return token, session.Save(c.Request, c.Writer)
}

func submittedCSRFToken(c *gin.Context) string {
	if v := c.GetHeader(csrfHeader); v != "" {
		return v
	}
	return c.PostForm(csrfFormField)
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead ||
		method == http.MethodOptions || method == http.MethodTrace
}

// Nothing is bound to the session before these succeed.
func csrfExemptPath(path string) bool {
	return path == "/login" || path == "/register"
}

func applySessionOptions(cfg Config, session *sessions.Session) {
	opts := session.Options
	if opts == nil {
		opts = &sessions.Options{}
		session.Options = opts
	}
	opts.Path = "/"
	opts.MaxAge = cfg.SessionMaxAgeSeconds
	opts.HttpOnly = true
	opts.Secure = cfg.CookieSecure
	opts.SameSite = sameSiteFromString(cfg.CookieSameSite)
}

// sameSiteFromString maps COOKIE_SAMESITE; anything unrecognised is Lax.
func sameSiteFromString(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}
