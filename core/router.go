package core

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

// Services are the collaborators the HTTP layer delegates to.
type Services struct {
	Directory *UserDirectory
	Auth      AuthService
	Posts     PostRepository
	Throttle  LoginThrottle
	Checks    map[string]HealthCheck
}

// NewRouter constructs the Gin engine with routes wired.
// Only cfg.TrustedProxies may set the client IP through forwarding headers.
func NewRouter(cfg Config, store sessions.Store, svc Services) (*gin.Engine, error) {
	startedAt := time.Now()
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(gin.Recovery(), RequestIDMiddleware(), AccessLogger())
	r.SetHTMLTemplate(loadTemplates())

	if svc.Throttle == nil {
		svc.Throttle = NewMemoryLoginThrottle(cfg.LoginMaxAttempts, time.Duration(cfg.LoginWindowSeconds)*time.Second)
	}
	authority := NewSessionAuthority(cfg, store, svc.Auth, svc.Directory)
	h := &handlers{cfg: cfg, svc: svc, authority: authority}

	r.GET("/healthz", func(c *gin.Context) {
		st := CollectSystemStatus(c.Request.Context(), svc.Checks, startedAt)
		status := http.StatusOK
		if !st.Healthy() {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, st)
	})

	// Page middleware: origin -> session -> CSRF -> caller
	pages := r.Group("/")
	pages.Use(OriginRefererMiddleware(cfg))
	pages.Use(SessionMiddleware(cfg, store))
	pages.Use(CSRFMiddleware(cfg))
	pages.Use(authority.CallerMiddleware())
	{
		pages.GET("/", h.home)
		pages.GET("/about", withCaller(h.about))

		pages.GET("/register", withCaller(h.registerForm))
		pages.POST("/register", withCaller(h.register))
		pages.GET("/login", withCaller(h.loginForm))
		pages.POST("/login", withCaller(h.login))
		pages.GET("/logout", requireCaller(h.logout))

		pages.GET("/post/new", requireCaller(h.newPostForm))
		pages.POST("/post/new", requireCaller(h.createPost))
		pages.GET("/post/:id", withCaller(h.viewPost))
		pages.GET("/post/:id/edit", requireCaller(h.editPostForm))
		pages.POST("/post/:id/edit", requireCaller(h.updatePost))
		pages.POST("/post/:id/delete", requireCaller(h.deletePost))
		pages.DELETE("/post/:id/delete", requireCaller(h.deletePost))

		pages.GET("/user/:username", h.userPosts)
	}

	r.NoRoute(SessionMiddleware(cfg, store), authority.CallerMiddleware(), func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "page not found")
	})

	return r, nil
}

type handlers struct {
	cfg       Config
	svc       Services
	authority *SessionAuthority
}

func (h *handlers) home(c *gin.Context) {
	posts, err := h.svc.Posts.List(c.Request.Context())
	if err != nil {
		h.internalError(c, "list posts", err)
		return
	}
	render(c, http.StatusOK, "home.html", gin.H{"Posts": posts})
}

func (h *handlers) about(c *gin.Context, _ Caller) {
	render(c, http.StatusOK, "about.html", gin.H{"Title": "About"})
}

func (h *handlers) registerForm(c *gin.Context, caller Caller) {
	if caller.Authenticated() {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	render(c, http.StatusOK, "register.html", gin.H{"Title": "Register", "Form": RegisterForm{}, "Errors": map[string]string{}})
}

func (h *handlers) register(c *gin.Context, caller Caller) {
	if caller.Authenticated() {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	var form RegisterForm
	if err := c.ShouldBind(&form); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid form")
		return
	}

	ctx := c.Request.Context()
	err := form.Validate()
	if err == nil {
		err = form.CheckAvailability(ctx, h.svc.Directory)
	}
	if err == nil {
		_, err = h.svc.Directory.Register(ctx, form.Username, form.Email, form.Password)
		// a concurrent registration may have won the unique index since the check
		err = registrationFieldError(err)
	}
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			form.Password, form.Confirm = "", ""
			render(c, http.StatusBadRequest, "register.html", gin.H{"Title": "Register", "Form": form, "Errors": verr.Fields})
			return
		}
		h.internalError(c, "register", err)
		return
	}

	log.Printf("[%s] registered user %s", requestID(c), form.Username)
	setFlash(c, "Account created for "+form.Username+"! You can now log in.")
	c.Redirect(http.StatusSeeOther, "/login")
}

func (h *handlers) loginForm(c *gin.Context, caller Caller) {
	if caller.Authenticated() {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	h.renderLogin(c, http.StatusOK, LoginForm{}, nil, "")
}

func (h *handlers) login(c *gin.Context, caller Caller) {
	if caller.Authenticated() {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	var form LoginForm
	if err := c.ShouldBind(&form); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid form")
		return
	}

	ctx := c.Request.Context()
	clientKey := c.ClientIP()
	wait, err := h.svc.Throttle.Locked(ctx, clientKey)
	if err != nil {
		h.internalError(c, "login throttle", err)
		return
	}
	if wait > 0 {
		log.Printf("[%s] %v from %s, locked for %s", requestID(c), ErrTooManyAttempts, clientKey, wait.Round(time.Second))
		c.Header("Retry-After", strconv.FormatInt(int64(wait.Seconds())+1, 10))
		h.renderLogin(c, http.StatusTooManyRequests, form, nil, "Too many failed login attempts. Please try again later.")
		return
	}

	if err := form.Validate(); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			h.renderLogin(c, http.StatusBadRequest, form, verr.Fields, "")
			return
		}
	}

	if _, err := h.authority.Login(c, form.Username, form.Password); err != nil {
		if errors.Is(err, ErrAuthentication) {
			if _, ferr := h.svc.Throttle.Fail(ctx, clientKey); ferr != nil {
				log.Printf("[%s] record login failure: %v", requestID(c), ferr)
			}
			h.renderLogin(c, http.StatusUnauthorized, form, nil, "Login unsuccessful. Please check username and password.")
			return
		}
		h.internalError(c, "login", err)
		return
	}
	if err := h.svc.Throttle.Reset(ctx, clientKey); err != nil {
		log.Printf("[%s] reset login throttle: %v", requestID(c), err)
	}

	next := c.PostForm("next")
	if next == "" {
		next = c.Query("next")
	}
	c.Redirect(http.StatusSeeOther, safeNext(next))
}

func (h *handlers) renderLogin(c *gin.Context, status int, form LoginForm, fieldErrs map[string]string, message string) {
	if fieldErrs == nil {
		fieldErrs = map[string]string{}
	}
	form.Password = ""
	next := c.PostForm("next")
	if next == "" {
		next = c.Query("next")
	}
	render(c, status, "login.html", gin.H{
		"Title":   "Login",
		"Form":    form,
		"Errors":  fieldErrs,
		"Message": message,
		"Next":    next,
	})
}

func (h *handlers) logout(c *gin.Context, _ Caller) {
	if err := h.authority.Logout(c); err != nil {
		h.internalError(c, "logout", err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *handlers) viewPost(c *gin.Context, caller Caller) {
	post, ok := h.loadPost(c)
	if !ok {
		return
	}
	render(c, http.StatusOK, "post.html", gin.H{
		"Title":   post.Title,
		"Post":    *post,
		"CanEdit": CanMutate(caller, *post),
	})
}

func (h *handlers) newPostForm(c *gin.Context, _ Caller) {
	h.renderPostForm(c, http.StatusOK, "New Post", "/post/new", PostForm{}, nil)
}

func (h *handlers) createPost(c *gin.Context, caller Caller) {
	var form PostForm
	if err := c.ShouldBind(&form); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid form")
		return
	}
	if err := form.Validate(); err != nil {
		h.renderPostForm(c, http.StatusBadRequest, "New Post", "/post/new", form, err)
		return
	}

	post, err := h.svc.Posts.Create(c.Request.Context(), form.Title, form.Content, caller.ID)
	if err != nil {
		h.internalError(c, "create post", err)
		return
	}
	log.Printf("[%s] user %d created post %d", requestID(c), caller.ID, post.ID)
	setFlash(c, "Your post has been created!")
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *handlers) editPostForm(c *gin.Context, caller Caller) {
	post, ok := h.loadOwnedPost(c, caller)
	if !ok {
		return
	}
	action := "/post/" + strconv.FormatInt(post.ID, 10) + "/edit"
	h.renderPostForm(c, http.StatusOK, "Update Post", action, PostForm{Title: post.Title, Content: post.Content}, nil)
}

func (h *handlers) updatePost(c *gin.Context, caller Caller) {
	post, ok := h.loadOwnedPost(c, caller)
	if !ok {
		return
	}
	var form PostForm
	if err := c.ShouldBind(&form); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid form")
		return
	}
	path := "/post/" + strconv.FormatInt(post.ID, 10)
	if err := form.Validate(); err != nil {
		h.renderPostForm(c, http.StatusBadRequest, "Update Post", path+"/edit", form, err)
		return
	}

	if _, err := h.svc.Posts.Update(c.Request.Context(), post.ID, form.Title, form.Content); err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "post not found")
			return
		}
		h.internalError(c, "update post", err)
		return
	}
	setFlash(c, "Your post has been updated!")
	c.Redirect(http.StatusSeeOther, path)
}

func (h *handlers) deletePost(c *gin.Context, caller Caller) {
	post, ok := h.loadOwnedPost(c, caller)
	if !ok {
		return
	}
	if err := h.svc.Posts.Delete(c.Request.Context(), post.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "post not found")
			return
		}
		h.internalError(c, "delete post", err)
		return
	}
	log.Printf("[%s] user %d deleted post %d", requestID(c), caller.ID, post.ID)
	if c.Request.Method == http.MethodDelete {
		c.Status(http.StatusNoContent)
		return
	}
	setFlash(c, "Your post has been deleted!")
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *handlers) userPosts(c *gin.Context) {
	ctx := c.Request.Context()
	author, err := h.svc.Directory.FindByUsername(ctx, c.Param("username"))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "user not found")
			return
		}
		h.internalError(c, "find user", err)
		return
	}
	posts, err := h.svc.Posts.ListByAuthor(ctx, author.ID)
	if err != nil {
		h.internalError(c, "list user posts", err)
		return
	}
	render(c, http.StatusOK, "user_posts.html", gin.H{
		"Title":  author.Username,
		"Author": PrincipalFromUser(*author),
		"Posts":  posts,
	})
}

func (h *handlers) renderPostForm(c *gin.Context, status int, legend, action string, form PostForm, err error) {
	fieldErrs := map[string]string{}
	var verr *ValidationError
	if errors.As(err, &verr) {
		fieldErrs = verr.Fields
	}
	render(c, status, "create_post.html", gin.H{
		"Title":  legend,
		"Legend": legend,
		"Action": action,
		"Form":   form,
		"Errors": fieldErrs,
	})
}

// loadPost resolves :id or answers 404. Non-numeric ids are simply absent posts.
func (h *handlers) loadPost(c *gin.Context) (*Post, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "post not found")
		return nil, false
	}
	post, err := h.svc.Posts.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "post not found")
			return nil, false
		}
		h.internalError(c, "get post", err)
		return nil, false
	}
	return post, true
}

// loadOwnedPost is loadPost plus the ownership check: 404 before 403.
func (h *handlers) loadOwnedPost(c *gin.Context, caller Caller) (*Post, bool) {
	post, ok := h.loadPost(c)
	if !ok {
		return nil, false
	}
	if err := AuthorizeMutation(caller, *post); err != nil {
		respondError(c, http.StatusForbidden, "FORBIDDEN", "you can only change your own posts")
		return nil, false
	}
	return post, true
}

func (h *handlers) internalError(c *gin.Context, op string, err error) {
	log.Printf("[%s] %s: %v", requestID(c), op, err)
	respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "something went wrong")
}
