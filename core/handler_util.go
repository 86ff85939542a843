package core

import (
	"embed"
	"html/template"
	"time"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFS embed.FS

// loadTemplates parses the embedded page templates; page names are their file names.
func loadTemplates() *template.Template {
	funcs := template.FuncMap{
		"date": func(t time.Time) string { return t.Format("2006-01-02 15:04") },
		"edited": func(p Post) bool {
			return p.UpdatedAt.Sub(p.CreatedAt) > time.Second
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}

// render writes page with the caller, pending flash and CSRF token merged into data.
func render(c *gin.Context, status int, page string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["Caller"] = CurrentCaller(c)
	data["Flash"] = popFlash(c)
	data["CSRFToken"] = c.GetString(sessionKeyCSRF)
	c.HTML(status, page, data)
}

// respondError sends an error page, or the unified JSON payload {"error": {"code", "message"}}
// to clients that prefer JSON.
func respondError(c *gin.Context, status int, code, message string) {
	if c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON {
		c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
		return
	}
	render(c, status, "error.html", gin.H{"Status": status, "Code": code, "Message": message})
}
