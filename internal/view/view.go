// Package view renders the HTML pages of the site.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/samber/oops"

	"coursehub/internal/entity"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names.
const (
	PageIndex         = "index"
	PageLogin         = "login"
	PageRegister      = "register"
	PageStudentIndex  = "student_index"
	PageStudentFind   = "student_find"
	PageTeacherIndex  = "teacher_index"
	PageTeacherCreate = "teacher_create"
	PageError         = "error"
)

var pageNames = []string{
	PageIndex, PageLogin, PageRegister,
	PageStudentIndex, PageStudentFind,
	PageTeacherIndex, PageTeacherCreate,
	PageError,
}

// Page is the data every template receives.
type Page struct {
	Title   string
	User    *entity.Identity
	Notices []string
	Errors  []string
	Data    any
}

// ErrorData is the Data of the error page.
type ErrorData struct {
	Status  int
	Message string
}

type Renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"price": func(p float64) string { return formatPrice(p) },
}

func New() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, oops.Code("TEMPLATE_PARSE_FAILED").With("page", name).Wrap(err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// Render executes the page into a buffer and writes it with status. Nothing
// is written when the template fails.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, p Page) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return oops.Code("TEMPLATE_NOT_FOUND").With("page", name).Errorf("unknown page %q", name)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", p); err != nil {
		return oops.Code("TEMPLATE_EXEC_FAILED").With("page", name).Wrap(err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// RenderError renders the generic error page.
func (r *Renderer) RenderError(w http.ResponseWriter, status int, user *entity.Identity, message string) error {
	return r.Render(w, status, PageError, Page{
		Title: http.StatusText(status),
		User:  user,
		Data:  ErrorData{Status: status, Message: message},
	})
}

func formatPrice(p float64) string {
	if p == 0 {
		return "Free"
	}
	return fmt.Sprintf("$%.2f", p)
}
