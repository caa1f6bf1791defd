package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"strings"

	"github.com/gin-gonic/gin/render"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Page template names. Each lives in templates/<name>.html and defines
// "content".
const (
	PageHome     = "home"
	PageVision   = "vision"
	PageStudio   = "studio"
	PageAcademy  = "academy"
	PageNetwork  = "network"
	PageContact  = "contact"
	PagePrivacy  = "privacy"
	PageTerms    = "terms"
	PageNotFound = "not_found"
)

var pages = []string{
	PageHome,
	PageVision,
	PageStudio,
	PageAcademy,
	PageNetwork,
	PageContact,
	PagePrivacy,
	PageTerms,
	PageNotFound,
}

var shared = []string{"templates/layout.html", "templates/partials.html"}

// Static returns the embedded assets rooted at static/.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Renderer is a gin HTMLRender holding one template set per page, each
// made of the layout, the partials and the page itself.
type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	base, err := template.New("").Funcs(Funcs()).ParseFS(templateFS, shared...)
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Instance implements render.HTMLRender. Unknown pages render the
// not-found template.
func (r *Renderer) Instance(name string, data any) render.Render {
	t, ok := r.pages[name]
	if !ok {
		t = r.pages[PageNotFound]
	}
	return render.HTML{Template: t, Name: "layout", Data: data}
}

func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

// Funcs are the helpers available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"stars": func(rating float64) string {
			n := int(rating + 0.5)
			if n < 0 {
				n = 0
			}
			if n > 5 {
				n = 5
			}
			return strings.Repeat("★", n) + strings.Repeat("☆", 5-n)
		},
		"upper": strings.ToUpper,
		"active": func(current, page string) string {
			if current == page {
				return "active"
			}
			return ""
		},
	}
}
