package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pfm/internal/core"
)

// page is what every full page template receives.
type page struct {
	Title   string
	Active  string
	Session *core.Identity
	Error   string
	Data    any
}

// renderer holds one template set per page. Each set is the layout and the
// shared partials plus the page's own "content" definition.
type renderer struct {
	base  *template.Template
	pages map[string]*template.Template
}

func templateFuncs(assetBase string) template.FuncMap {
	assetBase = strings.TrimRight(assetBase, "/")
	return template.FuncMap{
		"money": func(d decimal.Decimal) string { return core.FormatAmount(d) },
		"date": func(s string) string {
			t, err := core.ParseDate(s)
			if err != nil {
				return s
			}
			return t.Format("02 Jan 2006")
		},
		"inputDate": func(s string) string {
			if s == "" {
				return time.Now().Format("2006-01-02")
			}
			t, err := core.ParseDate(s)
			if err != nil {
				return ""
			}
			return t.Format("2006-01-02")
		},
		"stamp": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Local().Format("2006-01-02 15:04")
		},
		"asset": func(p string) string { return assetURL(assetBase, p) },
		"deleted": func(f core.DeletedFlag) bool { return f.IsDeleted() },
		"lower": func(v any) string { return strings.ToLower(fmt.Sprint(v)) },
	}
}

// assetURL resolves a path the upload endpoints returned against the API's
// public origin. Absolute URLs pass through.
func assetURL(base, p string) string {
	if p == "" {
		return ""
	}
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	return base + "/" + strings.TrimLeft(p, "/")
}

func newRenderer(fsys fs.FS, assetBase string) (*renderer, error) {
	base, err := template.New("").Funcs(templateFuncs(assetBase)).ParseFS(fsys, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout and partials: %w", err)
	}

	files, err := fs.Glob(fsys, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no page templates found")
	}

	r := &renderer{base: base, pages: make(map[string]*template.Template, len(files))}
	for _, file := range files {
		set, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := set.ParseFS(fsys, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		r.pages[strings.TrimSuffix(path.Base(file), ".html")] = set
	}
	return r, nil
}

// page renders a full page into a buffer so a template error never leaves a
// half written response behind.
func (r *renderer) page(name string, data page) ([]byte, error) {
	set, ok := r.pages[name]
	if !ok {
		return nil, fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := set.ExecuteTemplate(&buf, "layout", data); err != nil {
		return nil, fmt.Errorf("render page %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// partial renders one shared fragment, e.g. a table row.
func (r *renderer) partial(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.base.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
