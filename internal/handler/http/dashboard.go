package httphandler

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"

	_ "embed"

	"github.com/jgivc/mirrord/internal/entity"
	"github.com/spf13/afero"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"go.abhg.dev/goldmark/frontmatter"
)

const defaultDashboardTitle = "mirrord"

//go:embed templates/dashboard.html
var dashboardTemplateContent string

type MirrorLister interface {
	All() []*entity.Mirror
}

type dashboardContext struct {
	Title       string
	ContentHTML template.HTML
	Mirrors     []mirrorRow
}

type mirrorRow struct {
	*entity.Mirror
	Status *entity.SyncStatus
}

type descFrontmatter struct {
	Title string `yaml:"title"`
}

// NewDashboardHandler renders an operator overview page: an optional
// markdown description (frontmatter title honored) followed by the mirror
// table with last sync outcomes.
func NewDashboardHandler(reg MirrorLister, provider StatusProvider, fs afero.Fs, descFileName string, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "DashboardHandler"))

	tmpl := template.Must(template.New("dashboard").Parse(dashboardTemplateContent))
	md := goldmark.New(
		goldmark.WithExtensions(&frontmatter.Extender{}),
	)

	return func(w http.ResponseWriter, r *http.Request) {
		dc := dashboardContext{Title: defaultDashboardTitle}

		if descFileName != "" {
			title, content, err := renderDescription(md, fs, descFileName)
			if err != nil {
				log.Error("Cannot render description", slog.String("path", descFileName), slog.Any("error", err))
			} else {
				dc.ContentHTML = content
				if title != "" {
					dc.Title = title
				}
			}
		}

		for _, mirror := range reg.All() {
			row := mirrorRow{Mirror: mirror}
			if status, err := provider.Get(r.Context(), mirror.Name); err == nil {
				row.Status = status
			}

			dc.Mirrors = append(dc.Mirrors, row)
		}

		buf := bytes.Buffer{}
		if err := tmpl.Execute(&buf, &dc); err != nil {
			log.Error("Cannot build dashboard page", slog.Any("error", err))
			http.Error(w, "Cannot build page", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(buf.Bytes())
	}
}

func renderDescription(md goldmark.Markdown, fs afero.Fs, fileName string) (string, template.HTML, error) {
	src, err := afero.ReadFile(fs, fileName)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	pc := parser.NewContext()

	if err := md.Convert(src, &buf, parser.WithContext(pc)); err != nil {
		return "", "", err
	}

	var fm descFrontmatter
	if data := frontmatter.Get(pc); data != nil {
		if err := data.Decode(&fm); err != nil {
			return "", "", err
		}
	}

	return fm.Title, template.HTML(buf.String()), nil
}
