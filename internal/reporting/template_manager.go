package reporting

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/template"

	"github.com/bl4ck0w1/subprobe/pkg/models"
)

// Plain-text layouts, one per result kind. Every line is either a result
// or a '#' comment, so the output can be fed back in as a host list.
const (
	enumerationTXT = `# subprobe enumerate {{.Domain}} ({{.Summary.ResolvedCount}}/{{.Summary.TotalCandidates}} resolved, {{.Summary.LiveCount}} live)
{{range .Subdomains}}{{.Host}}
{{end}}`

	passiveTXT = `# subprobe passive {{.Domain}} ({{.Count}} names){{if .Error}}
# error: {{.Error}}{{end}}
{{range .Subdomains}}{{.}}
{{end}}`

	probeTXT = `# subprobe probe ({{.Summary.LiveCount}}/{{.Summary.TotalCandidates}} live)
{{range .Live}}{{.URL}} [{{.StatusCode}}]
{{end}}`

	validationTXT = `# subprobe validate ({{.Summary.LiveCount}} live, {{.Summary.DNSOnlyCount}} dns-only of {{.Summary.TotalSubdomains}})
{{range .LiveWebServices}}{{.URL}} [{{.StatusCode}}] {{join .Addresses ","}}
{{end}}{{if .DNSOnly}}# dns-only
{{range .DNSOnly}}{{.Host}} {{join .Addresses ","}}
{{end}}{{end}}`
)

var templateFuncs = template.FuncMap{
	"join": strings.Join,
}

type TemplateManager struct {
	templates map[string]*template.Template
	mu        sync.RWMutex
}

func NewTemplateManager() *TemplateManager {
	return &TemplateManager{
		templates: make(map[string]*template.Template),
	}
}

func (tm *TemplateManager) Register(name, tpl string) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	parsed, err := template.New(name).Funcs(templateFuncs).Parse(tpl)
	if err != nil {
		return fmt.Errorf("parse %q: %w", name, err)
	}
	tm.templates[name] = parsed
	return nil
}

func (tm *TemplateManager) Get(name string) (*template.Template, bool) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	t, ok := tm.templates[name]
	return t, ok
}

func (tm *TemplateManager) Render(w io.Writer, name string, data any) error {
	t, ok := tm.Get(name)
	if !ok {
		return fmt.Errorf("template not found: %s", name)
	}
	return t.Execute(w, data)
}

func (tm *TemplateManager) registerDefaults() error {
	defaults := map[string]string{
		kindTemplate(models.ReportKindEnumeration): enumerationTXT,
		kindTemplate(models.ReportKindPassive):     passiveTXT,
		kindTemplate(models.ReportKindProbe):       probeTXT,
		kindTemplate(models.ReportKindValidation):  validationTXT,
	}
	for name, tpl := range defaults {
		if err := tm.Register(name, tpl); err != nil {
			return err
		}
	}
	return nil
}

func kindTemplate(kind string) string {
	return kind + ".txt.tmpl"
}
