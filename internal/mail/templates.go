package mail

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yml
var catalogYAML []byte

const footer = "\n--\nThis is an automated email from BookSwap. Please do not reply to this email.\n"

// Data is the template context shared by every kind.
type Data struct {
	OwnerName      string
	BorrowerName   string
	BookTitle      string
	BookAuthor     string
	RequestMessage string
	DueDate        string
	DaysRemaining  int
	DaysOverdue    int
	Overdue        bool
}

// WithDueDate fills the date fields from due and the signed day count.
func (d Data) WithDueDate(due time.Time, daysRemaining int) Data {
	d.DueDate = formatDate(due)
	d.DaysRemaining = daysRemaining
	d.Overdue = daysRemaining < 0
	if d.Overdue {
		d.DaysOverdue = -daysRemaining
	}
	return d
}

type entry struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

type compiled struct {
	subject *template.Template
	body    *template.Template
}

var (
	catalogOnce sync.Once
	catalog     map[Kind]compiled
	catalogErr  error
)

func parseCatalog(raw []byte) (map[Kind]compiled, error) {
	var entries map[string]entry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse email catalog: %w", err)
	}

	out := make(map[Kind]compiled, len(entries))
	for name, e := range entries {
		if strings.TrimSpace(e.Subject) == "" || strings.TrimSpace(e.Body) == "" {
			return nil, fmt.Errorf("email template %q needs a subject and a body", name)
		}
		subject, err := template.New(name + ".subject").Option("missingkey=error").Parse(e.Subject)
		if err != nil {
			return nil, fmt.Errorf("email template %q subject: %w", name, err)
		}
		body, err := template.New(name + ".body").Option("missingkey=error").Parse(e.Body)
		if err != nil {
			return nil, fmt.Errorf("email template %q body: %w", name, err)
		}
		out[Kind(name)] = compiled{subject: subject, body: body}
	}
	return out, nil
}

func loadCatalog() (map[Kind]compiled, error) {
	catalogOnce.Do(func() {
		catalog, catalogErr = parseCatalog(catalogYAML)
	})
	return catalog, catalogErr
}

// Render returns the subject and plain-text body for kind.
func Render(kind Kind, data Data) (string, string, error) {
	templates, err := loadCatalog()
	if err != nil {
		return "", "", err
	}
	t, ok := templates[kind]
	if !ok {
		return "", "", fmt.Errorf("no email template for kind %q", kind)
	}

	var subject, body bytes.Buffer
	if err := t.subject.Execute(&subject, data); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", kind, err)
	}
	if err := t.body.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", kind, err)
	}
	return strings.TrimSpace(subject.String()), body.String() + footer, nil
}

// Kinds lists every kind present in the catalog.
func Kinds() []Kind {
	templates, err := loadCatalog()
	if err != nil {
		return nil
	}
	out := make([]Kind, 0, len(templates))
	for k := range templates {
		out = append(out, k)
	}
	return out
}
