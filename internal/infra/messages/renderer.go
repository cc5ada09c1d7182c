package messages

import (
	"fmt"
	"html"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"code-redemption/internal/config"
	"code-redemption/internal/domain/ports/adapter"

	"gopkg.in/yaml.v3"
)

var _ adapter.MessageRenderer = (*Renderer)(nil)

// Renderer substitutes submission fields into the configured HTML templates.
// Submitted values are HTML-escaped; the templates themselves are trusted.
type Renderer struct {
	templates  map[adapter.MessageKind]string
	dateFormat string
	now        func() time.Time
}

func NewRenderer(cfg config.MessagesConfig) *Renderer {
	df := cfg.DateFormat
	if df == "" {
		df = "2006-01-02"
	}
	return &Renderer{
		templates: map[adapter.MessageKind]string{
			adapter.MessageSuccess: cfg.Success,
			adapter.MessageError:   cfg.Error,
		},
		dateFormat: df,
		now:        time.Now,
	}
}

// templateFile is the on-disk override format.
type templateFile struct {
	Success string `yaml:"success"`
	Error   string `yaml:"error"`
}

// LoadFile overrides templates from a YAML file inside fsys. Keys that are
// missing or empty keep their current template.
func (r *Renderer) LoadFile(fsys fs.FS, name string) error {
	data, err := fs.ReadFile(fsys, filepath.ToSlash(name))
	if err != nil {
		return fmt.Errorf("failed to read message file %s: %w", name, err)
	}
	var tf templateFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return fmt.Errorf("failed to parse message file: %w", err)
	}
	if tf.Success != "" {
		r.templates[adapter.MessageSuccess] = tf.Success
	}
	if tf.Error != "" {
		r.templates[adapter.MessageError] = tf.Error
	}
	return nil
}

// Render returns the template for kind with placeholders replaced. Unknown
// kinds fall back to the error template.
func (r *Renderer) Render(kind adapter.MessageKind, data adapter.MessageData) string {
	tpl, ok := r.templates[kind]
	if !ok {
		tpl = r.templates[adapter.MessageError]
	}
	date := data.Date
	if date.IsZero() {
		date = r.now()
	}
	rep := strings.NewReplacer(
		"{code}", html.EscapeString(data.Code),
		"{name}", html.EscapeString(data.Name),
		"{email}", html.EscapeString(data.Email),
		"{phone}", html.EscapeString(data.Phone),
		"{purchase_location}", html.EscapeString(data.PurchaseLocation),
		"{date}", date.Format(r.dateFormat),
	)
	return rep.Replace(tpl)
}
