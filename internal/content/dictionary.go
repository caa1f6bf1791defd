package content

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"vexl-backend/internal/model"
	"vexl-backend/pkg/logger"

	"github.com/goccy/go-yaml"
)

//go:embed locales/*.yaml
var locales embed.FS

// ErrInvalidContent is wrapped by every validation failure.
var ErrInvalidContent = errors.New("invalid content")

// Dictionary holds the site copy keyed by language. It is immutable once
// loaded and safe for concurrent use.
type Dictionary struct {
	byLang map[model.Language]*Content
}

// Load parses the embedded locale files.
func Load() (*Dictionary, error) {
	return load(locales, "locales")
}

// LoadDir loads the embedded locales and then replaces any language that
// has a <lang>.yaml file in dir. An empty dir is the same as Load; a dir
// that does not exist is an error.
func LoadDir(dir string) (*Dictionary, error) {
	d, err := Load()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return d, nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("content dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content dir %s: not a directory", dir)
	}

	for _, lang := range model.SupportedLanguages {
		path := filepath.Join(dir, string(lang)+".yaml")
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		c, err := Parse(data, lang)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		d.byLang[lang] = c
		logger.Infof("Loaded %s content override from %s", lang, path)
	}
	return d, nil
}

func load(fsys fs.FS, root string) (*Dictionary, error) {
	d := &Dictionary{byLang: make(map[model.Language]*Content)}
	for _, lang := range model.SupportedLanguages {
		data, err := fs.ReadFile(fsys, root+"/"+string(lang)+".yaml")
		if err != nil {
			return nil, fmt.Errorf("read %s locale: %w", lang, err)
		}
		c, err := Parse(data, lang)
		if err != nil {
			return nil, fmt.Errorf("%s locale: %w", lang, err)
		}
		d.byLang[lang] = c
	}
	return d, nil
}

// Parse decodes and validates one locale document. Unknown keys are errors.
func Parse(data []byte, lang model.Language) (*Content, error) {
	var c Content
	if err := yaml.UnmarshalWithOptions(data, &c, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	if c.Lang == "" {
		c.Lang = lang
	}
	if c.Lang != lang {
		return nil, fmt.Errorf("%w: document declares lang %q, expected %q", ErrInvalidContent, c.Lang, lang)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Content returns the copy for lang, falling back to English.
func (d *Dictionary) Content(lang model.Language) *Content {
	if c, ok := d.byLang[lang]; ok {
		return c
	}
	return d.byLang[model.LangEN]
}

// Script returns the assistant script for lang, falling back to English.
func (d *Dictionary) Script(lang model.Language) *model.AssistantScript {
	return d.Content(lang).Assistant
}

// Languages lists the loaded languages in menu order.
func (d *Dictionary) Languages() []model.Language {
	langs := make([]model.Language, 0, len(d.byLang))
	for _, lang := range model.SupportedLanguages {
		if _, ok := d.byLang[lang]; ok {
			langs = append(langs, lang)
		}
	}
	return langs
}

// Validate checks the parts of the document the server depends on.
func (c *Content) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(c.Vetting.SkillOptions) == 0 {
		add("vetting.skill_options is empty")
	}
	if c.NotFound.Message == "" {
		add("not_found.message is empty")
	}

	s := c.Assistant
	if s == nil {
		add("assistant script is missing")
	} else {
		if strings.TrimSpace(s.Greeting) == "" {
			add("assistant.greeting is empty")
		}
		if len(s.Options) == 0 {
			add("assistant.options is empty")
		}
		if len(s.HumanOptions) == 0 {
			add("assistant.human_options is empty")
		}

		hasHuman := false
		seen := make(map[string]bool)
		for _, opt := range append(s.MainMenu(), s.HumanOptions...) {
			if opt.ActionKey == "" || opt.Label == "" {
				add("assistant option %q needs a label and an action_key", opt.Label)
				continue
			}
			if seen[opt.ActionKey] {
				add("assistant action_key %q is used twice", opt.ActionKey)
			}
			seen[opt.ActionKey] = true
			if opt.ActionKey == model.ActionHuman {
				hasHuman = true
			}
			if _, ok := s.Response(opt.ActionKey); !ok {
				add("assistant.responses has no entry for %q", opt.ActionKey)
			}
		}
		if !hasHuman {
			add("assistant.options must include %q", model.ActionHuman)
		}
		for _, opt := range s.HumanOptions {
			if model.IsIntermediate(opt.ActionKey) {
				add("assistant.human_options must not include %q", opt.ActionKey)
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidContent, strings.Join(problems, "; "))
	}
	return nil
}
