// Package i18n holds the bot's translated strings. Locales are YAML files
// embedded at build time; values are liquid templates.
package i18n

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/osteele/liquid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

type Catalog struct {
	defaultLocale string
	templates     map[string]map[string]*liquid.Template
	logger        *zap.Logger
}

// New loads the embedded locales. defaultLocale must be one of them.
func New(defaultLocale string, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("failed to list locales: %w", err)
	}

	engine := liquid.NewEngine()
	templates := make(map[string]map[string]*liquid.Template, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		locale := strings.TrimSuffix(name, path.Ext(name))

		raw, err := localeFS.ReadFile(path.Join("locales", name))
		if err != nil {
			return nil, fmt.Errorf("failed to read locale %s: %w", locale, err)
		}
		strs := map[string]string{}
		if err := yaml.Unmarshal(raw, &strs); err != nil {
			return nil, fmt.Errorf("failed to parse locale %s: %w", locale, err)
		}

		parsed := make(map[string]*liquid.Template, len(strs))
		for key, src := range strs {
			tpl, perr := engine.ParseString(src)
			if perr != nil {
				return nil, fmt.Errorf("locale %s key %s: %w", locale, key, perr)
			}
			parsed[key] = tpl
		}
		templates[locale] = parsed
	}

	if _, ok := templates[defaultLocale]; !ok {
		return nil, fmt.Errorf("default locale %q is not available", defaultLocale)
	}

	return &Catalog{defaultLocale: defaultLocale, templates: templates, logger: logger}, nil
}

func (c *Catalog) Default() string { return c.defaultLocale }

func (c *Catalog) Supported(locale string) bool {
	_, ok := c.templates[locale]
	return ok
}

// Locales returns the available locale codes in sorted order.
func (c *Catalog) Locales() []string {
	out := make([]string, 0, len(c.templates))
	for locale := range c.templates {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// T renders key in locale. A key missing from locale falls back to the
// default locale, and a key missing everywhere renders as the key itself.
func (c *Catalog) T(locale, key string, vars map[string]any) string {
	tpl, ok := c.templates[locale][key]
	if !ok {
		tpl, ok = c.templates[c.defaultLocale][key]
	}
	if !ok {
		c.logger.Warn("missing translation", zap.String("locale", locale), zap.String("key", key))
		return key
	}

	out, err := tpl.RenderString(liquid.Bindings(vars))
	if err != nil {
		c.logger.Warn("failed to render translation",
			zap.String("locale", locale),
			zap.String("key", key),
			zap.Error(err),
		)
		return key
	}
	return out
}
