package template

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kevinshaw/invoice-intel/internal/models"
)

// slugPrefix namespaces template files on disk
const slugPrefix = "com."

var slugStripRe = regexp.MustCompile(`[^a-z0-9_]`)

// Slug derives the stable template key for a vendor name: lowercase,
// whitespace to underscores, everything outside [a-z0-9_] stripped. The same
// canonical name always slugs to the same key.
func Slug(vendorName string) string {
	s := strings.ToLower(strings.TrimSpace(vendorName))
	s = strings.Join(strings.Fields(s), "_")
	s = slugStripRe.ReplaceAllString(s, "")
	return slugPrefix + s
}

// Registry is a write-once filesystem store of extraction templates, one
// YAML file per vendor. Reads are best-effort: a broken or missing store
// degrades to "no templates", never to a pipeline failure.
type Registry struct {
	dir    string
	logger *zap.Logger
}

// NewRegistry creates a registry rooted at dir
func NewRegistry(dir string, logger *zap.Logger) *Registry {
	return &Registry{dir: dir, logger: logger}
}

// Exists reports whether a template is already stored for the vendor. Blank
// and sentinel vendor names never have templates.
func (r *Registry) Exists(vendorName string) bool {
	if vendorName == "" || vendorName == models.UnknownVendor {
		return false
	}
	_, err := os.Stat(r.path(vendorName))
	return err == nil
}

// LoadAll reads every stored template, sorted by filename. Unreadable or
// unparsable files are skipped; any directory-level failure yields an empty
// result rather than an error.
func (r *Registry) LoadAll() []*Template {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Error("Failed to read template directory",
				zap.String("dir", r.dir),
				zap.Error(err))
		}
		return nil
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".yml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var templates []*Template
	for _, name := range names {
		body, err := os.ReadFile(filepath.Join(r.dir, name))
		if err != nil {
			r.logger.Warn("Failed to read template file",
				zap.String("file", name),
				zap.Error(err))
			continue
		}

		t, err := Parse(body)
		if err != nil {
			r.logger.Warn("Skipping invalid template file",
				zap.String("file", name),
				zap.Error(err))
			continue
		}
		templates = append(templates, t)
	}

	if len(templates) > 0 {
		r.logger.Info("Loaded extraction templates",
			zap.Int("count", len(templates)),
			zap.String("dir", r.dir))
	}
	return templates
}

// Save stores a template body for the vendor. It rejects blank and sentinel
// vendor names and bodies that do not parse as a template, and reports false
// on any I/O failure instead of returning an error: template persistence is
// an enhancement, never a hard dependency.
func (r *Registry) Save(vendorName, body string) bool {
	if vendorName == "" || vendorName == models.UnknownVendor {
		r.logger.Warn("Invalid vendor name for template", zap.String("vendor", vendorName))
		return false
	}

	if _, err := Parse([]byte(body)); err != nil {
		r.logger.Warn("Rejecting unparsable template body",
			zap.String("vendor", vendorName),
			zap.Error(err))
		return false
	}

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		r.logger.Error("Failed to create template directory",
			zap.String("dir", r.dir),
			zap.Error(err))
		return false
	}

	path := r.path(vendorName)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		r.logger.Error("Failed to save template",
			zap.String("vendor", vendorName),
			zap.String("path", path),
			zap.Error(err))
		return false
	}

	r.logger.Info("Template saved",
		zap.String("vendor", vendorName),
		zap.String("file", filepath.Base(path)))
	return true
}

func (r *Registry) path(vendorName string) string {
	return filepath.Join(r.dir, Slug(vendorName)+".yml")
}
