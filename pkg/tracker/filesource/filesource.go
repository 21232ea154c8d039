// Package filesource reads releases and defects from a YAML or JSON document
// instead of a live tracker.
package filesource

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/faultline/pkg/defect"
	"github.com/Sumatoshi-tech/faultline/pkg/release"
)

// Sentinel errors.
var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidDocument = errors.New("document does not match schema")
)

//go:embed schema.json
var schema []byte

var schemaLoader = gojsonschema.NewBytesLoader(schema)

// Document is the on-disk layout.
type Document struct {
	Releases []ReleaseEntry `yaml:"releases"`
	Defects  []DefectEntry  `yaml:"defects"`
}

// ReleaseEntry is one released version.
type ReleaseEntry struct {
	Name string `yaml:"name"`
	Date string `yaml:"date"`
}

// DefectEntry is one fixed bug report.
type DefectEntry struct {
	Key              string   `yaml:"key"`
	Created          string   `yaml:"created"`
	AffectedVersions []string `yaml:"affected_versions"`
}

// layouts are tried in order when parsing dates.
var layouts = []string{release.DateLayout, time.RFC3339, "2006-01-02T15:04:05.000-0700"}

// Source serves a parsed document.
type Source struct {
	releases []release.Release
	defects  []DefectEntry
}

// Load reads the document at path.
func Load(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tracker file: %w", err)
	}

	return Parse(data)
}

// Parse validates and decodes a document.
func Parse(data []byte) (*Source, error) {
	if err := validate(data); err != nil {
		return nil, err
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode tracker file: %w", err)
	}

	releases := make([]release.Release, 0, len(doc.Releases))

	for _, r := range doc.Releases {
		date, err := parseDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("release %s: %w", r.Name, err)
		}

		releases = append(releases, release.Release{Name: r.Name, Date: date})
	}

	for _, d := range doc.Defects {
		if _, err := parseDate(d.Created); err != nil {
			return nil, fmt.Errorf("defect %s: %w", d.Key, err)
		}
	}

	return &Source{releases: release.AssignIndices(releases), defects: doc.Defects}, nil
}

// Releases returns the releases ordered and indexed.
func (s *Source) Releases(context.Context) ([]release.Release, error) {
	out := make([]release.Release, len(s.releases))
	copy(out, s.releases)

	return out, nil
}

// Defects returns fresh defect values on every call.
func (s *Source) Defects(context.Context) ([]*defect.Defect, error) {
	out := make([]*defect.Defect, 0, len(s.defects))

	for _, d := range s.defects {
		created, err := parseDate(d.Created)
		if err != nil {
			return nil, fmt.Errorf("defect %s: %w", d.Key, err)
		}

		out = append(out, defect.New(d.Key, created, d.AffectedVersions))
	}

	return out, nil
}

func validate(data []byte) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode tracker file: %w", err)
	}

	if raw == nil {
		raw = map[string]any{}
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return fmt.Errorf("validate tracker file: %w", err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		problems = append(problems, verr.Field()+": "+verr.Description())
	}

	return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(problems, "; "))
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}
