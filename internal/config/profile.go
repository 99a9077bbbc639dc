package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/couchcryptid/incidence-dashboard-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// maxSources bounds a profile to the single- and two-source dashboards.
const maxSources = 2

//go:embed profiles.yaml
var embeddedProfiles []byte

// Profile is one dashboard variant: its datasets, labels and reference lines.
type Profile struct {
	Name             string              `yaml:"-"`
	Title            string              `yaml:"title"`
	Description      string              `yaml:"description"`
	Labels           domain.Labels       `yaml:"labels"`
	Sources          []domain.SourceSpec `yaml:"sources"`
	Thresholds       []domain.Threshold  `yaml:"thresholds"`
	DefaultSelection []string            `yaml:"default_selection"`
}

type profileFile struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// ChartOptions returns the chart settings for this profile.
func (p Profile) ChartOptions() domain.ChartOptions {
	return domain.ChartOptions{
		Title:      p.Title,
		Labels:     p.Labels,
		Thresholds: p.Thresholds,
	}
}

// Validate checks that the profile can build a dataset and a chart.
func (p Profile) Validate() error {
	if len(p.Sources) == 0 || len(p.Sources) > maxSources {
		return fmt.Errorf("profile %q: want 1 or %d sources, got %d", p.Name, maxSources, len(p.Sources))
	}
	seen := make(map[string]bool, len(p.Sources))
	for i, s := range p.Sources {
		if s.Name == "" {
			return fmt.Errorf("profile %q: source %d has no name", p.Name, i)
		}
		if seen[s.Name] {
			return fmt.Errorf("profile %q: duplicate source %q", p.Name, s.Name)
		}
		seen[s.Name] = true
		if s.URL == "" {
			return fmt.Errorf("profile %q: source %q has no url", p.Name, s.Name)
		}
		if s.EntityColumn == "" || s.DateColumn == "" || s.RateColumn == "" {
			return fmt.Errorf("profile %q: source %q must name entity, date and rate columns", p.Name, s.Name)
		}
	}
	for i, th := range p.Thresholds {
		if strings.TrimSpace(th.Label) == "" {
			return fmt.Errorf("profile %q: threshold %d has no label", p.Name, i)
		}
	}
	return nil
}

// LoadProfiles reads profiles from path, or the built-in set when path is empty.
func LoadProfiles(path string) (map[string]Profile, error) {
	data := embeddedProfiles
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read profiles: %w", err)
		}
		data = b
	}
	return ParseProfiles(data)
}

// ParseProfiles decodes a profiles document and validates every profile in it.
func ParseProfiles(data []byte) (map[string]Profile, error) {
	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	if len(f.Profiles) == 0 {
		return nil, errors.New("parse profiles: no profiles defined")
	}

	out := make(map[string]Profile, len(f.Profiles))
	for name, p := range f.Profiles {
		p.Name = name
		if err := p.Validate(); err != nil {
			return nil, err
		}
		out[name] = p
	}
	return out, nil
}

// SelectProfile returns the named profile or an error listing the known ones.
func SelectProfile(profiles map[string]Profile, name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		names := make([]string, 0, len(profiles))
		for n := range profiles {
			names = append(names, n)
		}
		sort.Strings(names)
		return Profile{}, fmt.Errorf("unknown DASHBOARD_PROFILE %q (available: %s)", name, strings.Join(names, ", "))
	}
	return p, nil
}
