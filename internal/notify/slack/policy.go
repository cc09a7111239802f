package slack

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/linnemanlabs/klaxon/internal/alert"
)

// Route is one notification routing rule.
type Route struct {
	// Bureau this route applies to. Empty matches every bureau.
	Bureau string `yaml:"bureau,omitempty"`
	// Severities this route applies to. Empty matches all.
	Severities []string `yaml:"severities,omitempty"`
	// Channel overrides the webhook's default channel.
	Channel string `yaml:"channel,omitempty"`
	// Mention is prepended as message text (e.g. "<!here>").
	Mention string `yaml:"mention,omitempty"`
}

// Policy routes notifications to channels by bureau and severity. The first
// matching route wins; a nil policy routes nothing.
type Policy struct {
	Routes []Route `yaml:"routes"`
}

// LoadPolicy reads a routing policy from a YAML file.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is from trusted config, not user input
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	return &p, nil
}

// Route returns the first route matching the bureau and severity, or nil.
func (p *Policy) Route(bureau string, severity alert.Severity) *Route {
	if p == nil {
		return nil
	}
	for i := range p.Routes {
		r := &p.Routes[i]
		if r.Bureau != "" && r.Bureau != bureau {
			continue
		}
		if len(r.Severities) > 0 && !containsSeverity(r.Severities, severity) {
			continue
		}
		return r
	}
	return nil
}

func containsSeverity(list []string, severity alert.Severity) bool {
	for _, s := range list {
		if alert.Severity(s) == severity {
			return true
		}
	}
	return false
}
