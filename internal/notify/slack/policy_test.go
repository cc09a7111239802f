package slack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/linnemanlabs/klaxon/internal/alert"
)

func TestLoadPolicy(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := `routes:
  - bureau: finance
    severities: [critical, warning]
    channel: "#finance-alerts"
    mention: "<!here>"
  - severities: [critical]
    channel: "#ops-critical"
  - channel: "#ops-general"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write policy file: %v", err)
	}

	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	if len(p.Routes) != 3 {
		t.Fatalf("routes = %d, want 3", len(p.Routes))
	}
	if p.Routes[0].Channel != "#finance-alerts" {
		t.Errorf("routes[0].Channel = %q, want %q", p.Routes[0].Channel, "#finance-alerts")
	}
	if len(p.Routes[0].Severities) != 2 {
		t.Errorf("routes[0].Severities = %v, want 2 entries", p.Routes[0].Severities)
	}
}

func TestLoadPolicy_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadPolicy_InvalidYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("routes: [not: closed"), 0o600); err != nil {
		t.Fatalf("write policy file: %v", err)
	}
	if _, err := LoadPolicy(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestRoute_FirstMatchWins(t *testing.T) {
	t.Parallel()

	p := &Policy{Routes: []Route{
		{Bureau: "finance", Severities: []string{"critical"}, Channel: "#finance-critical"},
		{Severities: []string{"critical"}, Channel: "#ops-critical"},
		{Channel: "#catch-all"},
	}}

	tests := []struct {
		name     string
		bureau   string
		severity alert.Severity
		want     string
	}{
		{"bureau and severity match", "finance", alert.SeverityCritical, "#finance-critical"},
		{"severity match only", "hr", alert.SeverityCritical, "#ops-critical"},
		{"catch-all", "hr", alert.SeverityInfo, "#catch-all"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := p.Route(tt.bureau, tt.severity)
			if r == nil {
				t.Fatal("Route = nil, want a match")
			}
			if r.Channel != tt.want {
				t.Errorf("Channel = %q, want %q", r.Channel, tt.want)
			}
		})
	}
}

func TestRoute_NoMatch(t *testing.T) {
	t.Parallel()

	p := &Policy{Routes: []Route{
		{Bureau: "finance", Channel: "#finance-alerts"},
	}}
	if r := p.Route("hr", alert.SeverityCritical); r != nil {
		t.Errorf("Route = %+v, want nil", r)
	}
}

func TestRoute_NilPolicy(t *testing.T) {
	t.Parallel()

	var p *Policy
	if r := p.Route("finance", alert.SeverityCritical); r != nil {
		t.Errorf("Route on nil policy = %+v, want nil", r)
	}
}
