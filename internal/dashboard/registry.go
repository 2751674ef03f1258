package dashboard

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"parity/internal/core"
	"parity/internal/engine"
)

// ErrInvalidRegistry marks a candidate registry that cannot be used.
var ErrInvalidRegistry = errors.New("invalid candidate registry")

// Window is the parallel-run period during which every candidate runs next to
// the reference, followed by the date the reference may be retired.
type Window struct {
	Start   string `yaml:"start"`
	End     string `yaml:"end"`
	Cutover string `yaml:"cutover"`
}

// CandidateSpec declares one replacement implementation. Exactly one of
// Engine (in-process) or Command (external process) is set.
type CandidateSpec struct {
	Name    string        `yaml:"name"`
	Engine  string        `yaml:"engine,omitempty"`
	Command []string      `yaml:"command,omitempty"`
	Dir     string        `yaml:"dir,omitempty"`
	Env     []string      `yaml:"env,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Kind is "engine" or "command".
func (c CandidateSpec) Kind() string {
	if len(c.Command) > 0 {
		return "command"
	}
	return "engine"
}

// Registry is the decoded candidates.yaml.
type Registry struct {
	Window         Window          `yaml:"window"`
	HeadlineMetric string          `yaml:"headlineMetric"`
	Reference      string          `yaml:"reference"`
	Candidates     []CandidateSpec `yaml:"candidates"`
}

// DefaultHeadlineMetric is the output path tracked when the registry names none.
const DefaultHeadlineMetric = "report.totalGrossProfit"

// LoadRegistry reads and validates a registry file.
func LoadRegistry(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load registry %s: %w", path, err)
	}
	reg, err := ParseRegistry(raw)
	if err != nil {
		return nil, fmt.Errorf("load registry %s: %w", path, err)
	}
	return reg, nil
}

// ParseRegistry decodes YAML bytes, fills defaults and validates the result.
func ParseRegistry(raw []byte) (*Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(raw, &reg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
	}
	if reg.HeadlineMetric == "" {
		reg.HeadlineMetric = DefaultHeadlineMetric
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Validate reports every problem in the registry at once.
func (r *Registry) Validate() error {
	var errs error
	add := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf(format, args...))
	}

	var start, end, cutover time.Time
	for _, f := range []struct {
		name  string
		value string
		dst   *time.Time
	}{
		{"window.start", r.Window.Start, &start},
		{"window.end", r.Window.End, &end},
		{"window.cutover", r.Window.Cutover, &cutover},
	} {
		t, err := time.Parse(core.DateLayout, f.value)
		if err != nil {
			add("%s: %q is not a YYYY-MM-DD date", f.name, f.value)
			continue
		}
		*f.dst = t
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		add("window.start %s is after window.end %s", r.Window.Start, r.Window.End)
	}
	if !end.IsZero() && !cutover.IsZero() && !end.Before(cutover) {
		add("window.cutover %s must be after window.end %s", r.Window.Cutover, r.Window.End)
	}

	if _, err := engine.Lookup(r.Reference); err != nil {
		add("reference: %v", err)
	}
	if len(r.Candidates) == 0 {
		add("candidates: at least one candidate is required")
	}

	seen := map[string]bool{}
	for i, c := range r.Candidates {
		field := fmt.Sprintf("candidates[%d]", i)
		name := strings.TrimSpace(c.Name)
		switch {
		case name == "":
			add("%s.name: required", field)
		case seen[name]:
			add("%s.name: duplicate candidate %q", field, name)
		}
		seen[name] = true

		switch {
		case c.Engine != "" && len(c.Command) > 0:
			add("%s: set either engine or command, not both", field)
		case c.Engine == "" && len(c.Command) == 0:
			add("%s: one of engine or command is required", field)
		case c.Engine != "":
			if _, err := engine.Lookup(c.Engine); err != nil {
				add("%s.engine: %v", field, err)
			}
		}
		if c.Timeout < 0 {
			add("%s.timeout: must not be negative", field)
		}
	}

	if errs != nil {
		return fmt.Errorf("%w:\n- %s", ErrInvalidRegistry, joinErrors(errs))
	}
	return nil
}

// WindowStart returns the parsed start date. It is only meaningful on a
// validated registry.
func (r *Registry) WindowStart() time.Time {
	t, _ := time.Parse(core.DateLayout, r.Window.Start)
	return t
}

// Phase describes where at lies relative to the window.
func (w Window) Phase(at time.Time) string {
	day := at.Format(core.DateLayout)
	switch {
	case day < w.Start:
		return "not started"
	case day <= w.End:
		return "in progress"
	case day < w.Cutover:
		return "closed, awaiting cutover decision"
	default:
		return "cutover decision due"
	}
}

func joinErrors(err error) string {
	parts := multierr.Errors(err)
	lines := make([]string, len(parts))
	for i, e := range parts {
		lines[i] = e.Error()
	}
	return strings.Join(lines, "\n- ")
}
