package evidence

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"

	"stackaudit/internal/errors"
	"stackaudit/internal/slogutil"
)

//go:embed packs/*.yaml
var embeddedPacks embed.FS

// LoadPolicy decides what happens to a pack that cannot be accepted.
type LoadPolicy string

const (
	// PolicyReject fails Load, naming every offending pack.
	PolicyReject LoadPolicy = "reject"
	// PolicySkip leaves offending packs out of the index and logs each one.
	PolicySkip LoadPolicy = "skip"
)

// ParsePolicy converts a config value to a LoadPolicy. Empty means reject.
func ParsePolicy(s string) (LoadPolicy, error) {
	switch LoadPolicy(strings.ToLower(s)) {
	case "", PolicyReject:
		return PolicyReject, nil
	case PolicySkip:
		return PolicySkip, nil
	}
	return "", fmt.Errorf("unknown evidence load policy %q", s)
}

// Source is one named document of YAML packs.
type Source struct {
	Name string
	Data []byte
}

// DefaultSources returns the packs shipped with the binary, ordered by name.
func DefaultSources() ([]Source, error) {
	entries, err := embeddedPacks.ReadDir("packs")
	if err != nil {
		return nil, err
	}
	var out []Source
	for _, e := range entries {
		data, err := embeddedPacks.ReadFile(path.Join("packs", e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, Source{Name: e.Name(), Data: data})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DirSources lists every .yaml or .yml file directly under dir once, ordered
// by name.
func DirSources(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read evidence dir: %w", err)
	}
	var out []Source
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read evidence pack %s: %w", e.Name(), err)
		}
		out = append(out, Source{Name: e.Name(), Data: data})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Problem is a pack that could not be accepted into the index.
type Problem struct {
	Source string `json:"source"`
	RuleID string `json:"ruleId,omitempty"`
	Reason string `json:"reason"`
}

func (p Problem) String() string {
	if p.RuleID == "" {
		return fmt.Sprintf("%s: %s", p.Source, p.Reason)
	}
	return fmt.Sprintf("%s (%s): %s", p.Source, p.RuleID, p.Reason)
}

// Options configures Load.
type Options struct {
	Policy LoadPolicy
	Logger *slog.Logger
}

// Load parses, validates and indexes packs from sources. Data-quality issues
// degrade a pack but keep it. Structural problems are handled by the policy.
func Load(sources []Source, opts Options) (*Index, error) {
	logger := slogutil.For(opts.Logger, "evidence")
	policy := opts.Policy
	if policy == "" {
		policy = PolicyReject
	}

	env, err := newEnv()
	if err != nil {
		return nil, errors.New(errors.InternalError, "create predicate environment", err)
	}

	var (
		problems []Problem
		packs    []*Pack
		byID     = make(map[string]*Pack)
	)

	for _, src := range sources {
		parsed, perr := decodeSource(src)
		if perr != nil {
			problems = append(problems, Problem{Source: src.Name, Reason: perr.Error()})
		}
		for _, p := range parsed {
			if reason := checkShape(env, p); reason != "" {
				problems = append(problems, Problem{Source: src.Name, RuleID: p.RuleID, Reason: reason})
				continue
			}
			if prev, dup := byID[p.RuleID]; dup {
				problems = append(problems, Problem{
					Source: src.Name,
					RuleID: p.RuleID,
					Reason: fmt.Sprintf("duplicate rule id, first defined in %s", prev.Source),
				})
				continue
			}
			byID[p.RuleID] = p
			packs = append(packs, p)
		}
	}

	// Fix references are checked once every pack is known.
	kept := packs[:0]
	for _, p := range packs {
		if reason := checkFixRefs(p, byID); reason != "" {
			problems = append(problems, Problem{Source: p.Source, RuleID: p.RuleID, Reason: reason})
			continue
		}
		kept = append(kept, p)
	}

	if len(problems) > 0 {
		if policy == PolicyReject {
			for _, pr := range problems {
				logger.Error("evidence pack rejected", "source", pr.Source, "rule", pr.RuleID, "reason", pr.Reason)
			}
			msgs := make([]string, len(problems))
			for i, pr := range problems {
				msgs[i] = pr.String()
			}
			return nil, errors.Newf(errors.PackInvalid, "%d evidence pack problem(s): %s",
				len(problems), strings.Join(msgs, "; ")).WithDetails(problems)
		}
		for _, pr := range problems {
			logger.Warn("evidence pack skipped", "source", pr.Source, "rule", pr.RuleID, "reason", pr.Reason)
		}
	}

	idx := &Index{packs: make(map[string]*Pack, len(kept)), problems: problems}
	for _, p := range kept {
		for _, d := range normalize(p) {
			logger.Debug("evidence degraded", "rule", d.RuleID, "note", d.Note)
			idx.degradations = append(idx.degradations, d)
		}
		idx.packs[p.RuleID] = p
		idx.ids = append(idx.ids, p.RuleID)
	}
	sort.Strings(idx.ids)

	logger.Debug("evidence loaded",
		"sources", len(sources),
		"packs", len(idx.ids),
		"skipped", len(problems),
		"degraded", len(idx.degradations),
	)
	return idx, nil
}

// LoadDefault loads the embedded packs.
func LoadDefault(opts Options) (*Index, error) {
	sources, err := DefaultSources()
	if err != nil {
		return nil, errors.New(errors.InternalError, "read embedded evidence packs", err)
	}
	return Load(sources, opts)
}

// decodeSource reads every YAML document in src. Unknown fields are errors.
// Packs decoded before a failing document are still returned.
func decodeSource(src Source) ([]*Pack, error) {
	dec := yaml.NewDecoder(bytes.NewReader(src.Data))
	dec.KnownFields(true)

	var out []*Pack
	for doc := 1; ; doc++ {
		var p Pack
		err := dec.Decode(&p)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("document %d: %w", doc, err)
		}
		p.Source = src.Name
		out = append(out, &p)
	}
}

// checkShape validates required fields and enums and compiles the predicate.
func checkShape(env *cel.Env, p *Pack) string {
	switch {
	case strings.TrimSpace(p.RuleID) == "":
		return "missing ruleId"
	case strings.TrimSpace(p.Claim) == "":
		return "missing claim"
	case p.Kind == "":
		return "missing kind"
	}
	switch p.Kind {
	case KindRisk, KindFix, KindPositive:
	default:
		return fmt.Sprintf("unknown kind %q", p.Kind)
	}
	if p.Kind != KindRisk && len(p.FixRuleIDs) > 0 {
		return "fixRuleIds is only allowed on risk packs"
	}

	if p.Severity == "" {
		p.Severity = SeverityMedium
		if p.Kind == KindPositive {
			p.Severity = SeverityInfo
		}
	}
	if !knownSeverities[p.Severity] {
		return fmt.Sprintf("unknown severity %q", p.Severity)
	}
	if p.Confidence == "" {
		p.Confidence = ConfidenceMedium
	}
	if !p.Confidence.valid() {
		return fmt.Sprintf("unknown confidence %q", p.Confidence)
	}

	if err := compileWhen(env, p); err != nil {
		return err.Error()
	}
	return ""
}

func checkFixRefs(p *Pack, byID map[string]*Pack) string {
	for _, id := range p.FixRuleIDs {
		target, ok := byID[id]
		if !ok {
			return fmt.Sprintf("fix rule %q does not exist", id)
		}
		if target.Kind != KindFix {
			return fmt.Sprintf("fix rule %q has kind %s, want fix", id, target.Kind)
		}
	}
	return ""
}
