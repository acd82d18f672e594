package diagram

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v2"
)

// Kind is one of the fixed set of supported diagram categories.
type Kind string

const (
	KindSequential Kind = "sequential"
	KindComponent  Kind = "component"
	KindState      Kind = "state"
	KindClass      Kind = "class"
	KindER         Kind = "er"
	KindGantt      Kind = "gantt"
)

// AllKinds lists the supported kinds in their canonical order.
var AllKinds = []Kind{KindSequential, KindComponent, KindState, KindClass, KindER, KindGantt}

var ErrUnknownKind = errors.New("unsupported diagram type")

// Set maps each kind to its Mermaid definition text.
type Set map[Kind]string

func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

type rule struct {
	pattern *regexp.Regexp
	reason  string
}

type block struct {
	open   *regexp.Regexp
	close  *regexp.Regexp
	reason string
}

type kindSpec struct {
	kind           Kind
	keyword        string
	headers        []*regexp.Regexp
	guidance       []string
	rules          []rule
	blocks         []block
	balancedBraces bool
	stub           string
}

//go:embed kinds.yaml
var kindsYAML []byte

var catalog, aliases = mustLoadCatalog()

func loadCatalog() (map[Kind]*kindSpec, map[string]Kind, error) {
	raw := struct {
		Kinds []struct {
			Name     string   `yaml:"name"`
			Aliases  []string `yaml:"aliases"`
			Keyword  string   `yaml:"keyword"`
			Headers  []string `yaml:"headers"`
			Guidance []string `yaml:"guidance"`
			Rules    []struct {
				Pattern string `yaml:"pattern"`
				Reason  string `yaml:"reason"`
			} `yaml:"rules"`
			Blocks []struct {
				Open   string `yaml:"open"`
				Close  string `yaml:"close"`
				Reason string `yaml:"reason"`
			} `yaml:"blocks"`
			BalancedBraces bool   `yaml:"balanced_braces"`
			Stub           string `yaml:"stub"`
		} `yaml:"kinds"`
	}{}

	if err := yaml.Unmarshal(kindsYAML, &raw); err != nil {
		return nil, nil, fmt.Errorf("error parsing kind catalog: %w", err)
	}

	specs := make(map[Kind]*kindSpec, len(raw.Kinds))
	names := make(map[string]Kind)
	for _, k := range raw.Kinds {
		spec := &kindSpec{
			kind:           Kind(k.Name),
			keyword:        k.Keyword,
			guidance:       k.Guidance,
			balancedBraces: k.BalancedBraces,
			stub:           strings.TrimRight(k.Stub, "\n"),
		}
		for _, h := range k.Headers {
			re, err := regexp.Compile(h)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid header pattern for %s: %w", k.Name, err)
			}
			spec.headers = append(spec.headers, re)
		}
		for _, r := range k.Rules {
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid rule pattern for %s: %w", k.Name, err)
			}
			spec.rules = append(spec.rules, rule{pattern: re, reason: r.Reason})
		}
		for _, b := range k.Blocks {
			open, err := regexp.Compile(b.Open)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid block pattern for %s: %w", k.Name, err)
			}
			end, err := regexp.Compile(b.Close)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid block pattern for %s: %w", k.Name, err)
			}
			spec.blocks = append(spec.blocks, block{open: open, close: end, reason: b.Reason})
		}

		specs[spec.kind] = spec
		names[k.Name] = spec.kind
		for _, alias := range k.Aliases {
			names[alias] = spec.kind
		}
	}

	for _, kind := range AllKinds {
		if _, ok := specs[kind]; !ok {
			return nil, nil, fmt.Errorf("kind catalog is missing %s", kind)
		}
	}

	return specs, names, nil
}

func mustLoadCatalog() (map[Kind]*kindSpec, map[string]Kind) {
	specs, names, err := loadCatalog()
	if err != nil {
		panic(err)
	}
	return specs, names
}

// ParseKind normalizes s and resolves it to a Kind, accepting the aliases
// "sequence" and "flowchart".
func ParseKind(s string) (Kind, error) {
	kind, ok := aliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q (supported types: %s)", ErrUnknownKind, s, strings.Join(KindNames(), ", "))
	}
	return kind, nil
}

// ParseKinds parses a list of kind names, dropping duplicates while keeping
// the order of first appearance.
func ParseKinds(names []string) ([]Kind, error) {
	seen := make(map[Kind]bool, len(names))
	kinds := make([]Kind, 0, len(names))
	for _, name := range names {
		kind, err := ParseKind(name)
		if err != nil {
			return nil, err
		}
		if !seen[kind] {
			seen[kind] = true
			kinds = append(kinds, kind)
		}
	}
	return kinds, nil
}

func KindNames() []string {
	names := make([]string, len(AllKinds))
	for i, k := range AllKinds {
		names[i] = string(k)
	}
	return names
}

// Keyword is the Mermaid diagram-type declaration a definition of this kind
// opens with.
func (k Kind) Keyword() string {
	if spec, ok := catalog[k]; ok {
		return spec.keyword
	}
	return ""
}

func (k Kind) Valid() bool {
	_, ok := catalog[k]
	return ok
}

func (k Kind) String() string {
	return string(k)
}
