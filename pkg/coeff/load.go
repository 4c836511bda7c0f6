package coeff

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type rawPolynomial struct {
	Coefficients []float64 `yaml:"coefficients"`
	Factor       *float64  `yaml:"factor"`
}

type rawRail struct {
	Rail        string          `yaml:"rail"`
	Polynomials []rawPolynomial `yaml:"polynomials"`
}

type rawDocument struct {
	Name        string                          `yaml:"name"`
	Version     string                          `yaml:"version"`
	Definitions yaml.Node                       `yaml:"definitions"`
	Static      map[string]map[string][]rawRail `yaml:"static"`
	Dynamic     map[string]map[string]float64   `yaml:"dynamic"`
}

// Load reads, resolves and validates the coefficient document at path.
// Every failure is fatal for the caller: a store is either fully valid or
// not returned at all.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDataFile, path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a coefficient document. YAML anchors, aliases and merge keys
// are honored, and mappings of the form {$ref: "#/json/pointer"} are replaced
// by the node they point to before the schema is checked.
func Parse(data []byte) (*Store, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrParse)
	}

	r := &refResolver{root: root.Content[0], active: map[*yaml.Node]bool{}}
	if err := r.resolve(root.Content[0]); err != nil {
		return nil, err
	}

	resolved, err := yaml.Marshal(&root)
	if err != nil {
		return nil, fmt.Errorf("%w: re-encode: %w", ErrParse, err)
	}

	var raw rawDocument
	dec := yaml.NewDecoder(bytes.NewReader(resolved))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		var te *yaml.TypeError
		if errors.As(err, &te) {
			return nil, fmt.Errorf("%w: %s", ErrSchema, strings.Join(te.Errors, "; "))
		}
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	doc, err := raw.validate()
	if err != nil {
		return nil, err
	}
	return &Store{doc: doc}, nil
}

func (raw *rawDocument) validate() (*Document, error) {
	var problems []string

	if len(raw.Static) == 0 {
		problems = append(problems, "no static categories")
	}
	if len(raw.Dynamic) == 0 {
		problems = append(problems, "no dynamic categories")
	}

	doc := &Document{
		Name:    raw.Name,
		Static:  make(map[Category]map[Scenario][]RailSpec, len(raw.Static)),
		Dynamic: make(map[Category]map[string]float64, len(raw.Dynamic)),
	}

	for _, cat := range sortedKeys(raw.Static) {
		scenarios := raw.Static[cat]
		out := make(map[Scenario][]RailSpec, len(scenarios))
		for _, sc := range Scenarios {
			if _, ok := scenarios[string(sc)]; !ok {
				problems = append(problems, fmt.Sprintf("static/%s: missing scenario %q", cat, sc))
			}
		}
		for _, sc := range sortedKeys(scenarios) {
			if !slices.Contains(Scenarios, Scenario(sc)) {
				problems = append(problems, fmt.Sprintf("static/%s: unknown scenario %q", cat, sc))
				continue
			}
			rails := scenarios[sc]
			if len(rails) == 0 {
				problems = append(problems, fmt.Sprintf("static/%s/%s: no rails", cat, sc))
			}
			specs := make([]RailSpec, 0, len(rails))
			for i, rr := range rails {
				where := fmt.Sprintf("static/%s/%s[%d]", cat, sc, i)
				if rr.Rail == "" {
					problems = append(problems, where+": missing rail label")
				}
				if len(rr.Polynomials) == 0 {
					problems = append(problems, where+": no polynomials")
				}
				spec := RailSpec{Rail: rr.Rail, Polynomials: make([]Polynomial, 0, len(rr.Polynomials))}
				for j, rp := range rr.Polynomials {
					pw := fmt.Sprintf("%s.polynomials[%d]", where, j)
					if len(rp.Coefficients) == 0 {
						problems = append(problems, pw+": no coefficients")
					}
					if rp.Factor == nil {
						problems = append(problems, pw+": missing factor")
						continue
					}
					if !allFinite(append([]float64{*rp.Factor}, rp.Coefficients...)) {
						problems = append(problems, pw+": non-finite value")
					}
					spec.Polynomials = append(spec.Polynomials, Polynomial{
						Coefficients: slices.Clone(rp.Coefficients),
						Factor:       *rp.Factor,
					})
				}
				specs = append(specs, spec)
			}
			out[Scenario(sc)] = specs
		}
		doc.Static[Category(cat)] = out
	}

	for _, cat := range sortedKeys(raw.Dynamic) {
		values := raw.Dynamic[cat]
		if len(values) == 0 {
			problems = append(problems, fmt.Sprintf("dynamic/%s: empty category", cat))
		}
		out := make(map[string]float64, len(values))
		for _, name := range sortedKeys(values) {
			v := values[name]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				problems = append(problems, fmt.Sprintf("dynamic/%s/%s: non-finite value", cat, name))
			}
			out[name] = v
		}
		doc.Dynamic[Category(cat)] = out
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrSchema, strings.Join(problems, "; "))
	}
	return doc, nil
}

// refResolver replaces {$ref: "#/a/b"} mappings with the node found at the
// JSON pointer, relative to the document root.
type refResolver struct {
	root   *yaml.Node
	active map[*yaml.Node]bool
}

const refKey = "$ref"

func (r *refResolver) resolve(n *yaml.Node) error {
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range n.Content {
			if err := r.resolve(c); err != nil {
				return err
			}
		}
	case yaml.AliasNode:
		if n.Alias != nil {
			return r.resolve(n.Alias)
		}
	case yaml.MappingNode:
		if ref, ok := refOf(n); ok {
			if r.active[n] {
				return fmt.Errorf("%w: reference cycle through %q", ErrParse, ref)
			}
			r.active[n] = true
			defer delete(r.active, n)

			target, err := r.lookup(ref)
			if err != nil {
				return err
			}
			if err := r.resolve(target); err != nil {
				return err
			}
			cp := *target
			cp.Anchor = ""
			*n = cp
			return nil
		}
		for i := 1; i < len(n.Content); i += 2 {
			if err := r.resolve(n.Content[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func refOf(n *yaml.Node) (string, bool) {
	if len(n.Content) != 2 || n.Content[0].Value != refKey {
		return "", false
	}
	v := n.Content[1]
	if v.Kind != yaml.ScalarNode {
		return "", false
	}
	return v.Value, true
}

func (r *refResolver) lookup(ref string) (*yaml.Node, error) {
	if !strings.HasPrefix(ref, "#/") {
		return nil, fmt.Errorf("%w: unsupported $ref %q (only local #/ pointers)", ErrParse, ref)
	}
	cur := r.root
	for _, tok := range strings.Split(ref[2:], "/") {
		tok = strings.ReplaceAll(strings.ReplaceAll(tok, "~1", "/"), "~0", "~")
		for cur.Kind == yaml.AliasNode && cur.Alias != nil {
			cur = cur.Alias
		}
		var next *yaml.Node
		switch cur.Kind {
		case yaml.MappingNode:
			for i := 0; i+1 < len(cur.Content); i += 2 {
				if cur.Content[i].Value == tok {
					next = cur.Content[i+1]
					break
				}
			}
		case yaml.SequenceNode:
			idx, err := strconv.Atoi(tok)
			if err == nil && idx >= 0 && idx < len(cur.Content) {
				next = cur.Content[idx]
			}
		}
		if next == nil {
			return nil, fmt.Errorf("%w: $ref %q: no element %q", ErrParse, ref, tok)
		}
		cur = next
	}
	for cur.Kind == yaml.AliasNode && cur.Alias != nil {
		cur = cur.Alias
	}
	return cur, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func allFinite(vs []float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
