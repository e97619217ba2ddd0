package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// expandConfigEnv substitutes $VAR references in every scalar of the
// YAML document and reports the variables that were not set. Expansion
// walks the parsed node tree rather than the raw text so substitution
// never corrupts YAML structure.
func expandConfigEnv(raw []byte) (string, []string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return "", nil, fmt.Errorf("parse config: %w", err)
	}

	missing := make(map[string]struct{})
	walkScalars(&root, func(node *yaml.Node) {
		expandScalar(node, missing)
	})

	expanded, err := yaml.Marshal(&root)
	if err != nil {
		return "", nil, fmt.Errorf("encode expanded config: %w", err)
	}

	names := make([]string, 0, len(missing))
	for name := range missing {
		names = append(names, name)
	}
	sort.Strings(names)
	return string(expanded), names, nil
}

func walkScalars(node *yaml.Node, visit func(*yaml.Node)) {
	switch node.Kind {
	case yaml.ScalarNode:
		visit(node)
	case yaml.MappingNode:
		// Only values are expanded; keys stay literal.
		for i := 1; i < len(node.Content); i += 2 {
			walkScalars(node.Content[i], visit)
		}
	case yaml.AliasNode:
		if node.Alias != nil {
			walkScalars(node.Alias, visit)
		}
	default:
		for _, child := range node.Content {
			walkScalars(child, visit)
		}
	}
}

func expandScalar(node *yaml.Node, missing map[string]struct{}) {
	if node.Tag != "" && node.Tag != "!!str" {
		return
	}
	if !strings.Contains(node.Value, "$") {
		return
	}

	expanded := os.Expand(node.Value, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		missing[key] = struct{}{}
		return ""
	})
	if expanded == node.Value {
		return
	}

	// Quoted scalars stay strings; plain scalars are re-typed so
	// "limit: $JIT_LIMIT" decodes as the number it expanded to.
	if node.Style != 0 {
		node.Tag = "!!str"
		node.Value = expanded
		return
	}
	retypeScalar(node, expanded)
}

func retypeScalar(node *yaml.Node, value string) {
	if strings.TrimSpace(value) == "" {
		node.Tag = "!!str"
		node.Value = value
		return
	}

	var probe yaml.Node
	if err := yaml.Unmarshal([]byte(value), &probe); err != nil || len(probe.Content) == 0 {
		node.Tag = "!!str"
		node.Value = value
		return
	}
	scalar := probe.Content[0]
	if scalar.Kind != yaml.ScalarNode {
		node.Tag = "!!str"
		node.Value = value
		return
	}
	node.Tag = scalar.Tag
	node.Value = scalar.Value
}
