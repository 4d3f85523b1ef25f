package manifest

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// topLevelOrder keeps rendered manifests in the conventional key order
// instead of the alphabetical order yaml.Marshal would produce.
var topLevelOrder = []string{"apiVersion", "kind", "metadata", "spec", "status"}

func renderYAML(doc map[string]any) (string, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}

	appendKey := func(key string, value any) error {
		keyNode := &yaml.Node{}
		if err := keyNode.Encode(key); err != nil {
			return err
		}
		valueNode := &yaml.Node{}
		if err := valueNode.Encode(value); err != nil {
			return err
		}
		root.Content = append(root.Content, keyNode, valueNode)
		return nil
	}

	seen := map[string]bool{}
	for _, key := range topLevelOrder {
		if value, ok := doc[key]; ok {
			if err := appendKey(key, value); err != nil {
				return "", fmt.Errorf("failed to render %s: %w", key, err)
			}
			seen[key] = true
		}
	}
	for key, value := range doc {
		if seen[key] {
			continue
		}
		if err := appendKey(key, value); err != nil {
			return "", fmt.Errorf("failed to render %s: %w", key, err)
		}
	}

	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return b.String(), nil
}
