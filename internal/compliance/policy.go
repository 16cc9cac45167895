package compliance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Base policy file names, checked in order.
var basePolicyNames = []string{"_base.yml", "_base.yaml"}

// LoadPolicy reads the base rule document in dir and merges every overlay
// whose applies_if.client_id_in lists clientID (case-insensitive). Overlays
// apply in file-name order and win over the base on conflicting keys.
func LoadPolicy(dir, clientID string) (*Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read policy dir: %v", ErrConfig, err)
	}

	merged := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	var overlays []string
	for _, entry := range entries {
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if entry.IsDir() || (ext != ".yml" && ext != ".yaml") {
			continue
		}
		if slices.Contains(basePolicyNames, name) {
			continue
		}
		overlays = append(overlays, name)
	}
	slices.Sort(overlays)

	for _, name := range basePolicyNames {
		base, err := readPolicyNode(filepath.Join(dir, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		merged = mergeNodes(merged, base)
		break
	}

	client := strings.ToUpper(strings.TrimSpace(clientID))
	if client != "" {
		for _, name := range overlays {
			overlay, err := readPolicyNode(filepath.Join(dir, name))
			if err != nil {
				return nil, err
			}
			if !appliesTo(overlay, client) {
				continue
			}
			merged = mergeNodes(merged, withoutKey(overlay, "applies_if"))
		}
	}
	return configFromNode(merged)
}

func readPolicyNode(path string) (*yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfig, path, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrConfig, path, err)
	}
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		root := doc.Content[0]
		if isNull(root) {
			return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}, nil
		}
		if root.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%w: %s: top level must be a mapping", ErrConfig, path)
		}
		return root, nil
	}
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}, nil
}

func appliesTo(overlay *yaml.Node, client string) bool {
	ids := mappingValue(mappingValue(overlay, "applies_if"), "client_id_in")
	if ids == nil || ids.Kind != yaml.SequenceNode {
		return false
	}
	for _, item := range ids.Content {
		if strings.ToUpper(strings.TrimSpace(item.Value)) == client {
			return true
		}
	}
	return false
}

func withoutKey(node *yaml.Node, key string) *yaml.Node {
	out := &yaml.Node{Kind: node.Kind, Tag: node.Tag}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			continue
		}
		out.Content = append(out.Content, node.Content[i], node.Content[i+1])
	}
	return out
}

// mergeNodes deep-merges overlay into base. Mappings merge key by key,
// keeping base key order and appending new keys; any other value in overlay
// replaces the base value.
func mergeNodes(base, overlay *yaml.Node) *yaml.Node {
	if base == nil || base.Kind != yaml.MappingNode || overlay.Kind != yaml.MappingNode {
		return overlay
	}
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: base.Tag}
	out.Content = append(out.Content, base.Content...)
	for i := 0; i+1 < len(overlay.Content); i += 2 {
		key, value := overlay.Content[i], overlay.Content[i+1]
		replaced := false
		for j := 0; j+1 < len(out.Content); j += 2 {
			if out.Content[j].Value != key.Value {
				continue
			}
			out.Content[j+1] = mergeNodes(out.Content[j+1], value)
			replaced = true
			break
		}
		if !replaced {
			out.Content = append(out.Content, key, value)
		}
	}
	return out
}
