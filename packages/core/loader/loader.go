package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/apiscan/packages/core/scope"
)

// SupportedExtensions lists the spec file extensions Load accepts.
var SupportedExtensions = []string{".yaml", ".yml", ".json"}

// Load reads the spec file at path. Includes are resolved relative to the
// file's directory and may not escape it.
func Load(path string) (*scope.Values, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !isSupported(ext) {
		return nil, &FileFormatNotSupportedError{Path: path, Extension: ext}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec file: %w", err)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve spec directory: %w", err)
	}
	return Parse(data, dir)
}

// Parse decodes spec content. dir is the base directory for !include tags.
func Parse(data []byte, dir string) (*scope.Values, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse spec: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, ErrEmptySpec
	}

	if err := NewIncludeResolver(dir).ResolveIncludes(&doc, dir); err != nil {
		return nil, err
	}

	value, err := convert(&doc)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, ErrEmptySpec
	}
	m, ok := value.(*scope.Values)
	if !ok {
		return nil, fmt.Errorf("spec root must be a mapping, got %T", value)
	}
	return m, nil
}

func isSupported(ext string) bool {
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

func convert(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return convert(node.Content[0])
	case yaml.AliasNode:
		return convert(node.Alias)
	case yaml.SequenceNode:
		out := make([]any, 0, len(node.Content))
		for _, child := range node.Content {
			v, err := convert(child)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		return convertMapping(node)
	case yaml.ScalarNode:
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("line %d: unsupported yaml node kind %d", node.Line, node.Kind)
	}
}

func convertMapping(node *yaml.Node) (*scope.Values, error) {
	out := scope.New()
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]

		if keyNode.Tag == "!!merge" {
			if err := mergeInto(out, valueNode); err != nil {
				return nil, err
			}
			continue
		}

		key, err := convert(keyNode)
		if err != nil {
			return nil, err
		}
		value, err := convert(valueNode)
		if err != nil {
			return nil, err
		}
		out.Set(fmt.Sprint(key), value)
	}
	return out, nil
}

// mergeInto applies a YAML merge key. Explicit keys declared later win.
func mergeInto(out *scope.Values, node *yaml.Node) error {
	sources := []*yaml.Node{node}
	if node.Kind == yaml.SequenceNode {
		sources = node.Content
	}
	for _, src := range sources {
		v, err := convert(src)
		if err != nil {
			return err
		}
		m, ok := v.(*scope.Values)
		if !ok {
			return fmt.Errorf("line %d: merge key requires a mapping", src.Line)
		}
		m.Range(func(key string, value any) bool {
			if !out.Has(key) {
				out.Set(key, value)
			}
			return true
		})
	}
	return nil
}
