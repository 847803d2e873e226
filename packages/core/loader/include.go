package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	includeTag      = "!include"
	maxIncludeDepth = 10
)

// IncludeResolver replaces !include tagged nodes with the referenced file.
// YAML files are spliced in as nodes, any other file becomes a string scalar.
type IncludeResolver struct {
	rootDir string
}

func NewIncludeResolver(rootDir string) *IncludeResolver {
	return &IncludeResolver{rootDir: rootDir}
}

func (r *IncludeResolver) ResolveIncludes(node *yaml.Node, currentDir string) error {
	return r.walk(node, currentDir, 0)
}

func (r *IncludeResolver) walk(node *yaml.Node, currentDir string, depth int) error {
	if node == nil {
		return nil
	}
	if depth > maxIncludeDepth {
		return fmt.Errorf("%s depth exceeds maximum of %d", includeTag, maxIncludeDepth)
	}
	if node.Tag == includeTag {
		return r.include(node, currentDir, depth)
	}
	for _, child := range node.Content {
		if err := r.walk(child, currentDir, depth); err != nil {
			return err
		}
	}
	return nil
}

func (r *IncludeResolver) include(node *yaml.Node, currentDir string, depth int) error {
	ref := node.Value
	if ref == "" {
		return fmt.Errorf("line %d: %s tag has empty value", node.Line, includeTag)
	}
	if filepath.IsAbs(ref) {
		return fmt.Errorf("line %d: absolute paths are not allowed in %s", node.Line, includeTag)
	}

	resolved := filepath.Join(currentDir, ref)
	if err := r.validatePath(resolved); err != nil {
		return fmt.Errorf("%s %q is not allowed: %w", includeTag, ref, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return fmt.Errorf("failed to read included file %q: %w", ref, err)
	}

	ext := strings.ToLower(filepath.Ext(resolved))
	if ext != ".yaml" && ext != ".yml" {
		node.Tag = "!!str"
		node.Kind = yaml.ScalarNode
		node.Style = 0
		node.Value = string(data)
		node.Content = nil
		return nil
	}

	var included yaml.Node
	if err := yaml.Unmarshal(data, &included); err != nil {
		return fmt.Errorf("failed to parse included file %q: %w", ref, err)
	}
	if err := r.walk(&included, filepath.Dir(resolved), depth+1); err != nil {
		return err
	}
	if len(included.Content) == 0 {
		node.Tag = "!!null"
		node.Kind = yaml.ScalarNode
		node.Value = ""
		return nil
	}
	*node = *included.Content[0]
	return nil
}

func (r *IncludeResolver) validatePath(resolved string) error {
	realPath, err := filepath.EvalSymlinks(resolved)
	if err != nil {
		realPath = resolved
	}
	root, err := filepath.EvalSymlinks(r.rootDir)
	if err != nil {
		root = r.rootDir
	}
	rel, err := filepath.Rel(root, realPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path escapes spec directory")
	}
	return nil
}
