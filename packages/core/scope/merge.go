package scope

// Merge returns the shallow union of parent and child. On key collisions the
// child value wins; nested values are never merged key by key. Parent keys
// keep their position, keys only present in child follow in child order.
// Neither input is modified.
func Merge(parent, child *Values) *Values {
	out := parent.Clone()
	child.Range(func(key string, value any) bool {
		out.Set(key, value)
		return true
	})
	return out
}

// MergeAll folds Merge over layers ordered from the outermost to the innermost.
func MergeAll(layers ...*Values) *Values {
	out := New()
	for _, layer := range layers {
		out = Merge(out, layer)
	}
	return out
}
