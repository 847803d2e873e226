package loader

import (
	"errors"
	"fmt"
)

var ErrEmptySpec = errors.New("api spec is empty")

// FileFormatNotSupportedError is returned for spec files with an unknown extension.
type FileFormatNotSupportedError struct {
	Path      string
	Extension string
}

func (e *FileFormatNotSupportedError) Error() string {
	return fmt.Sprintf("file format %q not supported for %s, use .yaml, .yml or .json", e.Extension, e.Path)
}
