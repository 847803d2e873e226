package env

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is loaded when no env file is given and it exists.
const DefaultEnvFile = ".env"

// LoadDotEnv parses an env file and returns its key-value pairs without
// touching the process environment.
func LoadDotEnv(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read env file: %w", err)
	}
	return vars, nil
}

// LoadAndExportDotEnv parses an env file and exports its variables so that
// ${NAME} placeholders can read them. Variables already set in the process
// environment are kept.
func LoadAndExportDotEnv(path string) (map[string]string, error) {
	vars, err := LoadDotEnv(path)
	if err != nil {
		return nil, err
	}
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("cannot export env file: %w", err)
	}
	return vars, nil
}

// LoadOptionalDotEnv exports path when it exists. A missing file is only an
// error when required is true.
func LoadOptionalDotEnv(path string, required bool) (map[string]string, error) {
	if path == "" {
		path = DefaultEnvFile
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !required {
		return nil, nil
	}
	return LoadAndExportDotEnv(path)
}
