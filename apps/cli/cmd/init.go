package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/apiscan/packages/core/config"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new apiscan project",
	Long: `Initialize a new apiscan project in the current directory.

This creates:
  - .apiscan.yaml  - Configuration file with the default settings
  - api.yaml       - Example spec

Examples:
  apiscan init
  apiscan init --force`,
	Args: cobra.NoArgs,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleSpec = `api:
  path: ${BASE_URL}
  headers:
    Accept: application/json
  vars:
    resource_name: Test Resource
  endpoints:
    - name: health
      path: /health
      requests:
        - name: health_check
          tests:
            - name: is_up
              assert: ${{ status_code == 200 }}

    - name: resources
      path: /resources
      delay: 100
      requests:
        - name: create_resource
          method: POST
          body:
            name: ${{ resource_name }}
            description: Created by apiscan
          tests:
            - name: created
              assert: ${{ status_code == 201 }}
            - name: has_id
              assert: ${{ body.id != nil }}

        - name: get_resource
          path: ${{ results.create_resource.body.id }}
          tests:
            - name: found
              assert: ${{ status_code == 200 }}
            - name: same_name
              assert: ${{ body.name == resource_name }}
            - name: fast_enough
              assert: ${{ elapsed < 1000 }}
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, config.ConfigFilenames[0])
	specFile := filepath.Join(cwd, DefaultSpecFile)

	if !forceInit {
		for _, f := range []string{configFile, specFile} {
			if _, err := os.Stat(f); err == nil {
				return fmt.Errorf("file already exists: %s (use --force to overwrite)", f)
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.Headers = map[string]string{
		"User-Agent": "apiscan/" + version,
	}
	configYAML, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(configFile, configYAML, 0644); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.WriteFile(specFile, []byte(exampleSpec), 0644); err != nil {
		return fmt.Errorf("failed to create example spec: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", specFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\napiscan project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'BASE_URL=http://localhost:3000 apiscan run' to execute the example spec.\n")

	return nil
}
