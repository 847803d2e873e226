// Package cmd implements the apiscan CLI commands using Cobra.
//
// Available commands:
//   - run: Execute every request of a spec file and report the results
//   - validate: Load and build a spec without sending anything
//   - list: Display the endpoint and request tree of a spec
//   - init: Create a sample spec and configuration
//   - version: Show apiscan version information
//   - completion: Generate shell completion scripts
package cmd
