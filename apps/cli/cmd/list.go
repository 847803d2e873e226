package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/apiscan/packages/core/runner"
	"github.com/abdul-hamid-achik/apiscan/packages/core/tree"
)

var listCmd = &cobra.Command{
	Use:   "list [spec]",
	Short: "List the endpoints and requests of a spec",
	Long: `Print the endpoint tree of a spec with each request's method and raw,
unresolved path.

Examples:
  apiscan list
  apiscan list api.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	file := DefaultSpecFile
	if len(args) == 1 {
		file = args[0]
	}

	root, err := runner.LoadTree(file)
	if err != nil {
		return exitWith(ExitSpecError, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s:\n", file)
	printEndpoint(cmd.OutOrStdout(), root, 1)
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d requests\n", root.CountRequests())
	return nil
}

func printEndpoint(w io.Writer, e *tree.EndpointNode, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s%s", indent, e.Name)
	if e.Path != "" {
		fmt.Fprintf(w, " (%s)", e.Path)
	}
	fmt.Fprintln(w)

	for _, req := range e.Requests {
		method := req.Method
		if !tree.HasPlaceholder(method) {
			method = strings.ToUpper(method)
		}
		fmt.Fprintf(w, "%s  - %s %s %s\n", indent, req.Name, method, tree.JoinURL(req.PathSegments()...))
	}
	for _, child := range e.Children {
		printEndpoint(w, child, depth+1)
	}
}
