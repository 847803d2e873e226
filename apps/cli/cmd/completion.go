package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/apiscan/packages/core/loader"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for apiscan.

Bash:
  $ source <(apiscan completion bash)

Zsh:
  $ apiscan completion zsh > "${fpath[1]}/_apiscan"

Fish:
  $ apiscan completion fish | source

PowerShell:
  PS> apiscan completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(out)
		case "zsh":
			return cmd.Root().GenZshCompletion(out)
		case "fish":
			return cmd.Root().GenFishCompletion(out, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}

// completeSpecFiles offers files with a supported spec extension.
func completeSpecFiles(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	exts := make([]string, len(loader.SupportedExtensions))
	for i, ext := range loader.SupportedExtensions {
		exts[i] = strings.TrimPrefix(ext, ".")
	}
	return exts, cobra.ShellCompDirectiveFilterFileExt
}

func init() {
	runCmd.ValidArgsFunction = completeSpecFiles
	validateCmd.ValidArgsFunction = completeSpecFiles
	listCmd.ValidArgsFunction = completeSpecFiles
}
