package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// commandInfo describes one runnable command for `dunesync commands`.
type commandInfo struct {
	Path    string     `json:"path"`
	Short   string     `json:"short"`
	Args    string     `json:"args,omitempty"`
	Example string     `json:"example,omitempty"`
	Flags   []flagInfo `json:"flags,omitempty"`
}

type flagInfo struct {
	Name     string `json:"name"`
	Short    string `json:"shorthand,omitempty"`
	Type     string `json:"type"`
	Default  string `json:"default,omitempty"`
	Usage    string `json:"usage,omitempty"`
	Required bool   `json:"required,omitempty"`
}

func newCommandsCmd() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "commands",
		Short: "List available commands with their flags",
		Long:  "List every runnable command with its arguments and local flags. Makes no API calls.",
		Example: `  dunesync commands
  dunesync commands --filter deploy --output json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries := walkCommands(cmd.Root(), "")
			if filter != "" {
				needle := strings.ToLower(filter)
				kept := entries[:0]
				for _, e := range entries {
					if strings.Contains(strings.ToLower(e.Path+" "+e.Short), needle) {
						kept = append(kept, e)
					}
				}
				entries = kept
			}

			out := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				return printJSON(out, entries)
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{e.Path, e.Args, e.Short})
			}
			printTable(out, []string{"command", "args", "description"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "Substring search across command paths and descriptions")
	return cmd
}

// walkCommands collects the runnable leaves below cmd.
func walkCommands(cmd *cobra.Command, parent string) []commandInfo {
	var entries []commandInfo
	for _, child := range cmd.Commands() {
		if child.Hidden || child.Name() == "help" {
			continue
		}
		path := strings.TrimSpace(parent + " " + child.Name())
		if child.HasSubCommands() {
			entries = append(entries, walkCommands(child, path)...)
			continue
		}

		args := ""
		if fields := strings.Fields(child.Use); len(fields) > 1 {
			args = strings.Join(fields[1:], " ")
		}
		entries = append(entries, commandInfo{
			Path:    path,
			Short:   child.Short,
			Args:    args,
			Example: child.Example,
			Flags:   localFlags(child),
		})
	}
	return entries
}

func localFlags(cmd *cobra.Command) []flagInfo {
	var flags []flagInfo
	cmd.LocalNonPersistentFlags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden || f.Name == "help" {
			return
		}
		info := flagInfo{
			Name:    f.Name,
			Short:   f.Shorthand,
			Type:    f.Value.Type(),
			Default: f.DefValue,
			Usage:   f.Usage,
		}
		if ann := f.Annotations[cobra.BashCompOneRequiredFlag]; len(ann) > 0 && ann[0] == "true" {
			info.Required = true
		}
		flags = append(flags, info)
	})
	return flags
}
