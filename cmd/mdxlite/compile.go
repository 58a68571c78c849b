package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/recera/mdxlite/pkg/hast"
	"github.com/recera/mdxlite/pkg/mdx"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10b981")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#94a3b8"))
)

func newCompileCommand(flags *globalFlags) *cobra.Command {
	var output string
	var fragment string
	var ugc bool
	var tree bool

	cmd := &cobra.Command{
		Use:   "compile [file]",
		Short: "Compile one document to HTML",
		Long: `Compiles a single document and writes the HTML to stdout or --out.
Reads from stdin when no file is given or the file is "-".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}

			// Flags take precedence over the configuration file
			if cmd.Flags().Changed("fragment") {
				cfg.Render.Fragment = fragment
			}
			if cmd.Flags().Changed("ugc") {
				cfg.Render.UGC = ugc
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			source, err := readSource(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				w = f
			}

			opts := cfg.CompileOptions(flags.logger())
			if tree {
				root, err := mdx.Compile(cmd.Context(), source, opts)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				_, err = fmt.Fprintln(w, hast.Format(root))
				return err
			}

			if err := mdx.Render(cmd.Context(), source, opts, cfg.RenderOptions(), w); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if output != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), successStyle.Render("✓"), "wrote", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "out", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&fragment, "fragment", "", "Wrap the output in an element with this tag")
	cmd.Flags().BoolVar(&ugc, "ugc", false, "Filter the output with a user generated content policy")
	cmd.Flags().BoolVar(&tree, "tree", false, "Print the compiled syntax tree instead of HTML")

	return cmd
}

func readSource(stdin io.Reader, path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// isDocument reports whether path names a document mdxlite compiles
func isDocument(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".mdx")
}
