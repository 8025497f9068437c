// Package listmanagers implements "rtx list-managers": print the
// configured ecosystem → manifest-glob table, so a user can see which
// manifest filenames a scan will recognize without reading rtx.toml.
package listmanagers

import (
	"encoding/json"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/afadesigns/rtx/internal/config"
)

func NewCmd() *cobra.Command {
	options := struct {
		configPath string
	}{}

	cmd := &cobra.Command{
		Use:   "list-managers",
		Short: "List the ecosystem managers rtx recognizes and their manifest globs",
		Example: heredoc.Doc(`
			$ rtx list-managers
		`),
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(options.configPath)
			if err != nil {
				return errors.Wrap(err, "list-managers: load config")
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return errors.Wrap(enc.Encode(cfg.Managers), "list-managers: encode")
		},
	}

	cmd.Flags().StringVarP(&options.configPath, "config", "c", "", "rtx config file path")

	return cmd
}
