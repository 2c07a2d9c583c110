package cli

import (
	"io"

	"github.com/spf13/cobra"

	"hkcovid/internal/config"
)

// NewRootCommand builds the hkcovid command tree. Running the root command
// without a subcommand performs an ETL run.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	rc := &cobra.Command{
		Use:   "hkcovid",
		Short: "Load the Hong Kong COVID-19 building list and case details into MongoDB.",
		Long: `hkcovid fetches the building list snapshot of one day from the
data.gov.hk historical archive and the current case details file, cleans
both tables and appends them to MongoDB.

Every option can be set as a flag, as an environment variable named after
the option (db_username or DB_USERNAME) or in the dotenv file.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runETL(cmd, stdout)
		},
	}
	config.RegisterFlags(rc.PersistentFlags())

	rc.AddCommand(newRunCommand(stdout))
	rc.AddCommand(newRunsCommand(stdout))

	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}
