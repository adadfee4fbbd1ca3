// Package spoolcmder
package spoolcmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/inkwellco/spool/cmd/spool/chat"
	configcmder "github.com/inkwellco/spool/cmd/spool/config"
	initcmder "github.com/inkwellco/spool/cmd/spool/init"
	modelscmder "github.com/inkwellco/spool/cmd/spool/models"
	searchcmder "github.com/inkwellco/spool/cmd/spool/search"
	servecmder "github.com/inkwellco/spool/cmd/spool/serve"
	versioncmder "github.com/inkwellco/spool/cmd/version"
)

const spoolLongDesc string = `Spool is memory and retrieval for your conversations.

Run the server using:
  spool serve          Run the API server

Talk to a running server using:
  spool chat           Interactive chat with retrieval-augmented context
  spool search         Hybrid search over stored facts
  spool models         List models from all configured providers`

const spoolShortDesc string = "Spool - Conversational memory and retrieval"

func NewSpoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spool",
		Short: spoolShortDesc,
		Long:  spoolLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .spool/ directory location")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(modelscmder.NewModelsCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
