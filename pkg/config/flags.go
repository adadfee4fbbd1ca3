package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RegisterServeFlags adds the serve command's flags and binds them into the
// viper instance so flag > env > config file > default precedence holds.
func RegisterServeFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.Flags()
	flags.String("listen", "", "address to listen on (e.g. :8080)")
	flags.String("storage-driver", "", "message store backend (sqlite, postgres, inmemory)")
	flags.String("memory-driver", "", "fact store backend (sqlitevec, qdrant, inmemory)")
	flags.String("provider", "", "default model provider (ollama, openai)")

	_ = v.BindPFlag("server.listen", flags.Lookup("listen"))
	_ = v.BindPFlag("storage.driver", flags.Lookup("storage-driver"))
	_ = v.BindPFlag("memory.driver", flags.Lookup("memory-driver"))
	_ = v.BindPFlag("providers.default", flags.Lookup("provider"))
}

// RegisterClientFlags adds the flags shared by commands that talk to a
// running spool server.
func RegisterClientFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.Flags()
	flags.String("target", "", "base URL of the spool API server")

	_ = v.BindPFlag("client.api_target", flags.Lookup("target"))
}
