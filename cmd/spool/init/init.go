// Package initcmder provides the init command for initializing a local .spool
// directory in the current working directory.
package initcmder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/inkwellco/spool/pkg/cliui"
	"github.com/inkwellco/spool/pkg/config"
)

const (
	dirName = ".spool"
)

const initLongDesc string = `Initialize a new .spool/ directory in the current working directory.

Creates a local .spool/ directory that takes precedence over the default
~/.spool/ directory for configuration, storage, session state, and other
spool operations.

An optional preset seeds the config with a working provider and embedding
stack. Available presets: ollama, openai.

Examples:
  spool init
  spool init --preset ollama
  spool init --preset openai`

const initShortDesc string = "Initialize a local .spool/ directory"

type initCommander struct {
	preset string
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmder.run()
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "", "seed config from a provider preset (ollama, openai)")

	return cmd
}

func (c *initCommander) run() error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	if err == nil && info.IsDir() {
		fmt.Printf("Already initialized: %s\n", cliui.ValueStyle.Render(dir))
		if c.preset == "" {
			return nil
		}
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .spool directory: %w", err)
	}

	if c.preset != "" {
		cfg, err := config.Preset(c.preset)
		if err != nil {
			return err
		}

		cfger, err := config.NewConfiger(dir)
		if err != nil {
			return fmt.Errorf("resolving config target: %w", err)
		}

		if err := cfger.SaveConfig(cfg); err != nil {
			return fmt.Errorf("writing preset config: %w", err)
		}

		fmt.Printf("%s Wrote %s config to %s\n", cliui.SuccessMark, cliui.NameStyle.Render(c.preset), cliui.ValueStyle.Render(cfger.Path()))
	}

	fmt.Printf("Initialized .spool directory: %s\n", cliui.ValueStyle.Render(dir))
	return nil
}
