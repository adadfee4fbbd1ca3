// Package modelscmder provides the models command for listing available
// models across providers.
package modelscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inkwellco/spool/pkg/config"
	"github.com/inkwellco/spool/pkg/llm"
	"github.com/inkwellco/spool/pkg/logger"
)

var (
	providerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	modelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
)

type modelsCommander struct {
	apiTarget string
	quiet     bool
	refresh   bool
	debug     bool
	logger    *zap.Logger
}

const modelsLongDesc string = `List the models available from every configured provider.

Model names are prefixed with their provider (e.g. "ollama/llama3") and can
be passed to "spool chat --model" as-is. Requires a running Spool API server.

Example:
  spool models
  spool models --quiet
  spool models --refresh
  spool models --target http://localhost:8080`

const modelsShortDesc string = "List available models"

func NewModelsCmd() *cobra.Command {
	cmder := &modelsCommander{}

	cmd := &cobra.Command{
		Use:   "models",
		Short: modelsShortDesc,
		Long:  modelsLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("target") {
				cmder.apiTarget = cfg.Client.APITarget
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only prefixed model names, one per line")
	cmd.Flags().BoolVar(&cmder.refresh, "refresh", false, "Ask the server to re-fetch provider model lists first")
	cmd.Flags().StringVar(&cmder.apiTarget, "target", defaults.Client.APITarget, "Spool API server URL")

	return cmd
}

// modelsResponse mirrors the GET /v1/models body.
type modelsResponse struct {
	Models []llm.Model `json:"models"`
	Count  int         `json:"count"`
}

func (c *modelsCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	modelsURL, err := url.Parse(c.apiTarget)
	if err != nil {
		return fmt.Errorf("invalid API target URL: %w", err)
	}

	if c.refresh {
		refreshURL := *modelsURL
		refreshURL.Path = "/v1/models/refresh"
		refreshReq, err := http.NewRequestWithContext(context.Background(), http.MethodPost, refreshURL.String(), nil)
		if err != nil {
			return fmt.Errorf("creating refresh request: %w", err)
		}
		refreshResp, err := http.DefaultClient.Do(refreshReq)
		if err != nil {
			return fmt.Errorf("failed to connect to Spool API at %s: %w", c.apiTarget, err)
		}
		refreshResp.Body.Close()
		if refreshResp.StatusCode != http.StatusAccepted {
			return fmt.Errorf("refresh request failed (HTTP %d)", refreshResp.StatusCode)
		}
	}

	modelsURL.Path = "/v1/models"

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, modelsURL.String(), nil)
	if err != nil {
		return fmt.Errorf("creating models request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to Spool API at %s: %w", c.apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("models request failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var output modelsResponse
	if err := json.Unmarshal(body, &output); err != nil {
		return fmt.Errorf("failed to parse models response: %w", err)
	}

	sort.Slice(output.Models, func(i, j int) bool {
		if output.Models[i].Provider != output.Models[j].Provider {
			return output.Models[i].Provider < output.Models[j].Provider
		}
		return output.Models[i].Name < output.Models[j].Name
	})

	if c.quiet {
		for _, m := range output.Models {
			fmt.Printf("%s/%s\n", m.Provider, m.Name)
		}
		return nil
	}

	fmt.Printf("\n%s\n\n", headerStyle.Render(fmt.Sprintf("Available models (%d)", output.Count)))
	for _, m := range output.Models {
		fmt.Printf("  %s%s\n",
			providerStyle.Render(m.Provider+"/"),
			modelStyle.Render(m.Name),
		)
	}
	fmt.Println()

	return nil
}
