// Package searchcmder provides the search command for hybrid search over
// stored facts.
package searchcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inkwellco/spool/api"
	"github.com/inkwellco/spool/pkg/config"
	"github.com/inkwellco/spool/pkg/logger"
	"github.com/inkwellco/spool/pkg/utils"
)

var (
	rankStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	categoryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	contentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
)

type searchCommander struct {
	query   string
	ownerID string
	limit   int
	quiet   bool

	apiTarget string

	debug  bool
	logger *zap.Logger
}

const searchLongDesc string = `Search stored facts via the Spool API.

Runs hybrid retrieval (semantic + keyword, rank fused) over the facts of one
owner, returning the most relevant facts best first. Requires a running Spool
API server.

Use --quiet to output only fact IDs, one per line.

Example:
  spool search "coffee preferences" --owner alice
  spool search "project deadlines" --owner alice --limit 10
  spool search "likes hiking" --owner alice --target http://localhost:8080`

const searchShortDesc string = "Search stored facts"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
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
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.ownerID, "owner", "o", "", "Owner whose facts to search (required)")
	cmd.Flags().IntVarP(&cmder.limit, "limit", "k", config.DefaultRetrievalLimit, "Number of results to return")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only fact IDs, one per line (for piping)")
	cmd.Flags().StringVar(&cmder.apiTarget, "target", defaults.Client.APITarget, "Spool API server URL")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func (c *searchCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	output, err := SearchAPI(c.apiTarget, c.ownerID, c.query, c.limit)
	if err != nil {
		return err
	}

	if output.Count == 0 {
		if !c.quiet {
			fmt.Println("No results found.")
		}
		return nil
	}

	if c.quiet {
		for _, fact := range output.Results {
			fmt.Println(fact.ID)
		}
		return nil
	}

	fmt.Printf("\n%s %s\n\n",
		headerStyle.Render("Search Results for:"),
		categoryStyle.Render(fmt.Sprintf("%q", c.query)),
	)

	for i, fact := range output.Results {
		fmt.Printf("  %s  %s  %s\n",
			rankStyle.Render(fmt.Sprintf("#%d", i+1)),
			categoryStyle.Render("["+fact.Category+"]"),
			dimStyle.Render(fmt.Sprintf("confidence: %.2f", fact.Confidence)),
		)
		fmt.Printf("  %s\n", contentStyle.Render(utils.Truncate(fact.Content, 100)))
		fmt.Printf("  %s\n\n", dimStyle.Render(fact.ID))
	}

	return nil
}

// SearchAPI calls the spool search API and returns the parsed output.
// Exported so other commands can reuse it.
func SearchAPI(apiTarget, ownerID, query string, limit int) (*api.SearchResponse, error) {
	searchURL, err := url.Parse(apiTarget)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	searchURL.Path = "/v1/search"

	payload, err := json.Marshal(api.SearchRequest{
		OwnerID: ownerID,
		Query:   query,
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding search request: %w", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, searchURL.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Spool API at %s: %w", apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var output api.SearchResponse
	if err := json.Unmarshal(body, &output); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	return &output, nil
}
