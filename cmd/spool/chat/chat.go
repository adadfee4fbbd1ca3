// Package chatcmder provides the chat command for interactive,
// retrieval-augmented LLM chat through the spool server.
package chatcmder

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inkwellco/spool/api"
	"github.com/inkwellco/spool/pkg/cliui"
	"github.com/inkwellco/spool/pkg/config"
	"github.com/inkwellco/spool/pkg/dotdir"
	"github.com/inkwellco/spool/pkg/llm"
	"github.com/inkwellco/spool/pkg/logger"
	"github.com/inkwellco/spool/pkg/sse"
	"github.com/inkwellco/spool/pkg/utils"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

type chatCommander struct {
	apiTarget string
	configDir string
	model     string
	userID    string
	fresh     bool
	debug     bool

	conversationID string

	logger *zap.Logger
}

const chatLongDesc string = `Start an interactive chat session through the spool server.

Each message is answered with retrieval-augmented context: the server pulls
relevant stored facts and recent conversation history into the prompt before
calling the model. The conversation is persisted server-side, and the active
conversation is remembered in .spool/session.json so re-running "spool chat"
resumes where you left off.

Use --new to abandon the remembered conversation and start fresh.

Examples:
  spool chat --model llama3
  spool chat --model openai/gpt-4o --user alice
  spool chat --new`

const chatShortDesc string = "Interactive LLM chat with retrieval-augmented context"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(cmder.configDir)
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
	cmd.Flags().StringVar(&cmder.apiTarget, "target", defaults.Client.APITarget, "Spool API server URL")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model name, optionally provider-prefixed (e.g. openai/gpt-4o)")
	cmd.Flags().StringVarP(&cmder.userID, "user", "u", "", "User whose facts ground the retrieval")
	cmd.Flags().BoolVar(&cmder.fresh, "new", false, "Start a new conversation instead of resuming")

	return cmd
}

func (c *chatCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	dotdirManager := dotdir.NewManager()

	session, err := dotdirManager.LoadSessionState(c.configDir)
	if err != nil {
		return fmt.Errorf("loading session state: %w", err)
	}
	if c.fresh {
		if err := dotdirManager.ClearSession(c.configDir); err != nil {
			return fmt.Errorf("clearing session state: %w", err)
		}
		session = nil
	}

	fmt.Println()
	if session != nil {
		c.conversationID = session.ConversationID
		if c.model == "" {
			c.model = session.Model
		}
		if c.userID == "" {
			c.userID = session.UserID
		}
		fmt.Printf("  %s Resuming conversation %s\n",
			cliui.SuccessMark,
			cliui.DimStyle.Render(utils.Truncate(c.conversationID, 16)),
		)
	} else {
		c.conversationID = uuid.NewString()
		fmt.Printf("  %s New conversation\n", cliui.DimStyle.Render("●"))
	}

	if c.model == "" {
		return fmt.Errorf("no model selected; pass --model or resume a session that has one")
	}
	if c.userID == "" {
		c.userID = "default"
	}

	if err := dotdirManager.SaveSession(&dotdir.SessionState{
		ConversationID: c.conversationID,
		UserID:         c.userID,
		Model:          c.model,
	}, c.configDir); err != nil {
		return fmt.Errorf("saving session state: %w", err)
	}

	fmt.Printf("  %s %s\n\n",
		cliui.KeyStyle.Render("Model:"),
		cliui.NameStyle.Render(c.model),
	)
	fmt.Printf("  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(userPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		if err := c.sendAndStream(input); err != nil {
			fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
			continue
		}

		fmt.Println()
		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Println()
	return nil
}

// sendAndStream sends one chat turn to the server and streams the SSE
// response to stdout.
func (c *chatCommander) sendAndStream(message string) error {
	reqBody := api.ChatRequest{
		ConversationID: c.conversationID,
		UserID:         c.userID,
		Model:          c.model,
		Message:        message,
		Stream:         true,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	c.logger.Debug("sending chat request",
		zap.String("target", c.apiTarget),
		zap.String("model", c.model),
		zap.String("conversation_id", c.conversationID),
	)

	url := c.apiTarget + "/v1/chat"
	httpReq, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		// LLM responses can be slow
		Timeout: 5 * time.Minute,
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending request to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(respBody))
	}

	fmt.Print(assistantPrompt)

	reader := sse.NewReader(resp.Body)

	for {
		event, err := reader.Next()
		if err != nil {
			return fmt.Errorf("reading stream: %w", err)
		}
		if event == nil || event.Data == "[DONE]" {
			return nil
		}

		var ev llm.StreamEvent
		if err := json.Unmarshal([]byte(event.Data), &ev); err != nil {
			c.logger.Debug("failed to parse stream event",
				zap.Error(err),
				zap.String("data", event.Data),
			)
			continue
		}

		switch ev.Type {
		case llm.EventChunk:
			fmt.Print(ev.Text)
		case llm.EventError:
			return fmt.Errorf("stream error: %s", ev.Message)
		case llm.EventDone:
			return nil
		}
	}
}
