package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/reeflective/readline"
	"github.com/spf13/cobra"

	"github.com/sibylchat/sibyl/internal/client"
	"github.com/sibylchat/sibyl/internal/web"
)

var (
	// Chat-specific flags
	chatServerURL string
	oncePrompt    string
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive terminal client for a running sibyl server",
	Long: `Connect to a running sibyl web server and chat from the terminal.

The client speaks the same WebSocket protocol as the browser UI:
it shows processing status while a query runs and reconnects
automatically if the connection drops.

Use --once to send a single prompt and exit:
  sibyl chat --once "What is the capital of France?"

Commands (interactive mode only):
  /quit, /exit  - Exit the chat
  /clear        - Clear the conversation history
  /help         - Show available commands`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVar(&chatServerURL, "server", "http://127.0.0.1:8080", "Base URL of the sibyl server")
	chatCmd.Flags().StringVar(&oncePrompt, "once", "", "Send a single prompt and exit (non-interactive mode)")
}

// chatSession holds the terminal chat state shared between the
// readline loop and the client callbacks.
type chatSession struct {
	controller *client.Controller
	connected  chan struct{}
	done       chan struct{} // signaled when the in-flight query finishes
	isOnceMode bool
}

func runChat(cmd *cobra.Command, args []string) error {
	isOnceMode := oncePrompt != ""

	cs := &chatSession{
		connected:  make(chan struct{}, 1),
		done:       make(chan struct{}, 1),
		isOnceMode: isOnceMode,
	}

	controller, err := client.New(client.Options{
		URL: chatServerURL,
		Callbacks: client.Callbacks{
			OnConnected: func(clientID string) {
				select {
				case cs.connected <- struct{}{}:
				default:
				}
			},
			OnReconnected: func(clientID string) {
				fmt.Println("🔁 Reconnected")
				select {
				case cs.connected <- struct{}{}:
				default:
				}
			},
			OnStatus: func(requestID, message string) {
				fmt.Printf("   ⏳ %s\n", message)
			},
			OnFinalResponse: func(data web.FinalResponseData) {
				fmt.Printf("\n%s\n", data.Response)
				if len(data.Sources) > 0 {
					fmt.Println()
					for _, src := range data.Sources {
						fmt.Printf("   [%d] %s (%s)\n", src.ID, src.Title, src.URL)
					}
				}
				if !isOnceMode && data.Method != "" {
					fmt.Printf("\n   (%s, confidence %d%%", data.Method, data.Confidence)
					if data.FromCache {
						fmt.Printf(", cached")
					}
					fmt.Printf(")\n")
				}
				cs.signalDone()
			},
			OnError: func(requestID, message string) {
				fmt.Printf("\n❌ %s\n", message)
				if requestID != "" {
					cs.signalDone()
				}
			},
			OnHistoryCleared: func() {
				fmt.Println("🧹 Conversation history cleared")
			},
			ConfirmClear: confirmClear,
			OnStateChange: func(state client.ConnState) {
				if isOnceMode {
					return
				}
				switch state {
				case client.StateConnecting:
					fmt.Println("🔌 Connecting...")
				case client.StateOffline:
					fmt.Println("📴 Offline: reconnect attempts exhausted")
				}
			},
		},
	})
	if err != nil {
		return err
	}
	cs.controller = controller
	defer controller.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- controller.Run(ctx) }()

	select {
	case <-cs.connected:
	case err := <-runErr:
		if err != nil {
			return err
		}
		return fmt.Errorf("could not connect to %s", chatServerURL)
	case <-time.After(30 * time.Second):
		return fmt.Errorf("timed out connecting to %s", chatServerURL)
	}

	if isOnceMode {
		return cs.runOnce(oncePrompt)
	}
	return cs.runInteractiveLoop(runErr)
}

func (cs *chatSession) signalDone() {
	select {
	case cs.done <- struct{}{}:
	default:
	}
}

// runOnce sends a single prompt and exits after receiving the response.
func (cs *chatSession) runOnce(prompt string) error {
	if _, err := cs.controller.Send(prompt); err != nil {
		return err
	}
	select {
	case <-cs.done:
		return nil
	case <-time.After(client.DefaultAwaitTimeout):
		return fmt.Errorf("timed out waiting for a response")
	}
}

// slashCommands defines the available slash commands with their descriptions.
var slashCommands = []struct {
	name        string
	description string
}{
	{"/help", "Show available commands"},
	{"/h", "Show available commands (alias)"},
	{"/?", "Show available commands (alias)"},
	{"/quit", "Exit the chat"},
	{"/exit", "Exit the chat (alias)"},
	{"/q", "Exit the chat (alias)"},
	{"/clear", "Clear the conversation history"},
}

func (cs *chatSession) runInteractiveLoop(runErr chan error) error {
	// Create readline shell
	rl := readline.NewShell()
	rl.Prompt.Primary(func() string { return "sibyl> " })

	// Set up history
	history := readline.NewInMemoryHistory()
	rl.History.Add("default", history)

	// Set up tab completion for slash commands
	rl.Completer = func(line []rune, cursor int) readline.Completions {
		return completeInput(string(line), cursor)
	}

	fmt.Println("\n📝 Type your message and press Enter. Use /help for commands. Tab completes commands.")

	for {
		select {
		case err := <-runErr:
			return err
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if err == io.EOF || err == readline.ErrInterrupt {
				fmt.Println("\n👋 Goodbye!")
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Check for commands
		if strings.HasPrefix(line, "/") {
			if handled := cs.handleCommand(line); handled {
				continue
			}
		}

		if _, err := cs.controller.Send(line); err != nil {
			fmt.Printf("\n❌ Error: %v\n", err)
			continue
		}

		// Wait for the terminal response before prompting again
		select {
		case <-cs.done:
		case err := <-runErr:
			return err
		}
		fmt.Println()
	}
}

func (cs *chatSession) handleCommand(line string) bool {
	cmd := strings.ToLower(strings.TrimPrefix(line, "/"))
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false
	}

	switch parts[0] {
	case "quit", "exit", "q":
		fmt.Println("👋 Goodbye!")
		os.Exit(0)
	case "clear":
		switch err := cs.controller.ClearHistory(); {
		case errors.Is(err, client.ErrClearAborted):
			fmt.Println("Clear cancelled")
		case errors.Is(err, client.ErrNotConnected):
			fmt.Println("🧹 History cleared locally (not connected)")
		case err != nil:
			fmt.Printf("❌ Clear error: %v\n", err)
		}
	case "help", "h", "?":
		printHelp()
	default:
		fmt.Printf("❓ Unknown command: %s (use /help for available commands)\n", parts[0])
	}
	return true
}

// confirmClear asks on stdin before the conversation is wiped.
func confirmClear() bool {
	fmt.Print("Clear the conversation history? [y/N] ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func printHelp() {
	fmt.Println(`
Available commands:
  /quit, /exit, /q  - Exit the chat
  /clear            - Clear the conversation history
  /help, /h, /?     - Show this help message

Tips:
  - Type your message and press Enter to send it to the assistant
  - Use Ctrl+C to exit gracefully
  - Use up/down arrows for command history
  - Use Tab to autocomplete slash commands`)
}

// completeInput provides tab completion for the chat input.
// It completes slash commands when the input starts with "/".
func completeInput(line string, cursor int) readline.Completions {
	// Get the text up to the cursor position
	if cursor > len(line) {
		cursor = len(line)
	}
	text := line[:cursor]

	// Only complete if the line starts with "/"
	if !strings.HasPrefix(text, "/") {
		return readline.Completions{}
	}

	// Find matching commands
	var matches []string
	var descriptions []string
	for _, cmd := range slashCommands {
		if strings.HasPrefix(cmd.name, text) {
			matches = append(matches, cmd.name)
			descriptions = append(descriptions, cmd.description)
		}
	}

	if len(matches) == 0 {
		return readline.Completions{}
	}

	// Build value-description pairs for CompleteValuesDescribed
	pairs := make([]string, 0, len(matches)*2)
	for i, match := range matches {
		pairs = append(pairs, match, descriptions[i])
	}

	return readline.CompleteValuesDescribed(pairs...).
		Tag("commands").
		NoSpace('/')
}
