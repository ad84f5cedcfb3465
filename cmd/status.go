package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/macross-trading/macross/internal/bot"
	"github.com/macross-trading/macross/pkg/formatters"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running bot",
	Long:  `Queries the local server and displays the currently trading bot, if any.`,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	resp, err := http.Get(statusURL(cfg.ListenAddr))
	if err != nil {
		return fmt.Errorf("is the server running? %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read status response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status request failed: %s", string(body))
	}

	// The endpoint returns a bare false when nothing is running
	if strings.TrimSpace(string(body)) == "false" {
		fmt.Println("No trading bot is running")
		return nil
	}

	var snapshot bot.StatusSnapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return fmt.Errorf("failed to decode status response: %w", err)
	}

	fmt.Println(formatters.FormatBotStatusTable(&snapshot))
	return nil
}

// statusURL turns a listen address like ":5001" into a local request URL
func statusURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/api/bot/status"
}
