package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// wireToolResult mirrors the JSON shape tool results take on the wire.
type wireToolResult struct {
	Success              bool            `json:"success"`
	RequiresConfirmation bool            `json:"requiresConfirmation"`
	PendingActionID      string          `json:"pendingActionId"`
	Action               string          `json:"action"`
	Description          string          `json:"description"`
	Data                 json.RawMessage `json:"data"`
	Message              string          `json:"message"`
	Error                string          `json:"error"`
}

// --- threads ---

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "Manage conversation threads",
}

var threadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List threads",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/threads")
		if err != nil {
			return err
		}

		var result struct {
			Threads []struct {
				ID        string `json:"id"`
				Title     string `json:"title"`
				UpdatedAt string `json:"updatedAt"`
			} `json:"threads"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Threads) == 0 {
			fmt.Println("No threads yet.")
			return nil
		}

		for _, th := range result.Threads {
			fmt.Printf("%s  %s  %s\n",
				colorize(ansiCyan, th.ID[:8]),
				th.UpdatedAt,
				th.Title,
			)
		}
		return nil
	},
}

var threadsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a thread with its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/threads/"+args[0])
		if err != nil {
			return err
		}

		var result struct {
			Thread struct {
				ID    string `json:"id"`
				Title string `json:"title"`
			} `json:"thread"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Printf("%s (%s)\n", colorize(ansiBold, result.Thread.Title), result.Thread.ID)
		for _, msg := range result.Messages {
			fmt.Printf("\n%s\n%s\n", colorize(ansiCyan, msg.Role+":"), msg.Content)
		}
		return nil
	},
}

var threadsRenameCmd = &cobra.Command{
	Use:   "rename <id> <title>",
	Short: "Rename a thread",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.patch(cmd.Context(), "/threads/"+args[0], map[string]string{"title": args[1]})
		if err != nil {
			return err
		}

		var thread struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		}
		if err := decodeJSON(resp, &thread); err != nil {
			return err
		}

		printSuccess("Renamed thread %s to %q", thread.ID, thread.Title)
		return nil
	},
}

var threadsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a thread and its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/threads/"+args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted thread %s", result["deleted"])
		return nil
	},
}

func init() {
	threadsCmd.AddCommand(threadsListCmd)
	threadsCmd.AddCommand(threadsShowCmd)
	threadsCmd.AddCommand(threadsRenameCmd)
	threadsCmd.AddCommand(threadsDeleteCmd)
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send a message to the assistant",
	Long: `Send a message to the assistant and print its reply.

When the assistant proposes a mutation (updating a cell, deleting a thread)
the proposal is printed and you are asked to approve or reject it before
anything changes.

Examples:
  gridchat ask "What is the total in column C?"
  gridchat ask --thread 3f2a91b0 "Now set D4 to 200"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := strings.Join(args, " ")
		threadID, _ := cmd.Flags().GetString("thread")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		reply, pending, err := sendChat(cmd.Context(), client, threadID, message)
		if err != nil {
			return err
		}

		if reply != "" {
			fmt.Println(reply)
		}

		for _, p := range pending {
			if err := promptPending(cmd.Context(), client, p); err != nil {
				return err
			}
		}
		return nil
	},
}

type pendingProposal struct {
	ID          string
	Description string
}

func sendChat(ctx context.Context, client *apiClient, threadID, message string) (string, []pendingProposal, error) {
	body := map[string]string{"message": message}
	if threadID != "" {
		body["threadId"] = threadID
	}

	resp, err := client.post(ctx, "/chat", body)
	if err != nil {
		return "", nil, err
	}

	var result struct {
		ThreadID    string `json:"threadId"`
		Reply       string `json:"reply"`
		ToolResults []struct {
			ToolName string         `json:"toolName"`
			Result   wireToolResult `json:"result"`
		} `json:"toolResults"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		return "", nil, err
	}

	printStep("thread %s", result.ThreadID)

	var pending []pendingProposal
	for _, tr := range result.ToolResults {
		if tr.Result.RequiresConfirmation && tr.Result.PendingActionID != "" {
			pending = append(pending, pendingProposal{
				ID:          tr.Result.PendingActionID,
				Description: tr.Result.Description,
			})
		}
	}
	return result.Reply, pending, nil
}

func promptPending(ctx context.Context, client *apiClient, p pendingProposal) error {
	printProposal(p.Description)
	fmt.Print("Apply this change? [y/N]: ")

	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading answer: %w", err)
	}
	answer = strings.ToLower(strings.TrimSpace(answer))

	if answer != "y" && answer != "yes" {
		resp, err := client.post(ctx, "/actions/"+p.ID+"/reject", nil)
		if err != nil {
			return err
		}
		resp.Body.Close()
		printWarning("Rejected. Nothing was changed.")
		return nil
	}

	resp, err := client.post(ctx, "/actions/"+p.ID+"/confirm", nil)
	if err != nil {
		return err
	}

	var result wireToolResult
	if err := decodeJSON(resp, &result); err != nil {
		return err
	}

	if result.Success {
		printSuccess("%s", result.Message)
	} else {
		printError("%s", result.Error)
	}
	return nil
}

func init() {
	askCmd.Flags().String("thread", "", "thread ID to continue (default: start a new thread)")
}

// --- sheet ---

var sheetCmd = &cobra.Command{
	Use:   "sheet [name]",
	Short: "Print sheet contents",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		name := "Sheet1"
		if len(args) > 0 {
			name = args[0]
		}
		rangeRef, _ := cmd.Flags().GetString("range")

		path := "/sheets/" + url.PathEscape(name)
		if rangeRef != "" {
			from, to, ok := strings.Cut(rangeRef, ":")
			if !ok {
				return fmt.Errorf("invalid range %q, expected e.g. A1:D6", rangeRef)
			}
			path += fmt.Sprintf("/range?from=%s&to=%s", url.QueryEscape(from), url.QueryEscape(to))
		}

		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var table struct {
			Headers []string `json:"headers"`
			Rows    [][]any  `json:"rows"`
			Range   string   `json:"range"`
		}
		if err := decodeJSON(resp, &table); err != nil {
			return err
		}

		fmt.Println(colorize(ansiBold, table.Range))
		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, strings.Join(table.Headers, "\t"))
		for _, row := range table.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				if v == nil {
					cells[i] = ""
				} else {
					cells[i] = fmt.Sprintf("%v", v)
				}
			}
			fmt.Fprintln(w, strings.Join(cells, "\t"))
		}
		return w.Flush()
	},
}

func init() {
	sheetCmd.Flags().String("range", "", "cell range to read, e.g. A1:D6")
}
