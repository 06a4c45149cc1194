package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperjump/kenkyu/internal/cli"
	"github.com/hyperjump/kenkyu/internal/models"
)

var (
	searchOutput  string
	searchServer  string
	explainAuthor string
	explainServer string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Rank authors for a query",
	Long: `Rank authors by their best-matching text.

The query is all remaining arguments joined by spaces, so quoting is optional.
With --server the query goes to a running "kenkyu server"; otherwise the configured
backend is opened directly.`,
	Example: `  kenkyu search graph neural networks
  kenkyu search --output json "protein folding"
  kenkyu search --server http://localhost:8080 quantum error correction`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var explainCmd = &cobra.Command{
	Use:   "explain --author <id> <query>",
	Short: "Explain why an author matches a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExplain,
}

func init() {
	searchCmd.Flags().StringVarP(&searchOutput, "output", "o", "text", "output format: text, compact, or json")
	searchCmd.Flags().StringVar(&searchServer, "server", "", "server URL (empty = open the backend directly)")
	explainCmd.Flags().StringVar(&explainAuthor, "author", "", "author id (required)")
	explainCmd.Flags().StringVar(&explainServer, "server", "", "server URL (empty = open the backend directly)")
	_ = explainCmd.MarkFlagRequired("author")
	rootCmd.AddCommand(searchCmd, explainCmd)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runSearch(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(searchOutput)
	if err != nil {
		return err
	}
	query := buildSearchQuery(args)
	if query == "" {
		return fmt.Errorf("query is required")
	}

	var resp models.SearchResponse
	if searchServer != "" {
		if err := postJSON(cmd.Context(), endpoint(searchServer, "/search"), models.SearchRequest{Query: query}, &resp); err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		return cli.WriteSearchResults(cmd.OutOrStdout(), &resp, format)
	}

	cfg, _, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	components, err := initializeComponents(cmd.Context(), cfg, logger, needEmbedder)
	if err != nil {
		return err
	}
	defer components.Close()

	out, err := components.Service.Search(cmd.Context(), query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	return cli.WriteSearchResults(cmd.OutOrStdout(), out, format)
}

func runExplain(cmd *cobra.Command, args []string) error {
	req := models.ExplainRequest{Query: buildSearchQuery(args), AuthorID: explainAuthor}

	if explainServer != "" {
		var resp models.ExplainResponse
		if err := postJSON(cmd.Context(), endpoint(explainServer, "/explain_match"), req, &resp); err != nil {
			return fmt.Errorf("explain failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Explanation)
		return nil
	}

	cfg, _, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	components, err := initializeComponents(cmd.Context(), cfg, logger, needEmbedder)
	if err != nil {
		return err
	}
	defer components.Close()

	text, err := components.Service.Explain(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("explain failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

// endpoint joins a server base URL and an API path.
func endpoint(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

var httpClient = &http.Client{Timeout: 60 * time.Second}

// postJSON posts in as JSON and decodes a 200 response into out. Other statuses
// surface the server's {"error": ...} message.
func postJSON(ctx context.Context, url string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
