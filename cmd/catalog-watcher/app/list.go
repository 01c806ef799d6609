package app

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	watcher "github.com/stacklok/catalog-watcher/internal/app"
	"github.com/stacklok/catalog-watcher/internal/catalog"
	"github.com/stacklok/catalog-watcher/internal/config"
	"github.com/stacklok/catalog-watcher/internal/httpclient"
	"github.com/stacklok/catalog-watcher/internal/notify"
	"github.com/stacklok/catalog-watcher/internal/syncerr"
)

const maxTitleWidth = 48

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print one page of the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, err := cmd.Flags().GetInt("page")
			if err != nil {
				return err
			}
			client, pageSize, err := newQueryClient(cmd)
			if err != nil {
				return err
			}
			result, err := client.FetchPage(cmd.Context(), page)
			return printResult(cmd.OutOrStdout(), result, page, pageSize, err)
		},
	}
	cmd.Flags().Int("page", 1, "Page number, starting at 1")
	cmd.Flags().String("config", "", "Path to configuration file (YAML format)")
	return cmd
}

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the catalog by title",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query, err := cmd.Flags().GetString("query")
			if err != nil {
				return err
			}
			query = strings.TrimSpace(query)
			if query == "" {
				return fmt.Errorf("--query is required")
			}
			page, err := cmd.Flags().GetInt("page")
			if err != nil {
				return err
			}
			client, pageSize, err := newQueryClient(cmd)
			if err != nil {
				return err
			}
			result, err := client.Search(cmd.Context(), query, page)
			return printResult(cmd.OutOrStdout(), result, page, pageSize, err)
		},
	}
	cmd.Flags().StringP("query", "q", "", "Title to search for")
	cmd.Flags().Int("page", 1, "Page number, starting at 1")
	cmd.Flags().String("config", "", "Path to configuration file (YAML format)")
	return cmd
}

// newQueryClient builds a catalog client for one-off queries and returns the
// effective page size. Notifications are never sent from here, so no webhook
// is required.
func newQueryClient(cmd *cobra.Command) (catalog.Client, int, error) {
	page, err := cmd.Flags().GetInt("page")
	if err != nil {
		return nil, 0, err
	}
	if page < 1 {
		return nil, 0, fmt.Errorf("--page must be at least 1, got %d", page)
	}

	v := viper.New()
	v.Set("notification.type", config.NotificationTypeLog)
	cfg, err := loadConfig(cmd, config.WithViper(v))
	if err != nil {
		return nil, 0, err
	}
	client := watcher.NewCatalogClient(cfg, httpclient.NewDefaultClient(cfg.Catalog.GetRequestTimeout()))
	return client, min(max(1, cfg.Catalog.PageSize), catalog.MaxPageSize), nil
}

// printResult renders a page as a numbered table followed by a navigation footer
func printResult(w io.Writer, result *catalog.Page, requested, pageSize int, fetchErr error) error {
	if fetchErr != nil {
		if syncerr.IsKind(fetchErr, syncerr.KindNotFound) {
			_, err := fmt.Fprintf(w, "No results on page %d.\n", requested)
			return err
		}
		return fmt.Errorf("catalog request failed: %w", fetchErr)
	}

	page := requested
	if result.CurrentPage > 0 {
		page = result.CurrentPage
	}

	if err := renderTable(w, result.Items, (page-1)*pageSize); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, footer(page, result.HasNextPage))
	return err
}

// renderTable numbers rows starting after offset
func renderTable(w io.Writer, items []catalog.Item, offset int) error {
	table := tablewriter.NewWriter(w)
	table.Header("#", "ID", "Title", "Status", "Episodes", "Score")

	for i, it := range items {
		row := []string{
			strconv.Itoa(offset + i + 1),
			it.Key(),
			notify.Truncate(it.DisplayTitle(), maxTitleWidth),
			notify.FormatStatus(it.Status),
			notify.FormatEpisodes(it.Episodes),
			notify.FormatScore(it.Score),
		}
		if err := table.Append(row); err != nil {
			return fmt.Errorf("failed to render row: %w", err)
		}
	}
	return table.Render()
}

// footer points at the neighboring pages
func footer(page int, hasNext bool) string {
	parts := []string{fmt.Sprintf("Page %d", page)}
	if page > 1 {
		parts = append(parts, fmt.Sprintf("prev: --page %d", page-1))
	}
	if hasNext {
		parts = append(parts, fmt.Sprintf("next: --page %d", page+1))
	}
	return strings.Join(parts, " | ")
}
