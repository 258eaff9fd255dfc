package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ragnotebook/internal/domain"
	"ragnotebook/internal/normalize"
	"ragnotebook/internal/tui"
)

var (
	searchStrategy string
	searchRaw      bool
	createDesc     string
)

// searchCmd runs a retrieval-only query, like the playground.
var searchCmd = &cobra.Command{
	Use:   "search [notebook] [query]",
	Short: "Run a retrieval-only search against a notebook",
	Long: `Calls only the retrieval webhook of a strategy and prints the normalized
documents. The notebook can be given by id or name.

Example:
  ragnb search handbook "vacation policy" --strategy multi-query`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		nb, err := svc.FindNotebook(ctx, args[0])
		if err != nil {
			return err
		}
		query := strings.Join(args[1:], " ")
		res, err := svc.Search(ctx, nb.ID, domain.StrategyID(searchStrategy), query)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if searchRaw {
			fmt.Fprintln(out, normalize.RenderRaw(res.Raw))
			return nil
		}
		fmt.Fprintln(out, tui.RenderView(res.View, query, -1))
		fmt.Fprintf(out, "\n%d documents via %s\n", res.View.Count(), res.View.Strategy)
		return nil
	},
}

// askCmd runs one chat turn without the interactive interface.
var askCmd = &cobra.Command{
	Use:   "ask [notebook] [question]",
	Short: "Ask a notebook a single question",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		nb, err := svc.FindNotebook(ctx, args[0])
		if err != nil {
			return err
		}
		history, err := svc.History(ctx, nb.ID)
		if err != nil {
			logger.Warn("history unavailable", zap.String("notebook", nb.ID), zap.Error(err))
			history = nil
		}
		turn, err := svc.Ask(ctx, nb.ID, history, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, turn.Answer.Content)
		if len(turn.Answer.Citations) > 0 {
			fmt.Fprintf(out, "\n%d sources\n", len(turn.Answer.Citations))
		}
		return nil
	},
}

var notebooksCmd = &cobra.Command{
	Use:     "notebooks",
	Aliases: []string{"nb"},
	Short:   "Manage notebooks",
}

var notebooksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notebooks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		notebooks, err := svc.Notebooks(cmd.Context())
		if err != nil {
			return err
		}
		return printNotebooks(cmd.OutOrStdout(), notebooks)
	},
}

var notebooksCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a notebook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nb, err := svc.CreateNotebook(cmd.Context(), args[0], createDesc)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %q (%s)\n", nb.Name, nb.ID)
		return nil
	},
}

var notebooksDeleteCmd = &cobra.Command{
	Use:   "delete [notebook]",
	Short: "Delete a notebook and its local settings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		nb, err := svc.FindNotebook(ctx, args[0])
		if err != nil {
			return err
		}
		if err := svc.DeleteNotebook(ctx, nb); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q\n", nb.Name)
		return nil
	},
}

var notebooksIngestCmd = &cobra.Command{
	Use:   "ingest [notebook] [path-or-url]",
	Short: "Ask the backend to ingest a file or URL into a notebook",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		nb, err := svc.FindNotebook(ctx, args[0])
		if err != nil {
			return err
		}
		if err := svc.Ingest(ctx, nb, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Ingestion started for %q\n", nb.Name)
		return nil
	},
}

var notebooksStatusCmd = &cobra.Command{
	Use:   "status [notebook]",
	Short: "Show the ingestion status of a notebook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		nb, err := svc.FindNotebook(ctx, args[0])
		if err != nil {
			return err
		}
		st, err := svc.Status(ctx, nb.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s, %d documents\n", nb.Name, st.Status, st.DocumentCount)
		if st.Message != "" {
			fmt.Fprintln(cmd.OutOrStdout(), st.Message)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect or clear chat history",
}

var historyClearCmd = &cobra.Command{
	Use:   "clear [notebook]",
	Short: "Clear the remote chat history of a notebook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		nb, err := svc.FindNotebook(ctx, args[0])
		if err != nil {
			return err
		}
		if err := svc.ClearHistory(ctx, nb.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared history of %q\n", nb.Name)
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show [notebook]",
	Short: "Print the chat history of a notebook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		nb, err := svc.FindNotebook(ctx, args[0])
		if err != nil {
			return err
		}
		msgs, err := svc.History(ctx, nb.ID)
		if err != nil {
			return err
		}
		return printHistory(cmd.OutOrStdout(), msgs)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration locations",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file and local store paths",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "config:  %s\nstore:   %s (%s)\nlog:     %s\n",
			cfgPath, cfg.Storage.Path, cfg.Storage.Type, cfg.Logging.Path)
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVarP(&searchStrategy, "strategy", "s", "", "Strategy id (default: the notebook's active strategy)")
	searchCmd.Flags().BoolVar(&searchRaw, "raw", false, "Print the raw retrieval JSON")
	notebooksCreateCmd.Flags().StringVarP(&createDesc, "description", "d", "", "Notebook description")

	notebooksCmd.AddCommand(notebooksListCmd, notebooksCreateCmd, notebooksDeleteCmd, notebooksIngestCmd, notebooksStatusCmd)
	historyCmd.AddCommand(historyShowCmd, historyClearCmd)
	configCmd.AddCommand(configPathCmd)
}

func printNotebooks(w io.Writer, notebooks []domain.Notebook) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDOCS\tSTATUS")
	for _, nb := range notebooks {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", nb.ID, nb.Name, nb.DocumentCount, nb.Status)
	}
	return tw.Flush()
}

func printHistory(w io.Writer, msgs []domain.Message) error {
	if len(msgs) == 0 {
		_, err := fmt.Fprintln(w, "No messages.")
		return err
	}
	for _, m := range msgs {
		label := "You"
		if m.Role == domain.RoleAssistant {
			label = "Assistant"
			if m.StrategyID != "" {
				label += " (" + string(m.StrategyID) + ")"
			}
		}
		if _, err := fmt.Fprintf(w, "%s  %s\n%s\n\n", m.Timestamp.Format("2006-01-02 15:04"), label, m.Content); err != nil {
			return err
		}
	}
	return nil
}
