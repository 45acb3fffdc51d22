package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"confagent/internal/bootstrap"
	"confagent/internal/config"
	"confagent/internal/history"
	"confagent/internal/translate"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalFlags struct {
	historyDir string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "confagent",
		Short:         "Meeting transcripts, translations and summaries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.historyDir, "history-dir", "", "history directory (overrides config)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log provider failures to stderr")

	root.AddCommand(newHistoryCmd(flags))
	root.AddCommand(newTranslateCmd(flags))
	root.AddCommand(newSummarizeCmd(flags))
	root.AddCommand(newProvidersCmd(flags))
	return root
}

func loadCore(cmd *cobra.Command, flags *globalFlags) (bootstrap.Core, error) {
	logger := log.New(io.Discard, "", 0)
	if flags.verbose {
		logger = log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
	}
	return bootstrap.BuildCore(logger, config.WithHistoryDir(flags.historyDir))
}

func newHistoryCmd(flags *globalFlags) *cobra.Command {
	historyCmd := &cobra.Command{Use: "history", Short: "Saved meeting sessions"}

	historyCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved sessions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := loadCore(cmd, flags)
			if err != nil {
				return err
			}
			defer core.Close()
			records := core.History.Load()
			reversed := make([]history.Record, 0, len(records))
			for i := len(records) - 1; i >= 0; i-- {
				reversed = append(reversed, records[i])
			}
			return printRecords(cmd.OutOrStdout(), reversed)
		},
	})

	historyCmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print the transcript, translation and summary of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := loadCore(cmd, flags)
			if err != nil {
				return err
			}
			defer core.Close()
			record, ok := core.History.Get(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", history.ErrNotFound, args[0])
			}
			content, err := core.History.Read(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "id: %s\ndate: %s\nlanguage: %s\naudio: %s\n", record.ID, recordDate(record), record.Meta("language"), record.AudioFile)
			_, _ = fmt.Fprintf(out, "\n## Transcript\n%s\n\n## Translation\n%s\n\n## Summary\n%s\n", content.Transcript, content.Translation, content.Summary)
			return nil
		},
	})

	historyCmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session and its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := loadCore(cmd, flags)
			if err != nil {
				return err
			}
			defer core.Close()
			if !core.History.Delete(args[0]) {
				return fmt.Errorf("failed to delete %s", args[0])
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	})

	historyCmd.AddCommand(newHistoryEditCmd(flags))

	historyCmd.AddCommand(&cobra.Command{
		Use:   "search <query>",
		Short: "Find sessions containing text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := loadCore(cmd, flags)
			if err != nil {
				return err
			}
			defer core.Close()
			records, err := core.History.Search(commandContext(cmd), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printRecords(cmd.OutOrStdout(), records)
		},
	})

	historyCmd.AddCommand(&cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index from history.json",
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := loadCore(cmd, flags)
			if err != nil {
				return err
			}
			defer core.Close()
			count, err := core.History.Reindex(commandContext(cmd))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "indexed %d sessions\n", count)
			return nil
		},
	})

	return historyCmd
}

func newHistoryEditCmd(flags *globalFlags) *cobra.Command {
	var transcriptFile, translationFile, summaryFile string

	edit := &cobra.Command{
		Use:   "edit <id>",
		Short: "Replace session text from files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var update history.Update
			var err error
			if update.Transcript, err = readOptional(transcriptFile); err != nil {
				return err
			}
			if update.Translation, err = readOptional(translationFile); err != nil {
				return err
			}
			if update.Summary, err = readOptional(summaryFile); err != nil {
				return err
			}
			if update.Transcript == nil && update.Translation == nil && update.Summary == nil {
				return errors.New("nothing to edit: pass --transcript, --translation or --summary")
			}

			core, err := loadCore(cmd, flags)
			if err != nil {
				return err
			}
			defer core.Close()
			if !core.History.Update(args[0], update) {
				return fmt.Errorf("failed to update %s", args[0])
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", args[0])
			return nil
		},
	}
	edit.Flags().StringVar(&transcriptFile, "transcript", "", "file with the new transcript")
	edit.Flags().StringVar(&translationFile, "translation", "", "file with the new translation")
	edit.Flags().StringVar(&summaryFile, "summary", "", "file with the new summary")
	return edit
}

func newTranslateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "translate [text...]",
		Short: "Translate text into the target language (reads stdin without arguments)",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = string(data)
			}

			core, err := loadCore(cmd, flags)
			if err != nil {
				return err
			}
			defer core.Close()
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), core.Translator.Translate(commandContext(cmd), text))
			return nil
		},
	}
}

func newSummarizeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <file>...",
		Short: "Summarize one or more transcript files as a single meeting",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			segments := make([]string, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				segments = append(segments, string(data))
			}
			core, err := loadCore(cmd, flags)
			if err != nil {
				return err
			}
			defer core.Close()
			summary, err := core.Summarizer.SummarizeSegments(commandContext(cmd), segments, translate.LanguageName(core.Config.Translation.Target))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), summary)
			return nil
		},
	}
}

func newProvidersCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "Show the translation fallback order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := loadCore(cmd, flags)
			if err != nil {
				return err
			}
			defer core.Close()
			out := cmd.OutOrStdout()
			kinds := core.Translator.Providers()
			if len(kinds) == 0 {
				_, _ = fmt.Fprintln(out, "no translation providers configured")
			}
			for i, kind := range kinds {
				_, _ = fmt.Fprintf(out, "%d. %s\n", i+1, kind)
			}
			_, _ = fmt.Fprintf(out, "target: %s (%s)\nglossary terms: %d\n",
				core.Translator.Target(), translate.LanguageName(core.Translator.Target()), core.Glossary.Len())
			return nil
		},
	}
}

func printRecords(out io.Writer, records []history.Record) error {
	if len(records) == 0 {
		_, _ = fmt.Fprintln(out, "no sessions")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDATE\tLANGUAGE")
	for _, record := range records {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", record.ID, recordDate(record), record.Meta("language"))
	}
	return w.Flush()
}

func recordDate(record history.Record) string {
	if date := record.Meta("date"); date != "" {
		return date
	}
	return record.Timestamp
}

func readOptional(path string) (*string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := string(data)
	return &text, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
