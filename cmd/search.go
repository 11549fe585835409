package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/DarthPollos/CV-Compare-Project/internal/candidates"
	"github.com/DarthPollos/CV-Compare-Project/internal/handoff"
	"github.com/DarthPollos/CV-Compare-Project/internal/logger"
	"github.com/DarthPollos/CV-Compare-Project/internal/pipeline"
)

const (
	PromptShowContacts        = "Show contact details"
	PromptAppendToExcludeFile = "Append shortlist to exclude file"
	PromptResultsToFile       = "Dump results to file"
	PromptExit                = "Exit"
	PromptBack                = "back"
)

var errExit = errors.New("exit requested")

var searchCmd = &cobra.Command{
	Use:   "search [job description]",
	Short: "Rank stored résumés against a job description",
	Args:  cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		search(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().Bool("no-rerank", false, "skip the llm and show the similarity ranking")
	searchCmd.Flags().Bool("rebuild", false, "rebuild the vector index before searching")
	searchCmd.Flags().IntP("top-k", "k", 0, "number of candidates to retrieve (default from retrieval.top-k)")
	searchCmd.Flags().BoolP("auto-approve", "y", false, "do not show the interactive menu, append the shortlist to the exclude file when one is set")
	searchCmd.Flags().StringP("exclude-file", "e", "", "file with already processed candidates to exclude. Default is unset.")

	viper.BindPFlag("exclude-file", searchCmd.Flags().Lookup("exclude-file"))
}

// search is the main command for the cli.
func search(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the cv-compare search", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	job, err := jobDescription(args)
	if err != nil {
		logger.Fatal("reading job description", zap.Error(err))
	}

	noRerank, _ := cmd.Flags().GetBool("no-rerank")
	rebuild, _ := cmd.Flags().GetBool("rebuild")
	topK, _ := cmd.Flags().GetInt("top-k")
	autoApprove, _ := cmd.Flags().GetBool("auto-approve")

	app, err := newComponents(ctx, config, config.Rerank.Enabled && !noRerank, rebuild, logger)
	if err != nil {
		logger.Fatal("building the pipeline", zap.Error(err))
	}
	defer app.Close()

	out := app.coordinator.Run(ctx, pipeline.Query{
		JobDescription: job,
		TopK:           topK,
		Rerank:         !noRerank,
	})

	if err := pipeline.Format(os.Stdout, out); err != nil {
		logger.Fatal("printing results", zap.Error(err))
	}

	if out.State != pipeline.StateDone {
		logger.Info("exiting", zap.String("reason", string(out.State)))
		return
	}

	shortlist := candidates.ToMatches(out.Candidates)

	if autoApprove {
		if config.ExcludeFile == "" {
			return
		}
		if err := appendToExcludeFile(config.ExcludeFile, shortlist, logger); err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		return
	}

	for {
		items := []string{PromptShowContacts, PromptResultsToFile}
		if config.ExcludeFile != "" && shortlist.Len() != 0 {
			items = append(items, PromptAppendToExcludeFile)
		}
		items = append(items, PromptExit)

		prompt := promptui.Select{
			Label: "What next?",
			Items: items,
		}

		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, app.handoff, config, shortlist, logger); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

// jobDescription joins the positional arguments or asks for the text interactively.
func jobDescription(args []string) (string, error) {
	if job := strings.TrimSpace(strings.Join(args, " ")); job != "" {
		return job, nil
	}

	prompt := promptui.Prompt{
		Label: "Job description",
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("job description is required")
			}
			return nil
		},
	}

	job, err := prompt.Run()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(job), nil
}

func handleAction(action string, hand *handoff.Store, config *Config, shortlist *candidates.Matches, logger *zap.Logger) error {
	switch action {
	case PromptShowContacts:
		return showContacts(hand, shortlist)
	case PromptResultsToFile:
		filename, err := shortlist.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptAppendToExcludeFile:
		return appendToExcludeFile(config.ExcludeFile, shortlist, logger)
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func showContacts(hand *handoff.Store, shortlist *candidates.Matches) error {
	for {
		items := make([]string, 0, shortlist.Len()+1)
		for _, m := range shortlist.Items {
			items = append(items, fmt.Sprintf("%s %s", m.Record.ID, m.Record.DisplayName()))
		}

		candidatePrompt := promptui.Select{
			Label: "Choose a candidate and press ENTER",
			Items: append(items, PromptBack),
		}

		i, _, err := candidatePrompt.Run()
		if err != nil {
			return err
		}
		m, ok := selectedCandidate(shortlist, i)
		if !ok {
			return nil
		}

		entry, err := hand.Get(m.Record.ID)
		if err != nil {
			return fmt.Errorf("resolving candidate %s: %w", m.Record.ID, err)
		}
		printContact(os.Stdout, entry)
	}
}

// selectedCandidate maps a prompt index to the shortlist, any index past it is "back".
func selectedCandidate(shortlist *candidates.Matches, i int) (*candidates.Match, bool) {
	if i < 0 || i >= shortlist.Len() {
		return nil, false
	}
	return shortlist.Items[i], true
}

func appendToExcludeFile(path string, shortlist *candidates.Matches, logger *zap.Logger) error {
	excluded, err := candidates.LoadExcluded(path)
	if err != nil {
		return fmt.Errorf("reading exclude file: %w", err)
	}

	excluded.Append(shortlist.ToExcluded())

	if err := excluded.ToFile(path); err != nil {
		return fmt.Errorf("writing exclude file: %w", err)
	}

	logger.Info("appended to exclude file", zap.String("filename", path), zap.Int("count", shortlist.Len()))
	return nil
}
