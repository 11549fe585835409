package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/DarthPollos/CV-Compare-Project/internal/candidates"
	"github.com/DarthPollos/CV-Compare-Project/internal/handoff"
	"github.com/DarthPollos/CV-Compare-Project/internal/logger"
)

var candidateCmd = &cobra.Command{
	Use:   "candidate <id>",
	Short: "Show a candidate from the last published shortlist",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		showCandidate(args[0])
	},
}

func init() {
	rootCmd.AddCommand(candidateCmd)
}

func showCandidate(id string) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	hand, err := handoff.Open(config.Handoff.File)
	if err != nil {
		logger.Fatal("opening handoff file", zap.String("path", config.Handoff.File), zap.Error(err))
	}

	entry, err := hand.Get(id)
	if err != nil {
		logger.Fatal("resolving candidate",
			zap.String("candidate_id", id),
			zap.String("query_id", hand.QueryID()),
			zap.Error(err),
		)
	}

	printContact(os.Stdout, entry)
}

func printContact(w io.Writer, entry *handoff.Entry) {
	r := entry.Record
	fmt.Fprintf(w, "#%d CV ID: %s | Name: %s\n", entry.Position, r.ID, r.DisplayName())
	fmt.Fprintf(w, "Email: %s\n", candidates.OrMissing(r.Email))
	fmt.Fprintf(w, "Phone: %s\n", candidates.OrMissing(r.Phone))
	fmt.Fprintf(w, "Location: %s\n", candidates.OrMissing(r.Location))
	if entry.Justification != "" {
		fmt.Fprintf(w, "Justification: %s\n", entry.Justification)
	}
	fmt.Fprintln(w)
}
