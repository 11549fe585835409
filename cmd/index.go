package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/DarthPollos/CV-Compare-Project/internal/logger"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the vector index",
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the vector index from the record store and persist it",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		rebuildIndex()
	},
}

func init() {
	indexCmd.AddCommand(indexRebuildCmd)
	rootCmd.AddCommand(indexCmd)
}

func rebuildIndex() {
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

	st, retriever, err := newRetriever(ctx, config, true, logger)
	if err != nil {
		logger.Fatal("building the retriever", zap.Error(err))
	}
	defer st.Close()

	count, err := retriever.Rebuild(ctx)
	if err != nil {
		logger.Fatal("rebuilding the index", zap.Error(err))
	}

	logger.Info("index rebuilt", zap.String("path", config.Index.Path), zap.Int("documents", count))
}
