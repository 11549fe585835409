package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/DarthPollos/CV-Compare-Project/internal/candidates"
	"github.com/DarthPollos/CV-Compare-Project/internal/logger"
	"github.com/DarthPollos/CV-Compare-Project/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Load candidate records from a JSON array into the record store",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		importRecords(args[0])
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func importRecords(path string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Fatal("reading records file", zap.String("path", path), zap.Error(err))
	}

	records, err := decodeRecords(data)
	if err != nil {
		logger.Fatal("decoding records", zap.String("path", path), zap.Error(err))
	}

	st, err := store.Open(ctx, config.Store.Driver, config.Store.DSN)
	if err != nil {
		logger.Fatal("opening record store", zap.Error(err))
	}
	defer st.Close()

	if err := st.Put(ctx, records); err != nil {
		logger.Fatal("storing records", zap.Error(err))
	}

	logger.Info("records imported",
		zap.String("path", path),
		zap.Int("count", len(records)),
		zap.String("hint", "run 'cv-compare index rebuild' or search with --rebuild to refresh the index"),
	)
}

// decodeRecords reads a JSON array of loosely typed objects. Numeric values
// become strings and lists are joined, so {"id": 151, "skills": ["Go", "SQL"]}
// is accepted.
func decodeRecords(data []byte) ([]*candidates.Record, error) {
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing json array: %w", err)
	}

	validate := validator.New()
	records := make([]*candidates.Record, 0, len(raw))
	for i, item := range raw {
		rec := &candidates.Record{}
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			DecodeHook:       joinSliceHook,
			WeaklyTypedInput: true,
			Result:           rec,
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(item); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}

		rec.Normalize()
		if err := validate.Struct(rec); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func joinSliceHook(from, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.String || from.Kind() != reflect.Slice {
		return data, nil
	}

	items := reflect.ValueOf(data)
	parts := make([]string, 0, items.Len())
	for i := 0; i < items.Len(); i++ {
		parts = append(parts, strings.TrimSpace(fmt.Sprint(items.Index(i).Interface())))
	}
	return strings.Join(parts, ", "), nil
}
