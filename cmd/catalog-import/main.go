// Command catalog-import loads the product catalog CSV, and optionally the
// opening stock sheet, without going through the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"go-fundo-ops/internal/config"
	"go-fundo-ops/internal/importer"
	"go-fundo-ops/internal/repository"
	"go-fundo-ops/internal/service"
	"go-fundo-ops/pkg/database"
	applogger "go-fundo-ops/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	var (
		envFile   string
		stockPath string
		actor     string
	)

	cmd := &cobra.Command{
		Use:          "catalog-import <catalog.csv>",
		Short:        "Upsert the product catalog and optional opening stock",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := applogger.Must(applogger.NewDevelopment())
			defer logger.Sync()

			// 1. Parse the sheets before touching the database
			catalog, err := readFile(args[0], importer.ReadCatalog)
			if err != nil {
				return err
			}
			var stock *importer.StockSheet
			if stockPath != "" {
				if stock, err = readFile(stockPath, importer.ReadStock); err != nil {
					return err
				}
			}

			// 2. Load config and connect
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			db, err := database.ConnectDB(cfg.DatabaseSettings())
			if err != nil {
				return err
			}
			if err := db.AutoMigrate(repository.Tables()...); err != nil {
				return err
			}

			// 3. Import
			gw := repository.NewGateway(db, applogger.Named(logger, "gateway"))
			catalogService := service.NewCatalogService(gw, repository.NewProductRepo(db), service.SettingsFromConfig(cfg), logger)
			result, err := catalogService.Import(context.Background(), catalog, stock, actor)
			if err != nil {
				return err
			}

			logger.Info("catalog imported",
				zap.Int("created", result.Created),
				zap.Int("updated", result.Updated),
				zap.Int("lots", result.Lots),
				zap.Int("rejected", len(result.Rejected)+len(result.StockRejected)),
			)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringVar(&envFile, "env", "", "env file to load")
	cmd.Flags().StringVar(&stockPath, "stock", "", "opening stock CSV")
	cmd.Flags().StringVar(&actor, "actor", "cli:catalog-import", "name recorded in the audit columns")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func readFile[T any](path string, read func(r io.Reader) (*T, error)) (*T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return read(f)
}
