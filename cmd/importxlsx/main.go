package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/phenrril/tiendatextil/internal/app"
	"github.com/phenrril/tiendatextil/internal/config"
	"github.com/phenrril/tiendatextil/internal/domain"
	"github.com/phenrril/tiendatextil/internal/usecase"
)

type flags struct {
	supplier        string
	manufacturers   []string
	defaultCategory string
	mappingFile     string
	verbose         bool
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "importxlsx",
		Short:         "Importe un catalogue fournisseur (xlsx) dans la boutique",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if f.verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
		},
	}
	root.PersistentFlags().StringVarP(&f.supplier, "supplier", "s", "", "profil fournisseur (sologroup, toptex, imbretex)")
	root.PersistentFlags().BoolVarP(&f.verbose, "verbose", "v", false, "journal détaillé")
	_ = root.MarkPersistentFlagRequired("supplier")

	root.AddCommand(previewCmd(f), manufacturersCmd(f), runCmd(f))
	return root
}

// offlineUC is enough for commands that never reach the backend.
func offlineUC() *usecase.ImportUC { return &usecase.ImportUC{} }

func previewCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "preview FICHIER",
		Short: "Affiche les en-têtes, les premières lignes et le regroupement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			p, err := offlineUC().Preview(data, f.supplier)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		},
	}
}

func manufacturersCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "manufacturers FICHIER",
		Short: "Liste les marques présentes dans le fichier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			p, err := offlineUC().Preview(data, f.supplier)
			if err != nil {
				return err
			}
			for _, m := range p.Manufacturers {
				fmt.Fprintln(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
}

func runCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run FICHIER",
		Short: "Importe le fichier dans le backend configuré",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			req := usecase.ImportRequest{
				Supplier:        f.supplier,
				FileName:        args[0],
				Data:            data,
				Manufacturers:   f.manufacturers,
				DefaultCategory: f.defaultCategory,
			}
			if f.mappingFile != "" {
				raw, err := os.ReadFile(f.mappingFile)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(raw, &req.CategoryMapping); err != nil {
					return fmt.Errorf("mapping de catégories invalide: %w", err)
				}
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			final, err := a.ImportUC.RunSync(ctx, req, func(p domain.ImportProgress) {
				zlog.Debug().Int("courant", p.Current).Int("terminés", p.Completed).Int("total", p.Total).Msg(p.Status)
			})
			if err != nil {
				return err
			}
			for _, e := range final.Errors {
				zlog.Error().Msg(e)
			}
			for _, w := range final.Warnings {
				zlog.Warn().Msg(w)
			}
			fmt.Fprintln(cmd.OutOrStdout(), final.Status)
			if len(final.Errors) > 0 {
				return fmt.Errorf("%d erreur(s): %s", len(final.Errors), strings.Join(final.Errors[:min(3, len(final.Errors))], "; "))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&f.manufacturers, "manufacturer", "m", nil, "ne garder que ces marques (répétable)")
	cmd.Flags().StringVarP(&f.defaultCategory, "category", "c", "", "catégorie par défaut (uuid)")
	cmd.Flags().StringVar(&f.mappingFile, "category-mapping", "", "fichier JSON produit parent -> catégorie")
	return cmd
}

func buildApp(ctx context.Context, cfg *config.Config) (*app.App, error) {
	if cfg.CatalogBackend != config.BackendPostgres {
		return app.NewApp(ctx, cfg, nil)
	}
	db, err := app.OpenDB(cfg)
	if err != nil {
		return nil, err
	}
	a, err := app.NewApp(ctx, cfg, db)
	if err != nil {
		return nil, err
	}
	return a, a.Migrate()
}
