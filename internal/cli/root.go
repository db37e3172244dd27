// Package cli implements fapctl, the administration tool of the persistence engine.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/dbcontext"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metadata"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/txn"
	"github.com/ovaphlow/pitchfork/service-persistence-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-persistence-go/pkg/utilities"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Catalog string
	Driver  string
	DSN     string
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the fapctl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fapctl",
		Short: "Administer the metadata driven persistence engine",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			if opts.Catalog == "" {
				opts.Catalog = os.Getenv("FAP_CATALOG_FILE")
			}
			for _, f := range ValidFormats {
				if f == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Catalog, "catalog", "", "catalog YAML file (default $FAP_CATALOG_FILE)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "database driver (default $DATABASE_DRIVER)")
	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", "", "database DSN (default $DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewCatalogCommand(opts))
	cmd.AddCommand(NewSequenceCommand(opts))
	cmd.AddCommand(NewBillCodeCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

func (o *RootOptions) loadCatalog() (*metadata.Catalog, error) {
	if o.Catalog == "" {
		return metadata.NewCatalog(), nil
	}
	return metadata.LoadFile(o.Catalog)
}

func (o *RootOptions) connect() (*sqlx.DB, error) {
	cfg := database.ConfigFromEnv()
	if o.Driver != "" {
		cfg.Driver = o.Driver
	}
	if o.DSN != "" {
		cfg.DSN = o.DSN
	}
	return database.Connect(cfg)
}

// open connects and builds a gateway over the catalog. The caller closes db.
func (o *RootOptions) open() (*dbcontext.DbContext, *sqlx.DB, error) {
	catalog, err := o.loadCatalog()
	if err != nil {
		return nil, nil, err
	}
	db, err := o.connect()
	if err != nil {
		return nil, nil, err
	}
	return dbcontext.New(txn.FromDB(db), catalog, dbcontext.WithIDGenerator(utilities.IDGeneratorFromEnv())), db, nil
}

// print writes v as JSON, or text as formatted by the caller.
func (o *RootOptions) print(w io.Writer, v any, text string) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
