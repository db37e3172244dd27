package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/appctx"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metadata"
)

// NewSchemaCommand creates the schema command group.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "ensure",
		Short: "Create the sequence table and every catalog table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, db, err := rootOpts.open()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := gw.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			n := len(gw.Catalog().Tables())
			return rootOpts.print(cmd.OutOrStdout(), map[string]int{"tables": n}, fmt.Sprintf("ensured %d tables", n))
		},
	})
	return cmd
}

// TableSummary describes one catalog table.
type TableSummary struct {
	Table       string `json:"table"`
	Columns     int    `json:"columns"`
	Traced      bool   `json:"traced"`
	Bill        bool   `json:"bill"`
	Interceptor string `json:"interceptor,omitempty"`
	Rules       int    `json:"bill_code_rules"`
}

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect catalog files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <file>",
		Short: "Validate a catalog file and summarize its tables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := metadata.LoadFile(args[0])
			if err != nil {
				return err
			}
			var (
				out   []TableSummary
				lines []string
			)
			for _, t := range c.Tables() {
				s := TableSummary{
					Table:       t.TableName,
					Columns:     len(c.Columns(t.TableName)),
					Traced:      t.IsTraceable(),
					Bill:        t.IsBill(),
					Interceptor: t.DataInterceptor,
					Rules:       len(c.BillCodeRules(t.TableName)),
				}
				out = append(out, s)
				lines = append(lines, fmt.Sprintf("%s\tcolumns=%d traced=%t bill=%t rules=%d", s.Table, s.Columns, s.Traced, s.Bill, s.Rules))
			}
			lines = append(lines, fmt.Sprintf("%d tables ok", len(out)))
			return rootOpts.print(cmd.OutOrStdout(), out, strings.Join(lines, "\n"))
		},
	})
	return cmd
}

// NewSequenceCommand creates the sequence command group.
func NewSequenceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sequence",
		Short: "Allocate sequence values",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "next <name>",
		Short: "Allocate and print the next value of a sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, db, err := rootOpts.open()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := gw.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			v, err := gw.NextSequence(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return rootOpts.print(cmd.OutOrStdout(), map[string]any{"sequence": args[0], "value": v}, fmt.Sprint(v))
		},
	})
	return cmd
}

// NewBillCodeCommand creates the billcode command.
func NewBillCodeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "billcode <table>",
		Short: "Allocate the bill codes of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, db, err := rootOpts.open()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := gw.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			codes, err := gw.GenerateBillCode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(codes) == 0 {
				return fmt.Errorf("table %s is not numbered", args[0])
			}
			fields := make([]string, 0, len(codes))
			for f := range codes {
				fields = append(fields, f)
			}
			sort.Strings(fields)
			lines := make([]string, len(fields))
			for i, f := range fields {
				lines[i] = f + "=" + codes[f]
			}
			return rootOpts.print(cmd.OutOrStdout(), codes, strings.Join(lines, "\n"))
		},
	}
}

// TokenOptions holds the flags of token issue.
type TokenOptions struct {
	Secret   string
	Issuer   string
	TTL      time.Duration
	Identity appctx.Context
}

// NewTokenCommand creates the token command group.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{}
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue API tokens",
	}
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Sign a bearer token carrying an application context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := opts.Secret
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return errors.New("no secret: pass --secret or set JWT_SECRET")
			}
			tok, err := appctx.IssueToken(&opts.Identity, []byte(secret), opts.Issuer, opts.TTL)
			if err != nil {
				return err
			}
			return rootOpts.print(cmd.OutOrStdout(), map[string]string{"token": tok}, tok)
		},
	}
	f := issue.Flags()
	f.StringVar(&opts.Secret, "secret", "", "HS256 secret (default $JWT_SECRET)")
	f.StringVar(&opts.Issuer, "issuer", "fapctl", "token issuer")
	f.DurationVar(&opts.TTL, "ttl", time.Hour, "token lifetime")
	f.StringVar(&opts.Identity.EmpUid, "emp", "", "employee id")
	f.StringVar(&opts.Identity.EmpName, "emp-name", "", "employee name")
	f.StringVar(&opts.Identity.UserUid, "user", "", "user id")
	f.StringVar(&opts.Identity.DeptUid, "dept", "", "department id")
	f.StringVar(&opts.Identity.DeptCode, "dept-code", "", "department code")
	f.StringVar(&opts.Identity.OrgUid, "org", "", "organization id")
	f.StringVar(&opts.Identity.GroupUid, "group", "", "group id")
	cmd.AddCommand(issue)
	return cmd
}
