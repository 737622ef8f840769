package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/centralpricelist/pricelist/internal/app"
	"github.com/centralpricelist/pricelist/internal/platform/cache"
	"github.com/centralpricelist/pricelist/internal/platform/db"
	"github.com/centralpricelist/pricelist/internal/pricelist"
	"github.com/centralpricelist/pricelist/jobs"
)

// uploadFlags are the uploader's options as command line flags.
type uploadFlags struct {
	supplier  string
	priceType string
	markup    float64
	provider  string
}

func (f *uploadFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.supplier, "supplier", "s", "", "Supplier name (required)")
	cmd.Flags().StringVarP(&f.priceType, "price-type", "t", "", "retail_incl_vat, retail_excl_vat, cost_incl_vat, cost_excl_vat or auto")
	cmd.Flags().Float64VarP(&f.markup, "markup", "m", 0, "Markup percentage (default: estimated per product)")
	cmd.Flags().StringVar(&f.provider, "provider", "", "Oracle provider: openai or anthropic")
	_ = cmd.MarkFlagRequired("supplier")
}

func (f *uploadFlags) options(cmd *cobra.Command, path string) pricelist.Options {
	opts := pricelist.Options{
		SupplierName: f.supplier,
		PriceType:    f.priceType,
		Provider:     f.provider,
		SourceFile:   filepath.Base(path),
	}
	if cmd.Flags().Changed("markup") {
		markup := f.markup
		opts.Markup = &markup
	}
	return opts
}

func readDocument(path string) (pricelist.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pricelist.Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	return pricelist.Document{Filename: filepath.Base(path), Data: data}, nil
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func newParseCmd(e *env) *cobra.Command {
	var flags uploadFlags
	var pretty bool
	cmd := &cobra.Command{
		Use:   "parse FILE",
		Short: "Parse and price a local pricelist without saving it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			svc := pricelist.NewService(nil, pricelist.NewMemoryStatusStore(), e.oracles(), nil, e.logger, e.cfg.PricelistConfig())
			res, err := svc.Parse(cmd.Context(), doc, flags.options(cmd, args[0]))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res, pretty)
		},
	}
	flags.bind(cmd)
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Pretty-print JSON output")
	return cmd
}

func newImportCmd(e *env) *cobra.Command {
	var flags uploadFlags
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Parse a local pricelist and save it to the central pricelist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			pool, err := db.New(ctx, e.cfg.PGDSN, db.PoolConfig{MaxConns: 4})
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := pricelist.EnsureSchema(ctx, pool); err != nil {
				return err
			}
			svc := pricelist.NewService(pricelist.NewRepository(pool), pricelist.NewMemoryStatusStore(), e.oracles(), nil, e.logger, e.cfg.PricelistConfig())
			summary, err := svc.Import(ctx, doc, flags.options(cmd, args[0]))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summary, true)
		},
	}
	flags.bind(cmd)
	return cmd
}

func newEnqueueCmd(e *env) *cobra.Command {
	var flags uploadFlags
	cmd := &cobra.Command{
		Use:   "enqueue FILE",
		Short: "Spool a local pricelist and queue it for the worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			redisClient, err := cache.New(ctx, e.cfg.RedisAddr)
			if err != nil {
				return err
			}
			defer redisClient.Close()
			spool, err := pricelist.NewSpool(e.cfg.UploadDir)
			if err != nil {
				return err
			}
			client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: e.cfg.RedisAddr})
			if err != nil {
				return err
			}
			defer client.Close()

			statuses := pricelist.NewRedisStatusStore(redisClient, e.cfg.StatusTTL).WithLogger(e.logger)
			svc := pricelist.NewService(nil, statuses, nil, nil, e.logger, e.cfg.PricelistConfig())
			opts := flags.options(cmd, args[0])
			status, err := svc.StartUpload(ctx, doc.Filename, opts)
			if err != nil {
				return err
			}
			path, err := spool.Save(status.ID, doc.Filename, doc.Data)
			if err != nil {
				svc.FailUpload(ctx, status.ID, err)
				return err
			}
			if err := client.EnqueueUpload(ctx, pricelist.Upload{ID: status.ID, Filename: doc.Filename, Path: path, Options: opts}); err != nil {
				svc.FailUpload(ctx, status.ID, err)
				_ = spool.Remove(path)
				return err
			}
			return writeJSON(cmd.OutOrStdout(), status, true)
		},
	}
	flags.bind(cmd)
	return cmd
}

func newQueueCmd(e *env) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show the worker queues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: e.cfg.RedisAddr})
			defer inspector.Close()
			stats, err := jobs.InspectQueues(inspector)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), stats, true)
			}
			return writeQueueTable(cmd.OutOrStdout(), stats)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func writeQueueTable(w io.Writer, stats []jobs.QueueStats) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tARCHIVED")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Archived)
	}
	return tw.Flush()
}

func newCleanupCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Queue an upload retention run now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: e.cfg.RedisAddr})
			if err != nil {
				return err
			}
			defer client.Close()
			info, err := client.EnqueueCleanup(cmd.Context(), e.cfg.UploadRetention)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s (%s) on %s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Read the admin password from stdin and print its ADMIN_PASSWORD_HASH",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			password := strings.TrimRight(line, "\r\n")
			if len(password) < 8 {
				return errors.New("admin password must be at least 8 characters")
			}
			hash, err := app.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
