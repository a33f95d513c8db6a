package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ambiora/techfest-backend/internal/config"
	"github.com/ambiora/techfest-backend/internal/database"
	"github.com/ambiora/techfest-backend/internal/export"
	"github.com/ambiora/techfest-backend/internal/queue"
	"github.com/ambiora/techfest-backend/internal/reconcile"
	"github.com/ambiora/techfest-backend/internal/repository/mongorepo"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tables or indexes for the configured store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		switch cfg.StoreDriver {
		case config.DriverMongo:
			conn := database.NewMongoConnector(cfg.MongoURI, cfg.MongoDB)
			conn.OnConnect = mongorepo.EnsureIndexes
			defer conn.Close(context.Background())
			if _, err := conn.EnsureConnected(ctx); err != nil {
				return err
			}
		case config.DriverMySQL:
			// openStore migrates on open
			s, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer s.Close(context.Background())
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "store %s needs no migration\n", cfg.StoreDriver)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s schema ready\n", cfg.StoreDriver)
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Settle stale pending registrations once against the gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		minAge, _ := cmd.Flags().GetDuration("min-age")
		batch, _ := cmd.Flags().GetInt("batch")
		if !cmd.Flags().Changed("min-age") {
			minAge = cfg.Reconcile.MinAge
		}
		if !cmd.Flags().Changed("batch") {
			batch = cfg.Reconcile.Batch
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, publisher(cfg))
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		r := &reconcile.Reconciler{
			Registrations: a.store,
			Payments:      a.regs,
			Gateway:       a.gateway,
			MinAge:        minAge,
			Batch:         batch,
			MaxAttempts:   cfg.Reconcile.MaxAttempts,
		}
		res, err := r.RunOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), res)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every registration as CSV to a file or object storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")
		toS3, _ := cmd.Flags().GetBool("s3")
		if bucket, _ := cmd.Flags().GetString("bucket"); bucket != "" {
			cfg.Export.Bucket = bucket
			toS3 = true
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, nil)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		var buf bytes.Buffer
		if err := a.admin.ExportCSV(ctx, &buf); err != nil {
			return err
		}
		name := export.FileName(time.Now())

		if toS3 {
			up, err := export.NewUploader(ctx, cfg.Export)
			if err != nil {
				return err
			}
			loc, err := up.Upload(ctx, "exports/"+name, buf.Bytes())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), loc)
			return nil
		}
		if out == "-" {
			_, err := cmd.OutOrStdout().Write(buf.Bytes())
			return err
		}
		if out == "" {
			out = name
		} else if st, err := os.Stat(out); err == nil && st.IsDir() {
			out = filepath.Join(out, name)
		}
		if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Append confirmed registrations from the broker to the registration log",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		c := &queue.Consumer{URL: cfg.Queue.URL, LogDir: cfg.Queue.LogDir}
		log.Printf("consuming %s into %s", queue.RegistrationConfirmedQueue, cfg.Queue.LogDir)
		if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	reconcileCmd.Flags().Duration("min-age", 0, "Only settle orders older than this (default RECONCILE_MIN_AGE)")
	reconcileCmd.Flags().Int("batch", 0, "Maximum orders per run (default RECONCILE_BATCH)")

	exportCmd.Flags().StringP("out", "o", "", "File or directory to write; - for stdout")
	exportCmd.Flags().Bool("s3", false, "Upload to EXPORT_S3_BUCKET instead of writing a file")
	exportCmd.Flags().String("bucket", "", "Upload to this bucket instead of EXPORT_S3_BUCKET")
}
