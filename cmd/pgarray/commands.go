package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pgarray/internal/config"
	"pgarray/internal/ddl"
	"pgarray/internal/loader"
	"pgarray/internal/metrics"
	"pgarray/internal/storage"
)

var errMissingConfig = errors.New("no declaration file: pass --config or set PGARRAY_CONFIG")

func newCheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the declaration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.configPath == "" {
				return errMissingConfig
			}
			decl, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			issues := config.Validate(decl)
			out := cmd.OutOrStdout()
			for _, iss := range issues {
				fmt.Fprintf(out, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
			}
			if err := issues.Err(); err != nil {
				return fmt.Errorf("%s is invalid: %w", opts.configPath, err)
			}
			fmt.Fprintf(out, "%s: ok (%d fields)\n", opts.configPath, len(decl.Fields))
			return nil
		},
	}
}

func newDDLCmd(opts *options) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "ddl",
		Short: "Print CREATE TABLE for the declared table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			decl, issues, err := opts.declaration()
			if err != nil {
				return err
			}
			if err := issues.Err(); err != nil {
				return err
			}
			if kind == "" {
				kind = decl.Storage.Kind
			}
			d, ok := ddl.ForKind(kind)
			if !ok {
				return fmt.Errorf("unsupported storage kind %q", kind)
			}
			sql, err := ddl.CreateTableSQL(decl, d)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sql)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "render for this storage kind instead of storage.kind")
	return cmd
}

func newLoadCmd(opts *options) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load a CSV file into the declared table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			decl, issues, err := opts.declaration()
			if err != nil {
				return err
			}
			if err := issues.Err(); err != nil {
				return err
			}
			job := decl.JobName()

			flush, err := opts.setupMetrics(job)
			if err != nil {
				return err
			}
			defer flush()
			done := metrics.Step(job, "load")
			defer func() { done(err) }()

			in, closeIn, err := openInput(input, cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer closeIn()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			repo, err := storage.New(ctx, storage.ConfigFrom(decl))
			if err != nil {
				return err
			}
			defer repo.Close()

			if decl.Storage.AutoCreateTable {
				if err := storage.EnsureTable(ctx, repo, decl); err != nil {
					return err
				}
			}

			sum, err := loader.Load(ctx, decl, repo, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rows=%d inserted=%d rejected=%d duplicates=%d batches=%d elapsed=%s\n",
				sum.Rows, sum.Inserted, sum.Rejected, sum.Duplicates, sum.Batches, sum.Elapsed.Truncate(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "-", `CSV file to load, "-" for stdin`)
	return cmd
}

func newDumpCmd(opts *options) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write the declared table as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			decl, issues, err := opts.declaration()
			if err != nil {
				return err
			}
			if err := issues.Err(); err != nil {
				return err
			}
			job := decl.JobName()

			flush, err := opts.setupMetrics(job)
			if err != nil {
				return err
			}
			defer flush()
			done := metrics.Step(job, "dump")
			defer func() { done(err) }()

			out, closeOut, err := openOutput(output, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() {
				if cerr := closeOut(); cerr != nil && err == nil {
					err = cerr
				}
			}()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			repo, err := storage.New(ctx, storage.ConfigFrom(decl))
			if err != nil {
				return err
			}
			defer repo.Close()

			n, err := loader.Dump(ctx, decl, repo, out)
			if err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{"rows": n, "output": output}).Debug("dump: done")
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", `JSON lines file to write, "-" for stdout`)
	return cmd
}

func openInput(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	adviseSequential(f)
	return f, func() { _ = f.Close() }, nil
}

func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, f.Close, nil
}
