package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/librosapp/libros/backend/go-services/internal/book"
	"github.com/librosapp/libros/backend/go-services/internal/book/repository"
	"github.com/librosapp/libros/backend/go-services/internal/config"
	"github.com/librosapp/libros/backend/go-services/internal/database"
	"github.com/librosapp/libros/backend/go-services/pkg/logger"
	"github.com/spf13/cobra"
)

type seedOptions struct {
	DryRun bool
}

func newRootCommand() *cobra.Command {
	opts := &seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed [file]",
		Short: "Load books into the catalog",
		Long: `Load a JSON array of books into the MongoDB collection named by
MONGODB_DATABASE and MONGODB_COLLECTION. Reads stdin when the file is
omitted or "-". Every entry is validated before anything is written.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			src := "-"
			if len(args) == 1 {
				src = args[0]
			}
			return runSeed(cmd, opts, src)
		},
	}
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "validate the input without writing")
	return cmd
}

func runSeed(cmd *cobra.Command, opts *seedOptions, src string) error {
	in := cmd.InOrStdin()
	if src != "-" {
		f, err := os.Open(src)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	if opts.DryRun {
		books, err := decodeBooks(in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d books valid\n", len(books))
		return nil
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.MongoDB.URI == "" {
		return errors.New("MONGODB_URI is required")
	}
	logger.Init(cfg.Log.Level)
	logger.SetOutput(cmd.ErrOrStderr(), "console")
	defer logger.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := database.ConnectWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, database.Retry{
		Attempts: cfg.MongoDB.ConnectAttempts,
		Backoff:  time.Second,
		OnFailure: func(attempt int, err error) {
			logger.Warnf("attempt %d: failed to connect to MongoDB: %v", attempt, err)
		},
	})
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(dctx)
	}()

	repo := repository.NewMongoRepo(client.Database(cfg.MongoDB.Database).Collection(cfg.MongoDB.Collection))
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.Warnf("could not ensure indexes: %v", err)
	}
	n, err := seedBooks(ctx, repo, in)
	if err != nil {
		return err
	}
	logger.Println("seeded", n, "books into", cfg.MongoDB.Database+"."+cfg.MongoDB.Collection)
	fmt.Fprintf(cmd.OutOrStdout(), "%d books inserted\n", n)
	return nil
}

// decodeBooks reads a JSON array of books and validates every entry.
func decodeBooks(r io.Reader) ([]book.CreateInput, error) {
	var books []book.CreateInput
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&books); err != nil {
		return nil, fmt.Errorf("decode books: %w", err)
	}
	for i, in := range books {
		if err := in.Validate(); err != nil {
			return nil, fmt.Errorf("book %d: %w", i, err)
		}
	}
	return books, nil
}

// seedBooks inserts the books read from r and returns how many were stored.
// Nothing is written when any entry is invalid.
func seedBooks(ctx context.Context, repo repository.Repository, r io.Reader) (int, error) {
	books, err := decodeBooks(r)
	if err != nil {
		return 0, err
	}
	for i, in := range books {
		if err := repo.Insert(ctx, in.Book()); err != nil {
			return i, fmt.Errorf("insert book %d: %w", i, err)
		}
	}
	return len(books), nil
}
