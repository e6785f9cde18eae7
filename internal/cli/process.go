package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/vectorify/vectorify/internal/cache"
	"github.com/vectorify/vectorify/internal/config"
	"github.com/vectorify/vectorify/internal/db"
	"github.com/vectorify/vectorify/internal/jsonl"
	"github.com/vectorify/vectorify/internal/multilayer"
)

func newProcessCmd() *cobra.Command {
	var (
		inputPath     string
		outputPath    string
		configPath    string
		fieldMain     []string
		fieldSubtitle []string
		outputField   string
		cacheDir      string
		workers       int
		noCache       bool
		watch         bool
		verbose       bool
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Embed a JSONL file through the configured layers",
		Long: `Read JSONL records, embed the configured text fields through every
layer, fuse the layer vectors, and write the records back out with the
vector attached.

Per-layer results are cached in a local SQLite database keyed by content
fingerprint. Unchanged records on a re-run are served from the cache
without touching any embedding backend.

  vectorify process --input posts.jsonl --config layers.json
  vectorify process --input posts.jsonl --config layers.json \
      --input-field-main title --input-field-subtitle content \
      --output posts_vectors.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			gcfg, err := config.LoadGlobal(config.GlobalConfigPath())
			if err != nil {
				return err
			}
			if len(fieldMain) == 0 {
				fieldMain = []string{gcfg.Process.FieldMain}
			}
			if len(fieldSubtitle) == 0 && gcfg.Process.FieldSubtitle != "" {
				fieldSubtitle = []string{gcfg.Process.FieldSubtitle}
			}
			if workers <= 0 {
				workers = gcfg.Process.Workers
			}
			if cacheDir == "" {
				cacheDir = gcfg.CacheDir
			}
			if outputPath == "" {
				outputPath = derivedOutputPath(inputPath)
			}

			set, err := config.LoadLayerSet(configPath)
			if err != nil {
				return err
			}
			set.ApplyDefaults(gcfg)

			store, closeStore := openStore(cacheDir, noCache)
			defer closeStore()

			comp, err := multilayer.New(set, store)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			opts := processOpts{
				fieldMain:     fieldMain,
				fieldSubtitle: fieldSubtitle,
				outputField:   outputField,
				workers:       workers,
				verbose:       verbose,
			}
			if err := processFile(ctx, comp, inputPath, outputPath, opts); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			return watchAndReprocess(ctx, comp, inputPath, outputPath, opts)
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input JSONL file (required)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output JSONL file (default: <input>_vectorified.jsonl)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Layer configuration JSON file (required)")
	cmd.Flags().StringSliceVar(&fieldMain, "input-field-main", nil, "Main text field(s) to embed")
	cmd.Flags().StringSliceVar(&fieldSubtitle, "input-field-subtitle", nil, "Additional text field(s) appended to the main text")
	cmd.Flags().StringVar(&outputField, "output-field", "vector", "Record field for the fused vector")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "Cache directory (default: the global config's cache_dir)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent records (default: the global config's workers)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Keep layer vectors in memory only for this run")
	cmd.Flags().BoolVar(&watch, "watch", false, "Re-process whenever the input file changes")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print per-record failures as they happen")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

// openStore opens the SQLite cache, degrading to a process-local memory
// store when the database cannot be opened or caching is disabled.
func openStore(cacheDir string, noCache bool) (cache.Store, func()) {
	if noCache {
		return cache.NewMemoryStore(), func() {}
	}
	database, err := db.Open(config.CacheDBPath(cacheDir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: cache unavailable, computing without it: %v\n", err)
		return cache.NewMemoryStore(), func() {}
	}
	return cache.NewSQLiteStore(database), func() { _ = database.Close() }
}

type processOpts struct {
	fieldMain     []string
	fieldSubtitle []string
	outputField   string
	workers       int
	verbose       bool
}

// processFile runs one full pass: read every record, fit trainable
// layers on the corpus, embed concurrently, write records back out in
// input order. A record that fails to embed is written unchanged and
// counted; only configuration problems abort the pass.
func processFile(ctx context.Context, comp *multilayer.Composite, inputPath, outputPath string, opts processOpts) error {
	in, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	records, err := jsonl.NewReader(in).ReadAll()
	_ = in.Close()
	if err != nil {
		return err
	}

	// Records without embeddable text are never scheduled; they pass
	// through to the output untouched.
	embedIdx := make([]int, 0, len(records))
	texts := make([]string, 0, len(records))
	for i, rec := range records {
		if text := rec.Text(opts.fieldMain, opts.fieldSubtitle); text != "" {
			embedIdx = append(embedIdx, i)
			texts = append(texts, text)
		}
	}

	if comp.HasTrainable() {
		if len(texts) == 0 {
			return fmt.Errorf("no text found in %q fields to fit trainable layers", opts.fieldMain)
		}
		if err := comp.Fit(texts); err != nil {
			return err
		}
	}

	bar := progressbar.NewOptions(len(texts),
		progressbar.OptionSetDescription("  Embedding"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
	results, err := comp.EmbedBatch(ctx, texts, opts.workers, func(r multilayer.Result) {
		_ = bar.Add(1)
		if r.Err != nil && opts.verbose {
			fmt.Fprintf(os.Stderr, "record %d: %v\n", embedIdx[r.Index]+1, r.Err)
		}
	})
	_ = bar.Finish()
	if err != nil {
		return err
	}

	resultFor := make([]*multilayer.Result, len(records))
	for j := range results {
		resultFor[embedIdx[j]] = &results[j]
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	w := jsonl.NewWriter(out)
	var embedded, skipped, failed int
	for i, rec := range records {
		r := resultFor[i]
		switch {
		case r == nil:
			skipped++
			err = w.Write(rec)
		case r.Err != nil:
			failed++
			err = w.Write(rec)
		default:
			embedded++
			err = w.WriteVector(rec, opts.outputField, r.Vector)
		}
		if err != nil {
			return err
		}
	}

	fmt.Printf("Processed %d records: %d embedded, %d without text, %d failed -> %s\n",
		len(records), embedded, skipped, failed, outputPath)
	if failed > 0 && !opts.verbose {
		fmt.Fprintln(os.Stderr, "Some records failed; re-run with --verbose for details.")
	}
	return nil
}

// watchAndReprocess re-runs processFile whenever the input file
// changes. Rapid successive writes are debounced into one pass.
func watchAndReprocess(ctx context.Context, comp *multilayer.Composite, inputPath, outputPath string, opts processOpts) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors often replace the file, which drops
	// a watch on the file itself.
	if err := watcher.Add(filepath.Dir(inputPath)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(inputPath), err)
	}

	const debounce = 500 * time.Millisecond
	fmt.Printf("Watching %s for changes (debounce %s). Press Ctrl-C to stop.\n", inputPath, debounce)

	timer := time.NewTimer(debounce)
	timer.Stop()

	absInput, _ := filepath.Abs(inputPath)
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nStopping watcher.")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			abs, _ := filepath.Abs(event.Name)
			if abs != absInput {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(debounce)
			}

		case <-timer.C:
			if err := processFile(ctx, comp, inputPath, outputPath, opts); err != nil {
				fmt.Fprintf(os.Stderr, "re-process failed: %v\n", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
		}
	}
}

func derivedOutputPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	return inputPath[:len(inputPath)-len(ext)] + "_vectorified" + ext
}
