package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vectorify/vectorify/internal/cache"
	"github.com/vectorify/vectorify/internal/config"
	"github.com/vectorify/vectorify/internal/db"
	"github.com/vectorify/vectorify/internal/multilayer"
)

func newCacheCmd() *cobra.Command {
	var cacheDir string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the embedding cache",
	}
	cmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "Cache directory (default: the global config's cache_dir)")

	cmd.AddCommand(
		newCacheStatsCmd(&cacheDir),
		newCacheListCmd(&cacheDir),
		newCacheClearCmd(&cacheDir),
		newCacheSearchCmd(&cacheDir),
	)
	return cmd
}

// openCacheStore opens the persistent cache read-write. Unlike process,
// cache subcommands fail when the database cannot be opened: inspecting
// a cache that is not there is an error, not something to degrade past.
func openCacheStore(cacheDir string) (*cache.SQLiteStore, func(), error) {
	if cacheDir == "" {
		gcfg, err := config.LoadGlobal(config.GlobalConfigPath())
		if err != nil {
			return nil, nil, err
		}
		cacheDir = gcfg.CacheDir
	}
	database, err := db.Open(config.CacheDBPath(cacheDir))
	if err != nil {
		return nil, nil, fmt.Errorf("open cache: %w", err)
	}
	return cache.NewSQLiteStore(database), func() { _ = database.Close() }, nil
}

func newCacheStatsCmd(cacheDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show entry counts and cache size",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openCacheStore(*cacheDir)
			if err != nil {
				return err
			}
			defer closeStore()

			stats, err := store.Stats()
			if err != nil {
				return err
			}
			fmt.Printf("Entries: %d\n", stats.Entries)
			fmt.Printf("Vector data: %s\n", humanBytes(stats.Bytes))
			if len(stats.ByType) > 0 {
				fmt.Println("By embedder type:")
				for _, typ := range sortedKeys(stats.ByType) {
					fmt.Printf("  %-24s %d\n", typ, stats.ByType[typ])
				}
			}
			return nil
		},
	}
}

func newCacheListCmd(cacheDir *string) *cobra.Command {
	var (
		typeFilter string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openCacheStore(*cacheDir)
			if err != nil {
				return err
			}
			defer closeStore()

			fmt.Printf("%-18s %-24s %6s  %s\n", "KEY", "TYPE", "DIM", "CREATED")
			n := 0
			err = store.Enumerate(func(e cache.Entry) error {
				if typeFilter != "" && e.EmbedderType != typeFilter {
					return nil
				}
				if limit > 0 && n >= limit {
					return errListFull
				}
				n++
				fmt.Printf("%-18s %-24s %6d  %s\n",
					e.Key[:16], e.EmbedderType, len(e.Vector), e.CreatedAt.Format("2006-01-02 15:04"))
				return nil
			})
			if err != nil && err != errListFull {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&typeFilter, "type", "", "Only show entries of this embedder type")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries to show (0 for all)")
	return cmd
}

var errListFull = fmt.Errorf("list limit reached")

func newCacheClearCmd(cacheDir *string) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached vector",
		Long: `Delete all entries from the embedding cache.

The cache never evicts on its own; clearing is the only way entries are
removed. The next process run recomputes (and re-caches) everything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openCacheStore(*cacheDir)
			if err != nil {
				return err
			}
			defer closeStore()

			stats, err := store.Stats()
			if err != nil {
				return err
			}
			if stats.Entries == 0 {
				fmt.Println("Cache is already empty.")
				return nil
			}
			if !yes && !confirmPrompt(fmt.Sprintf("This will delete %d cached vectors. Continue?", stats.Entries)) {
				fmt.Println("Aborted.")
				return nil
			}
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Printf("Deleted %d entries.\n", stats.Entries)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func newCacheSearchCmd(cacheDir *string) *cobra.Command {
	var (
		configPath string
		topK       int
	)
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Find cached vectors similar to a query text",
		Long: `Embed the query text through each configured layer and report the
nearest cached vectors per layer. Only layers whose dimensionality has
cached entries can return matches.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openCacheStore(*cacheDir)
			if err != nil {
				return err
			}
			defer closeStore()

			set, err := config.LoadLayerSet(configPath)
			if err != nil {
				return err
			}
			gcfg, _ := config.LoadGlobal(config.GlobalConfigPath())
			set.ApplyDefaults(gcfg)
			comp, err := multilayer.New(set, store)
			if err != nil {
				return err
			}

			inputs, err := comp.EncodeLayers(context.Background(), args[0])
			if err != nil {
				return err
			}
			for _, in := range inputs {
				matches, err := store.SearchSimilar(in.Vector, topK)
				if err != nil {
					return err
				}
				fmt.Printf("Layer %s (%d dims):\n", in.Name, len(in.Vector))
				if len(matches) == 0 {
					fmt.Println("  no matches")
					continue
				}
				for _, m := range matches {
					fmt.Printf("  %s  distance %.4f\n", m.Key[:16], m.Distance)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Layer configuration JSON file (required)")
	cmd.Flags().IntVarP(&topK, "top", "k", 5, "Matches to return per layer")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

// confirmPrompt asks for confirmation on the terminal. A
// non-interactive stdin counts as a refusal; scripts must pass --yes.
func confirmPrompt(prompt string) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false
	}
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(strings.ToLower(line))
	return line == "y" || line == "yes"
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
