package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/laguileracl/leychile-epub/pkg/corpus"
	"github.com/laguileracl/leychile-epub/pkg/extract"
	"github.com/laguileracl/leychile-epub/pkg/norma"
	"github.com/laguileracl/leychile-epub/pkg/pattern"
	"github.com/laguileracl/leychile-epub/pkg/store"
	"github.com/laguileracl/leychile-epub/pkg/validate"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "leychile",
		Short: "Chilean legal norm structure extractor",
		Long: `leychile converts unstructured Chilean legal texts (laws, decrees,
NCGs, instructivos) into a validated hierarchical document model.

It classifies lines against ordered pattern rules, builds the
Libro/Título/Capítulo/Párrafo/Sección/Artículo tree, segments article
bodies, extracts metadata and cross-references, and tracks derogation
and modification relationships between norms.`,
		Version: version,
	}

	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(refsCmd())
	rootCmd.AddCommand(relationsCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(rulesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newParser builds a parser honoring the shared --rules-dir / --rules flags.
func newParser(cmd *cobra.Command) (*extract.Parser, error) {
	rulesDir, _ := cmd.Flags().GetString("rules-dir")
	rulesID, _ := cmd.Flags().GetString("rules")
	flat, _ := cmd.Flags().GetBool("flat")

	var opts []extract.Option
	if rulesDir != "" || rulesID != "" {
		registry := pattern.NewRegistry()
		if rulesDir != "" {
			if err := registry.LoadDirectory(rulesDir); err != nil {
				return nil, fmt.Errorf("loading rules: %w", err)
			}
		}
		if rulesID == "" {
			rulesID = "cl-default"
		}
		rs, ok := registry.Get(rulesID)
		if !ok {
			return nil, fmt.Errorf("rule set %q not found", rulesID)
		}
		opts = append(opts, extract.WithRules(rs))
	}
	if flat {
		opts = append(opts, extract.WithSegmentPolicy(extract.PolicySingleParagraph))
	}
	return extract.NewParser(opts...), nil
}

func addParseFlags(cmd *cobra.Command) {
	cmd.Flags().String("rules-dir", "", "directory of YAML rule sets")
	cmd.Flags().String("rules", "", "rule set ID to use (default cl-default)")
	cmd.Flags().Bool("flat", false, "keep article bodies as single paragraphs")
}

func parseFile(cmd *cobra.Command, path string) (*norma.Document, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	parser, err := newParser(cmd)
	if err != nil {
		return nil, nil, err
	}
	doc, err := parser.Parse(string(data))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc, data, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	data = append(data, '\n')
	if path == "" || path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a norm into its structural tree",
		Long: `Parse a plain-text norm and emit the document model as JSON.

Example:
  leychile parse ley-20720.txt --output ley-20720.json --stats`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			showStats, _ := cmd.Flags().GetBool("stats")

			start := time.Now()
			doc, _, err := parseFile(cmd, args[0])
			if err != nil {
				return err
			}

			if err := writeJSON(output, doc); err != nil {
				return err
			}

			if showStats {
				stats := doc.Statistics()
				fmt.Fprintf(os.Stderr, "Parsed %s in %s\n", args[0], time.Since(start).Round(time.Millisecond))
				fmt.Fprintf(os.Stderr, "  Libros: %d  Títulos: %d  Capítulos: %d  Párrafos: %d  Secciones: %d\n",
					stats.Books, stats.Titles, stats.Chapters, stats.Paragraphs, stats.Sections)
				fmt.Fprintf(os.Stderr, "  Artículos: %d (%d transitorios)\n", stats.Articles, stats.Transitory)
				if n := len(doc.Diagnostics); n > 0 {
					fmt.Fprintf(os.Stderr, "  Diagnósticos: %d\n", n)
				}
			}
			return nil
		},
	}
	addParseFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	cmd.Flags().Bool("stats", false, "print structural counts to stderr")
	return cmd
}

func refsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refs <file>",
		Short: "List article cross-references",
		Long: `Parse a norm and list every article's explicit references, internal
and external.

Example:
  leychile refs ley-20720.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")

			doc, _, err := parseFile(cmd, args[0])
			if err != nil {
				return err
			}

			type articleRefs struct {
				Article    string            `json:"articulo"`
				References []norma.Reference `json:"referencias"`
			}
			var out []articleRefs
			for _, a := range doc.AllArticles() {
				if len(a.References) == 0 {
					continue
				}
				out = append(out, articleRefs{Article: a.Number, References: a.References})
			}
			return writeJSON(output, out)
		},
	}
	addParseFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	return cmd
}

func relationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relations <file>",
		Short: "Track derogation and modification relationships",
		Long: `Parse a norm, derive the relationship edges its resolutive language
establishes (deroga, modifica, cita), record them in the store, and
emit them as JSON.

Example:
  leychile relations instructivo-5.txt --db relaciones.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			dbPath, _ := cmd.Flags().GetString("db")

			doc, _, err := parseFile(cmd, args[0])
			if err != nil {
				return err
			}

			st, err := openStore(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			tracker := extract.NewRelationTracker(st)
			edges, diags, err := tracker.Track(doc)
			if err != nil {
				return fmt.Errorf("tracking relations: %w", err)
			}

			for _, d := range diags {
				fmt.Fprintf(os.Stderr, "%s: %s\n", d.Rule, d.Reason)
			}
			return writeJSON(output, edges)
		},
	}
	addParseFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	cmd.Flags().String("db", "", "SQLite store path (default in-memory)")
	return cmd
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a parsed norm against declared totals",
		Long: `Parse a norm and run the conformance checks: structural counts
against declared totals, empty-article rate, parser warnings.
Exits nonzero on FAIL.

Example:
  leychile validate ley-20720.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")

			doc, data, err := parseFile(cmd, args[0])
			if err != nil {
				return err
			}

			result := validate.Document(doc, validate.ParseExpected(string(data)))
			if err := writeJSON(output, result); err != nil {
				return err
			}
			if result.Status == validate.StatusFail {
				return fmt.Errorf("validation failed")
			}
			return nil
		},
	}
	addParseFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	return cmd
}

func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <dir-or-files...>",
		Short: "Process a corpus of norms concurrently",
		Long: `Run the full pipeline over many documents with a worker pool,
sharing one relationship store across the corpus.

Example:
  leychile batch normas/ --workers 8 --db relaciones.db --relations`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			workers, _ := cmd.Flags().GetInt("workers")
			dbPath, _ := cmd.Flags().GetString("db")
			relations, _ := cmd.Flags().GetBool("relations")

			paths, err := expandPaths(args)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no .txt documents found")
			}

			var st store.Store
			if relations {
				st, err = openStore(dbPath)
				if err != nil {
					return err
				}
				defer st.Close()
			}

			runner := corpus.NewRunner(corpus.Config{
				Workers:        workers,
				TrackRelations: relations,
			}, st)

			start := time.Now()
			results, err := runner.Run(context.Background(), paths)
			if err != nil {
				return err
			}

			failed := 0
			for _, res := range results {
				if res.Err != "" {
					failed++
					fmt.Fprintf(os.Stderr, "%s: %s\n", res.Path, res.Err)
				}
			}
			fmt.Fprintf(os.Stderr, "Processed %d documents (%d failed) in %s\n",
				len(results), failed, time.Since(start).Round(time.Millisecond))

			return writeJSON(output, results)
		},
	}
	cmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	cmd.Flags().Int("workers", 4, "worker pool size")
	cmd.Flags().String("db", "", "SQLite store path (default in-memory)")
	cmd.Flags().Bool("relations", false, "also track relationships into the store")
	return cmd
}

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List available classification rule sets",
		RunE: func(cmd *cobra.Command, args []string) error {
			rulesDir, _ := cmd.Flags().GetString("rules-dir")

			registry := pattern.NewRegistry()
			if rulesDir != "" {
				if err := registry.LoadDirectory(rulesDir); err != nil {
					return fmt.Errorf("loading rules: %w", err)
				}
			}

			for _, rs := range registry.List() {
				fmt.Printf("%s\t%s\t(v%s)\t%d division, %d article, %d marker rules\n",
					rs.ID, rs.Name, rs.Version,
					len(rs.Divisions), len(rs.Articles), len(rs.Markers))
			}
			return nil
		},
	}
	cmd.Flags().String("rules-dir", "", "directory of YAML rule sets")
	return cmd
}

// openStore returns a SQLite store at the path, or an in-memory store when
// no path is given.
func openStore(path string) (store.Store, error) {
	if path == "" {
		return store.NewMemStore(), nil
	}
	st, err := store.OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return st, nil
}

// expandPaths resolves directories to the .txt files inside them.
func expandPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", arg, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
				continue
			}
			paths = append(paths, filepath.Join(arg, entry.Name()))
		}
	}
	return paths, nil
}
