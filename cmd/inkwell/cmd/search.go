package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inkwell-tools/inkwell/internal/search"
)

type searchFlags struct {
	limit    int
	alpha    float64
	noRerank bool
	useMMR   bool
	format   string
}

func newSearchCmd() *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "search <kb-id> <query>...",
		Short: "Retrieve the most relevant fragments for a query",
		Long: `Search a knowledge base with hybrid retrieval: BM25 keyword matching
and embedding similarity fused by reciprocal rank, then filtered,
optionally diversified and reranked, and expanded with neighboring
fragments for context.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args[1:], " ")

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if cfg.Storage.Watch {
				if err := store.Watch(); err != nil {
					return err
				}
			}

			k, err := store.Get(args[0])
			if err != nil {
				return err
			}

			var engine *search.Engine
			if flags.noRerank {
				engine, err = search.New(newEmbedder())
			} else {
				engine, err = newEngine()
			}
			if err != nil {
				return err
			}
			store.OnExternalChange(engine.InvalidateIndexes)

			opts := searchOptions()
			if cmd.Flags().Changed("limit") {
				opts.FinalTopN = flags.limit
			}
			if cmd.Flags().Changed("alpha") {
				opts.Alpha = flags.alpha
			}
			if flags.useMMR {
				opts.UseMMR = true
			}

			resp, err := engine.Search(cmd.Context(), query, k, opts)
			if err != nil {
				return err
			}

			switch flags.format {
			case "json":
				return printJSON(cmd, resp)
			default:
				return printText(cmd, query, resp)
			}
		},
	}

	cmd.Flags().IntVarP(&flags.limit, "limit", "n", 5, "Maximum number of results")
	cmd.Flags().Float64Var(&flags.alpha, "alpha", 0.7, "Vector weight in fusion (0 = keyword only, 1 = vector only)")
	cmd.Flags().BoolVar(&flags.noRerank, "no-rerank", false, "Skip the rerank stage")
	cmd.Flags().BoolVar(&flags.useMMR, "mmr", false, "Diversify results with maximal marginal relevance")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func printText(cmd *cobra.Command, query string, resp *search.Response) error {
	out := cmd.OutOrStdout()

	if len(resp.Candidates) == 0 {
		fmt.Fprintf(out, "no results for %q\n", query)
		return nil
	}
	if resp.BM25Only {
		fmt.Fprintln(out, "note: embedding unavailable, keyword results only")
	}
	if resp.LowConfidence {
		fmt.Fprintln(out, "note: low-confidence results")
	}

	fmt.Fprintf(out, "%d results for %q:\n\n", len(resp.Candidates), query)
	for i, c := range resp.Candidates {
		fmt.Fprintf(out, "%d. %s #%d (score: %.3f)\n",
			i+1, c.Fragment.SourcePath, c.Fragment.ChunkIndex, c.BoostedScore)
		for _, line := range snippet(c.Fragment.Content, 3) {
			fmt.Fprintf(out, "   %s\n", line)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func printJSON(cmd *cobra.Command, resp *search.Response) error {
	type jsonResult struct {
		SourcePath string  `json:"source_path"`
		ChunkIndex int     `json:"chunk_index"`
		Score      float64 `json:"score"`
		Content    string  `json:"content"`
		Context    string  `json:"context"`
	}
	type jsonResponse struct {
		BM25Only      bool         `json:"bm25_only"`
		LowConfidence bool         `json:"low_confidence"`
		Results       []jsonResult `json:"results"`
	}

	payload := jsonResponse{
		BM25Only:      resp.BM25Only,
		LowConfidence: resp.LowConfidence,
		Results:       make([]jsonResult, 0, len(resp.Candidates)),
	}
	for _, c := range resp.Candidates {
		payload.Results = append(payload.Results, jsonResult{
			SourcePath: c.Fragment.SourcePath,
			ChunkIndex: c.Fragment.ChunkIndex,
			Score:      c.BoostedScore,
			Content:    c.Fragment.Content,
			Context:    c.Context,
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

// snippet returns the first n non-trailing-empty lines of content.
func snippet(content string, n int) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
