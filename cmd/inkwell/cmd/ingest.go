package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/inkwell-tools/inkwell/internal/chunk"
	"github.com/inkwell-tools/inkwell/internal/gateway"
	"github.com/inkwell-tools/inkwell/internal/kb"
)

func newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <kb-id> <file>...",
		Short: "Chunk, embed, and add text files to a knowledge base",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			docs := make([]kb.Document, 0, len(args)-1)
			for _, path := range args[1:] {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				docs = append(docs, kb.Document{
					Path: filepath.Base(path),
					Text: string(data),
				})
			}

			embedder := gateway.NewCachedEmbedder(newEmbedder(), gateway.QueryCacheSize)
			chunker := chunk.New(cfg.Chunking.Size, cfg.Chunking.Overlap)

			stats, err := store.Ingest(cmd.Context(), args[0], docs, embedder, chunker)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ingested %d documents, %d fragments\n",
				stats.Documents, stats.Fragments)
			if stats.EmbeddingFailures > 0 {
				fmt.Fprintf(cmd.OutOrStdout(),
					"warning: %d fragments have no embedding (keyword search only)\n",
					stats.EmbeddingFailures)
			}
			return nil
		},
	}
	return cmd
}
