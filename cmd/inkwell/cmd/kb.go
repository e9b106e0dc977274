package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/inkwell-tools/inkwell/internal/kb"
)

func newKBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Manage knowledge bases",
	}
	cmd.AddCommand(newKBCreateCmd())
	cmd.AddCommand(newKBListCmd())
	cmd.AddCommand(newKBDeleteCmd())
	cmd.AddCommand(newKBTestCmd())
	cmd.AddCommand(newKBPromptsCmd())
	return cmd
}

func newKBCreateCmd() *cobra.Command {
	var kbType string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			k, err := store.Create(args[0], kb.Type(kbType))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", k.ID, k.Name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&kbType, "type", "t", string(kb.TypeHistory),
		"Knowledge base type: history, outline, character")
	return cmd
}

func newKBListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List knowledge bases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			kbs := store.List()
			if len(kbs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no knowledge bases")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tFRAGMENTS\tUPDATED")
			for _, k := range kbs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					k.ID, k.Name, k.Type, len(k.Fragments),
					k.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}

func newKBDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newKBTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Verify embedding service connectivity and credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dims, err := newEmbedder().Probe(cmd.Context())
			if err != nil {
				return fmt.Errorf("embedding service probe failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: embedding service reachable, %d dimensions\n", dims)
			return nil
		},
	}
}

func newKBPromptsCmd() *cobra.Command {
	var polishID, predictionID string

	cmd := &cobra.Command{
		Use:   "prompts <id>",
		Short: "Set the prompt IDs bound to a knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.SetPromptIDs(args[0], polishID, predictionID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated prompts for %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&polishID, "polish", "", "Polish prompt ID")
	cmd.Flags().StringVar(&predictionID, "prediction", "", "Prediction prompt ID")
	return cmd
}
