package cli

import (
	"fmt"
	"path/filepath"

	"github.com/JonMunkholm/ingest/internal/ingest"
	"github.com/spf13/cobra"
)

func newClassifyCmd() *cobra.Command {
	var contentType string

	cmd := &cobra.Command{
		Use:   "classify <file>...",
		Short: "Print the content type the pipeline would assign",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			classifier := ingest.NewClassifier(nil)
			for _, path := range args {
				ct, err := classifier.ClassifyFile(path, filepath.Base(path), contentType)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", path, ct.Type, ct.Source)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&contentType, "type", "t", "", "Content type supplied with the files")
	return cmd
}
