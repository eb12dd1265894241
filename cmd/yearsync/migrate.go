package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/MarcoPoloResearchLab/yearsync/internal/syncdoc"
)

const maxDocumentFileBytes = 4 << 20

func newMigrateDocumentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-document <file>",
		Short: "Print a stored sync document upgraded to the current schema",
		Long:  "Decodes a document of either schema version and prints its current-version JSON. Use - to read stdin.",
		Args:  cobra.ExactArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			input := cmd.InOrStdin()
			if args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer file.Close()
				input = file
			}
			return migrateDocument(input, cmd.OutOrStdout(), time.Now())
		},
	}
}

func migrateDocument(input io.Reader, output io.Writer, now time.Time) error {
	payload, err := io.ReadAll(io.LimitReader(input, maxDocumentFileBytes+1))
	if err != nil {
		return err
	}
	if len(payload) > maxDocumentFileBytes {
		return fmt.Errorf("document exceeds %d bytes", maxDocumentFileBytes)
	}

	doc, err := syncdoc.Decode(payload)
	if err != nil {
		return err
	}
	migrated, err := syncdoc.Migrate(doc, now)
	if err != nil {
		return err
	}
	encoded, err := syncdoc.Encode(migrated)
	if err != nil {
		return err
	}

	var indented bytes.Buffer
	if err := json.Indent(&indented, encoded, "", "  "); err != nil {
		return err
	}
	indented.WriteByte('\n')
	_, err = indented.WriteTo(output)
	return err
}
