package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"invoicemix/internal/core"
	"invoicemix/internal/validation"
)

var uploadFlags requestFlags

var uploadPath string

// uploadCmd runs a search over invoices read from a spreadsheet
var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Search combinations over invoices in a spreadsheet",
	Long: `Upload a spreadsheet (CSV or Excel) to the Combination Service, which
parses the invoices and searches combinations over them.`,
	Example: `  invoicemix upload --file invoices.xlsx --target 1500
  invoicemix upload -f invoices.csv -t 1500 --min 2 --export`,
	RunE: runUpload,
}

func init() {
	uploadFlags.register(uploadCmd)
	uploadCmd.Flags().StringVarP(&uploadPath, "file", "f", "", "Spreadsheet to upload")
}

// readUploadFile loads the spreadsheet. An empty path means no file was
// chosen, which validation reports.
func readUploadFile(path string) (*core.UploadFile, error) {
	if path == "" {
		return nil, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return &core.UploadFile{Name: filepath.Base(path), Content: content}, nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	file, err := readUploadFile(uploadPath)
	if err != nil {
		return err
	}

	orch := app.Orchestrator
	orch.State().SetUploadForm(validation.UploadForm{
		Target:      uploadFlags.target,
		MinInvoices: uploadFlags.min,
		MaxInvoices: uploadFlags.max,
		RequiredIDs: uploadFlags.required,
		File:        file,
	})

	res, err := orch.SubmitUpload(cmd.Context())
	if err != nil {
		return flowError(core.SourceUpload, err)
	}
	printResults(cmd.OutOrStdout(), app.Formatter, orch.State().Snapshot(), core.SourceUpload, res)
	return afterSearch(cmd, core.SourceUpload, uploadFlags)
}
