package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/dgallion1/docground/internal/document"
	"github.com/dgallion1/docground/internal/pipeline"
)

var (
	extractTemplate string
	extractFields   []string
)

var extractCmd = &cobra.Command{
	Use:   "extract FILE",
	Short: "Extract template fields from one document and print the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tpl, err := loadTemplate(extractTemplate, extractFields)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "read document")
		}

		env, err := initEnv(cfg, log)
		if err != nil {
			return err
		}
		defer env.Close()

		resp, err := env.Processor.Process(cmd.Context(), pipeline.Request{
			RequestID: pipeline.NewRequestID(),
			Filename:  filepath.Base(args[0]),
			Data:      data,
			Template:  tpl,
		})
		if err != nil {
			return eris.Wrap(err, "extract")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

// loadTemplate reads a JSON template file, or builds one from --field flags.
func loadTemplate(path string, fields []string) (document.Template, error) {
	if path == "" {
		if len(fields) == 0 {
			return document.Template{}, eris.New("either --template or --field is required")
		}
		tpl := document.Template{Fields: fields}
		tpl.Normalize()
		return tpl, tpl.Validate()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return document.Template{}, eris.Wrap(err, "read template")
	}
	return document.ParseTemplate(raw)
}

func init() {
	extractCmd.Flags().StringVarP(&extractTemplate, "template", "t", "", "template JSON file")
	extractCmd.Flags().StringSliceVarP(&extractFields, "field", "f", nil, "field to extract (repeatable, used without --template)")
	rootCmd.AddCommand(extractCmd)
}
