package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/raaihank/chatpsy/internal/highlight"
	"github.com/raaihank/chatpsy/internal/ingest"
	"github.com/raaihank/chatpsy/internal/privacy"
)

type anonymizeOptions struct {
	asJSON  bool
	legend  bool
	preview int
	mode    string
	color   string
}

type anonymizeOutput struct {
	Anonymized string             `json:"anonymized"`
	Mapping    map[string]string  `json:"mapping"`
	Findings   []privacy.Finding  `json:"findings"`
	FileNames  []string           `json:"file_names"`
	Rejected   []ingest.Rejection `json:"rejected,omitempty"`
}

func newAnonymizeCmd(root *rootOptions) *cobra.Command {
	opts := &anonymizeOptions{}

	cmd := &cobra.Command{
		Use:   "anonymize [files...]",
		Short: "Anonymize chat exports and print the result",
		Long: `Reads .txt, .html, .htm and .zip exports (or stdin when no file, or "-",
is given), replaces participant names with USER_<n> aliases, redacts phone
numbers and emails, and prints the anonymized text.`,
		Example: `  chatpsy anonymize messages.html messages2.html --legend
  chatpsy anonymize export.zip --json > anonymized.json
  cat chat.txt | chatpsy anonymize --mode raw --preview 500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnonymize(cmd, root, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print anonymized text, mapping and findings as JSON")
	cmd.Flags().BoolVar(&opts.legend, "legend", false, "print the alias legend to stderr")
	cmd.Flags().IntVar(&opts.preview, "preview", 0, "print only the first N characters (0 prints everything)")
	cmd.Flags().StringVar(&opts.mode, "mode", "anon", "text to print: anon (anonymized) or raw (original with names highlighted)")
	cmd.Flags().StringVar(&opts.color, "color", "auto", "colorize participants: auto, always or never")
	return cmd
}

func runAnonymize(cmd *cobra.Command, root *rootOptions, opts *anonymizeOptions, args []string) error {
	mode, err := highlight.ParseMode(opts.mode)
	if err != nil {
		return err
	}
	force, err := parseColor(opts.color)
	if err != nil {
		return err
	}

	cfg, log, err := root.setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	files, err := readInputs(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	loader, err := ingest.New(cfg.Ingest, log)
	if err != nil {
		return err
	}
	upload, err := loader.Load(files)
	if err != nil {
		return err
	}
	for _, r := range upload.Rejected {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %s\n", r.Name, r.Reason)
	}

	anonymizer, err := privacy.New(cfg.Privacy, log)
	if err != nil {
		return err
	}
	res := anonymizer.Anonymize(upload.Combined)

	out := cmd.OutOrStdout()
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(anonymizeOutput{
			Anonymized: res.Anonymized,
			Mapping:    res.Mapping,
			Findings:   res.Findings,
			FileNames:  upload.FileNames,
			Rejected:   upload.Rejected,
		})
	}

	text := res.Anonymized
	if mode == highlight.ModeRaw {
		text = upload.Combined
	}
	if opts.preview > 0 {
		text = ingest.Preview(text, opts.preview)
	}

	h := highlight.New(force)
	if _, err := fmt.Fprintln(out, h.Highlight(text, res.Mapping, mode)); err != nil {
		return err
	}
	if opts.legend {
		fmt.Fprint(cmd.ErrOrStderr(), h.Legend(res.Mapping))
	}
	return nil
}

// readInputs reads the named files, or stdin for "-" or no arguments.
func readInputs(stdin io.Reader, args []string) ([]ingest.File, error) {
	if len(args) == 0 {
		args = []string{"-"}
	}

	files := make([]ingest.File, 0, len(args))
	for _, arg := range args {
		if arg == "-" {
			data, err := io.ReadAll(stdin)
			if err != nil {
				return nil, fmt.Errorf("failed to read stdin: %w", err)
			}
			files = append(files, ingest.File{Name: "stdin.txt", Data: data})
			continue
		}
		data, err := os.ReadFile(arg)
		if err != nil {
			return nil, err
		}
		files = append(files, ingest.File{Name: filepath.Base(arg), Data: data})
	}
	return files, nil
}

func parseColor(s string) (*bool, error) {
	on, off := true, false
	switch s {
	case "auto":
		return nil, nil
	case "always":
		return &on, nil
	case "never":
		return &off, nil
	default:
		return nil, fmt.Errorf("invalid --color %q (must be auto, always or never)", s)
	}
}
