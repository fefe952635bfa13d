// Package scan implements the one-shot file scan command: ingest a file or
// archive, run the parser cascade, and print the findings without touching
// the database.
package scan

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	cmdcommon "github.com/north-cloud/leakscan/cmd/common"
	"github.com/north-cloud/leakscan/internal/dedup"
	"github.com/north-cloud/leakscan/internal/domain"
	"github.com/north-cloud/leakscan/internal/domains"
	"github.com/north-cloud/leakscan/internal/ingest"
	"github.com/north-cloud/leakscan/internal/parser"
)

// maxTableRows caps terminal output; full results go to the CSV file.
const maxTableRows = 50

// Command returns the scan command group.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one-shot scans",
	}
	cmd.AddCommand(fileCommand())
	return cmd
}

func fileCommand() *cobra.Command {
	var (
		query   string
		csvPath string
	)

	cmd := &cobra.Command{
		Use:   "file <path>",
		Short: "Parse credentials out of a local file or archive",
		Long: `Extracts lines from a text file or archive (zip, tar, gz, 7z, rar),
runs the credential parser over them, and prints the findings.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(args[0], query, csvPath)
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "only parse lines containing this substring")
	cmd.Flags().StringVar(&csvPath, "csv", "", "write full results to a CSV file")
	return cmd
}

func runFile(path, query, csvPath string) error {
	deps, err := cmdcommon.NewCommandDeps()
	if err != nil {
		return err
	}

	reader := ingest.NewReader(deps.Logger)
	lines, err := reader.ReadLines(path, query)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	session := parser.NewSession()
	if err := session.ParseLines(lines, nil); err != nil {
		return err
	}

	parsed := session.Parsed()
	renderResults(parsed)
	renderSummary(len(lines), session)

	if csvPath != "" {
		if err := writeCSV(csvPath, parsed); err != nil {
			return fmt.Errorf("failed to write CSV: %w", err)
		}
		fmt.Printf("Full results written to %s\n", csvPath)
	}
	return nil
}

// renderResults prints the parsed credentials as a table, truncated for
// terminal readability.
func renderResults(parsed []domain.ParsedCredential) {
	if len(parsed) == 0 {
		fmt.Println("No credentials found.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "URL", "Username", "Password", "Domain", "Admin"})

	for i, cred := range parsed {
		if i >= maxTableRows {
			t.AppendFooter(table.Row{"", fmt.Sprintf("... and %d more", len(parsed)-maxTableRows)})
			break
		}
		d := domains.BestFrom("", cred.URL, cred.Username)
		t.AppendRow(table.Row{
			i + 1,
			cred.URL,
			cred.Username,
			cred.Password,
			d,
			dedup.IsAdmin(cred.Username, cred.Password),
		})
	}
	t.Render()
}

// renderSummary prints line and pattern counters.
func renderSummary(totalLines int, session *parser.Session) {
	parsed := session.Parsed()
	hits := session.PatternHits()

	patternIDs := make([]int, 0, len(hits))
	for id := range hits {
		patternIDs = append(patternIDs, id)
	}
	sort.Ints(patternIDs)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Pattern", "Hits"})
	for _, id := range patternIDs {
		t.AppendRow(table.Row{id, hits[id]})
	}
	t.Render()

	fmt.Printf("Lines: %d  Parsed: %d  Unparsed: %d  Duplicates skipped: %d\n",
		totalLines, len(parsed), len(session.Unparsed()), session.DuplicatesSkipped())
}

// writeCSV writes the parsed credentials with the parser's semicolon
// convention.
func writeCSV(path string, parsed []domain.ParsedCredential) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	cw.Comma = ';'

	if err := cw.Write([]string{"URL", "Username", "Password", "Domain", "Is_Admin", "Pattern_ID"}); err != nil {
		return err
	}
	for i := range parsed {
		cred := &parsed[i]
		record := []string{
			cred.URL,
			cred.Username,
			cred.Password,
			domains.BestFrom("", cred.URL, cred.Username),
			strconv.FormatBool(dedup.IsAdmin(cred.Username, cred.Password)),
			strconv.Itoa(cred.PatternID),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
