package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/assay/cli/render"
	"github.com/justapithecus/assay/iox"
	"github.com/justapithecus/assay/types"
)

// InspectResponse summarizes one report file.
type InspectResponse struct {
	File           string `json:"file"`
	Columns        int    `json:"columns"`
	Rows           int    `json:"rows"`
	Entities       int    `json:"entities"`
	FirstTimestamp string `json:"first_timestamp,omitempty"`
	LastTimestamp  string `json:"last_timestamp,omitempty"`
}

// InspectCommand returns the inspect command. Read-only: it parses an
// existing report CSV and summarizes its contents.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Summarize a report CSV file",
		ArgsUsage: "<file>",
		Flags:     []cli.Flag{FormatFlag},
		Action:    inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: assay inspect <file>", 1)
	}
	path := c.Args().First()

	resp, err := inspectFile(path)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(resp)
}

// inspectFile reads one report CSV and derives its summary.
func inspectFile(path string) (*InspectResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open report file: %w", err)
	}
	defer iox.DiscardClose(f)

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("report file %s is empty", path)
		}
		return nil, fmt.Errorf("cannot parse report header: %w", err)
	}

	tsCol := columnIndex(header, types.TimestampColumn)
	entityCol := entityColumn(header)

	resp := &InspectResponse{
		File:    path,
		Columns: len(header),
	}

	entities := make(map[string]bool)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("cannot parse report row: %w", err)
		}
		// Diagnostic lines written on fetch failures are not data rows.
		if len(row) != len(header) {
			continue
		}
		resp.Rows++
		if tsCol >= 0 {
			if resp.FirstTimestamp == "" {
				resp.FirstTimestamp = row[tsCol]
			}
			resp.LastTimestamp = row[tsCol]
		}
		if entityCol >= 0 {
			entities[row[entityCol]] = true
		}
	}
	resp.Entities = len(entities)

	return resp, nil
}

func columnIndex(header []string, name string) int {
	for i, col := range header {
		if strings.TrimSpace(col) == name {
			return i
		}
	}
	return -1
}

// entityColumn picks the column identifying an entity: the leading
// Object column when present, the ClassName column otherwise.
func entityColumn(header []string) int {
	if len(header) > 0 && strings.TrimSpace(header[0]) == "Object" {
		return 0
	}
	return columnIndex(header, "ClassName")
}
