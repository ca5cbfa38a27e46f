package inspect

import (
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"snowadmin/internal/ui"
)

// Output formats.
const (
	FormatTable = "table"
	FormatYAML  = "yaml"
)

// Render writes report (a *StateReport or *StructureReport) to w.
func Render(w io.Writer, report any, format string) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable, "":
	default:
		return fmt.Errorf("unknown output format %q (want table or yaml)", format)
	}

	switch r := report.(type) {
	case *StateReport:
		renderState(w, r)
	case *StructureReport:
		renderStructure(w, r)
	default:
		return fmt.Errorf("cannot render %T", report)
	}
	return nil
}

func renderState(w io.Writer, r *StateReport) {
	p := ui.NewPrinter(w, false)
	p.KeyValue("Current role", r.CurrentRole)

	p.Section("Databases")
	ui.Table(w, []string{"Database"}, column(r.Databases))

	p.Section(r.SharedDatabase)
	p.Check("USE DATABASE "+r.SharedDatabase, r.SharedUsable, r.SharedError)
	if r.SharedUsable {
		ui.Table(w, []string{"Schema"}, column(r.SharedSchemas))
	}

	p.Section("Roles")
	ui.Table(w, []string{"Role"}, column(r.Roles))
}

func renderStructure(w io.Writer, r *StructureReport) {
	p := ui.NewPrinter(w, false)

	p.Section(r.SharedDatabase + " schemas")
	ui.Table(w, []string{"Schema"}, column(r.Schemas))

	p.Section("TENANT_MANAGEMENT")
	ui.Table(w, []string{"Kind", "Count"}, [][]string{
		{"Tables", strconv.Itoa(len(r.Tables))},
		{"Procedures", strconv.Itoa(len(r.Procedures))},
	})
	ui.Table(w, []string{"Table"}, column(r.Tables))
	ui.Table(w, []string{"Procedure"}, column(r.Procedures))

	p.Section("Organization databases")
	p.KeyValue("Found", strconv.Itoa(r.OrgDatabases))
	ui.Table(w, []string{"Database"}, column(r.OrgSample))
}

func column(values []string) [][]string {
	rows := make([][]string, 0, len(values))
	for _, v := range values {
		rows = append(rows, []string{v})
	}
	return rows
}
