package loader

import (
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"snowadmin/pkg/errors"
)

type valueKind int

const (
	kindText valueKind = iota
	kindFloat
)

// column maps a CSV header to a table column.
type column struct {
	header   string
	name     string
	required bool
	kind     valueKind
}

// tableSpec describes a load target inside the tenant database.
type tableSpec struct {
	label   string
	schema  string
	table   string
	columns []column
}

var claimsTable = tableSpec{
	label:  "claims",
	schema: "CLAIMS",
	table:  "INSURANCE_CLAIMS",
	columns: []column{
		{header: "claim_id", name: "CLAIM_ID", required: true},
		{header: "patient_id", name: "PATIENT_ID", required: true},
		{header: "policy_number", name: "POLICY_NUMBER"},
		{header: "claim_date", name: "CLAIM_DATE", required: true},
		{header: "service_date", name: "SERVICE_DATE"},
		{header: "provider_name", name: "PROVIDER_NAME"},
		{header: "diagnosis_code", name: "DIAGNOSIS_CODE"},
		{header: "procedure_code", name: "PROCEDURE_CODE"},
		{header: "claim_amount", name: "CLAIM_AMOUNT", kind: kindFloat},
		{header: "approved_amount", name: "APPROVED_AMOUNT", kind: kindFloat},
		{header: "paid_amount", name: "PAID_AMOUNT", kind: kindFloat},
		{header: "claim_status", name: "CLAIM_STATUS"},
		{header: "denial_reason", name: "DENIAL_REASON"},
		{header: "notes", name: "NOTES"},
	},
}

var patientsTable = tableSpec{
	label:  "patients",
	schema: "PATIENTS",
	table:  "PATIENT_RECORDS",
	columns: []column{
		{header: "patient_id", name: "PATIENT_ID", required: true},
		{header: "date_of_birth", name: "DATE_OF_BIRTH"},
		{header: "gender", name: "GENDER"},
		{header: "zip_code", name: "ZIP_CODE"},
		{header: "policy_number", name: "POLICY_NUMBER"},
		{header: "policy_start_date", name: "POLICY_START_DATE"},
		{header: "policy_end_date", name: "POLICY_END_DATE"},
		{header: "plan_type", name: "PLAN_TYPE"},
	},
}

// insertSQL builds a multi-row INSERT with one placeholder per value.
func (t tableSpec) insertSQL(database string, rows int) string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(t.columns)), ", ") + ")"
	tuples := make([]string, rows)
	for i := range tuples {
		tuples[i] = tuple
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		t.qualified(database), strings.Join(names, ", "), strings.Join(tuples, ", "))
}

func (t tableSpec) qualified(database string) string {
	return database + "." + t.schema + "." + t.table
}

// rowReader converts CSV records into bind values in column order.
type rowReader struct {
	spec    tableSpec
	reader  *csv.Reader
	index   []int // CSV field index per column, -1 when absent
	line    int
	fileRef string
}

func newRowReader(r io.Reader, spec tableSpec, fileRef string) (*rowReader, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, errors.New(errors.ErrCodeFileCorrupted, fmt.Sprintf("%s file is empty", spec.label)).
				WithContext("file", fileRef)
		}
		return nil, errors.Wrap(err, errors.ErrCodeFileCorrupted, fmt.Sprintf("Failed to read %s header", spec.label)).
			WithContext("file", fileRef)
	}

	positions := make(map[string]int, len(header))
	for i, h := range header {
		positions[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	index := make([]int, len(spec.columns))
	for i, c := range spec.columns {
		pos, ok := positions[c.header]
		if !ok {
			if c.required {
				return nil, errors.ValidationError(c.header, "", fmt.Sprintf("%s file has no %q column", spec.label, c.header)).
					WithContext("file", fileRef)
			}
			pos = -1
		}
		index[i] = pos
	}

	return &rowReader{spec: spec, reader: reader, index: index, line: 1, fileRef: fileRef}, nil
}

// next returns the bind values of the next record, or io.EOF.
func (r *rowReader) next() ([]any, error) {
	record, err := r.reader.Read()
	if err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, errors.ErrCodeFileCorrupted, fmt.Sprintf("Failed to read %s file", r.spec.label)).
			WithContext("file", r.fileRef)
	}
	r.line++

	values := make([]any, len(r.spec.columns))
	for i, c := range r.spec.columns {
		raw := ""
		if pos := r.index[i]; pos >= 0 && pos < len(record) {
			raw = strings.TrimSpace(record[pos])
		}

		if raw == "" {
			if c.required {
				return nil, errors.ValidationError(c.header, raw, "value is required").
					WithContext("file", r.fileRef).
					WithContext("line", r.line)
			}
			values[i] = nil
			continue
		}

		switch c.kind {
		case kindFloat:
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, errors.ValidationError(c.header, raw, "not a number").
					WithContext("file", r.fileRef).
					WithContext("line", r.line)
			}
			values[i] = f
		default:
			values[i] = raw
		}
	}
	return values, nil
}
