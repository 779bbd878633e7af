package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/use-agent/webtest/runspec"
)

// wireSpec is the consumer-facing object form of §6's External Interfaces:
// req_id/url plus one or more testcases, each with its own step list and an
// optional set of data rows for {{var}} substitution. Decoding happens here,
// at the wire boundary, so the in-memory runspec.TestSpec stays free of a
// struct-tag dependency it doesn't otherwise need.
type wireSpec struct {
	ReqID     string         `json:"req_id" validate:"required"`
	URL       string         `json:"url" validate:"required,url"`
	TestCases []wireTestCase `json:"testcases" validate:"required,min=1,dive"`
}

type wireTestCase struct {
	TCID  string              `json:"tc_id" validate:"required"`
	Steps []wireStep          `json:"steps" validate:"required,min=1,dive"`
	Data  []map[string]string `json:"data,omitempty"`
}

type wireStep struct {
	ID      string `json:"id" validate:"required"`
	Action  string `json:"action" validate:"required,oneof=click fill type press select check uncheck hover focus wait navigate"`
	Target  string `json:"target" validate:"required"`
	Value   string `json:"value,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Within  string `json:"within,omitempty"`
	Ordinal *int   `json:"ordinal,omitempty"`
}

var wireValidate = validator.New()

// validateWireSpec checks the struct-tag invariants declared above.
func validateWireSpec(w wireSpec) error {
	if err := wireValidate.Struct(w); err != nil {
		return fmt.Errorf("wire spec: %w", err)
	}
	return nil
}

// buildTestSpecs expands w into one runspec.TestSpec per (testcase, data
// row) pair — a testcase with no Data rows produces exactly one TestSpec.
// {{var}} substitution against the row and {timestamp} substitution both
// happen here, before the core ever sees a runspec.TestSpec, per that
// package's own documented boundary.
func buildTestSpecs(w wireSpec, now time.Time) ([]runspec.TestSpec, error) {
	var out []runspec.TestSpec

	for _, tc := range w.TestCases {
		rows := tc.Data
		if len(rows) == 0 {
			rows = []map[string]string{nil}
		}

		for i, row := range rows {
			steps := make([]runspec.Step, len(tc.Steps))
			for j, ws := range tc.Steps {
				steps[j] = runspec.Step{
					ID:           ws.ID,
					ElementLabel: substVars(ws.Target, row),
					Action:       runspec.Action(ws.Action),
					Value:        substVars(ws.Value, row),
					Region:       ws.Within,
					Outcome:      ws.Outcome,
					Ordinal:      ws.Ordinal,
				}
			}

			reqID := w.ReqID + "-" + tc.TCID
			if len(tc.Data) > 0 {
				reqID = fmt.Sprintf("%s-row%d", reqID, i)
			}

			spec := runspec.TestSpec{ReqID: reqID, URL: w.URL, Steps: steps}
			spec = spec.ResolveTimestamps(now)
			if err := spec.Validate(); err != nil {
				return nil, err
			}
			out = append(out, spec)
		}
	}

	return out, nil
}

// substVars replaces every {{key}} token in value with row[key]. A nil row
// (no Data rows on the testcase) leaves value untouched.
func substVars(value string, row map[string]string) string {
	if row == nil || !strings.Contains(value, "{{") {
		return value
	}
	out := value
	for k, v := range row {
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
	}
	return out
}
