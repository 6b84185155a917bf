package csvimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
)

// RowHandler applies one validated row
type RowHandler func(ctx context.Context, row *Row) error

// RejectedError marks a row the handler refused. The processor records it
// against the row and moves on; any other handler error stops the run.
type RejectedError struct {
	Message string
}

// Error implements the error interface
func (e *RejectedError) Error() string {
	return e.Message
}

// Reject returns a RejectedError for the current row
func Reject(format string, args ...any) error {
	return &RejectedError{Message: fmt.Sprintf(format, args...)}
}

// Result summarizes an import run
type Result struct {
	TotalRows   int                 `json:"total_rows"`
	ValidRows   int                 `json:"valid_rows"`
	ErrorRows   int                 `json:"error_rows"`
	Applied     int                 `json:"applied"`
	DryRun      bool                `json:"dry_run"`
	Errors      []RowError          `json:"errors"`
	TotalErrors int                 `json:"total_errors"`
	Truncated   bool                `json:"truncated"`
	Preview     []map[string]string `json:"preview"`
}

// Processor validates a whole CSV file before applying any row
type Processor struct {
	maxRows     int
	maxErrors   int
	previewRows int
	parserOpts  []ParserOption
}

// ProcessorOption is a functional option for Processor
type ProcessorOption func(*Processor)

// WithMaxRows sets the maximum number of data rows
func WithMaxRows(rows int) ProcessorOption {
	return func(p *Processor) {
		p.maxRows = rows
	}
}

// WithMaxErrors sets the maximum number of errors to collect
func WithMaxErrors(n int) ProcessorOption {
	return func(p *Processor) {
		p.maxErrors = n
	}
}

// WithPreviewRows sets the number of preview rows
func WithPreviewRows(rows int) ProcessorOption {
	return func(p *Processor) {
		p.previewRows = rows
	}
}

// WithParserOptions passes options through to the CSV parser
func WithParserOptions(opts ...ParserOption) ProcessorOption {
	return func(p *Processor) {
		p.parserOpts = append(p.parserOpts, opts...)
	}
}

// NewProcessor creates a new Processor
func NewProcessor(opts ...ProcessorOption) *Processor {
	p := &Processor{
		maxRows:     10000,
		maxErrors:   100,
		previewRows: 5,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run parses r, checks the required columns and validates every row with
// rules. Rows are handed to apply only when the whole file is valid. A nil
// apply is a dry run. File level problems (encoding, header, missing
// columns) are returned as errors; row problems are reported in the Result.
func (p *Processor) Run(ctx context.Context, r io.Reader, required []string, rules []FieldRule, apply RowHandler) (*Result, error) {
	parser, err := NewCSVParser(r, p.parserOpts...)
	if err != nil {
		return nil, err
	}
	if err := parser.ParseHeader(); err != nil {
		return nil, err
	}
	if missing := parser.MissingHeaders(required); len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	errs := NewErrorCollection(p.maxErrors)
	validator := &FieldValidator{rules: rules, errors: errs}
	result := &Result{
		DryRun:  apply == nil,
		Preview: make([]map[string]string, 0, p.previewRows),
	}

	var valid []*Row
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := parser.ReadRow()
		if err == io.EOF {
			break
		}
		if err != nil {
			errs.Add(NewRowError(parser.CurrentRow(), "", ErrCodeImportCSVParsing, err.Error()))
			result.ErrorRows++
			continue
		}
		if row.IsEmpty() {
			continue
		}

		result.TotalRows++
		if result.TotalRows > p.maxRows {
			errs.Add(NewRowError(row.LineNumber, "", ErrCodeImportTooManyRows,
				fmt.Sprintf("file has more than %d rows", p.maxRows)))
			result.TotalRows--
			break
		}

		if !validator.ValidateRow(row) {
			result.ErrorRows++
			continue
		}
		result.ValidRows++
		valid = append(valid, row)
		if len(result.Preview) < p.previewRows {
			result.Preview = append(result.Preview, row.Data)
		}
	}

	if apply != nil && !errs.HasErrors() {
		for _, row := range valid {
			if err := ctx.Err(); err != nil {
				p.finish(result, errs)
				return result, err
			}
			if err := apply(ctx, row); err != nil {
				var rejected *RejectedError
				if !errors.As(err, &rejected) {
					p.finish(result, errs)
					return result, err
				}
				errs.Add(NewRowError(row.LineNumber, "", ErrCodeImportRejected, rejected.Message))
				result.ErrorRows++
				continue
			}
			result.Applied++
		}
	}

	p.finish(result, errs)
	return result, nil
}

func (p *Processor) finish(result *Result, errs *ErrorCollection) {
	result.Errors = errs.Errors()
	sort.SliceStable(result.Errors, func(i, j int) bool {
		return result.Errors[i].Row < result.Errors[j].Row
	})
	result.TotalErrors = errs.TotalCount()
	result.Truncated = errs.IsTruncated()
}
