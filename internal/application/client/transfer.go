package client

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/karte/backend/internal/domain/client"
	"github.com/karte/backend/internal/domain/report"
	"github.com/karte/backend/internal/domain/shared"
	"github.com/karte/backend/internal/infrastructure/export"
	csvimport "github.com/karte/backend/internal/infrastructure/import"
	"go.uber.org/zap"
)

// Directory file columns
const (
	ColCompany     = "会社名"
	ColAddress     = "住所"
	ColPerson      = "担当者名"
	ColPhone       = "電話番号"
	ColEmail       = "メールアドレス"
	ColPrimary     = "プライマリー連絡先"
	ColLastUpdated = "最終更新日"
)

var directoryColumns = []string{ColCompany, ColAddress, ColPerson, ColPhone, ColEmail, ColPrimary, ColLastUpdated}

var headerAliases = map[string]string{
	"company":      ColCompany,
	"company name": ColCompany,
	"name":         ColCompany,
	"address":      ColAddress,
	"contact":      ColPerson,
	"person name":  ColPerson,
	"personname":   ColPerson,
	"phone":        ColPhone,
	"email":        ColEmail,
	"primary":      ColPrimary,
	"isprimary":    ColPrimary,
	"last updated": ColLastUpdated,
	"lastupdated":  ColLastUpdated,
}

var importRules = []csvimport.FieldRule{
	csvimport.Field(ColCompany).Required().MaxLength(200).Build(),
	csvimport.Field(ColAddress).MaxLength(500).Build(),
	csvimport.Field(ColPerson).MaxLength(100).Build(),
	csvimport.Field(ColPhone).MaxLength(50).Build(),
	csvimport.Field(ColEmail).Email().MaxLength(200).Build(),
	csvimport.Field(ColPrimary).Pattern(`^[01]$`, "0 or 1").Build(),
}

// ImportResult reports a directory import
type ImportResult struct {
	*csvimport.Result
	ClientsCreated int `json:"clients_created"`
	ClientsUpdated int `json:"clients_updated"`
	ContactsAdded  int `json:"contacts_added"`
}

// ExportTable lists every entry with its primary contact, one row per
// entry, in the same columns Import reads.
func (s *DirectoryService) ExportTable(ctx context.Context, now time.Time) (report.Table, error) {
	list, err := s.repo.FindAll(ctx)
	if err != nil {
		return report.Table{}, err
	}

	table := report.Table{
		Name:   "clients_export_" + now.Format("2006-01-02"),
		Header: directoryColumns,
		Rows:   make([][]any, 0, len(list)),
	}
	for _, c := range list {
		primary, _ := c.PrimaryContact()
		flag := "0"
		if primary.IsPrimary {
			flag = "1"
		}
		updated := ""
		if !c.LastUpdated.IsZero() {
			updated = c.LastUpdated.Format("2006-01-02")
		}
		table.Rows = append(table.Rows, []any{
			c.Name, c.Address, primary.PersonName, primary.Phone, primary.Email, flag, updated,
		})
	}
	return table, nil
}

// Export encodes the directory as csv or xlsx
func (s *DirectoryService) Export(ctx context.Context, format string) (*export.File, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, shared.NewValidationError("INVALID_FORMAT", "Format must be csv or xlsx")
	}
	table, err := s.ExportTable(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	return export.Encode(table, f)
}

// Import reads a directory file. Rows are merged into existing entries by
// name index; the address is overwritten when the row has one and the
// contact is added unless a contact with that name already exists. The
// whole file is validated first and nothing is written if any row fails.
// With dryRun only the validation report and preview are produced.
func (s *DirectoryService) Import(ctx context.Context, r io.Reader, dryRun bool) (*ImportResult, error) {
	out := &ImportResult{}
	processor := csvimport.NewProcessor(
		csvimport.WithParserOptions(csvimport.WithHeaderAliases(headerAliases)),
	)

	var apply csvimport.RowHandler
	if !dryRun {
		apply = func(ctx context.Context, row *csvimport.Row) error {
			return s.importRow(ctx, row, out)
		}
	}

	result, err := processor.Run(ctx, r, []string{ColCompany}, importRules, apply)
	if err != nil {
		var missing *csvimport.MissingColumnsError
		switch {
		case errors.As(err, &missing):
			return nil, shared.NewValidationError("IMPORT_MISSING_COLUMNS", missing.Error())
		case errors.Is(err, csvimport.ErrEmptyFile),
			errors.Is(err, csvimport.ErrInvalidEncoding),
			errors.Is(err, csvimport.ErrMissingHeader):
			return nil, shared.NewValidationError("IMPORT_INVALID_FILE", err.Error())
		}
		s.logger.Error("Client import aborted", zap.Error(err))
		return nil, err
	}

	out.Result = result
	s.logger.Info("Client import finished",
		zap.Bool("dry_run", dryRun),
		zap.Int("rows", result.TotalRows),
		zap.Int("error_rows", result.ErrorRows),
		zap.Int("clients_created", out.ClientsCreated),
		zap.Int("contacts_added", out.ContactsAdded),
	)
	return out, nil
}

func (s *DirectoryService) importRow(ctx context.Context, row *csvimport.Row, out *ImportResult) error {
	name := row.Get(ColCompany)

	c, err := s.repo.FindByNameIndex(ctx, client.NameIndex(name))
	created := false
	switch {
	case errors.Is(err, shared.ErrNotFound):
		c, err = client.NewClient(name, row.Get(ColAddress), "")
		if err != nil {
			return csvimport.Reject("%s", err.Error())
		}
		created = true
	case err != nil:
		return err
	case row.Get(ColAddress) != "":
		if err := c.Update(c.Name, row.Get(ColAddress), c.Notes); err != nil {
			return csvimport.Reject("%s", err.Error())
		}
	}

	contactAdded := false
	if person := row.Get(ColPerson); person != "" {
		if _, exists := c.FindContactByName(person); !exists {
			c.AddContact(client.Contact{
				PersonName: person,
				Phone:      row.Get(ColPhone),
				Email:      row.Get(ColEmail),
				IsPrimary:  row.Get(ColPrimary) == "1",
			}, s.newID)
			contactAdded = true
		}
	}

	if err := s.repo.Save(ctx, c); err != nil {
		return err
	}
	if created {
		out.ClientsCreated++
	} else {
		out.ClientsUpdated++
	}
	if contactAdded {
		out.ContactsAdded++
	}
	return nil
}
