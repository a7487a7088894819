package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/licito/backend/model"
	"github.com/licito/backend/pkg/logger"
	"github.com/licito/backend/policy"
)

// XLSXContentType is the media type of the exported checklist
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const reportTimeLayout = "02/01/2006 15:04"

var (
	checklistHeader     = []string{"Item", "Status", "Observação atual", "Atualizado em", "Esclarecimentos pendentes"}
	historyHeader       = []string{"Item", "Status", "Observação", "Autor", "Data"}
	clarificationHeader = []string{"Item", "Pergunta", "Perguntado por", "Perguntado em", "Resposta", "Respondido por", "Respondido em"}
)

// Report is a generated spreadsheet
type Report struct {
	FileName string
	Data     []byte
}

// PublishedReport is a report uploaded to object storage
type PublishedReport struct {
	FileName  string    `json:"file_name"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ReportService exports a contract checklist as a spreadsheet
type ReportService struct {
	contracts  *ContractService
	checklist  *ChecklistService
	storage    ObjectStorage
	expireDays int
	clock      clock
}

// NewReportService builds the exporter. storage may be nil, in which case
// publishing is unavailable.
func NewReportService(contracts *ContractService, checklist *ChecklistService, storage ObjectStorage, expireDays int) *ReportService {
	return &ReportService{contracts: contracts, checklist: checklist, storage: storage, expireDays: expireDays}
}

// Build renders the checklist of the given type with its history and
// clarifications, one sheet each.
func (s *ReportService) Build(ctx context.Context, actor Actor, contractID string, t model.FiscalType) (*Report, error) {
	if !policy.Allow(actor.Role, policy.ExportReport, "") {
		return nil, ErrForbidden
	}
	c, err := s.contracts.Get(ctx, actor, contractID)
	if err != nil {
		return nil, err
	}
	items, err := s.checklist.ListItems(ctx, actor, contractID, t)
	if err != nil {
		return nil, err
	}

	data, err := renderChecklist(c, items)
	if err != nil {
		return nil, err
	}

	label := "completo"
	if t != "" {
		label = strings.ToLower(t.Label())
	}
	name := fmt.Sprintf("checklist-%s-%s-%s.xlsx", slug(c.Number), slug(label), s.clock.now().Format("20060102"))
	return &Report{FileName: name, Data: data}, nil
}

// Publish builds the report and uploads it, returning a presigned link
func (s *ReportService) Publish(ctx context.Context, actor Actor, contractID string, t model.FiscalType) (*PublishedReport, error) {
	if s.storage == nil {
		return nil, ErrNotConfigured
	}
	r, err := s.Build(ctx, actor, contractID, t)
	if err != nil {
		return nil, err
	}

	now := s.clock.now()
	object := fmt.Sprintf("reports/%s/%s-%s", contractID, now.Format("150405"), r.FileName)
	url, err := s.storage.Publish(ctx, object, r.Data, XLSXContentType)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "checklist report published", "contract_id", contractID, "object", object)
	return &PublishedReport{
		FileName:  r.FileName,
		URL:       url,
		ExpiresAt: now.Add(time.Duration(s.expireDays) * 24 * time.Hour),
	}, nil
}

func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'á' || r == 'à' || r == 'ã' || r == 'â':
			b.WriteRune('a')
		case r == 'é' || r == 'ê':
			b.WriteRune('e')
		case r == 'í':
			b.WriteRune('i')
		case r == 'ó' || r == 'õ' || r == 'ô':
			b.WriteRune('o')
		case r == 'ú':
			b.WriteRune('u')
		case r == 'ç':
			b.WriteRune('c')
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(reportTimeLayout)
}

func itemText(it model.ChecklistItem) string {
	if it.Definition == nil {
		return it.DefinitionID
	}
	return it.Definition.Text
}

func renderChecklist(c *model.Contract, items []model.ChecklistItem) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	var checklistRows, historyRows, clarificationRows [][]any
	for _, it := range items {
		text := itemText(it)
		updated := it.UpdatedAt
		checklistRows = append(checklistRows, []any{
			text, it.Status.Label(), it.CurrentObservation, formatTime(&updated),
			len(model.PendingClarifications(it.Clarifications)),
		})
		for _, h := range it.History {
			at := h.CreatedAt
			historyRows = append(historyRows, []any{text, h.Status.Label(), h.Observation, h.Author.Name, formatTime(&at)})
		}
		for _, cl := range it.Clarifications {
			asked := cl.AskedAt
			answer, answeredBy := "", ""
			if cl.Answer != nil {
				answer = *cl.Answer
			}
			if cl.AnsweredBy != nil {
				answeredBy = cl.AnsweredBy.Name
			}
			clarificationRows = append(clarificationRows, []any{
				text, cl.Question, cl.AskedBy.Name, formatTime(&asked), answer, answeredBy, formatTime(cl.AnsweredAt),
			})
		}
	}

	sheets := []struct {
		name   string
		header []string
		widths []float64
		rows   [][]any
	}{
		{"Checklist", checklistHeader, []float64{60, 15, 50, 18, 14}, checklistRows},
		{"Histórico", historyHeader, []float64{60, 15, 50, 25, 18}, historyRows},
		{"Esclarecimentos", clarificationHeader, []float64{50, 50, 25, 18, 50, 25, 18}, clarificationRows},
	}

	for _, sh := range sheets {
		if _, err := f.NewSheet(sh.name); err != nil {
			return nil, fmt.Errorf("failed to create sheet: %w", err)
		}
		if err := f.SetCellValue(sh.name, "A1", fmt.Sprintf("Contrato %s - %s", c.Number, c.Object)); err != nil {
			return nil, err
		}
		if err := writeTable(f, sh.name, 2, sh.header, sh.widths, sh.rows, headerStyle); err != nil {
			return nil, err
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	if index, err := f.GetSheetIndex(sheets[0].name); err == nil {
		f.SetActiveSheet(index)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	return buf.Bytes(), nil
}

// writeTable writes a styled header at headerRow followed by rows, and
// freezes the panes below the header.
func writeTable(f *excelize.File, sheet string, headerRow int, header []string, widths []float64, rows [][]any, style int) error {
	for col, h := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, headerRow)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if col < len(widths) {
			if err := f.SetColWidth(sheet, name, name, widths[col]); err != nil {
				return fmt.Errorf("failed to set column width: %w", err)
			}
		}
	}

	for r, row := range rows {
		for col, v := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, headerRow+1+r)
			if err != nil {
				return fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	topLeft, _ := excelize.CoordinatesToCellName(1, headerRow+1)
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      headerRow,
		TopLeftCell: topLeft,
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}
	return nil
}
