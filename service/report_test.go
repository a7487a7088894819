package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/licito/backend/model"
)

type memoryStorage struct {
	objects map[string][]byte
	types   map[string]string
}

func (m *memoryStorage) Publish(_ context.Context, name string, data []byte, contentType string) (string, error) {
	if m.objects == nil {
		m.objects = map[string][]byte{}
		m.types = map[string]string{}
	}
	m.objects[name] = data
	m.types[name] = contentType
	return "https://storage.example/" + name + "?X-Amz-Signature=abc", nil
}

func newReportService(f *fixture, storage ObjectStorage) *ReportService {
	r := NewReportService(f.contracts(), f.checklist(), storage, 7)
	r.clock = fixedClock()
	return r
}

func TestReportBuild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	checklist := f.checklist()
	item := f.item(t, "d-adm-1")

	if _, err := checklist.UpdateStatus(ctx, f.adm, item.ID, model.ItemNonCompliant, "Certidão vencida"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if _, err := checklist.RequestClarification(ctx, f.auth, item.ID, "Quando será renovada?"); err != nil {
		t.Fatalf("RequestClarification: %v", err)
	}

	report, err := newReportService(f, nil).Build(ctx, f.adm, f.contract.ID, model.FiscalAdministrative)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if report.FileName != "checklist-001-2025-administrativa-20250310.xlsx" {
		t.Errorf("Unexpected file name %q", report.FileName)
	}

	x, err := excelize.OpenReader(bytes.NewReader(report.Data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer x.Close()

	if got := x.GetSheetList(); strings.Join(got, ",") != "Checklist,Histórico,Esclarecimentos" {
		t.Errorf("Unexpected sheets %v", got)
	}

	rows, err := x.GetRows("Checklist")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("Expected title, header and 2 items, got %d rows", len(rows))
	}
	if !strings.Contains(rows[0][0], "001/2025") {
		t.Errorf("Expected contract title, got %q", rows[0][0])
	}
	if rows[2][0] != "Certidões regulares" || rows[2][1] != "Não Conforme" || rows[2][2] != "Certidão vencida" || rows[2][4] != "1" {
		t.Errorf("Unexpected item row %v", rows[2])
	}

	history, _ := x.GetRows("Histórico")
	if len(history) != 3 || history[2][3] != "Ana Fiscal" || history[2][4] != "10/03/2025 12:00" {
		t.Errorf("Unexpected history rows %v", history)
	}

	clar, _ := x.GetRows("Esclarecimentos")
	if len(clar) != 3 || clar[2][1] != "Quando será renovada?" || clar[2][2] != "Olga Ordenadora" {
		t.Errorf("Unexpected clarification rows %v", clar)
	}
}

func TestReportBuildForbidden(t *testing.T) {
	f := newFixture(t)
	svc := newReportService(f, nil)

	if _, err := svc.Build(context.Background(), f.admin, f.contract.ID, ""); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected admin to be forbidden, got %v", err)
	}
	if _, err := svc.Build(context.Background(), f.adm, f.contract.ID, model.FiscalTechnical); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected other type to be forbidden, got %v", err)
	}
}

func TestReportPublish(t *testing.T) {
	f := newFixture(t)
	storage := &memoryStorage{}

	published, err := newReportService(f, storage).Publish(context.Background(), f.manager, f.contract.ID, "")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !strings.HasPrefix(published.URL, "https://storage.example/reports/"+f.contract.ID+"/") {
		t.Errorf("Unexpected url %q", published.URL)
	}
	if !published.ExpiresAt.Equal(testNow.AddDate(0, 0, 7)) {
		t.Errorf("Unexpected expiry %v", published.ExpiresAt)
	}
	if len(storage.objects) != 1 {
		t.Fatalf("Expected one object, got %d", len(storage.objects))
	}
	for name, ct := range storage.types {
		if ct != XLSXContentType || !strings.HasSuffix(name, "checklist-001-2025-completo-20250310.xlsx") {
			t.Errorf("Unexpected object %s (%s)", name, ct)
		}
	}

	if _, err := newReportService(f, nil).Publish(context.Background(), f.manager, f.contract.ID, ""); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}
