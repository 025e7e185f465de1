package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"inventaris/server/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

func TestImportInvoiceEndpoint(t *testing.T) {
	r := newTestRouter(t)
	gram := create(t, r, "/api/v1/base-units", gin.H{"name": "gram"})
	create(t, r, "/api/v1/raw-materials", gin.H{"name": "gula", "base_unit_id": gram})

	book := excelize.NewFile()
	sheet := book.GetSheetName(book.GetActiveSheetIndex())
	for cell, value := range map[string]string{"A1": "bahan", "B1": "jumlah", "C1": "harga", "A2": "gula", "B2": "1000", "C2": "15"} {
		if err := book.SetCellValue(sheet, cell, value); err != nil {
			t.Fatalf("SetCellValue: %v", err)
		}
	}
	var xlsx bytes.Buffer
	if err := book.Write(&xlsx); err != nil {
		t.Fatalf("Write: %v", err)
	}
	_ = book.Close()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "faktur.xlsx")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write(xlsx.Bytes()); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/purchases/import", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var result services.InvoiceImportResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Imported != 1 || result.Failed != 0 {
		t.Fatalf("result = %+v", result)
	}
}

func TestImportInvoiceRequiresFile(t *testing.T) {
	r := newTestRouter(t)
	var resp errorResponse
	do(t, r, http.MethodPost, "/api/v1/purchases/import", gin.H{}, http.StatusBadRequest, &resp)
	if resp.Error != "validation_error" {
		t.Fatalf("error = %q", resp.Error)
	}
}

func TestExportStockEndpoint(t *testing.T) {
	r := newTestRouter(t)
	gram := create(t, r, "/api/v1/base-units", gin.H{"name": "gram"})
	create(t, r, "/api/v1/raw-materials", gin.H{"name": "gula", "base_unit_id": gram})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/raw-materials/export", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), ".xlsx") {
		t.Fatalf("Content-Disposition = %q", w.Header().Get("Content-Disposition"))
	}
	book, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer func() { _ = book.Close() }()
	rows, err := book.GetRows(book.GetSheetName(book.GetActiveSheetIndex()))
	if err != nil || len(rows) != 2 || rows[1][1] != "gula" {
		t.Fatalf("rows = %v, %v", rows, err)
	}
}
