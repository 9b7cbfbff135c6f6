package handler

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"receiptcsv/internal/domain"
	"receiptcsv/internal/mapping"
	"receiptcsv/internal/service"
	"receiptcsv/internal/xlsxexport"
)

// multipartOverhead is added to the upload limit to leave room for form framing.
const multipartOverhead = 1 << 20

// ReceiptHandler serves the JSON API.
type ReceiptHandler struct {
	receiptService service.ReceiptService
	maxUpload      int64
}

// NewReceiptHandler creates a new ReceiptHandler. maxUpload bounds uploaded files in bytes.
func NewReceiptHandler(receiptService service.ReceiptService, maxUpload int64) *ReceiptHandler {
	return &ReceiptHandler{receiptService: receiptService, maxUpload: maxUpload}
}

type receiptResponse struct {
	Result  domain.ExtractionResult `json:"result"`
	Row     []domain.Cell           `json:"row"`
	Warning string                  `json:"warning,omitempty"`
}

type resultsResponse struct {
	Template domain.Template           `json:"template"`
	Layout   domain.RowLayout          `json:"layout"`
	Results  []domain.ExtractionResult `json:"results"`
	Rows     [][]string                `json:"rows"`
}

type layoutRequest struct {
	Layout string `json:"layout" binding:"required,oneof=receipt items"`
}

// Status handles GET /api/v1/status
func (h *ReceiptHandler) Status(c *gin.Context) {
	RespondOK(c, h.receiptService.Status())
}

// GetTemplate handles GET /api/v1/template
func (h *ReceiptHandler) GetTemplate(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	table, err := h.receiptService.Table(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, table.Template)
}

// UploadTemplate handles POST /api/v1/template
func (h *ReceiptHandler) UploadTemplate(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	file, header, err := formFile(c, "file", h.maxUpload+multipartOverhead)
	if err != nil {
		HandleError(c, err)
		return
	}
	defer func() { _ = file.Close() }()

	tpl, err := h.receiptService.LoadTemplate(c.Request.Context(), id, service.TemplateUploadInput{
		FileName: header.Filename,
		File:     file,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, tpl)
}

// UploadReceipt handles POST /api/v1/receipts
func (h *ReceiptHandler) UploadReceipt(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	file, header, err := formFile(c, "file", h.maxUpload+multipartOverhead)
	if err != nil {
		HandleError(c, err)
		return
	}
	defer func() { _ = file.Close() }()

	out, err := h.receiptService.Extract(c.Request.Context(), id, service.ReceiptUploadInput{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		File:        file,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, receiptResponse{Result: out.Result, Row: out.Row, Warning: out.Warning})
}

// ListResults handles GET /api/v1/results
func (h *ReceiptHandler) ListResults(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	table, err := h.receiptService.Table(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}

	rows := make([][]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		rows = append(rows, mapping.Values(row))
	}
	results := table.Results
	if results == nil {
		results = []domain.ExtractionResult{}
	}
	RespondOK(c, resultsResponse{
		Template: table.Template,
		Layout:   table.Layout,
		Results:  results,
		Rows:     rows,
	})
}

// DeleteResult handles DELETE /api/v1/results/:id
func (h *ReceiptHandler) DeleteResult(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	resultID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid result ID")
		return
	}
	if err := h.receiptService.RemoveResult(c.Request.Context(), id, resultID); err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "result deleted"})
}

// Reset handles DELETE /api/v1/results
func (h *ReceiptHandler) Reset(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	if err := h.receiptService.Reset(c.Request.Context(), id); err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "session reset"})
}

// SetLayout handles POST /api/v1/layout
func (h *ReceiptHandler) SetLayout(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req layoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "layout must be \"receipt\" or \"items\"")
		return
	}
	layout := domain.ParseRowLayout(req.Layout)
	if err := h.receiptService.SetLayout(c.Request.Context(), id, layout); err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{"layout": layout})
}

// ExportCSV handles GET /api/v1/export/csv and GET /export.csv
func (h *ReceiptHandler) ExportCSV(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	filename, err := h.receiptService.ExportCSV(c.Request.Context(), id, &buf)
	if err != nil {
		HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// ExportXLSX handles GET /api/v1/export/xlsx and GET /export.xlsx
func (h *ReceiptHandler) ExportXLSX(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	filename, err := h.receiptService.ExportXLSX(c.Request.Context(), id, &buf)
	if err != nil {
		HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxexport.ContentType, buf.Bytes())
}
