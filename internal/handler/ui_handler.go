package handler

import (
	"errors"
	"fmt"
	"html/template"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"receiptcsv/internal/domain"
	"receiptcsv/internal/mapping"
	"receiptcsv/internal/middleware"
	"receiptcsv/internal/service"
	"receiptcsv/internal/web"
)

// UIHandler serves the server-rendered HTML page. Every form posts back to a
// handler that renders the page again with inline messages.
type UIHandler struct {
	receiptService service.ReceiptService
	maxUpload      int64
}

// NewUIHandler creates a new UIHandler. maxUpload bounds uploaded files in bytes.
func NewUIHandler(receiptService service.ReceiptService, maxUpload int64) *UIHandler {
	return &UIHandler{receiptService: receiptService, maxUpload: maxUpload}
}

// preview is the thumbnail of the receipt just processed.
type preview struct {
	url  template.URL
	name string
}

// Index handles GET /
func (h *UIHandler) Index(c *gin.Context) {
	h.render(c, http.StatusOK, nil, nil)
}

// UploadTemplate handles POST /template
func (h *UIHandler) UploadTemplate(c *gin.Context) {
	id, ok := h.session(c)
	if !ok {
		return
	}

	file, header, err := formFile(c, "file", h.maxUpload+multipartOverhead)
	if err != nil {
		h.renderError(c, err)
		return
	}
	defer func() { _ = file.Close() }()

	tpl, err := h.receiptService.LoadTemplate(c.Request.Context(), id, service.TemplateUploadInput{
		FileName: header.Filename,
		File:     file,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	h.render(c, http.StatusOK, []web.Flash{{
		Kind:    web.FlashSuccess,
		Message: fmt.Sprintf("✅ Template loaded with %d columns", len(tpl.Columns)),
	}}, nil)
}

// UseDefaultTemplate handles POST /template/default
func (h *UIHandler) UseDefaultTemplate(c *gin.Context) {
	id, ok := h.session(c)
	if !ok {
		return
	}
	tpl, err := h.receiptService.UseDefaultTemplate(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, err)
		return
	}
	h.render(c, http.StatusOK, []web.Flash{{
		Kind:    web.FlashSuccess,
		Message: fmt.Sprintf("✅ Default template restored with %d columns", len(tpl.Columns)),
	}}, nil)
}

// UploadReceipt handles POST /receipts. A camera capture takes precedence over
// an uploaded file when both are sent.
func (h *UIHandler) UploadReceipt(c *gin.Context) {
	id, ok := h.session(c)
	if !ok {
		return
	}

	file, header, err := h.receiptFile(c)
	if err != nil {
		h.renderError(c, err)
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
		h.renderError(c, err)
		return
	}

	flashes := []web.Flash{{Kind: web.FlashSuccess, Message: "✅ Receipt processed: " + header.Filename}}
	if out.Warning != "" {
		flashes = []web.Flash{{Kind: web.FlashWarning, Message: "⚠️ " + out.Warning + ": " + header.Filename}}
	}
	h.render(c, http.StatusOK, flashes, &preview{
		url:  web.Preview(out.ContentType, out.Image),
		name: header.Filename,
	})
}

// SetLayout handles POST /layout
func (h *UIHandler) SetLayout(c *gin.Context) {
	id, ok := h.session(c)
	if !ok {
		return
	}
	layout := domain.ParseRowLayout(c.PostForm("layout"))
	if err := h.receiptService.SetLayout(c.Request.Context(), id, layout); err != nil {
		h.renderError(c, err)
		return
	}
	h.render(c, http.StatusOK, nil, nil)
}

// DeleteResult handles POST /results/:id/delete
func (h *UIHandler) DeleteResult(c *gin.Context) {
	id, ok := h.session(c)
	if !ok {
		return
	}
	resultID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.renderError(c, domain.ErrResultNotFound)
		return
	}
	if err := h.receiptService.RemoveResult(c.Request.Context(), id, resultID); err != nil {
		h.renderError(c, err)
		return
	}
	h.render(c, http.StatusOK, []web.Flash{{Kind: web.FlashInfo, Message: "Receipt removed"}}, nil)
}

// Reset handles POST /reset
func (h *UIHandler) Reset(c *gin.Context) {
	id, ok := h.session(c)
	if !ok {
		return
	}
	if err := h.receiptService.Reset(c.Request.Context(), id); err != nil {
		h.renderError(c, err)
		return
	}
	h.render(c, http.StatusOK, []web.Flash{{Kind: web.FlashInfo, Message: "Started over with the default template"}}, nil)
}

func (h *UIHandler) session(c *gin.Context) (string, bool) {
	id, err := middleware.GetSessionID(c)
	if err != nil {
		h.renderError(c, err)
		return "", false
	}
	return id, true
}

func (h *UIHandler) receiptFile(c *gin.Context) (multipart.File, *multipart.FileHeader, error) {
	file, header, err := formFile(c, "camera", h.maxUpload+multipartOverhead)
	if err == nil {
		return file, header, nil
	}
	if !errors.Is(err, domain.ErrMissingFile) {
		return nil, nil, err
	}
	return formFile(c, "file", h.maxUpload+multipartOverhead)
}

// renderError renders the page with err as an inline message and the mapped status.
func (h *UIHandler) renderError(c *gin.Context, err error) {
	status, _, msg := MapDomainError(err)
	logError(c, status, err)
	setRetryAfter(c, err)
	h.render(c, status, []web.Flash{{Kind: web.FlashError, Message: "❌ " + msg}}, nil)
}

func (h *UIHandler) render(c *gin.Context, status int, flashes []web.Flash, pv *preview) {
	st := h.receiptService.Status()
	page := web.Page{
		Provider:    st.Provider,
		Ready:       st.Ready,
		Maintenance: st.Maintenance,
		ConfigError: st.ConfigError,
		Missing:     st.Missing,
		Flashes:     flashes,
		MaxUploadMB: h.maxUpload >> 20,
	}
	if pv != nil {
		page.PreviewURL = pv.url
		page.PreviewName = pv.name
	}

	id, err := middleware.GetSessionID(c)
	var table *service.Table
	if err == nil {
		table, err = h.receiptService.Table(c.Request.Context(), id)
	}
	if err != nil {
		_, _, msg := MapDomainError(err)
		logError(c, http.StatusInternalServerError, err)
		page.Flashes = append(page.Flashes, web.Flash{Kind: web.FlashError, Message: "❌ " + msg})
		tpl := domain.DefaultTemplate()
		table = &service.Table{Template: tpl, Layout: domain.LayoutReceipt}
	}

	page.TemplateName = table.Template.Name
	page.Columns = table.Template.Columns
	page.Layout = string(table.Layout)
	page.Groups = resultGroups(table)
	page.RowCount = len(table.Rows)

	c.HTML(status, "index.html", page)
}

// resultGroups splits the table rows by the receipt they came from.
func resultGroups(table *service.Table) []web.ResultGroup {
	groups := make([]web.ResultGroup, 0, len(table.Results))
	for i := range table.Results {
		res := table.Results[i]
		rows := mapping.Rows(table.Template, []domain.ExtractionResult{res}, table.Layout)
		values := make([][]string, 0, len(rows))
		for _, row := range rows {
			values = append(values, mapping.Values(row))
		}
		groups = append(groups, web.ResultGroup{
			ID:     res.ID.String(),
			Source: res.SourceName,
			Rows:   values,
		})
	}
	return groups
}
