package router

import (
	"html/template"

	"github.com/gin-gonic/gin"

	"receiptcsv/internal/config"
	"receiptcsv/internal/handler"
	"receiptcsv/internal/middleware"
	"receiptcsv/internal/session"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	cfg *config.Config,
	tokens *session.TokenManager,
	pages *template.Template,
	receiptH *handler.ReceiptHandler,
	uiH *handler.UIHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()
	r.SetHTMLTemplate(pages)

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	// Everything below is scoped to a browser session
	app := r.Group("")
	app.Use(middleware.Session(tokens, &cfg.Session))

	// HTML page
	app.GET("/", uiH.Index)
	app.POST("/template", uiH.UploadTemplate)
	app.POST("/template/default", uiH.UseDefaultTemplate)
	app.POST("/receipts", uiH.UploadReceipt)
	app.POST("/layout", uiH.SetLayout)
	app.POST("/results/:id/delete", uiH.DeleteResult)
	app.POST("/reset", uiH.Reset)
	app.GET("/export.csv", receiptH.ExportCSV)
	app.GET("/export.xlsx", receiptH.ExportXLSX)

	// JSON API
	v1 := app.Group("/api/v1")
	v1.GET("/status", receiptH.Status)
	v1.GET("/template", receiptH.GetTemplate)
	v1.POST("/template", receiptH.UploadTemplate)
	v1.POST("/layout", receiptH.SetLayout)
	v1.POST("/receipts", receiptH.UploadReceipt)
	v1.GET("/results", receiptH.ListResults)
	v1.DELETE("/results", receiptH.Reset)
	v1.DELETE("/results/:id", receiptH.DeleteResult)
	v1.GET("/export/csv", receiptH.ExportCSV)
	v1.GET("/export/xlsx", receiptH.ExportXLSX)

	return r
}
