package handlers

import (
	"errors"
	"net/http"

	"insightpilot/backend/internal/ingest"
	"insightpilot/backend/internal/models"

	"github.com/gin-gonic/gin"
)

func (h *Handler) importCustomers(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.Import.MaxUploadBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	res, err := h.importer.Import(c.Request.Context(), fh.Filename, f)
	if err != nil {
		writeImportError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func writeImportError(c *gin.Context, err error) {
	var missing *ingest.MissingColumnsError
	var failed *ingest.ImportError
	var rowErr *ingest.RowError
	switch {
	case errors.Is(err, ingest.ErrUnsupportedFileType), errors.Is(err, ingest.ErrNoHeader):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &missing):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "missing": missing.Columns})
	case errors.As(err, &failed) && errors.As(err, &rowErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": rowErr.Error(), "import_id": failed.ImportID})
	case errors.As(err, &failed):
		c.JSON(http.StatusInternalServerError, gin.H{"error": failed.Err.Error(), "import_id": failed.ImportID})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

type importPage struct {
	Items  []models.ImportJob `json:"items"`
	Total  int64              `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

func (h *Handler) listImports(c *gin.Context) {
	limit := h.cfg.Query.ClampLimit(queryInt(c, "limit", 0))
	offset := queryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	jobs, total, err := h.store.ListJobs(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if jobs == nil {
		jobs = []models.ImportJob{}
	}
	c.JSON(http.StatusOK, importPage{Items: jobs, Total: total, Limit: limit, Offset: offset})
}

func (h *Handler) getImport(c *gin.Context) {
	job, err := h.store.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}
