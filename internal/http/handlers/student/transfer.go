package student

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aanand-mishra/students-api/internal/http/handlers"
	"github.com/aanand-mishra/students-api/internal/spreadsheet"
	"github.com/aanand-mishra/students-api/internal/storage"
	"github.com/aanand-mishra/students-api/internal/utils/response"
)

// Export handles GET /api/students/export?search=. It streams an .xlsx
// workbook of the matching students and their marks.
func Export(s storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		search := strings.TrimSpace(c.Query("search"))
		slog.Info("exporting students", slog.String("search", search))

		f, err := spreadsheet.Export(c.Request.Context(), s, search)
		if err != nil {
			handlers.StorageError(c, err, resource)
			return
		}
		defer f.Close()

		name := fmt.Sprintf("students_%s.xlsx", time.Now().Format("20060102_150405"))
		c.Header("Content-Type", spreadsheet.ContentType)
		c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
		c.Status(http.StatusOK)
		if err := f.Write(c.Writer); err != nil {
			slog.Error("writing export", slog.String("error", err.Error()))
		}
	}
}

// Import handles POST /api/students/import, a multipart upload with the
// workbook in the "file" field. The response lists skipped rows.
func Import(s storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			response.WriteJSON(c, http.StatusBadRequest,
				response.GeneralError(fmt.Errorf("form field file: %w", err)))
			return
		}
		defer file.Close()

		slog.Info("importing students", slog.String("file", header.Filename), slog.Int64("size", header.Size))

		res, err := spreadsheet.Import(c.Request.Context(), s, file)
		if err != nil {
			if errors.Is(err, spreadsheet.ErrBadWorkbook) {
				response.WriteJSON(c, http.StatusBadRequest, response.GeneralError(err))
				return
			}
			handlers.StorageError(c, err, resource)
			return
		}

		response.WriteJSON(c, http.StatusOK, response.OK(res))
	}
}
