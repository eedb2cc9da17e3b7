package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"intake/internal/runexport"
	"intake/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// IntakeHandler handles operator endpoints for the intake pipeline.
type IntakeHandler struct {
	intakeService service.IntakeService
	runs          service.RunTrigger
}

// NewIntakeHandler creates a new IntakeHandler.
func NewIntakeHandler(intakeService service.IntakeService, runs service.RunTrigger) *IntakeHandler {
	return &IntakeHandler{intakeService: intakeService, runs: runs}
}

// TriggerRun handles POST /api/v1/intake/runs
// The run is detached from the request so a dropped connection does not abort it.
func (h *IntakeHandler) TriggerRun(c *gin.Context) {
	summary, err := h.runs.Trigger(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		if summary == nil {
			HandleError(c, err)
			return
		}
		// aborted run: report the partial summary alongside the error
		status, code, msg := MapDomainError(err)
		c.JSON(status, APIResponse{
			Success: false,
			Data:    summary,
			Error:   &APIError{Code: code, Message: msg},
		})
		return
	}
	RespondOK(c, summary)
}

// GetLastRun handles GET /api/v1/intake/runs/last
// format=csv or format=xlsx downloads the run as a spreadsheet.
func (h *IntakeHandler) GetLastRun(c *gin.Context) {
	summary := h.runs.LastRun()
	if summary == nil {
		RespondError(c, http.StatusNotFound, "NO_RUNS", "no intake run has completed yet")
		return
	}

	switch format := c.DefaultQuery("format", "json"); format {
	case "json":
		RespondOK(c, summary)
	case "csv":
		var buf bytes.Buffer
		buf.Write(runexport.BOM)
		w := runexport.NewWriter(&buf)
		if err := w.WriteHeader(); err != nil {
			HandleError(c, err)
			return
		}
		if err := w.WriteSummary(summary); err != nil {
			HandleError(c, err)
			return
		}
		w.Flush()
		if err := w.Error(); err != nil {
			HandleError(c, err)
			return
		}
		attachFile(c, runexport.BuildFilename(summary.StartedAt, "csv"))
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
	case "xlsx":
		var buf bytes.Buffer
		if err := runexport.WriteXLSX(&buf, summary); err != nil {
			HandleError(c, err)
			return
		}
		attachFile(c, runexport.BuildFilename(summary.StartedAt, "xlsx"))
		c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
	default:
		RespondError(c, http.StatusBadRequest, "INVALID_FORMAT", "format must be json, csv or xlsx")
	}
}

// RequeueMessage handles POST /api/v1/intake/messages/:id/requeue
func (h *IntakeHandler) RequeueMessage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.intakeService.RequeueMessage(c.Request.Context(), id); err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{"id": id, "status": "pending"})
}

// GetMessage handles GET /api/v1/intake/messages/:id
func (h *IntakeHandler) GetMessage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	msg, err := h.intakeService.GetMessage(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, msg)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid message ID")
		return uuid.Nil, false
	}
	return id, true
}

func attachFile(c *gin.Context, filename string) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
}
