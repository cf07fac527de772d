package httpadapter

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
	"github.com/kirillkom/calibration-tracker/internal/core/ports"
)

type createToolRequest struct {
	Name                string `json:"name"`
	Description         string `json:"description"`
	ToolType            string `json:"tool_type"`
	Manufacturer        string `json:"manufacturer"`
	ModelNumber         string `json:"model_number"`
	SerialNumber        string `json:"serial_number"`
	LogNumber           string `json:"log_number"`
	ToolIDNumber        string `json:"tool_id_number"`
	StickerID           string `json:"sticker_id"`
	Location            string `json:"location"`
	Owner               string `json:"owner"`
	Router              string `json:"router"`
	Schedule            string `json:"schedule"`
	CustomIntervalDays  int    `json:"custom_interval_days"`
	Status              string `json:"status"`
	LastCalibrationDate string `json:"last_calibration_date"`
	NextCalibrationDate string `json:"next_calibration_date"`
	Comments            string `json:"comments"`
}

func (req createToolRequest) tool() (domain.Tool, error) {
	last, err := parseDay("last_calibration_date", req.LastCalibrationDate)
	if err != nil {
		return domain.Tool{}, err
	}
	next, err := parseDay("next_calibration_date", req.NextCalibrationDate)
	if err != nil {
		return domain.Tool{}, err
	}
	return domain.Tool{
		Name:                req.Name,
		Description:         req.Description,
		ToolType:            req.ToolType,
		Manufacturer:        req.Manufacturer,
		ModelNumber:         req.ModelNumber,
		SerialNumber:        req.SerialNumber,
		LogNumber:           req.LogNumber,
		ToolIDNumber:        req.ToolIDNumber,
		StickerID:           req.StickerID,
		Location:            req.Location,
		Owner:               req.Owner,
		Router:              req.Router,
		Schedule:            domain.Schedule(strings.ToLower(strings.TrimSpace(req.Schedule))),
		CustomIntervalDays:  req.CustomIntervalDays,
		Status:              domain.ToolStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		LastCalibrationDate: last,
		NextCalibrationDate: next,
		Comments:            req.Comments,
	}, nil
}

func (rt *Router) createTool(w http.ResponseWriter, r *http.Request) {
	var req createToolRequest
	if err := decodeJSON(r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	tool, err := req.tool()
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	created, err := rt.tools.Create(r.Context(), tool)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (rt *Router) getTool(w http.ResponseWriter, r *http.Request) {
	tool, records, err := rt.tools.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tool":         tool,
		"calibrations": records,
	})
}

func (rt *Router) deleteTool(w http.ResponseWriter, r *http.Request) {
	if err := rt.tools.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) lookupTools(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Queries []string `json:"queries"`
	}
	if err := decodeJSON(r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	results, err := rt.tools.Lookup(r.Context(), req.Queries)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (rt *Router) alerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := rt.tools.Alerts(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func (rt *Router) changeStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	status, ok := domain.ParseToolStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown status %q", req.Status)})
		return
	}
	tool, err := rt.tools.ChangeStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tool)
}

func (rt *Router) moveToBackup(w http.ResponseWriter, r *http.Request) {
	tool, err := rt.tools.MoveToBackup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tool)
}

func (rt *Router) restoreTool(w http.ResponseWriter, r *http.Request) {
	tool, err := rt.tools.Restore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tool)
}

func (rt *Router) logCalibration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CalibrationDate    string `json:"calibration_date"`
		DueDate            string `json:"due_date"`
		PerformedBy        string `json:"performed_by"`
		CalibrationCompany string `json:"calibration_company"`
		CertificateNumber  string `json:"certificate_number"`
		Result             string `json:"result"`
		Notes              string `json:"notes"`
	}
	if err := decodeJSON(r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	calDate, err := parseDay("calibration_date", req.CalibrationDate)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	due, err := parseDay("due_date", req.DueDate)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	entry := ports.CalibrationEntry{
		DueDate:            due,
		PerformedBy:        req.PerformedBy,
		CalibrationCompany: req.CalibrationCompany,
		CertificateNumber:  req.CertificateNumber,
		Result:             domain.CalibrationResult(strings.ToLower(strings.TrimSpace(req.Result))),
		Notes:              req.Notes,
	}
	if calDate != nil {
		entry.CalibrationDate = *calDate
	}

	tool, record, err := rt.tools.LogCalibration(r.Context(), chi.URLParam(r, "id"), entry)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"tool":   tool,
		"record": record,
	})
}
