package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"schooladmin.org/internal/audit"
	"schooladmin.org/internal/auth"
	"schooladmin.org/internal/dbgw"
)

// recordKind describes one domain table the core serves generically. The
// core does not own these rows; table and column names are fixed here,
// never derived from request input.
type recordKind struct {
	table       string
	perm        auth.Permission
	statuses    []string
	labelColumn string
	notFoundMsg string
}

var admissionKind = recordKind{
	table:       "admission_inquiries",
	perm:        auth.PermManageAdmissions,
	statuses:    []string{"pending", "reviewed", "approved", "rejected"},
	labelColumn: "child_name",
	notFoundMsg: "Admission inquiry not found",
}

var visitorKind = recordKind{
	table:       "visitors",
	perm:        auth.PermManageVisitors,
	statuses:    []string{"scheduled", "completed", "cancelled"},
	labelColumn: "visitor_name",
	notFoundMsg: "Visitor not found",
}

func (k recordKind) validStatus(status string) bool {
	for _, s := range k.statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (a *API) getRecord(w http.ResponseWriter, r *http.Request, k recordKind, id int64) {
	query := fmt.Sprintf("select * from %s where id = ?", k.table)
	row, err := a.gw.FetchOne(r.Context(), query, id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if row == nil {
		writeNotFound(w, k.notFoundMsg)
		return
	}
	writeData(w, row)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (a *API) updateRecordStatus(w http.ResponseWriter, r *http.Request, k recordKind, id int64, session auth.Session) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if !k.validStatus(req.Status) {
		writeBadRequest(w, "Invalid status")
		return
	}

	n, err := a.gw.Update(r.Context(), k.table, dbgw.Row{"status": req.Status}, "id = ?", id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if n == 0 {
		writeNotFound(w, k.notFoundMsg)
		return
	}

	a.recordAudit(r, session, auditActionFor(k, "Update")+" Status",
		fmt.Sprintf("ID: %d, Status: %s", id, req.Status))
	writeMessage(w, "Status updated successfully")
}

func (a *API) deleteRecord(w http.ResponseWriter, r *http.Request, k recordKind, id int64, session auth.Session) {
	// Fetch first so the audit detail can name the record.
	query := fmt.Sprintf("select %s from %s where id = ?", k.labelColumn, k.table)
	row, err := a.gw.FetchOne(r.Context(), query, id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if row == nil {
		writeNotFound(w, k.notFoundMsg)
		return
	}

	if _, err := a.gw.Delete(r.Context(), k.table, "id = ?", id); err != nil {
		writeFailure(w, err)
		return
	}

	label, _ := row[k.labelColumn].(string)
	a.recordAudit(r, session, auditActionFor(k, "Delete"),
		fmt.Sprintf("ID: %d, Name: %s", id, label))
	writeMessage(w, "Record deleted successfully")
}

func (a *API) listRecords(w http.ResponseWriter, r *http.Request, k recordKind, searchColumns []string) {
	search := strings.TrimSpace(r.URL.Query().Get("search"))
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	query := fmt.Sprintf("select * from %s", k.table)
	var args []any
	if search != "" {
		conds := make([]string, len(searchColumns))
		for i, col := range searchColumns {
			conds[i] = col + " ilike ?"
			args = append(args, "%"+search+"%")
		}
		query += " where " + strings.Join(conds, " or ")
	}
	query += " order by id desc limit ?"
	args = append(args, limit)

	rows, err := a.gw.FetchAll(r.Context(), query, args...)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if rows == nil {
		rows = []dbgw.Row{}
	}
	writeData(w, rows)
}

func auditActionFor(k recordKind, verb string) string {
	if k.table == "admission_inquiries" {
		return verb + " Admission"
	}
	return verb + " Visitor"
}

func (a *API) recordAudit(r *http.Request, session auth.Session, action, details string) {
	a.auditLog.Record(audit.Record{
		PrincipalID: &session.PrincipalID,
		ClientIP:    clientIP(r),
		Action:      action,
		Details:     details,
		UserAgent:   r.UserAgent(),
	})
}

func parseRecordID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
