package httpapi

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"time"

	"schooladmin.org/internal/auth"
	"schooladmin.org/internal/obs"
)

// Column order is fixed so exported files stay diffable across runs.
var exportColumns = map[string][]string{
	"admissions": {
		"id", "child_name", "parent_name", "parent_email", "phone_number",
		"desired_class", "address", "status", "inquiry_date",
	},
	"visitors": {
		"id", "visitor_name", "email", "phone_number", "purpose",
		"visit_date", "status",
	},
}

func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	session, err := a.requirePermission(r, auth.PermExportData)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	kind := r.URL.Query().Get("type")
	columns, ok := exportColumns[kind]
	if !ok {
		writeBadRequest(w, "Invalid export type")
		return
	}
	var k recordKind
	var searchColumns []string
	if kind == "admissions" {
		k, searchColumns = admissionKind, admissionSearchColumns
	} else {
		k, searchColumns = visitorKind, visitorSearchColumns
	}

	query := fmt.Sprintf("select %s from %s", strings.Join(columns, ", "), k.table)
	var args []any
	if search := strings.TrimSpace(r.URL.Query().Get("search")); search != "" {
		conds := make([]string, len(searchColumns))
		for i, col := range searchColumns {
			conds[i] = col + " ilike ?"
			args = append(args, "%"+search+"%")
		}
		query += " where " + strings.Join(conds, " or ")
	}
	query += " order by id"

	rows, err := a.gw.FetchAll(r.Context(), query, args...)
	if err != nil {
		writeFailure(w, err)
		return
	}

	filename := fmt.Sprintf("%s_export_%s.csv", kind, time.Now().Format("2006-01-02_150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	cw := csv.NewWriter(w)
	_ = cw.Write(columns)
	for _, row := range rows {
		record := make([]string, len(columns))
		for i, col := range columns {
			record[i] = csvCell(row[col])
		}
		_ = cw.Write(record)
	}
	cw.Flush()
	// A broken stream means the client got a truncated file; that must
	// not be recorded as a completed export.
	if err := cw.Error(); err != nil {
		obs.LogError("httpapi", "export stream failed", err, map[string]any{"type": kind, "rows": len(rows)})
		return
	}

	a.recordAudit(r, session, "Export Data",
		fmt.Sprintf("Type: %s, Rows: %d", kind, len(rows)))
}

func csvCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(x)
	}
}
