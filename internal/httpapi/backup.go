package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"schooladmin.org/internal/auth"
	"schooladmin.org/internal/dbgw"
	"schooladmin.org/internal/obs"
)

var backupTables = []string{"users", "admission_inquiries", "visitors"}

// handleBackup dumps the domain tables to a SQL file under the backup
// directory. All tables are read inside one transaction so the dump is a
// consistent snapshot.
func (a *API) handleBackup(w http.ResponseWriter, r *http.Request) {
	session, err := a.requirePermission(r, auth.PermBackupDatabase)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	filename := fmt.Sprintf("backup_%s.sql", time.Now().Format("2006-01-02_150405"))
	path := filepath.Join(a.backupDir, filename)

	var dump strings.Builder
	dump.WriteString(fmt.Sprintf("-- schooladmin backup %s\n", time.Now().Format("2006-01-02 15:04:05")))

	err = a.gw.WithTx(r.Context(), func(ctx context.Context, tx *dbgw.Tx) error {
		for _, table := range backupTables {
			rows, err := tx.FetchAll(ctx, "select * from "+table+" order by id")
			if err != nil {
				return err
			}
			dump.WriteString(fmt.Sprintf("\n-- %s (%d rows)\n", table, len(rows)))
			for _, row := range rows {
				dump.WriteString(insertStatement(table, row))
			}
		}
		return nil
	})
	if err != nil {
		writeFailure(w, err)
		return
	}

	if err := os.MkdirAll(a.backupDir, 0o755); err != nil {
		obs.LogError("httpapi", "backup dir", err, map[string]any{"dir": a.backupDir})
		writeFailure(w, dbgw.ErrDataAccess)
		return
	}
	if err := os.WriteFile(path, []byte(dump.String()), 0o600); err != nil {
		obs.LogError("httpapi", "backup write", err, map[string]any{"path": path})
		writeFailure(w, dbgw.ErrDataAccess)
		return
	}

	a.recordAudit(r, session, "Database Backup", "File: "+filename)
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data:    map[string]any{"filename": filename},
		Message: "Backup created successfully",
	})
}

func insertStatement(table string, row dbgw.Row) string {
	columns := make([]string, 0, len(row))
	for col := range row {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	values := make([]string, len(columns))
	for i, col := range columns {
		values[i] = sqlLiteral(row[col])
	}
	return fmt.Sprintf("insert into %s (%s) values (%s);\n",
		table, strings.Join(columns, ", "), strings.Join(values, ", "))
}

func sqlLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case bool:
		if x {
			return "true"
		}
		return "false"
	case time.Time:
		return "'" + x.Format("2006-01-02 15:04:05") + "'"
	default:
		return fmt.Sprint(x)
	}
}
