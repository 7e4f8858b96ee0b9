package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"schooladmin.org/internal/auth"
	"schooladmin.org/internal/dbgw"
)

type visitorRequest struct {
	VisitorName string `json:"visitor_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Purpose     string `json:"purpose"`
	VisitDate   string `json:"visit_date"`
	Notes       string `json:"notes"`
}

func (req *visitorRequest) validate() map[string]string {
	errs := make(map[string]string)
	req.VisitorName = requireField(errs, "visitor_name", req.VisitorName, "Visitor name is required")
	req.Purpose = requireField(errs, "purpose", req.Purpose, "Purpose is required")
	req.VisitDate = requireField(errs, "visit_date", req.VisitDate, "Visit date is required")

	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	if req.PhoneNumber == "" {
		errs["phone_number"] = "Phone number is required"
	} else if !validPhone(req.PhoneNumber) {
		errs["phone_number"] = "Phone number must contain at least 10 digits"
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email != "" && !validEmail(req.Email) {
		errs["email"] = "Invalid email address"
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

var visitorSearchColumns = []string{"visitor_name", "phone_number", "purpose"}

func (a *API) handleVisitorsCollection(w http.ResponseWriter, r *http.Request) {
	session, err := a.requirePermission(r, visitorKind.perm)
	if err != nil {
		writeFailure(w, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.listRecords(w, r, visitorKind, visitorSearchColumns)
	case http.MethodPost:
		a.createVisitor(w, r, session)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (a *API) createVisitor(w http.ResponseWriter, r *http.Request, session auth.Session) {
	var req visitorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if errs := req.validate(); errs != nil {
		writeValidationErrors(w, errs)
		return
	}

	id, err := a.gw.Insert(r.Context(), visitorKind.table, dbgw.Row{
		"visitor_name": req.VisitorName,
		"email":        req.Email,
		"phone_number": req.PhoneNumber,
		"purpose":      req.Purpose,
		"visit_date":   req.VisitDate,
		"notes":        req.Notes,
		"status":       "scheduled",
	})
	if err != nil {
		writeFailure(w, err)
		return
	}

	a.recordAudit(r, session, "Create Visitor",
		fmt.Sprintf("ID: %d, Name: %s", id, req.VisitorName))
	writeJSON(w, http.StatusCreated, envelope{
		Success: true,
		Data:    map[string]any{"id": id},
		Message: "Visitor created successfully",
	})
}

func (a *API) handleVisitorResource(w http.ResponseWriter, r *http.Request) {
	session, err := a.requirePermission(r, visitorKind.perm)
	if err != nil {
		writeFailure(w, err)
		return
	}

	raw, statusPath, ok := resourceID(r.URL.Path, "/api/visitors/")
	if !ok {
		writeNotFound(w, "resource not found")
		return
	}
	id, ok := parseRecordID(raw)
	if !ok {
		writeBadRequest(w, "Invalid record ID")
		return
	}

	if statusPath {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		a.updateRecordStatus(w, r, visitorKind, id, session)
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getRecord(w, r, visitorKind, id)
	case http.MethodDelete:
		a.deleteRecord(w, r, visitorKind, id, session)
	default:
		methodNotAllowed(w, "GET, DELETE")
	}
}
