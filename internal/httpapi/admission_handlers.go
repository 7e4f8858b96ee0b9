package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"schooladmin.org/internal/auth"
	"schooladmin.org/internal/dbgw"
)

type admissionRequest struct {
	ChildName            string `json:"child_name"`
	ParentName           string `json:"parent_name"`
	ParentEmail          string `json:"parent_email"`
	PhoneNumber          string `json:"phone_number"`
	DesiredClass         string `json:"desired_class"`
	Address              string `json:"address"`
	SpecificRequirements string `json:"specific_requirements"`
	ParentNotes          string `json:"parent_notes"`
}

func (req *admissionRequest) validate() map[string]string {
	errs := make(map[string]string)
	req.ChildName = requireField(errs, "child_name", req.ChildName, "Child name is required")
	req.ParentName = requireField(errs, "parent_name", req.ParentName, "Parent name is required")
	req.DesiredClass = requireField(errs, "desired_class", req.DesiredClass, "Desired class is required")

	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	if req.PhoneNumber == "" {
		errs["phone_number"] = "Phone number is required"
	} else if !validPhone(req.PhoneNumber) {
		errs["phone_number"] = "Phone number must contain at least 10 digits"
	}

	req.ParentEmail = strings.TrimSpace(req.ParentEmail)
	if req.ParentEmail != "" && !validEmail(req.ParentEmail) {
		errs["parent_email"] = "Invalid email address"
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

var admissionSearchColumns = []string{"child_name", "parent_name", "phone_number", "desired_class"}

func (a *API) handleAdmissionsCollection(w http.ResponseWriter, r *http.Request) {
	session, err := a.requirePermission(r, admissionKind.perm)
	if err != nil {
		writeFailure(w, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.listRecords(w, r, admissionKind, admissionSearchColumns)
	case http.MethodPost:
		a.createAdmission(w, r, session)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (a *API) createAdmission(w http.ResponseWriter, r *http.Request, session auth.Session) {
	var req admissionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if errs := req.validate(); errs != nil {
		writeValidationErrors(w, errs)
		return
	}

	id, err := a.gw.Insert(r.Context(), admissionKind.table, dbgw.Row{
		"child_name":            req.ChildName,
		"parent_name":           req.ParentName,
		"parent_email":          req.ParentEmail,
		"phone_number":          req.PhoneNumber,
		"desired_class":         req.DesiredClass,
		"address":               req.Address,
		"specific_requirements": req.SpecificRequirements,
		"parent_notes":          req.ParentNotes,
		"status":                "pending",
		"inquiry_date":          time.Now().Format("2006-01-02"),
	})
	if err != nil {
		writeFailure(w, err)
		return
	}

	a.recordAudit(r, session, "Create Admission",
		fmt.Sprintf("ID: %d, Child: %s", id, req.ChildName))
	writeJSON(w, http.StatusCreated, envelope{
		Success: true,
		Data:    map[string]any{"id": id},
		Message: "Admission inquiry created successfully",
	})
}

func (a *API) handleAdmissionResource(w http.ResponseWriter, r *http.Request) {
	session, err := a.requirePermission(r, admissionKind.perm)
	if err != nil {
		writeFailure(w, err)
		return
	}

	raw, statusPath, ok := resourceID(r.URL.Path, "/api/admissions/")
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
		a.updateRecordStatus(w, r, admissionKind, id, session)
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getRecord(w, r, admissionKind, id)
	case http.MethodDelete:
		a.deleteRecord(w, r, admissionKind, id, session)
	default:
		methodNotAllowed(w, "GET, DELETE")
	}
}
