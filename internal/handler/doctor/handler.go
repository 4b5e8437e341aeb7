package doctor

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/neuroscan-api/internal/middleware"
	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/internal/service/account"
	"github.com/jwalitptl/neuroscan-api/internal/service/record"
	"github.com/jwalitptl/neuroscan-api/internal/service/scan"
	apperrors "github.com/jwalitptl/neuroscan-api/pkg/errors"
	"github.com/jwalitptl/neuroscan-api/pkg/httputil"
)

type Handler struct {
	records  *record.Service
	scans    *scan.Service
	profiles *account.Service
}

func NewHandler(records *record.Service, scans *scan.Service, profiles *account.Service) *Handler {
	return &Handler{records: records, scans: scans, profiles: profiles}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authMw *middleware.AuthMiddleware) {
	doctors := r.Group("/doctor", authMw.RequireRole(model.RoleDoctor, true))
	{
		doctors.POST("/add-patient", h.AddPatient)
		doctors.GET("/patient-records", h.ListRecords)
		doctors.GET("/record/:id", h.GetRecord)
		doctors.POST("/update-patient-scan", h.UpdateScan)
		doctors.POST("/save-report", h.SaveReport)
		doctors.POST("/upload-file", h.UploadFile)
		doctors.POST("/delete-file", h.DeleteFile)
		doctors.POST("/share-patient-record", h.ShareRecord)
		doctors.POST("/mri-scan", h.MRIScan)
		doctors.GET("/profile", h.GetProfile)
		doctors.POST("/update-profile", h.UpdateProfile)
	}
}

func caller(c *gin.Context) string {
	id, _ := middleware.IdentityFrom(c)
	return id.Email
}

func (h *Handler) AddPatient(c *gin.Context) {
	var req model.AddPatientRequest
	if !httputil.BindJSON(c, &req) {
		return
	}
	id, err := h.records.AddPatient(c.Request.Context(), caller(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, "Patient added", gin.H{"patient_id": id})
}

func (h *Handler) ListRecords(c *gin.Context) {
	records, err := h.records.List(c.Request.Context(), caller(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "", gin.H{"records": records})
}

func (h *Handler) GetRecord(c *gin.Context) {
	id, ok := httputil.ParamID(c, "id")
	if !ok {
		return
	}
	rec, err := h.records.Get(c.Request.Context(), caller(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "", rec)
}

func (h *Handler) UpdateScan(c *gin.Context) {
	var req model.UpdateScanRequest
	if !httputil.BindJSON(c, &req) {
		return
	}
	if err := h.records.UpdateScanResult(c.Request.Context(), caller(c), &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "Updated", nil)
}

func (h *Handler) SaveReport(c *gin.Context) {
	var req model.SaveReportRequest
	if !httputil.BindJSON(c, &req) {
		return
	}
	if err := h.records.SaveReport(c.Request.Context(), caller(c), &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "Report saved successfully", nil)
}

// UploadFile takes a multipart form with "file" and "patient_id".
func (h *Handler) UploadFile(c *gin.Context) {
	id, err := strconv.ParseInt(c.PostForm("patient_id"), 10, 64)
	if err != nil || id <= 0 {
		httputil.RespondWithError(c, apperrors.BadRequest("patient_id is required", err))
		return
	}

	fh, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		httputil.RespondWithError(c, apperrors.BadRequest("No file part", err))
		return
	}
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid multipart form", err))
		return
	}
	f, err := fh.Open()
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("unreadable file", err))
		return
	}
	defer f.Close()

	name, err := h.records.UploadFile(c.Request.Context(), caller(c), id, fh.Filename, f)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "File "+name+" uploaded successfully", gin.H{"file_name": name})
}

func (h *Handler) DeleteFile(c *gin.Context) {
	var req model.RecordRef
	if !httputil.BindJSON(c, &req) {
		return
	}
	if err := h.records.DeleteFile(c.Request.Context(), caller(c), req.PatientID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "File deleted successfully", nil)
}

func (h *Handler) ShareRecord(c *gin.Context) {
	var req model.RecordRef
	if !httputil.BindJSON(c, &req) {
		return
	}
	if err := h.records.ShareByEmail(c.Request.Context(), caller(c), req.PatientID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "Shared", nil)
}

func (h *Handler) MRIScan(c *gin.Context) {
	var req model.MRIScanRequest
	if !httputil.BindJSON(c, &req) {
		return
	}
	resp, err := h.scans.Scan(c.Request.Context(), caller(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "Scan processed successfully", resp)
}

func (h *Handler) GetProfile(c *gin.Context) {
	d, err := h.profiles.DoctorProfile(c.Request.Context(), caller(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "", d)
}

// UpdateProfile takes a multipart form. Text fields that are absent are
// left unchanged; profile_image is optional.
func (h *Handler) UpdateProfile(c *gin.Context) {
	field := func(name string) *string {
		if v, ok := c.GetPostForm(name); ok {
			return &v
		}
		return nil
	}
	update := model.DoctorProfileUpdate{
		Name:       field("name"),
		Phone:      field("phone"),
		Country:    field("country"),
		City:       field("city"),
		Hospital:   field("hospital"),
		University: field("university"),
		About:      field("about"),
	}

	var image *account.Upload
	fh, err := c.FormFile("profile_image")
	switch {
	case err == nil:
		f, err := fh.Open()
		if err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest("unreadable file", err))
			return
		}
		defer f.Close()
		image = &account.Upload{Filename: fh.Filename, Body: f}
	case !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart):
		httputil.RespondWithError(c, apperrors.BadRequest("invalid multipart form", err))
		return
	}

	d, err := h.profiles.UpdateDoctorProfile(c.Request.Context(), caller(c), update, image)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "Profile updated successfully", d)
}
