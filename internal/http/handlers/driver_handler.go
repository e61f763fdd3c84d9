// README: Driver handlers: profile, documents, availability, the bookable list and admin verification.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridebook/internal/http/middleware"
	"ridebook/internal/infra"
	"ridebook/internal/logging"
	"ridebook/internal/modules/availability"
	"ridebook/internal/modules/driver"
	"ridebook/internal/types"
)

// AvailabilityReader is implemented by *availability.Store.
type AvailabilityReader interface {
	Get(ctx context.Context, driverID types.ID) (availability.Availability, error)
}

type DriverHandler struct {
	drivers *driver.Service
	avail   AvailabilityReader
	log     *logging.Logger
}

func NewDriverHandler(drivers *driver.Service, avail AvailabilityReader, log *logging.Logger) *DriverHandler {
	return &DriverHandler{drivers: drivers, avail: avail, log: log}
}

func (h *DriverHandler) Bookable(c *gin.Context) {
	list, err := h.drivers.ListBookable(c.Request.Context())
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"drivers": list})
}

func (h *DriverHandler) MyAvailability(c *gin.Context) {
	a, err := h.avail.Get(c.Request.Context(), middleware.CallerUID(c))
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, a)
}

func (h *DriverHandler) MyProfile(c *gin.Context) {
	p, err := h.drivers.Profile(c.Request.Context(), middleware.CallerUID(c))
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

type profileReq struct {
	Phone  string `json:"phone" binding:"required"`
	Gender string `json:"gender" binding:"required"`
}

func (h *DriverHandler) UpsertProfile(c *gin.Context) {
	var req profileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "phone and gender are required")
		return
	}
	var email string
	if id := middleware.Caller(c); id != nil {
		email = id.Email
	}
	p, err := h.drivers.UpsertProfile(c.Request.Context(), driver.ProfileCommand{
		UserID: middleware.CallerUID(c),
		Email:  email,
		Phone:  req.Phone,
		Gender: req.Gender,
	})
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

type uploadURLReq struct {
	ContentType string `json:"content_type" binding:"required"`
	SizeBytes   int64  `json:"size_bytes" binding:"required"`
}

func (h *DriverHandler) UploadURL(c *gin.Context) {
	doc, ok := h.documentType(c)
	if !ok {
		return
	}
	var req uploadURLReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "content_type and size_bytes are required")
		return
	}
	ticket, err := h.drivers.UploadURL(c.Request.Context(), driver.UploadCommand{
		UserID:      middleware.CallerUID(c),
		Type:        doc,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
	})
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, ticket)
}

type recordDocumentReq struct {
	Path string `json:"path" binding:"required"`
}

func (h *DriverHandler) RecordDocument(c *gin.Context) {
	doc, ok := h.documentType(c)
	if !ok {
		return
	}
	var req recordDocumentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "path is required")
		return
	}
	p, err := h.drivers.RecordDocument(c.Request.Context(), middleware.CallerUID(c), doc, req.Path)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

func (h *DriverHandler) RemoveDocument(c *gin.Context) {
	doc, ok := h.documentType(c)
	if !ok {
		return
	}
	p, err := h.drivers.RemoveDocument(c.Request.Context(), middleware.CallerUID(c), doc)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

// ViewDocument returns signed view URLs: drivers see their own, admins any.
func (h *DriverHandler) ViewDocument(c *gin.Context) {
	doc, ok := h.documentType(c)
	if !ok {
		return
	}
	owner := middleware.CallerUID(c)
	if middleware.CallerRole(c) == infra.RoleAdmin && c.Param("id") != "" {
		owner = types.ID(c.Param("id"))
	}
	urls, err := h.drivers.DocumentURLs(c.Request.Context(), owner, doc)
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"urls": urls})
}

func (h *DriverHandler) List(c *gin.Context) {
	list, err := h.drivers.ListDrivers(c.Request.Context())
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"drivers": list})
}

func (h *DriverHandler) Get(c *gin.Context) {
	p, err := h.drivers.Profile(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

func (h *DriverHandler) Approve(c *gin.Context) {
	if err := h.drivers.Approve(c.Request.Context(), types.ID(c.Param("id")), middleware.CallerUID(c)); err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"user_id": c.Param("id"), "profile_verified": true})
}

func (h *DriverHandler) Reject(c *gin.Context) {
	if err := h.drivers.Reject(c.Request.Context(), types.ID(c.Param("id")), middleware.CallerUID(c)); err != nil {
		writeServiceError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"user_id": c.Param("id"), "profile_verified": false})
}

func (h *DriverHandler) documentType(c *gin.Context) (driver.DocumentType, bool) {
	doc, err := driver.ParseDocumentType(c.Param("type"))
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return "", false
	}
	return doc, true
}
