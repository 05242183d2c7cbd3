package httpapi

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"facetrack/internal/attendance"
	"facetrack/internal/auth"
	"facetrack/internal/queue"
)

// Handler exposes the attendance service over HTTP.
type Handler struct {
	svc *attendance.Service
	q   queue.Queue

	jwtIssuer  string
	jwtKey     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// New creates a handler. The queue may be nil when async enrollment
// verification is disabled.
func New(svc *attendance.Service, q queue.Queue, jwtIssuer, jwtKey string, accessTTL, refreshTTL time.Duration) *Handler {
	return &Handler{
		svc:        svc,
		q:          q,
		jwtIssuer:  jwtIssuer,
		jwtKey:     jwtKey,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Register wires the routes. Write endpoints sit behind kiosk device auth.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/devices/register", h.RegisterDevice)
	r.GET("/companies", h.ListCompanies)
	r.GET("/roster", h.Roster)
	r.GET("/enrollment-photo", h.EnrollmentPhoto)
	r.GET("/person-id", h.PersonID)
	r.GET("/persons", h.ListPersons)
	r.GET("/attendance/entry-exists", h.EntryExists)
	r.GET("/attendance/exit-exists", h.ExitExists)
	r.GET("/attendance/records", h.ListRecords)

	authed := r.Group("", auth.KioskAuth(h.jwtKey, h.jwtIssuer))
	authed.POST("/companies", h.CreateCompany)
	authed.POST("/enroll", h.Enroll)
	authed.POST("/attendance/entry", h.RegisterEntry)
	authed.POST("/attendance/exit", h.RegisterExit)
}

// status maps service errors to HTTP codes.
func status(err error) int {
	switch {
	case errors.Is(err, attendance.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, attendance.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, attendance.ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	code := status(err)
	if code == http.StatusInternalServerError {
		log.Printf("httpapi: %v", err)
		c.JSON(code, gin.H{"error": "internal error"})
		return
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

// ---------- Devices ----------

// RegisterDevice registers a kiosk and issues its tokens.
func (h *Handler) RegisterDevice(c *gin.Context) {
	var req struct {
		DeviceID string `json:"device_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.RegisterDevice(c.Request.Context(), req.DeviceID); err != nil {
		fail(c, err)
		return
	}

	tokens, err := auth.Issue(req.DeviceID, h.jwtIssuer, h.jwtKey, h.accessTTL, h.refreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	_ = h.svc.SaveRefreshToken(c.Request.Context(), req.DeviceID, tokens.RefreshToken, tokens.RefreshExp)

	c.JSON(http.StatusCreated, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

// ---------- Companies ----------

func (h *Handler) ListCompanies(c *gin.Context) {
	companies, err := h.svc.Companies(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"companies": companies})
}

func (h *Handler) CreateCompany(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	company, err := h.svc.CreateCompany(c.Request.Context(), req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, company)
}

// ---------- Enrollment ----------

// Enroll registers a person from a multipart form: name, nationalId, title,
// companyId, photo. A duplicate national id within the company is a 400,
// matching what enrollment forms expect.
func (h *Handler) Enroll(c *gin.Context) {
	var req struct {
		Name       string `form:"name" binding:"required"`
		NationalID string `form:"nationalId" binding:"required"`
		Title      string `form:"title"`
		CompanyID  int64  `form:"companyId" binding:"required"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	file, _, err := c.Request.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}
	defer file.Close()
	photo, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read photo"})
		return
	}

	id, err := h.svc.Enroll(c.Request.Context(), req.Name, req.NationalID, req.Title, req.CompanyID, photo)
	if err != nil {
		if errors.Is(err, attendance.ErrConflict) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "national id already enrolled for this company"})
			return
		}
		fail(c, err)
		return
	}

	h.publish(c, queue.Message{Type: queue.TypeEnroll, Body: []byte(strconv.FormatInt(id, 10))})
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// ---------- Roster ----------

func (h *Handler) Roster(c *gin.Context) {
	companyID, err := queryID(c, "companyId")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	labels, total, err := h.svc.Roster(c.Request.Context(), companyID)
	if err != nil {
		fail(c, err)
		return
	}
	if labels == nil {
		labels = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"labels": labels, "totalUsers": total})
}

func (h *Handler) EnrollmentPhoto(c *gin.Context) {
	companyID, err := queryID(c, "companyId")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	photo, err := h.svc.Photo(c.Request.Context(), c.Query("label"), companyID)
	if err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/jpeg", photo)
}

func (h *Handler) PersonID(c *gin.Context) {
	companyID, err := queryID(c, "companyId")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := h.svc.PersonID(c.Request.Context(), c.Query("label"), companyID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h *Handler) ListPersons(c *gin.Context) {
	companyID, err := queryID(c, "companyId")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	persons, err := h.svc.Persons(c.Request.Context(), companyID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"persons": persons})
}

// ---------- Attendance ----------

type attendanceRequest struct {
	PersonID  int64  `json:"personId" binding:"required"`
	CompanyID int64  `json:"companyId" binding:"required"`
	Timestamp string `json:"timestamp" binding:"required"`
}

func (r attendanceRequest) when() (time.Time, error) {
	return time.Parse(time.RFC3339, r.Timestamp)
}

// RegisterEntry records the first entry of the day; 409 when already recorded.
func (h *Handler) RegisterEntry(c *gin.Context) {
	var req attendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ts, err := req.when()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be RFC3339"})
		return
	}

	rec, err := h.svc.RegisterEntry(c.Request.Context(), req.PersonID, req.CompanyID, ts)
	if err != nil {
		fail(c, err)
		return
	}

	h.publish(c, queue.Message{Type: queue.TypeEntry, Body: []byte(rec.ID)})
	c.JSON(http.StatusOK, rec)
}

// RegisterExit records the day's exit; 409 when no open entry exists.
func (h *Handler) RegisterExit(c *gin.Context) {
	var req attendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ts, err := req.when()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be RFC3339"})
		return
	}

	if err := h.svc.RegisterExit(c.Request.Context(), req.PersonID, req.CompanyID, ts); err != nil {
		fail(c, err)
		return
	}

	h.publish(c, queue.Message{Type: queue.TypeExit, Body: []byte(strconv.FormatInt(req.PersonID, 10))})
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

func (h *Handler) EntryExists(c *gin.Context) {
	h.exists(c, h.svc.EntryExists)
}

func (h *Handler) ExitExists(c *gin.Context) {
	h.exists(c, h.svc.ExitExists)
}

func (h *Handler) exists(c *gin.Context, check func(ctx context.Context, personID, companyID int64, day string) (bool, error)) {
	personID, err := queryID(c, "personId")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	companyID, err := queryID(c, "companyId")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	day := attendance.DayOf(time.Now())
	exists, err := check(c.Request.Context(), personID, companyID, day)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": exists})
}

func (h *Handler) ListRecords(c *gin.Context) {
	companyID, err := queryID(c, "companyId")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	records, err := h.svc.Records(c.Request.Context(), companyID, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// ---------- Helpers ----------

func (h *Handler) publish(c *gin.Context, msg queue.Message) {
	if h.q == nil {
		return
	}
	if err := h.q.Publish(c.Request.Context(), msg); err != nil {
		log.Printf("queue publish failed: %v", err)
	}
}

func queryID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New(name + " is required")
	}
	return id, nil
}
