package server

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/InkLedgerLabs/certmark/backend/internal/auth"
	"github.com/InkLedgerLabs/certmark/backend/internal/builder"
	"github.com/InkLedgerLabs/certmark/backend/internal/changelog"
	"github.com/InkLedgerLabs/certmark/backend/internal/database"
	"github.com/InkLedgerLabs/certmark/backend/internal/geometry"
	"github.com/InkLedgerLabs/certmark/backend/internal/rbac"
	"github.com/InkLedgerLabs/certmark/backend/internal/template"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	userIDContextKey = "certmark_user_id"
	rolesContextKey  = "certmark_roles"
)

var (
	errMissingTokenValidator = errors.New("token validator dependency required")
	errMissingSessions       = errors.New("session manager dependency required")
	errMissingProjects       = errors.New("project repository dependency required")
	errMissingIDProvider     = errors.New("id provider dependency required")
	errInvalidAuthorization  = errors.New("authorization header missing or invalid")
)

// TokenValidator checks a bearer token and extracts the caller identity.
type TokenValidator interface {
	ValidateToken(token string) (auth.Claims, error)
}

// QueueSink adapts a change queue to the store's change-sink contract.
type QueueSink struct {
	Queue *changelog.Queue
}

// Enqueue implements builder.ChangeSink.
func (s QueueSink) Enqueue(change builder.Change) {
	s.Queue.Enqueue(change)
}

// Dependencies wires the HTTP surface.
type Dependencies struct {
	TokenValidator TokenValidator
	Sessions       *SessionManager
	Projects       *database.Projects
	IDProvider     builder.IDProvider
	TemplateDir    string
	Logger         *zap.Logger
}

// NewHTTPHandler builds the gin handler for the builder API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenValidator == nil {
		return nil, errMissingTokenValidator
	}
	if deps.Sessions == nil {
		return nil, errMissingSessions
	}
	if deps.Projects == nil {
		return nil, errMissingProjects
	}
	if deps.IDProvider == nil {
		return nil, errMissingIDProvider
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:      deps.TokenValidator,
		sessions:    deps.Sessions,
		projects:    deps.Projects,
		idProvider:  deps.IDProvider,
		templateDir: deps.TemplateDir,
		logger:      logger,
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/projects", handler.handleCreateProject)
	protected.GET("/projects/:projectID", handler.handleGetProject)
	protected.POST("/projects/:projectID/template", handler.handleUploadTemplate)
	protected.POST("/projects/:projectID/pages/:page/annotations/column", handler.handleAddColumn)
	protected.POST("/projects/:projectID/pages/:page/annotations/signature", handler.handleAddSignature)
	protected.PUT("/projects/:projectID/annotations/column/:annotationID", handler.handleUpdateColumn)
	protected.PUT("/projects/:projectID/annotations/signature/:annotationID", handler.handleUpdateSignature)
	protected.DELETE("/projects/:projectID/annotations/column/:annotationID", handler.handleRemoveColumn)
	protected.DELETE("/projects/:projectID/annotations/signature/:annotationID", handler.handleRemoveSignature)
	protected.POST("/projects/:projectID/annotations/:annotationID/invite", handler.handleInvite)
	protected.POST("/projects/:projectID/annotations/:annotationID/sign", handler.handleSign)
	protected.POST("/projects/:projectID/annotations/:annotationID/gesture", handler.handleGesture)
	protected.PUT("/projects/:projectID/settings", handler.handleUpdateSettings)
	protected.PUT("/projects/:projectID/table", handler.handleUpdateTable)
	protected.POST("/projects/:projectID/changes/flush", handler.handleFlush)
	protected.GET("/projects/:projectID/notices", handler.handleNotices)

	return router, nil
}

type httpHandler struct {
	tokens      TokenValidator
	sessions    *SessionManager
	projects    *database.Projects
	idProvider  builder.IDProvider
	templateDir string
	logger      *zap.Logger
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, claims.Subject)
	c.Set(rolesContextKey, claims.Roles)
	c.Next()
}

func (h *httpHandler) callerRoles(c *gin.Context) []rbac.Role {
	value, ok := c.Get(rolesContextKey)
	if !ok {
		return nil
	}
	roles, ok := value.([]rbac.Role)
	if !ok {
		return nil
	}
	return roles
}

// session resolves the builder session for the project, rebuilding it from
// persisted rows when needed. Responds with 404 and returns nil for unknown
// projects.
func (h *httpHandler) session(c *gin.Context) *BuilderSession {
	projectID := c.Param("projectID")
	if _, err := h.projects.Get(c.Request.Context(), projectID); err != nil {
		if errors.Is(err, database.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project_not_found"})
			return nil
		}
		h.logger.Error("project lookup failed", zap.String("project_id", projectID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "project_lookup_failed"})
		return nil
	}

	session, err := h.sessions.GetOrCreate(projectID)
	if err != nil {
		h.logger.Error("session build failed", zap.String("project_id", projectID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session_build_failed"})
		return nil
	}
	return session
}

type createProjectPayload struct {
	Name string `json:"name"`
}

func (h *httpHandler) handleCreateProject(c *gin.Context) {
	var request createProjectPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	projectID, err := h.idProvider.NewID()
	if err != nil {
		h.logger.Error("project id generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "id_generation_failed"})
		return
	}

	if err := h.projects.Create(c.Request.Context(), projectID, request.Name); err != nil {
		h.logger.Error("project create failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "project_create_failed"})
		return
	}

	if _, err := h.sessions.GetOrCreate(projectID); err != nil {
		h.logger.Error("session build failed", zap.String("project_id", projectID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session_build_failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"projectId": projectID, "name": request.Name})
}

type projectStatePayload struct {
	ProjectID          string                                 `json:"projectId"`
	Annotates          map[int][]builder.Annotation           `json:"annotates"`
	ColumnAnnotates    map[int][]*builder.ColumnAnnotation    `json:"columnAnnotates"`
	SignatureAnnotates map[int][]*builder.SignatureAnnotation `json:"signatureAnnotates"`
	SelectedAnnotateID string                                 `json:"selectedAnnotateId"`
	Settings           builder.Settings                       `json:"settings"`
	Table              builder.Table                          `json:"table"`
	PendingChanges     int                                    `json:"pendingChanges"`
	IsPushingChanges   bool                                   `json:"isPushingChanges"`
	TemplatePages      int                                    `json:"templatePages"`
	PageSizes          []pageSizePayload                      `json:"pageSizes"`
}

// pageSizePayload is a template page's design reference size in points. The
// client hands it to the geometry engine as the original size when converting
// between pixel and percent coordinates.
type pageSizePayload struct {
	Page   int     `json:"page"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func templatePageSizes(info template.Info) []pageSizePayload {
	sizes := make([]pageSizePayload, 0, info.PageCount)
	for page := 1; page <= info.PageCount; page++ {
		size := info.PageSize(page)
		sizes = append(sizes, pageSizePayload{Page: page, Width: size.Width, Height: size.Height})
	}
	return sizes
}

func (h *httpHandler) handleGetProject(c *gin.Context) {
	session := h.session(c)
	if session == nil {
		return
	}

	info := session.Template()
	c.JSON(http.StatusOK, projectStatePayload{
		ProjectID:          session.ProjectID,
		Annotates:          session.Store.AnnotationsByPage(),
		ColumnAnnotates:    session.Store.ColumnAnnotationsByPage(),
		SignatureAnnotates: session.Store.SignatureAnnotationsByPage(),
		SelectedAnnotateID: session.Store.SelectedAnnotationID(),
		Settings:           session.Store.Settings(),
		Table:              session.Store.Table(),
		PendingChanges:     session.Queue.Len(),
		IsPushingChanges:   session.Queue.Pushing(),
		TemplatePages:      info.PageCount,
		PageSizes:          templatePageSizes(info),
	})
}

func (h *httpHandler) handleUploadTemplate(c *gin.Context) {
	session := h.session(c)
	if session == nil {
		return
	}

	file, err := c.FormFile("template")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_template_file"})
		return
	}

	path := filepath.Join(h.templateDir, session.ProjectID+".pdf")
	if err := c.SaveUploadedFile(file, path); err != nil {
		h.logger.Error("template save failed", zap.String("project_id", session.ProjectID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "template_save_failed"})
		return
	}

	info, err := template.Inspect(path)
	if err != nil {
		h.logger.Warn("template inspection failed", zap.String("project_id", session.ProjectID), zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid_template"})
		return
	}

	if err := h.projects.SetTemplate(c.Request.Context(), session.ProjectID, path, info.PageCount); err != nil {
		h.logger.Error("template record failed", zap.String("project_id", session.ProjectID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "template_record_failed"})
		return
	}
	session.SetTemplate(info)

	c.JSON(http.StatusOK, gin.H{"pageCount": info.PageCount})
}

func (h *httpHandler) pageParam(c *gin.Context) (int, bool) {
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_page"})
		return 0, false
	}
	return page, true
}

func (h *httpHandler) handleAddColumn(c *gin.Context) {
	session := h.session(c)
	if session == nil {
		return
	}
	page, ok := h.pageParam(c)
	if !ok {
		return
	}

	var draft builder.ColumnDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	created := session.Store.AddColumnAnnotation(h.callerRoles(c), page, draft)
	if created == nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission_denied"})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *httpHandler) handleAddSignature(c *gin.Context) {
	session := h.session(c)
	if session == nil {
		return
	}
	page, ok := h.pageParam(c)
	if !ok {
		return
	}

	var draft builder.SignatureDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	created := session.Store.AddSignatureAnnotation(h.callerRoles(c), page, draft)
	if created == nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission_denied"})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *httpHandler) handleUpdateColumn(c *gin.Context) {
	session := h.session(c)
	if session == nil {
		return
	}

	var draft builder.ColumnDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	annotationID := c.Param("annotationID")
	session.Store.UpdateColumnAnnotation(h.callerRoles(c), annotationID, draft)
	h.respondWithAnnotation(c, session, annotationID)
}

func (h *httpHandler) handleUpdateSignature(c *gin.Context) {
	session := h.session(c)
	if session == nil {
		return
	}

	var draft builder.SignatureDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	annotationID := c.Param("annotationID")
	session.Store.UpdateSignatureAnnotation(h.callerRoles(c), annotationID, draft)
	h.respondWithAnnotation(c, session, annotationID)
}

func (h *httpHandler) handleRemoveColumn(c *gin.Context) {
	session := h.session(c)
	if session == nil {
		return
	}
	session.Store.RemoveColumnAnnotation(h.callerRoles(c), c.Param("annotationID"))
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleRemoveSignature(c *gin.Context) {
	session := h.session(c)
	if session == nil {
		return
	}
	session.Store.RemoveSignatureAnnotation(h.callerRoles(c), c.Param("annotationID"))
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleInvite(c *gin.Context) {
	session := h.session(c)
	if session == nil {
		return
	}
	annotationID := c.Param("annotationID")
	session.Store.InviteSignatureAnnotation(h.callerRoles(c), annotationID)
	h.respondWithAnnotation(c, session, annotationID)
}

func (h *httpHandler) handleSign(c *gin.Context) {
	session := h.session(c)
	if session == nil {
		return
	}

	annotationID := c.Param("annotationID")
	err := session.Store.SignSignatureAnnotation(c.Request.Context(), annotationID)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, builder.ErrAnnotationNotFound):
			status = http.StatusNotFound
		case errors.Is(err, builder.ErrWrongKind), errors.Is(err, builder.ErrNotInvited):
			status = http.StatusConflict
		case errors.Is(err, builder.ErrMissingApprover):
			status = http.StatusServiceUnavailable
		}
		var storeErr *builder.StoreError
		code := "sign_failed"
		if errors.As(err, &storeErr) {
			code = storeErr.Code()
		}
		c.JSON(status, gin.H{"error": code})
		return
	}
	h.respondWithAnnotation(c, session, annotationID)
}

type gesturePayload struct {
	Kind string `json:"kind"`
	Rect struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	} `json:"rect"`
}

func (h *httpHandler) handleGesture(c *gin.Context) {
	session := h.session(c)
	if session == nil {
		return
	}

	var request gesturePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	annotationID := c.Param("annotationID")
	rect := geometry.Rect{
		X:      request.Rect.X,
		Y:      request.Rect.Y,
		Width:  request.Rect.Width,
		Height: request.Rect.Height,
	}
	switch request.Kind {
	case "drag":
		session.Store.ApplyDragStop(h.callerRoles(c), annotationID, rect)
	case "resize":
		session.Store.ApplyResizeStop(h.callerRoles(c), annotationID, rect)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_gesture_kind"})
		return
	}
	h.respondWithAnnotation(c, session, annotationID)
}

func (h *httpHandler) handleUpdateSettings(c *gin.Context) {
	session := h.session(c)
	if session == nil {
		return
	}

	var settings builder.Settings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	session.Store.UpdateSettings(h.callerRoles(c), settings)
	c.JSON(http.StatusAccepted, session.Store.Settings())
}

type tableUpdatePayload struct {
	Table   builder.Table `json:"table"`
	Renames []struct {
		OldTitle string `json:"oldTitle"`
		NewTitle string `json:"newTitle"`
	} `json:"renames"`
}

// handleUpdateTable replaces the imported table, then propagates column
// renames into bound annotations and removes annotations orphaned by dropped
// columns.
func (h *httpHandler) handleUpdateTable(c *gin.Context) {
	session := h.session(c)
	if session == nil {
		return
	}

	var request tableUpdatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	roles := h.callerRoles(c)
	session.Store.UpdateTable(roles, request.Table)
	for _, rename := range request.Renames {
		session.Store.ReplaceAnnotationsColumnValue(roles, rename.OldTitle, rename.NewTitle)
	}
	session.Store.RemoveUnnecessaryAnnotations(roles, request.Table.ColumnTitles())

	c.JSON(http.StatusAccepted, gin.H{"columns": len(request.Table.Columns)})
}

func (h *httpHandler) handleFlush(c *gin.Context) {
	session := h.session(c)
	if session == nil {
		return
	}

	if err := session.Queue.Flush(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "flush_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pendingChanges": session.Queue.Len()})
}

func (h *httpHandler) handleNotices(c *gin.Context) {
	session := h.session(c)
	if session == nil {
		return
	}
	notices := session.Notices.Drain()
	if notices == nil {
		notices = []Notice{}
	}
	c.JSON(http.StatusOK, gin.H{"notices": notices})
}

func (h *httpHandler) respondWithAnnotation(c *gin.Context, session *BuilderSession, annotationID string) {
	annotation, page, ok := session.Store.FindAnnotation(annotationID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "annotation_not_found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": page, "annotation": annotation})
}
