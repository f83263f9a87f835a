package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"pdfchat/internal/extractor"
	"pdfchat/internal/models"
	"pdfchat/internal/service/answer"
	"pdfchat/internal/service/docqa"
	"pdfchat/internal/session"
	"pdfchat/internal/worker"
)

const (
	msgMissingFiles     = "No PDF files uploaded. Please upload a file and try again."
	msgInvalidFileType  = "Invalid file type. Only PDF files are allowed."
	msgNoContent        = "No content could be extracted from the uploaded PDFs."
	msgNoSessionContent = "No PDF has been uploaded yet. Please upload a PDF first."
	msgMissingQuestion  = "Please provide a question."
	msgUploaded         = "PDF uploaded and processed successfully."
	msgCancelled        = "The request was cancelled because the session was reset."

	uploadField   = "pdf_files"
	questionField = "question"

	defaultMaxUploadBytes = 20 << 20
)

// FileLister lists the files recorded for a session.
type FileLister interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.StoredFile, error)
}

// KeyCanceller drops queued work for a session.
type KeyCanceller interface {
	CancelKey(key string)
}

type Options struct {
	StaticDir      string
	MaxUploadBytes int64
	Files          FileLister
	Jobs           KeyCanceller
}

// Handler wires HTTP routes to the document Q&A service.
type Handler struct {
	docs      *docqa.Service
	sessions  *session.Manager
	files     FileLister
	jobs      KeyCanceller
	staticDir string
	maxUpload int64
}

// NewHandler constructs a Handler instance.
func NewHandler(docs *docqa.Service, sessions *session.Manager, opts Options) *Handler {
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	return &Handler{
		docs:      docs,
		sessions:  sessions,
		files:     opts.Files,
		jobs:      opts.Jobs,
		staticDir: opts.StaticDir,
		maxUpload: maxUpload,
	}
}

// NewRouter builds the gin engine with logging, panic recovery and all routes.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.CustomRecovery(func(c *gin.Context, recovered any) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "Server error",
			"details": fmt.Sprint(recovered),
		})
	}))
	h.RegisterRoutes(router)
	return router
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.index)
	router.GET("/healthz", h.healthz)
	if h.staticDir != "" {
		router.Static("/static", h.staticDir)
	}

	sessionRoutes := router.Group("/")
	sessionRoutes.Use(h.sessions.Middleware())
	sessionRoutes.POST("/upload", h.upload)
	sessionRoutes.POST("/ask", h.ask)
	sessionRoutes.GET("/session", h.sessionInfo)
	sessionRoutes.DELETE("/session", h.resetSession)
}

func (h *Handler) index(c *gin.Context) {
	page := filepath.Join(h.staticDir, "index.html")
	if h.staticDir == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "index page not found"})
		return
	}
	if _, err := os.Stat(page); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "index page not found"})
		return
	}
	c.File(page)
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) upload(c *gin.Context) {
	sessionID, ok := session.IDFromGin(c)
	if !ok {
		writeError(c, errors.New("session unavailable"))
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	docs, err := readUploads(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		writeError(c, err)
		return
	}
	if _, err := h.docs.Upload(c.Request.Context(), sessionID, docs); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msgUploaded})
}

// readUploads collects the pdf_files parts. A request without any named
// file part counts as having no files.
func readUploads(c *gin.Context) ([]models.UploadedDocument, error) {
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return nil, extractor.ErrMissingUploadFiles
		}
		return nil, fmt.Errorf("parse multipart form: %w", err)
	}
	var docs []models.UploadedDocument
	for _, fh := range form.File[uploadField] {
		if fh.Filename == "" {
			continue
		}
		content, err := readPart(fh)
		if err != nil {
			return nil, err
		}
		docs = append(docs, models.UploadedDocument{
			FileName: filepath.Base(fh.Filename),
			Content:  content,
		})
	}
	if len(docs) == 0 {
		return nil, extractor.ErrMissingUploadFiles
	}
	return docs, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	return content, nil
}

func (h *Handler) ask(c *gin.Context) {
	sessionID, ok := session.IDFromGin(c)
	if !ok {
		writeError(c, errors.New("session unavailable"))
		return
	}
	result, err := h.docs.Ask(c.Request.Context(), sessionID, c.PostForm(questionField))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) sessionInfo(c *gin.Context) {
	sessionID, ok := session.IDFromGin(c)
	if !ok {
		writeError(c, errors.New("session unavailable"))
		return
	}
	files := make([]models.StoredFile, 0)
	if h.files != nil {
		listed, err := h.files.ListBySession(c.Request.Context(), sessionID)
		if err != nil {
			writeError(c, err)
			return
		}
		files = append(files, listed...)
	}

	state, err := h.docs.State(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, docqa.ErrNoSessionContent) {
			c.JSON(http.StatusOK, gin.H{"has_content": false, "files": files})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"has_content": !state.Content.Empty(),
		"updated_at":  state.UpdatedAt.Format(time.RFC3339),
		"sources":     state.Content.Sources,
		"tables":      len(state.Content.Tables),
		"images":      len(state.Content.Images),
		"files":       files,
	})
}

func (h *Handler) resetSession(c *gin.Context) {
	sessionID, ok := session.IDFromGin(c)
	if !ok {
		writeError(c, errors.New("session unavailable"))
		return
	}
	if h.jobs != nil {
		h.jobs.CancelKey(sessionID)
	}
	if err := h.docs.Reset(c.Request.Context(), sessionID); err != nil {
		writeError(c, err)
		return
	}
	h.sessions.Clear(c)
	c.Status(http.StatusNoContent)
}

// writeError maps pipeline errors to status codes and JSON bodies.
func writeError(c *gin.Context, err error) {
	var (
		extractErr *extractor.ExtractionError
		genErr     *answer.GenerationError
	)
	switch {
	case errors.Is(err, extractor.ErrMissingUploadFiles):
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingFiles})
	case errors.Is(err, extractor.ErrInvalidFileType):
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidFileType})
	case errors.Is(err, extractor.ErrNoContentExtracted):
		c.JSON(http.StatusBadRequest, gin.H{"error": msgNoContent})
	case errors.As(err, &extractErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": extractErr.Error()})
	case errors.Is(err, docqa.ErrNoSessionContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": msgNoSessionContent})
	case errors.Is(err, docqa.ErrMissingQuestion):
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingQuestion})
	case errors.Is(err, worker.ErrJobCancelled):
		c.JSON(http.StatusConflict, gin.H{"error": msgCancelled})
	case errors.Is(err, worker.ErrDispatcherBusy):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "server is busy, please retry"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out", "details": err.Error()})
	case errors.As(err, &genErr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error", "details": genErr.Error()})
	default:
		log.Printf("request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error", "details": err.Error()})
	}
}
