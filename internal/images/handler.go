package images

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dinomatic/media/internal/logging"
	"github.com/dinomatic/media/internal/namespace"
	"github.com/dinomatic/media/internal/response"
	"github.com/dinomatic/media/internal/storage"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temp files.
const multipartMemory = 8 << 20

// imageExtensions are the keys served by the public delivery route.
var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".svg": true,
}

// Handler holds HTTP handlers for the images endpoints.
type Handler struct {
	svc            *Service
	maxUploadBytes int64
}

// NewHandler creates a new images Handler. Uploads larger than maxUploadBytes
// are rejected with 413.
func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	return &Handler{svc: svc, maxUploadBytes: maxUploadBytes}
}

type objectBody struct {
	ID         string    `json:"id"                  example:"themes/akurai/logo.webp"`
	Filename   string    `json:"filename"            example:"logo.webp"`
	UploadedAt time.Time `json:"uploadedAt"          example:"2026-02-27T14:48:34Z"`
	SizeBytes  *int64    `json:"sizeBytes,omitempty" example:"48213"`
	URL        string    `json:"url"                 example:"http://localhost:9000/media/themes/akurai/logo.webp"`
}

type listingBody struct {
	Path        string                       `json:"path"        example:"themes/akurai"`
	Directories []namespace.DirectorySummary `json:"directories"`
	Objects     []objectBody                 `json:"objects"`
}

type deleteData struct {
	ID string `json:"id" example:"themes/akurai/logo.webp"`
}

func (h *Handler) object(o namespace.LeafObject) objectBody {
	return objectBody{
		ID:         o.ID,
		Filename:   o.Filename,
		UploadedAt: o.UploadedAt,
		SizeBytes:  o.SizeBytes,
		URL:        h.svc.PublicURL(o.ID),
	}
}

// List godoc
//
//	@Summary		List a directory
//	@Description	Returns the immediate subdirectories and objects of the directory at path. An empty path is the root.
//	@Tags			images
//	@Produce		json
//	@Security		ApiKeyAuth
//	@Security		BearerAuth
//	@Param			path	query		string	false	"Directory path"	example(themes/akurai)
//	@Success		200		{object}	response.Envelope{data=listingBody}
//	@Failure		401		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		502		{object}	response.Envelope
//	@Router			/images [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	listing, err := h.svc.Browse(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		if h.svc.IsNotFound(err) {
			response.NotFound(w, "directory not found")
			return
		}
		h.storeError(w, r, err)
		return
	}

	body := listingBody{
		Path:        listing.Path,
		Directories: listing.Directories,
		Objects:     make([]objectBody, 0, len(listing.Objects)),
	}
	for _, o := range listing.Objects {
		body.Objects = append(body.Objects, h.object(o))
	}
	response.OK(w, body)
}

// Organize godoc
//
//	@Summary		Full directory tree
//	@Description	Returns the whole namespace as a nested tree of directories and objects.
//	@Tags			images
//	@Produce		json
//	@Security		ApiKeyAuth
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Failure		502	{object}	response.Envelope
//	@Router			/organize [get]
func (h *Handler) Organize(w http.ResponseWriter, r *http.Request) {
	tree, err := h.svc.Tree(r.Context())
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	response.OK(w, tree)
}

// Upload godoc
//
//	@Summary		Upload an object
//	@Description	Stores the uploaded file. The id is taken from the id field, or built from path and the file name.
//	@Tags			images
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		ApiKeyAuth
//	@Security		BearerAuth
//	@Param			file	formData	file	true	"File to upload"
//	@Param			id		formData	string	false	"Full object id"
//	@Param			path	formData	string	false	"Directory to upload into"
//	@Success		201		{object}	response.Envelope{data=objectBody}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		413		{object}	response.Envelope
//	@Failure		502		{object}	response.Envelope
//	@Router			/images [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.maxUploadBytes {
		response.TooLarge(w, "file too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.TooLarge(w, "file too large")
			return
		}
		response.BadRequest(w, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "file field is required")
		return
	}
	defer file.Close()

	// Sniff the payload when the client did not say what it is sending.
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "could not read file")
		return
	}
	head = head[:n]

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = detectContentType(header.Filename, head)
	}

	obj, err := h.svc.Upload(r.Context(), UploadInput{
		ID:          strings.TrimSpace(r.FormValue("id")),
		Path:        r.FormValue("path"),
		Filename:    header.Filename,
		Body:        io.MultiReader(bytes.NewReader(head), file),
		Size:        header.Size,
		ContentType: contentType,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidID) {
			response.BadRequest(w, err.Error())
			return
		}
		h.storeError(w, r, err)
		return
	}

	response.Created(w, h.object(obj))
}

// Delete godoc
//
//	@Summary		Delete an object
//	@Description	Removes the object with the given id from the store.
//	@Tags			images
//	@Produce		json
//	@Security		ApiKeyAuth
//	@Security		BearerAuth
//	@Param			id	query		string	true	"Object id"	example(themes/akurai/logo.webp)
//	@Success		200	{object}	response.Envelope{data=deleteData}
//	@Failure		400	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Failure		502	{object}	response.Envelope
//	@Router			/images [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		response.BadRequest(w, "id is required")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrInvalidID) {
			response.BadRequest(w, err.Error())
			return
		}
		h.storeError(w, r, err)
		return
	}
	response.OK(w, deleteData{ID: id})
}

// APIRoutes registers the authenticated endpoints on r.
func (h *Handler) APIRoutes(r chi.Router) {
	r.Get("/images", h.List)
	r.Post("/images", h.Upload)
	r.Delete("/images", h.Delete)
	r.Get("/organize", h.Organize)
}

// Serve redirects public image requests to the object store. Non-image keys are 404.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" || !namespace.ValidID(key) || !imageExtensions[strings.ToLower(path.Ext(key))] {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, h.svc.PublicURL(key), http.StatusFound)
}

// storeError maps a store failure to a response. A failed listing is always
// 502 with the store's message. Upload and delete failures carry the store's
// own status and message when it reported one, and 502 otherwise.
func (h *Handler) storeError(w http.ResponseWriter, r *http.Request, err error) {
	logging.WithContext(r.Context()).Error("object store request failed", logging.Err(err))

	se, isStoreErr := storage.AsError(err)
	if errors.Is(err, namespace.ErrUpstream) {
		msg := err.Error()
		if isStoreErr {
			msg = se.Err.Error()
		}
		response.BadGateway(w, msg)
		return
	}
	if isStoreErr {
		status := http.StatusBadGateway
		if se.Status >= 400 && se.Status < 600 {
			status = se.Status
		}
		response.Error(w, status, se.Err.Error())
		return
	}
	response.InternalError(w)
}

func detectContentType(filename string, head []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(filename))); ct != "" {
		return ct
	}
	return http.DetectContentType(head)
}
