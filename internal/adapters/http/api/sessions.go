package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/okian/breedid/internal/domain/identify"
	"github.com/okian/breedid/internal/domain/model"
)

// uploadField is the multipart form field carrying the image.
const uploadField = "image"

// multipartSlack bounds the non-file bytes accepted around an upload.
const multipartSlack = 1 << 20

// SessionHandler serves identification sessions.
type SessionHandler struct {
	deps SessionDependencies
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps SessionDependencies) *SessionHandler {
	return &SessionHandler{deps: deps}
}

// HandleCreate handles POST /sessions requests.
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.CreateSession(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+view.ID)
	writeJSON(w, http.StatusCreated, view)
}

// HandleGet handles GET /sessions/{id} requests. Pending notices are
// returned once and then cleared.
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleDelete handles DELETE /sessions/{id} requests.
func (h *SessionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUpload handles PUT /sessions/{id}/image?source=picker|drop requests
// carrying a multipart "image" field.
func (h *SessionHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	const op = "upload"

	src, err := model.ParseSource(r.URL.Query().Get("source"))
	if err != nil {
		writeDomainError(w, WrapKind(op, ErrBadSource, err))
		return
	}
	img, err := h.readImage(w, r)
	if err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	res, err := h.deps.SubmitImage(r.Context(), r.PathValue("id"), img, src)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// readImage streams the image part, reading at most limit+1 bytes so an
// oversized file is detected without buffering it.
func (h *SessionHandler) readImage(w http.ResponseWriter, r *http.Request) (model.Image, error) {
	limit := h.deps.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, 2*limit+multipartSlack)

	mr, err := r.MultipartReader()
	if err != nil {
		return model.Image{}, WrapKind("multipart", ErrBadRequest, err)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return model.Image{}, NewKind("multipart", ErrMissingFile)
		}
		if err != nil {
			return model.Image{}, WrapKind("multipart", ErrBadRequest, err)
		}
		if part.FormName() != uploadField {
			_ = part.Close()
			continue
		}

		data, err := io.ReadAll(io.LimitReader(part, limit+1))
		_ = part.Close()
		if err != nil {
			return model.Image{}, WrapKind("read image", ErrBadRequest, err)
		}
		img := model.Image{
			Filename:  part.FileName(),
			MediaType: part.Header.Get("Content-Type"),
			Size:      int64(len(data)),
			Data:      data,
		}
		if img.Size > limit {
			img.Data = nil
		}
		return img, nil
	}
}

// HandleRemoveImage handles DELETE /sessions/{id}/image requests.
func (h *SessionHandler) HandleRemoveImage(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.RemoveImage(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandlePreview handles GET /sessions/{id}/preview/{ref} requests.
func (h *SessionHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	data, mediaType, err := h.deps.Preview(r.Context(), r.PathValue("id"), r.PathValue("ref"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// HandleIdentify handles POST /sessions/{id}/identify[?wait=true] requests.
// A run that is still processing answers 202.
func (h *SessionHandler) HandleIdentify(w http.ResponseWriter, r *http.Request) {
	wait, err := parseBool(r.URL.Query().Get("wait"))
	if err != nil {
		writeDomainError(w, WrapKind("identify", ErrBadRequest, err))
		return
	}
	res, err := h.deps.Identify(r.Context(), r.PathValue("id"), wait)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	status := http.StatusOK
	if res.Scheduled && !res.Completed && res.Session.State == identify.StateProcessing.String() {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}

// HandleReset handles POST /sessions/{id}/reset requests.
func (h *SessionHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.Reset(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleReport handles GET /sessions/{id}/report[?download=true] requests.
func (h *SessionHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	report, err := h.deps.Report(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if download, _ := parseBool(r.URL.Query().Get("download")); download {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "breed-report-"+id+".txt"))
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, report)
}

func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid boolean %q", s)
	}
	return v, nil
}
