package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/opentdf/ctivault/pkg/cti"
	"github.com/opentdf/ctivault/pkg/cti/client"
)

const (
	// DefaultMaxUploadSize bounds a published artifact.
	DefaultMaxUploadSize = 64 << 20

	headerUUID   = "X-Cti-Uuid"
	headerCID    = "X-Cti-Cid"
	headerSHA256 = "X-Cti-Sha256"
	headerSender = "X-Cti-Sender"
	headerStatus = "X-Cti-Status"
)

type artifactClient struct {
	*client.Client
	maxUpload int64
}

type listResponse struct {
	MetadataList []cti.Record `json:"metadataList"`
	Bookmark     string       `json:"bookmark"`
}

// LoadArtifactRoutes exposes publish, retrieve and listing of artifacts.
// A maxUpload of zero selects DefaultMaxUploadSize.
func LoadArtifactRoutes(c *client.Client, maxUpload int64) chi.Router {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadSize
	}
	a := artifactClient{Client: c, maxUpload: maxUpload}
	r := chi.NewRouter()
	r.Route("/", func(r chi.Router) {
		r.Get("/", a.listArtifacts)
		r.Post("/", a.publishArtifact)
		r.Get("/{uuid}", a.retrieveArtifact)
		r.Get("/{uuid}/metadata", a.getMetadata)
	})
	return r
}

func (a artifactClient) publishArtifact(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, "could not parse upload", cti.E(cti.KindInvalidRecord, "parse upload", err))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, "artifact file not provided", cti.E(cti.KindInvalidRecord, "parse upload", err))
		return
	}
	defer file.Close()
	plaintext, err := io.ReadAll(file)
	if err != nil {
		writeError(w, "could not read artifact", cti.E(cti.KindInvalidRecord, "read upload", err))
		return
	}
	sender := r.FormValue("sender")
	if sender == "" {
		writeError(w, "sender not provided", cti.Errorf(cti.KindInvalidRecord, "parse upload", "sender not provided"))
		return
	}

	record, err := a.Publish(r.Context(), plaintext, client.PublishOptions{
		UUID:           r.FormValue("uuid"),
		Description:    r.FormValue("description"),
		SenderIdentity: sender,
		AccessList:     splitList(r.FormValue("access")),
	})
	if err != nil {
		writeError(w, "could not publish artifact", err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (a artifactClient) retrieveArtifact(w http.ResponseWriter, r *http.Request) {
	res, err := a.Retrieve(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		writeError(w, "could not retrieve artifact", err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Plaintext)))
	w.Header().Set(headerUUID, res.Record.UUID)
	w.Header().Set(headerCID, res.Record.CID)
	w.Header().Set(headerSHA256, res.Record.SHA256Hash)
	w.Header().Set(headerSender, res.Record.SenderIdentity)
	w.Header().Set(headerStatus, res.Status)
	w.WriteHeader(http.StatusOK)
	w.Write(res.Plaintext)
}

func (a artifactClient) getMetadata(w http.ResponseWriter, r *http.Request) {
	record, err := a.Show(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		writeError(w, "could not retrieve metadata", err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (a artifactClient) listArtifacts(w http.ResponseWriter, r *http.Request) {
	var pageSize int
	if v := r.URL.Query().Get("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, "invalid page size", cti.E(cti.KindInvalidRecord, "list", errors.New("pageSize must be a number")))
			return
		}
		pageSize = n
	}
	records, bookmark, err := a.List(r.Context(), pageSize, r.URL.Query().Get("bookmark"))
	if err != nil {
		writeError(w, "could not list metadata", err)
		return
	}
	if records == nil {
		records = []cti.Record{}
	}
	writeJSON(w, http.StatusOK, listResponse{MetadataList: records, Bookmark: bookmark})
}

func splitList(s string) []string {
	out := []string{}
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
