package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"estimator/internal/storage"
	"estimator/internal/utils"
	"estimator/pkg/types"
)

func (s *Service) handleGetDocuments(w http.ResponseWriter, r *http.Request) {
	var query types.DocumentUploadForm
	if err := decoder.Decode(&query, r.URL.Query()); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid query")
		return
	}

	query.EntityID = strings.TrimSpace(query.EntityID)
	if !query.EntityType.Valid() || query.EntityID == "" {
		s.writeError(w, http.StatusBadRequest, "entity_type and entity_id are required")
		return
	}

	// bound to the request so an abandoned list is cancelled
	docs, err := s.documents.DocumentsByEntity(r.Context(), query.EntityType, query.EntityID)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		s.logger.WithError(err).
			WithField("entity_type", query.EntityType).
			WithField("entity_id", query.EntityID).
			Error("failed to list documents")
		s.internalServerError(w)
		return
	}

	s.writeJSON(w, http.StatusOK, docs)
}

func (s *Service) handlePostDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	maxBytes := s.config.MaxUploadSizeMiB << 20

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(1<<20))
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var upload types.DocumentUploadForm
	if err := decoder.Decode(&upload, url.Values(r.MultipartForm.Value)); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid upload fields")
		return
	}

	upload.EntityID = strings.TrimSpace(upload.EntityID)
	if !upload.EntityType.Valid() || upload.EntityID == "" {
		s.writeError(w, http.StatusBadRequest, "entity_type and entity_id are required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if header.Size > maxBytes {
		s.writeError(w, http.StatusRequestEntityTooLarge, "file is too large")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	doc := &types.Document{
		ID:            utils.NanoID(),
		EntityType:    upload.EntityType,
		EntityID:      upload.EntityID,
		FileName:      header.Filename,
		FileSizeBytes: header.Size,
		MimeType:      contentType,
	}
	doc.StorageKey = storage.Key(doc.EntityType, doc.EntityID, doc.ID, doc.FileName)

	entry := s.logger.WithField("document_id", doc.ID).WithField("storage_key", doc.StorageKey)

	if _, err := s.files.UploadFile(ctx, doc.StorageKey, file, header.Size, contentType); err != nil {
		entry.WithError(err).Error("failed to upload document to storage")
		s.writeError(w, http.StatusBadGateway, "Could not store the uploaded file. Please try again.")
		return
	}

	if err := s.documents.CreateDocument(ctx, doc); err != nil {
		entry.WithError(err).Error("failed to record uploaded document")
		if derr := s.files.DeleteFile(ctx, doc.StorageKey); derr != nil {
			entry.WithError(derr).Warn("failed to remove orphaned upload from storage")
		}
		s.internalServerError(w)
		return
	}

	s.writeJSON(w, http.StatusCreated, doc)
}

func (s *Service) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	documentID := strings.TrimSpace(r.PathValue("documentID"))
	if documentID == "" {
		s.writeError(w, http.StatusNotFound, "document not found")
		return
	}

	doc, err := s.documents.DocumentByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, types.ErrDocumentNotFound) {
			s.writeError(w, http.StatusNotFound, "document not found")
			return
		}
		s.logger.WithError(err).WithField("document_id", documentID).Error("failed to load document for delete")
		s.internalServerError(w)
		return
	}

	if key := strings.TrimSpace(doc.StorageKey); key != "" {
		if err := s.files.DeleteFile(ctx, key); err != nil {
			s.logger.WithError(err).
				WithField("document_id", doc.ID).
				WithField("storage_key", key).
				Error("failed to delete document from storage")
			s.writeError(w, http.StatusBadGateway, "Could not delete the file from storage. Please try again.")
			return
		}
	}

	if err := s.documents.DeleteDocument(ctx, doc.ID); err != nil {
		s.logger.WithError(err).WithField("document_id", doc.ID).Error("failed to delete document")
		s.internalServerError(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
