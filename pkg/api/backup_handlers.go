package api

import (
	"encoding/json"
	"net/http"

	"github.com/cuemby/sentryd/pkg/apierr"
)

type createBackupResponse struct {
	BackupID     string   `json:"backup_id"`
	DigestIDs    []string `json:"digest_ids"`
	SignatureIDs []string `json:"signature_ids"`
}

// handleCreateBackup implements POST /backups. The description is taken
// from the X-Backup-Description header so the request body can be the
// raw tar stream without a multipart wrapper.
func (s *Server) handleCreateBackup(w http.ResponseWriter, r *http.Request) {
	description := r.Header.Get("X-Backup-Description")

	result, err := s.backups.CreateBackup(r.Context(), description, r.Body)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createBackupResponse{
		BackupID:     result.BackupID,
		DigestIDs:    result.DigestIDs,
		SignatureIDs: result.SignatureIDs,
	})
}

// handleListBackups implements GET /backups.
func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := s.backups.ListBackups(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, backups)
}

// handleGetBackup implements GET /backups/{id}.
func (s *Server) handleGetBackup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, apierr.New(apierr.CodeNotFound, "missing backup id"))
		return
	}

	metadata, err := s.backups.GetBackup(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metadata)
}

type restoreBackupRequest struct {
	Destination string `json:"destination"`
}

type restoreBackupResponse struct {
	RestoredBytes uint64 `json:"restored_bytes"`
}

// handleRestoreBackup implements POST /backups/{id}/restore. Destination
// defaults to "/". Entries are written under it by their archive names
// (for example prosody-config/...); they are not mapped back to the
// configured local paths they were archived from.
func (s *Server) handleRestoreBackup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, apierr.New(apierr.CodeNotFound, "missing backup id"))
		return
	}

	req := restoreBackupRequest{Destination: "/"}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apierr.New(apierr.CodeConfigError, "invalid request body"))
			return
		}
		if req.Destination == "" {
			req.Destination = "/"
		}
	}

	result, err := s.backups.RestoreBackup(r.Context(), id, req.Destination)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, restoreBackupResponse{RestoredBytes: result.RestoredBytes})
}
