package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/marcus/notesync/internal/serverdb"
)

const maxPayloadBytes = 1 << 20

// recordDTO is the wire form of a sync record.
type recordDTO struct {
	ID             string          `json:"id"`
	OwnerID        string          `json:"owner_id"`
	Collection     string          `json:"collection"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	LastModifiedAt int64           `json:"last_modified_at"`
	Deleted        bool            `json:"deleted,omitempty"`
	SyncedAt       int64           `json:"synced_at,omitempty"`
}

// pushResponse is the body of POST /v1/sync/push.
type pushResponse struct {
	SyncedAt int64 `json:"synced_at"`
}

// pullResponse is the body of GET /v1/sync/pull.
type pullResponse struct {
	Records    []recordDTO `json:"records"`
	ServerTime int64       `json:"server_time"`
}

// statusResponse is the body of GET /v1/sync/status.
type statusResponse struct {
	OwnerID        string `json:"owner_id"`
	RecordCount    int64  `json:"record_count"`
	TombstoneCount int64  `json:"tombstone_count"`
	LatestSyncedAt int64  `json:"latest_synced_at"`
}

// handlePush handles POST /v1/sync/push. The record's owner is taken from
// the API key, never from the body.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFromContext(r.Context())

	var dto recordDTO
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayloadBytes)).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid json body")
		return
	}
	if dto.ID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "record id is required")
		return
	}
	if dto.LastModifiedAt <= 0 {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "last_modified_at is required")
		return
	}

	stamp, err := s.store.UpsertRecord(serverdb.Record{
		ID:             dto.ID,
		OwnerID:        ownerID,
		Collection:     dto.Collection,
		Payload:        dto.Payload,
		LastModifiedAt: dto.LastModifiedAt,
		Deleted:        dto.Deleted,
	})
	if err != nil {
		logFor(r.Context()).Error("upsert record", "id", dto.ID, "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to store record")
		return
	}

	writeJSON(w, http.StatusOK, pushResponse{SyncedAt: stamp})
}

// handleDeleteRecord handles DELETE /v1/records/{id}.
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFromContext(r.Context())
	id := r.PathValue("id")

	modifiedAt, err := strconv.ParseInt(r.URL.Query().Get("modified"), 10, 64)
	if err != nil || modifiedAt <= 0 {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "modified query param is required")
		return
	}

	stamp, err := s.store.DeleteRecord(ownerID, id, modifiedAt)
	if errors.Is(err, serverdb.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "record not found")
		return
	}
	if err != nil {
		logFor(r.Context()).Error("delete record", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to delete record")
		return
	}

	writeJSON(w, http.StatusOK, pushResponse{SyncedAt: stamp})
}

// handlePull handles GET /v1/sync/pull.
func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFromContext(r.Context())

	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		var err error
		since, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || since < 0 {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "since must be a non-negative integer")
			return
		}
	}

	recs, err := s.store.PullSince(ownerID, since)
	if err != nil {
		logFor(r.Context()).Error("pull records", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to read records")
		return
	}

	resp := pullResponse{
		Records:    make([]recordDTO, 0, len(recs)),
		ServerTime: time.Now().UnixMilli(),
	}
	for _, rec := range recs {
		resp.Records = append(resp.Records, recordDTO{
			ID:             rec.ID,
			OwnerID:        rec.OwnerID,
			Collection:     rec.Collection,
			Payload:        rec.Payload,
			LastModifiedAt: rec.LastModifiedAt,
			Deleted:        rec.Deleted,
			SyncedAt:       rec.SyncedAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleStatus handles GET /v1/sync/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFromContext(r.Context())

	st, err := s.store.OwnerStatus(ownerID)
	if err != nil {
		logFor(r.Context()).Error("owner status", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to read status")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		OwnerID:        ownerID,
		RecordCount:    int64(st.Records),
		TombstoneCount: int64(st.Tombstones),
		LatestSyncedAt: st.LatestSyncedAt,
	})
}
