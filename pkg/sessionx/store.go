package sessionx

import (
	"context"
	"sync"
	"time"

	"github.com/Abraxas-365/docfill/pkg/fieldx"
	"github.com/Abraxas-365/docfill/pkg/kernel"
	"github.com/Abraxas-365/docfill/pkg/refinex"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Snapshot is the persisted state of a session. It is enough to rebuild the
// session after a restart as long as the source image is still stored.
type Snapshot struct {
	ID              kernel.SessionID  `json:"id"`
	DocumentID      kernel.DocumentID `json:"document_id"`
	TemplateID      kernel.TemplateID `json:"template_id"`
	Status          Status            `json:"status"`
	ImagePath       string            `json:"image_path,omitempty"`
	MimeType        string            `json:"mime_type"`
	Fields          []fieldx.Field    `json:"fields"`
	Hints           []refinex.Hint    `json:"hints"`
	Version         uint64            `json:"version"`
	Revision        uint64            `json:"revision"`
	Summary         string            `json:"summary,omitempty"`
	RawText         string            `json:"raw_text,omitempty"`
	ExtractionError string            `json:"extraction_error,omitempty"`
	LastDispatch    *refinex.Dispatch `json:"last_dispatch,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Store persists snapshots. Implementations must return an error carrying
// CodeSessionNotFound from Load when the id is unknown.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context, id kernel.SessionID) (*Snapshot, error)
	Delete(ctx context.Context, id kernel.SessionID) error
}

// MemoryStore is a process-local Store. Saves with an older revision than
// the stored one are ignored.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[kernel.SessionID]Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[kernel.SessionID]Snapshot)}
}

func (s *MemoryStore) Save(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.snaps[snap.ID]; ok && cur.Revision > snap.Revision {
		return nil
	}
	s.snaps[snap.ID] = snap
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id kernel.SessionID) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[id]
	if !ok {
		return nil, ErrSessionNotFound().WithDetail("session_id", id.String())
	}
	return &snap, nil
}

func (s *MemoryStore) Delete(_ context.Context, id kernel.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, id)
	return nil
}

var _ Store = (*MemoryStore)(nil)
