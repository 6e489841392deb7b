package sessionx

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Abraxas-365/docfill/pkg/ai/ocr"
	"github.com/Abraxas-365/docfill/pkg/asyncx"
	"github.com/Abraxas-365/docfill/pkg/errx"
	"github.com/Abraxas-365/docfill/pkg/fieldx"
	"github.com/Abraxas-365/docfill/pkg/fsx"
	"github.com/Abraxas-365/docfill/pkg/imagex"
	"github.com/Abraxas-365/docfill/pkg/kernel"
	"github.com/Abraxas-365/docfill/pkg/logx"
	"github.com/Abraxas-365/docfill/pkg/refinex"
	"github.com/Abraxas-365/docfill/pkg/templatex"
)

// DefaultMaxImageSide bounds the image sent to the bulk extraction.
const DefaultMaxImageSide = 2048

// TemplateSource resolves templates by id. *templatex.Service satisfies it.
type TemplateSource interface {
	Get(ctx context.Context, id kernel.TemplateID) (*templatex.Template, error)
}

type ManagerOption func(*Manager)

func WithStore(store Store) ManagerOption {
	return func(m *Manager) { m.store = store }
}

// WithFiles stores uploaded images so sessions survive a restart.
func WithFiles(files fsx.FileSystem) ManagerOption {
	return func(m *Manager) { m.files = files }
}

func WithEngine(engine *refinex.Engine) ManagerOption {
	return func(m *Manager) { m.engine = engine }
}

func WithDebounce(d time.Duration) ManagerOption {
	return func(m *Manager) { m.debounce = d }
}

func WithClock(clock asyncx.Clock) ManagerOption {
	return func(m *Manager) { m.clock = clock }
}

// WithRefineConcurrency caps parallel refinements per dispatch.
func WithRefineConcurrency(n int) ManagerOption {
	return func(m *Manager) { m.concurrency = n }
}

// WithMaxImageSide downscales sources larger than n pixels on either side
// before the bulk extraction. Refinement crops still use the full image.
// Zero disables it.
func WithMaxImageSide(n int) ManagerOption {
	return func(m *Manager) { m.maxImageSide = n }
}

func WithLogger(logger *logx.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Manager owns the live sessions. At most one session is open per document;
// opening a new one closes the previous generation.
type Manager struct {
	templates    TemplateSource
	extractor    ocr.FieldExtractor
	engine       *refinex.Engine
	store        Store
	files        fsx.FileSystem
	debounce     time.Duration
	clock        asyncx.Clock
	concurrency  int
	maxImageSide int
	logger       *logx.Logger

	mu         sync.Mutex
	sessions   map[kernel.SessionID]*Session
	byDocument map[kernel.DocumentID]kernel.SessionID
}

func NewManager(templates TemplateSource, extractor ocr.FieldExtractor, opts ...ManagerOption) *Manager {
	m := &Manager{
		templates:    templates,
		extractor:    extractor,
		store:        NewMemoryStore(),
		debounce:     refinex.DefaultDebounce,
		maxImageSide: DefaultMaxImageSide,
		clock:        asyncx.SystemClock,
		logger:       logx.GetDefaultLogger(),
		sessions:     make(map[kernel.SessionID]*Session),
		byDocument:   make(map[kernel.DocumentID]kernel.SessionID),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.engine == nil {
		m.engine = refinex.NewEngine(extractor, refinex.WithEngineLogger(m.logger))
	}
	return m
}

// OpenRequest starts a review. DocumentID is optional; a new one is
// assigned when empty.
type OpenRequest struct {
	DocumentID     kernel.DocumentID
	TemplateID     kernel.TemplateID
	Image          []byte
	MimeType       string
	SkipExtraction bool
}

// Open decodes the image, runs a bulk extraction scoped to the template's
// variables and registers the session. A failed bulk extraction does not
// fail the open; the session starts empty and records the error.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (*Session, error) {
	if req.TemplateID.IsEmpty() {
		return nil, ErrInvalidRequest("template_id is required")
	}
	if len(req.Image) == 0 {
		return nil, ErrInvalidRequest("image is required")
	}

	tmpl, err := m.templates.Get(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}

	decoded, err := imagex.Decode(req.Image)
	if err != nil {
		return nil, sessionErrors.NewWithCause(CodeInvalidImage, err)
	}
	mimeType := req.MimeType
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = "image/" + decoded.Format
	}

	docID := req.DocumentID
	if docID.IsEmpty() {
		docID = kernel.NewDocumentID()
	}

	// The source image is stored while the bulk extraction runs.
	var (
		imagePath string
		stored    *asyncx.Future[struct{}]
	)
	if m.files != nil {
		imagePath = m.files.Join("documents", docID.String(), "source"+fsx.ExtensionOf(mimeType))
		stored = asyncx.Run(func() (struct{}, error) {
			return struct{}{}, m.files.WriteFile(ctx, imagePath, req.Image, mimeType)
		})
	}

	s := m.newSession(kernel.NewSessionID(), docID, *tmpl, imagePath, mimeType, decoded, nil)
	log := m.logger.WithFields(logx.Fields{
		"session_id":  s.id.String(),
		"document_id": docID.String(),
		"template_id": tmpl.ID.String(),
	})

	if vars := tmpl.Variables(); !req.SkipExtraction && len(vars) > 0 {
		start := time.Now()
		ext, err := m.extractor.ExtractFields(ctx, m.extractionInput(decoded, req.Image, mimeType, log),
			ocr.WithTargetVariables(vars...),
			ocr.WithSummary(),
		)
		if err != nil {
			s.extractionError = err.Error()
			log.WithError(err).Warn("session.extract.failed")
		} else {
			s.result.Replace(usable(ext.Fields))
			s.summary = ext.Summary
			s.rawText = ext.RawText
			log.WithFields(logx.Fields{
				"fields":      len(ext.Fields),
				"duration_ms": time.Since(start).Milliseconds(),
			}).Info("session.extract.done")
		}
	}

	if stored != nil {
		if _, err := stored.Await(); err != nil {
			s.scheduler.Close()
			return nil, err
		}
	}

	m.register(s)
	s.save()
	log.Info("session.opened")
	return s, nil
}

// extractionInput returns the image sent to the bulk extraction: the upload
// itself, or a PNG downscaled to maxImageSide when the source is larger.
func (m *Manager) extractionInput(decoded *imagex.Decoded, data []byte, mimeType string, log *logx.Entry) ocr.Input {
	fitted := imagex.Fit(decoded.Image, m.maxImageSide)
	if fitted == decoded.Image {
		return ocr.FromBytes(data, mimeType)
	}
	scaled, err := imagex.EncodePNG(fitted)
	if err != nil {
		log.WithError(err).Warn("session.downscale.failed")
		return ocr.FromBytes(data, mimeType)
	}
	log.WithFields(logx.Fields{
		"from": decoded.Bounds().Size().String(),
		"to":   fitted.Bounds().Size().String(),
	}).Debug("session.downscaled")
	return ocr.FromBytes(scaled, "image/png")
}

// Get returns a live session, rebuilding it from the store when the
// process no longer holds it.
func (m *Manager) Get(ctx context.Context, id kernel.SessionID) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if ok {
		return s, nil
	}
	return m.restore(ctx, id)
}

// Close finalizes a session: pending refinements are dropped, degenerate
// hints discarded and the final snapshot persisted.
func (m *Manager) Close(ctx context.Context, id kernel.SessionID) (Snapshot, error) {
	s, err := m.Get(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	m.unregister(s)
	s.close()
	m.logger.WithField("session_id", id.String()).Info("session.closed")
	return s.Snapshot(), nil
}

// Delete closes the session and removes its snapshot and stored image.
func (m *Manager) Delete(ctx context.Context, id kernel.SessionID) error {
	s, err := m.Get(ctx, id)
	if err != nil && !errx.HasCode(err, CodeSessionNotFound) {
		return err
	}
	if s != nil {
		m.unregister(s)
		s.setPersist(nil)
		s.close()
		if m.files != nil && s.imagePath != "" {
			if err := m.files.DeleteFile(ctx, s.imagePath); err != nil {
				m.logger.WithError(err).WithField("session_id", id.String()).Warn("session.image.delete_failed")
			}
		}
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return ErrStoreFailed(err)
	}
	return nil
}

// Shutdown closes every live session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.sessions = make(map[kernel.SessionID]*Session)
	m.byDocument = make(map[kernel.DocumentID]kernel.SessionID)
	m.mu.Unlock()

	for _, s := range live {
		s.close()
	}
}

func (m *Manager) restore(ctx context.Context, id kernel.SessionID) (*Session, error) {
	snap, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if snap.Status != StatusOpen || m.files == nil || snap.ImagePath == "" {
		return nil, ErrSessionNotFound().WithDetail("session_id", id.String())
	}

	tmpl, err := m.templates.Get(ctx, snap.TemplateID)
	if err != nil {
		return nil, err
	}
	data, err := m.files.ReadFile(ctx, snap.ImagePath)
	if err != nil {
		return nil, err
	}
	decoded, err := imagex.Decode(data)
	if err != nil {
		return nil, sessionErrors.NewWithCause(CodeInvalidImage, err)
	}

	s := m.newSession(snap.ID, snap.DocumentID, *tmpl, snap.ImagePath, snap.MimeType, decoded, snap.Fields)
	s.hints = snap.Hints
	s.summary = snap.Summary
	s.rawText = snap.RawText
	s.extractionError = snap.ExtractionError
	s.lastDispatch = snap.LastDispatch
	s.createdAt = snap.CreatedAt
	s.revision = snap.Revision
	s.scheduler.Prime(snap.Hints)

	m.mu.Lock()
	if live, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		s.close()
		return live, nil
	}
	m.mu.Unlock()

	m.register(s)
	m.logger.WithField("session_id", id.String()).Info("session.restored")
	return s, nil
}

func (m *Manager) newSession(id kernel.SessionID, docID kernel.DocumentID, tmpl templatex.Template, imagePath, mimeType string, decoded *imagex.Decoded, fields []fieldx.Field) *Session {
	now := time.Now().UTC()
	result := fieldx.NewResult(fields)
	s := &Session{
		id:         id,
		documentID: docID,
		template:   tmpl,
		imagePath:  imagePath,
		mimeType:   mimeType,
		source:     decoded.Image,
		result:     result,
		minArea:    m.engine.Config().MinArea,
		createdAt:  now,
		updatedAt:  now,
	}
	s.scheduler = refinex.NewScheduler(m.engine, decoded.Image, result,
		refinex.WithSessionID(id.String()),
		refinex.WithDebounce(m.debounce),
		refinex.WithClock(m.clock),
		refinex.WithConcurrency(m.concurrency),
		refinex.OnDispatch(s.recordDispatch),
	)
	return s
}

// register makes s the live generation for its document and closes the
// one it replaces. Persistence hooks are attached here so the bulk
// extraction seeding in Open is saved once, not per field.
func (m *Manager) register(s *Session) {
	s.setPersist(m.persistFunc(s.id))
	s.result.OnChange(func(uint64, []fieldx.Field) { s.save() })

	m.mu.Lock()
	var previous *Session
	if prevID, ok := m.byDocument[s.documentID]; ok && prevID != s.id {
		previous = m.sessions[prevID]
		delete(m.sessions, prevID)
	}
	m.sessions[s.id] = s
	m.byDocument[s.documentID] = s.id
	m.mu.Unlock()

	if previous != nil {
		previous.close()
		m.logger.WithFields(logx.Fields{
			"session_id":  previous.id.String(),
			"replaced_by": s.id.String(),
		}).Info("session.replaced")
	}
}

func (m *Manager) unregister(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, s.id)
	if m.byDocument[s.documentID] == s.id {
		delete(m.byDocument, s.documentID)
	}
}

// persistFunc saves snapshots best effort; the in-memory session stays
// authoritative when the store is down.
func (m *Manager) persistFunc(id kernel.SessionID) func(Snapshot) {
	return func(snap Snapshot) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.store.Save(ctx, snap); err != nil {
			m.logger.WithError(err).WithFields(logx.Fields{
				"session_id": id.String(),
				"revision":   snap.Revision,
			}).Warn("session.persist.failed")
		}
	}
}

func usable(fields []fieldx.Field) []fieldx.Field {
	out := make([]fieldx.Field, 0, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f.Label) == "" || fieldx.IsEmptyValue(f.Value) {
			continue
		}
		out = fieldx.Merge(out, f)
	}
	return out
}
