package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/foliohq/folio/internal/model"
	"github.com/foliohq/folio/internal/store"
)

// Content collections.
const (
	CollectionProjects     = "projects"
	CollectionSkills       = "skills"
	CollectionCertificates = "certificates"
	CollectionMessages     = "messages"
	CollectionSettings     = "settings"

	// SettingsID is the fixed id of the site settings singleton.
	SettingsID = "site"
)

// Collections lists every collection the content service accepts.
var Collections = []string{
	CollectionProjects,
	CollectionSkills,
	CollectionCertificates,
	CollectionMessages,
	CollectionSettings,
}

// serverFields are managed by the repository and stripped from bodies.
var serverFields = []string{"id", "collection", "createdAt", "updatedAt"}

// DocumentStore is the generic repository behind content handlers.
// *store.Store satisfies it.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *model.Document) error
	GetDocument(ctx context.Context, collection, id string) (*model.Document, error)
	ListDocuments(ctx context.Context, collection string, opts model.ListOptions) ([]model.Document, int, error)
	UpdateDocument(ctx context.Context, doc *model.Document) error
	PutDocument(ctx context.Context, doc *model.Document) error
	DeleteDocument(ctx context.Context, collection, id string) error
	CountDocuments(ctx context.Context, collection string) (int, error)
}

// MessageInput is a public contact form submission.
type MessageInput struct {
	Name    string `json:"name" label:"Name" validate:"required,min=2,max=100"`
	Email   string `json:"email" label:"Email" validate:"required,email"`
	Subject string `json:"subject,omitempty" label:"Subject" validate:"omitempty,max=200"`
	Message string `json:"message" label:"Message" validate:"required,min=10,max=1000"`
}

// CollectionStats summarizes one collection for the admin dashboard.
type CollectionStats struct {
	Total     int `json:"total"`
	Published int `json:"published"`
}

// Stats is the admin dashboard summary.
type Stats struct {
	Collections map[string]CollectionStats `json:"collections"`
	Admins      int                        `json:"admins"`
}

// ContentService is a pass-through document store for portfolio content.
// Bodies are arbitrary JSON objects; the only interpreted key is an optional
// top-level boolean "published".
type ContentService struct {
	docs   DocumentStore
	admins AdminStore
}

// NewContentService returns a ContentService over docs. admins is only used
// for dashboard counts.
func NewContentService(docs DocumentStore, admins AdminStore) *ContentService {
	return &ContentService{docs: docs, admins: admins}
}

// List returns a page of documents. Anonymous callers pass
// IncludeUnpublished=false.
func (s *ContentService) List(ctx context.Context, collection string, opts model.ListOptions) ([]model.Document, int, error) {
	if err := checkCollection(collection); err != nil {
		return nil, 0, err
	}
	return s.docs.ListDocuments(ctx, collection, opts)
}

// Get returns one document. Unpublished documents are reported as missing
// unless includeUnpublished is set.
func (s *ContentService) Get(ctx context.Context, collection, id string, includeUnpublished bool) (*model.Document, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	doc, err := s.docs.GetDocument(ctx, collection, id)
	if err != nil {
		return nil, mapDocumentError(err)
	}
	if !doc.Published && !includeUnpublished {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// Create stores a new document built from body.
func (s *ContentService) Create(ctx context.Context, collection string, body json.RawMessage) (*model.Document, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	data, published, err := splitBody(body)
	if err != nil {
		return nil, err
	}

	doc := &model.Document{Collection: collection, Data: data, Published: true}
	if published != nil {
		doc.Published = *published
	}
	if err := s.docs.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return doc, nil
}

// Update replaces a document's body. The published flag is kept unless the
// body sets it.
func (s *ContentService) Update(ctx context.Context, collection, id string, body json.RawMessage) (*model.Document, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	data, published, err := splitBody(body)
	if err != nil {
		return nil, err
	}

	doc, err := s.docs.GetDocument(ctx, collection, id)
	if err != nil {
		return nil, mapDocumentError(err)
	}
	doc.Data = data
	if published != nil {
		doc.Published = *published
	}
	if err := s.docs.UpdateDocument(ctx, doc); err != nil {
		return nil, mapDocumentError(err)
	}
	return doc, nil
}

// Delete removes a document.
func (s *ContentService) Delete(ctx context.Context, collection, id string) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	return mapDocumentError(s.docs.DeleteDocument(ctx, collection, id))
}

// Settings returns the site settings, or an empty published document when
// none have been saved yet.
func (s *ContentService) Settings(ctx context.Context) (*model.Document, error) {
	doc, err := s.docs.GetDocument(ctx, CollectionSettings, SettingsID)
	if errors.Is(err, store.ErrNotFound) {
		return &model.Document{
			ID:         SettingsID,
			Collection: CollectionSettings,
			Data:       json.RawMessage(`{}`),
			Published:  true,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return doc, nil
}

// PutSettings replaces the site settings.
func (s *ContentService) PutSettings(ctx context.Context, body json.RawMessage) (*model.Document, error) {
	data, _, err := splitBody(body)
	if err != nil {
		return nil, err
	}
	doc := &model.Document{ID: SettingsID, Collection: CollectionSettings, Data: data, Published: true}
	if err := s.docs.PutDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("put settings: %w", err)
	}
	return doc, nil
}

// SubmitMessage stores a contact form message. Messages are never public.
func (s *ContentService) SubmitMessage(ctx context.Context, in MessageInput) (*model.Document, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = NormalizeEmail(in.Email)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)
	if err := validate(&in); err != nil {
		return nil, err
	}

	data, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	doc := &model.Document{Collection: CollectionMessages, Data: data, Published: false}
	if err := s.docs.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return doc, nil
}

// Stats counts documents per collection and admins.
func (s *ContentService) Stats(ctx context.Context) (*Stats, error) {
	out := &Stats{Collections: make(map[string]CollectionStats, len(Collections))}
	for _, c := range Collections {
		if c == CollectionSettings {
			continue
		}
		total, err := s.docs.CountDocuments(ctx, c)
		if err != nil {
			return nil, err
		}
		_, published, err := s.docs.ListDocuments(ctx, c, model.ListOptions{Limit: 1})
		if err != nil {
			return nil, err
		}
		out.Collections[c] = CollectionStats{Total: total, Published: published}
	}

	admins, err := s.admins.CountAdmins(ctx)
	if err != nil {
		return nil, err
	}
	out.Admins = admins
	return out, nil
}

func checkCollection(collection string) error {
	for _, c := range Collections {
		if c == collection {
			return nil
		}
	}
	return ErrUnknownCollection
}

// splitBody requires a JSON object, lifts out a boolean "published" key and
// drops repository-managed keys.
func splitBody(body json.RawMessage) (json.RawMessage, *bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, nil, invalid("body", "Request body must be a JSON object")
	}

	var published *bool
	if raw, ok := fields["published"]; ok {
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, nil, invalid("published", "published must be a boolean")
		}
		published = &b
		delete(fields, "published")
	}
	for _, k := range serverFields {
		delete(fields, k)
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return nil, nil, fmt.Errorf("encode document: %w", err)
	}
	return data, published, nil
}

func mapDocumentError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrDocumentNotFound
	default:
		return err
	}
}
