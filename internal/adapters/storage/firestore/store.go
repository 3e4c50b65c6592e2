package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/resq-agent/internal/domain"
)

type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore case store for the given project (RESQ_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) casesCol() *firestore.CollectionRef {
	return s.client.Collection("cases")
}

func (s *Store) caseDoc(id domain.CaseID) *firestore.DocumentRef {
	return s.casesCol().Doc(string(id))
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type coordinatesDoc struct {
	Lat         float64 `firestore:"lat"`
	Lon         float64 `firestore:"lon"`
	Accuracy    float64 `firestore:"accuracy"`
	Source      string  `firestore:"source"`
	DisplayName string  `firestore:"display_name"`
}

type caseDoc struct {
	Emergency   string          `firestore:"emergency"`
	Name        string          `firestore:"name"`
	Location    string          `firestore:"location"`
	Number      string          `firestore:"number"`
	Transcript  string          `firestore:"transcript"`
	Priority    int             `firestore:"priority"`
	Method      string          `firestore:"method"`
	Status      string          `firestore:"status"`
	InProgress  bool            `firestore:"in_progress"`
	Coordinates *coordinatesDoc `firestore:"coordinates"`
	City        string          `firestore:"city"`
	District    string          `firestore:"district"`
	State       string          `firestore:"state"`
	Country     string          `firestore:"country"`
	CreatedAt   time.Time       `firestore:"created_at"`
	ResolvedAt  *time.Time      `firestore:"resolved_at"`
}

func toDoc(c *domain.Case) caseDoc {
	doc := caseDoc{
		Emergency:  c.Emergency,
		Name:       c.Name,
		Location:   c.Location,
		Number:     c.Number,
		Transcript: c.Transcript,
		Priority:   int(c.Priority),
		Method:     string(c.Method),
		Status:     string(c.Status),
		InProgress: c.InProgress,
		City:       c.Region.City,
		District:   c.Region.District,
		State:      c.Region.State,
		Country:    c.Region.Country,
		CreatedAt:  c.CreatedAt,
		ResolvedAt: c.ResolvedAt,
	}
	if c.Coordinates != nil {
		doc.Coordinates = &coordinatesDoc{
			Lat:         c.Coordinates.Lat,
			Lon:         c.Coordinates.Lon,
			Accuracy:    c.Coordinates.Accuracy,
			Source:      c.Coordinates.Source,
			DisplayName: c.Coordinates.DisplayName,
		}
	}
	return doc
}

func fromDoc(id string, doc caseDoc) *domain.Case {
	c := &domain.Case{
		ID:         domain.CaseID(id),
		Emergency:  doc.Emergency,
		Name:       doc.Name,
		Location:   doc.Location,
		Number:     doc.Number,
		Transcript: doc.Transcript,
		Priority:   domain.Priority(doc.Priority),
		Method:     domain.ClassificationMethod(doc.Method),
		Status:     domain.CaseStatus(doc.Status),
		InProgress: doc.InProgress,
		Region: domain.Region{
			City:     doc.City,
			District: doc.District,
			State:    doc.State,
			Country:  doc.Country,
		},
		CreatedAt:  doc.CreatedAt,
		ResolvedAt: doc.ResolvedAt,
	}
	if doc.Coordinates != nil {
		c.Coordinates = &domain.Coordinates{
			Lat:         doc.Coordinates.Lat,
			Lon:         doc.Coordinates.Lon,
			Accuracy:    doc.Coordinates.Accuracy,
			Source:      doc.Coordinates.Source,
			DisplayName: doc.Coordinates.DisplayName,
		}
	}
	return c
}

// mergeExisting keeps the original creation time. It reports false when prev
// is resolved: resolved cases are never rewritten.
func mergeExisting(next *caseDoc, prev caseDoc) bool {
	if prev.Status == string(domain.StatusResolved) {
		return false
	}
	next.CreatedAt = prev.CreatedAt
	return true
}

// ─────────────────────────────────────────
// CaseStore implementation
// ─────────────────────────────────────────

func (s *Store) UpsertCase(ctx context.Context, c *domain.Case) error {
	ref := s.caseDoc(c.ID)
	next := toDoc(c)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			var prev caseDoc
			if err := snap.DataTo(&prev); err != nil {
				return fmt.Errorf("decode caseDoc: %w", err)
			}
			if !mergeExisting(&next, prev) {
				return nil
			}
		case status.Code(err) != codes.NotFound:
			return err
		}
		return tx.Set(ref, next)
	})
	if err != nil {
		return fmt.Errorf("firestore UpsertCase: %w", err)
	}
	return nil
}

func (s *Store) GetCase(ctx context.Context, id domain.CaseID) (*domain.Case, error) {
	snap, err := s.caseDoc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrCaseNotFound
		}
		return nil, fmt.Errorf("firestore GetCase: %w", err)
	}

	var doc caseDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetCase decode: %w", err)
	}
	return fromDoc(snap.Ref.ID, doc), nil
}

func (s *Store) ListOpenCases(ctx context.Context) ([]*domain.Case, error) {
	return s.listByStatus(ctx, domain.StatusOpen)
}

func (s *Store) ListResolvedCases(ctx context.Context) ([]*domain.Case, error) {
	return s.listByStatus(ctx, domain.StatusResolved)
}

func (s *Store) ResolveCase(ctx context.Context, id domain.CaseID, at time.Time) (bool, error) {
	_, err := s.caseDoc(id).Update(ctx, []firestore.Update{
		{Path: "status", Value: string(domain.StatusResolved)},
		{Path: "in_progress", Value: false},
		{Path: "resolved_at", Value: at},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("firestore ResolveCase: %w", err)
	}
	return true, nil
}

func (s *Store) listByStatus(ctx context.Context, st domain.CaseStatus) ([]*domain.Case, error) {
	iter := s.casesCol().Where("status", "==", string(st)).Documents(ctx)
	defer iter.Stop()

	var out []*domain.Case
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore list %s cases: %w", st, err)
		}

		var doc caseDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode caseDoc: %w", err)
		}
		out = append(out, fromDoc(snap.Ref.ID, doc))
	}
	return out, nil
}
