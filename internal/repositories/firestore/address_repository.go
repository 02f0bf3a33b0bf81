package firestore

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/marketsquare/api/internal/domain"
	pfirestore "github.com/marketsquare/api/internal/platform/firestore"
	"github.com/marketsquare/api/internal/repositories"
	"github.com/oklog/ulid/v2"
)

const addressCollectionPattern = "profiles/%s/addresses"

// AddressRepository persists shipping addresses as a per-user subcollection.
type AddressRepository struct {
	provider *pfirestore.Provider
}

// NewAddressRepository constructs a Firestore-backed address repository.
func NewAddressRepository(provider *pfirestore.Provider) (*AddressRepository, error) {
	if provider == nil {
		return nil, errors.New("address repository requires firestore provider")
	}
	return &AddressRepository{provider: provider}, nil
}

// Insert stores a new address. When the address is flagged as default every
// other address loses the flag in the same transaction.
func (r *AddressRepository) Insert(ctx context.Context, address domain.Address) (domain.Address, error) {
	coll, err := r.collection(ctx, address.UserID)
	if err != nil {
		return domain.Address{}, err
	}

	now := time.Now().UTC()
	if strings.TrimSpace(address.ID) == "" {
		address.ID = ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
	}
	address.CreatedAt = now

	doc := fromDomainAddress(address, now)
	if err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if doc.IsDefault {
			if err := r.clearDefaultTx(tx, coll, address.ID); err != nil {
				return err
			}
		}
		return tx.Set(coll.Doc(address.ID), doc)
	}); err != nil {
		return domain.Address{}, pfirestore.WrapError("addresses.insert", err)
	}

	saved := doc.toDomain(address.ID, address.UserID)
	return saved, nil
}

// Update replaces the address document, preserving creation time.
func (r *AddressRepository) Update(ctx context.Context, address domain.Address) (domain.Address, error) {
	coll, err := r.collection(ctx, address.UserID)
	if err != nil {
		return domain.Address{}, err
	}
	id := strings.TrimSpace(address.ID)
	if id == "" {
		return domain.Address{}, errors.New("address repository: address id is required")
	}

	now := time.Now().UTC()
	var saved domain.Address
	if err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef := coll.Doc(id)
		snap, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		var existing addressDocument
		if err := snap.DataTo(&existing); err != nil {
			return fmt.Errorf("decode address %s: %w", snap.Ref.ID, err)
		}

		doc := fromDomainAddress(address, now)
		doc.CreatedAt = existing.CreatedAt

		if doc.IsDefault {
			if err := r.clearDefaultTx(tx, coll, id); err != nil {
				return err
			}
		}
		if err := tx.Set(docRef, doc); err != nil {
			return err
		}
		saved = doc.toDomain(id, address.UserID)
		return nil
	}); err != nil {
		return domain.Address{}, pfirestore.WrapError("addresses.update", err)
	}
	return saved, nil
}

// Delete removes the specified address document.
func (r *AddressRepository) Delete(ctx context.Context, userID, addressID string) error {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return err
	}
	id := strings.TrimSpace(addressID)
	if id == "" {
		return errors.New("address repository: address id is required")
	}
	if _, err := coll.Doc(id).Delete(ctx); err != nil {
		return pfirestore.WrapError("addresses.delete", err)
	}
	return nil
}

// FindByID loads a single address for the user.
func (r *AddressRepository) FindByID(ctx context.Context, userID, addressID string) (domain.Address, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return domain.Address{}, err
	}
	id := strings.TrimSpace(addressID)
	if id == "" {
		return domain.Address{}, errors.New("address repository: address id is required")
	}
	snap, err := coll.Doc(id).Get(ctx)
	if err != nil {
		return domain.Address{}, pfirestore.WrapError("addresses.get", err)
	}
	var doc addressDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Address{}, fmt.Errorf("decode address %s: %w", snap.Ref.ID, err)
	}
	return doc.toDomain(snap.Ref.ID, userID), nil
}

// ListByUser returns all addresses, default first, then most recently updated.
func (r *AddressRepository) ListByUser(ctx context.Context, userID string) ([]domain.Address, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return nil, err
	}

	iter := coll.OrderBy("isDefault", firestore.Desc).OrderBy("updatedAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var results []domain.Address
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("addresses.list", err)
		}
		var doc addressDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode address %s: %w", snap.Ref.ID, err)
		}
		results = append(results, doc.toDomain(snap.Ref.ID, userID))
	}
	return results, nil
}

// ClearDefault removes the default flag from every address except keepID.
func (r *AddressRepository) ClearDefault(ctx context.Context, userID, keepID string) error {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return err
	}
	if err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return r.clearDefaultTx(tx, coll, keepID)
	}); err != nil {
		return pfirestore.WrapError("addresses.clearDefault", err)
	}
	return nil
}

func (r *AddressRepository) collection(ctx context.Context, userID string) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("address repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("address repository: user id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(fmt.Sprintf(addressCollectionPattern, uid)), nil
}

func (r *AddressRepository) clearDefaultTx(tx *firestore.Transaction, coll *firestore.CollectionRef, keepID string) error {
	query := coll.Where("isDefault", "==", true).Limit(10)
	snaps, err := tx.Documents(query).GetAll()
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return err
	}
	for _, snap := range snaps {
		if snap.Ref.ID == keepID {
			continue
		}
		if err := tx.Update(snap.Ref, []firestore.Update{{Path: "isDefault", Value: false}}); err != nil {
			return err
		}
	}
	return nil
}

type addressDocument struct {
	FullName     string    `firestore:"fullName"`
	Phone        string    `firestore:"phone,omitempty"`
	AddressLine1 string    `firestore:"addressLine1"`
	AddressLine2 string    `firestore:"addressLine2,omitempty"`
	City         string    `firestore:"city"`
	State        string    `firestore:"state,omitempty"`
	PostalCode   string    `firestore:"postalCode"`
	Country      string    `firestore:"country"`
	IsDefault    bool      `firestore:"isDefault"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

func (d addressDocument) toDomain(id, userID string) domain.Address {
	return domain.Address{
		ID:           id,
		UserID:       userID,
		FullName:     d.FullName,
		Phone:        d.Phone,
		AddressLine1: d.AddressLine1,
		AddressLine2: d.AddressLine2,
		City:         d.City,
		State:        d.State,
		PostalCode:   d.PostalCode,
		Country:      d.Country,
		IsDefault:    d.IsDefault,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func fromDomainAddress(address domain.Address, now time.Time) addressDocument {
	doc := addressDocument{
		FullName:     strings.TrimSpace(address.FullName),
		Phone:        strings.TrimSpace(address.Phone),
		AddressLine1: strings.TrimSpace(address.AddressLine1),
		AddressLine2: strings.TrimSpace(address.AddressLine2),
		City:         strings.TrimSpace(address.City),
		State:        strings.TrimSpace(address.State),
		PostalCode:   strings.TrimSpace(address.PostalCode),
		Country:      strings.TrimSpace(address.Country),
		IsDefault:    address.IsDefault,
		CreatedAt:    address.CreatedAt,
		UpdatedAt:    now,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	return doc
}

// Ensure interface compliance.
var _ repositories.AddressRepository = (*AddressRepository)(nil)
