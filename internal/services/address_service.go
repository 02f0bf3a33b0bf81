package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/marketsquare/api/internal/domain"
	"github.com/marketsquare/api/internal/repositories"
)

// ErrAddressNotFound indicates the requested address does not exist.
var ErrAddressNotFound = errors.New("address service: address not found")

// AddressServiceDeps bundles constructor inputs for the address service.
type AddressServiceDeps struct {
	Addresses repositories.AddressRepository
	Clock     func() time.Time
}

type addressService struct {
	addresses repositories.AddressRepository
	clock     func() time.Time
}

var _ AddressService = (*addressService)(nil)

// NewAddressService constructs the address service.
func NewAddressService(deps AddressServiceDeps) (AddressService, error) {
	if deps.Addresses == nil {
		return nil, errors.New("address service: address repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &addressService{
		addresses: deps.Addresses,
		clock:     func() time.Time { return clock().UTC() },
	}, nil
}

func (s *addressService) ListAddresses(ctx context.Context, userID string) ([]Address, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.addresses.ListByUser(ctx, userID)
}

func (s *addressService) CreateAddress(ctx context.Context, cmd SaveAddressCommand) (Address, error) {
	address, err := addressFromCommand(cmd)
	if err != nil {
		return Address{}, err
	}
	return s.addresses.Insert(ctx, address)
}

func (s *addressService) UpdateAddress(ctx context.Context, cmd SaveAddressCommand) (Address, error) {
	address, err := addressFromCommand(cmd)
	if err != nil {
		return Address{}, err
	}
	if strings.TrimSpace(cmd.AddressID) == "" {
		return Address{}, fmt.Errorf("%w: address id is required", ErrInvalidInput)
	}
	address.ID = strings.TrimSpace(cmd.AddressID)

	updated, err := s.addresses.Update(ctx, address)
	if err != nil {
		if isRepoNotFound(err) {
			return Address{}, ErrAddressNotFound
		}
		return Address{}, err
	}
	return updated, nil
}

func (s *addressService) DeleteAddress(ctx context.Context, userID, addressID string) error {
	userID = strings.TrimSpace(userID)
	addressID = strings.TrimSpace(addressID)
	if userID == "" || addressID == "" {
		return fmt.Errorf("%w: user id and address id are required", ErrInvalidInput)
	}
	if err := s.addresses.Delete(ctx, userID, addressID); err != nil {
		if isRepoNotFound(err) {
			return ErrAddressNotFound
		}
		return err
	}
	return nil
}

func (s *addressService) SetDefaultAddress(ctx context.Context, userID, addressID string) (Address, error) {
	userID = strings.TrimSpace(userID)
	addressID = strings.TrimSpace(addressID)
	if userID == "" || addressID == "" {
		return Address{}, fmt.Errorf("%w: user id and address id are required", ErrInvalidInput)
	}

	address, err := s.addresses.FindByID(ctx, userID, addressID)
	if err != nil {
		if isRepoNotFound(err) {
			return Address{}, ErrAddressNotFound
		}
		return Address{}, err
	}

	address.IsDefault = true
	updated, err := s.addresses.Update(ctx, address)
	if err != nil {
		return Address{}, err
	}
	return updated, nil
}

func addressFromCommand(cmd SaveAddressCommand) (domain.Address, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return domain.Address{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(cmd.FullName) == "" {
		return domain.Address{}, fmt.Errorf("%w: full name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(cmd.AddressLine1) == "" {
		return domain.Address{}, fmt.Errorf("%w: address line 1 is required", ErrInvalidInput)
	}
	if strings.TrimSpace(cmd.City) == "" || strings.TrimSpace(cmd.PostalCode) == "" || strings.TrimSpace(cmd.Country) == "" {
		return domain.Address{}, fmt.Errorf("%w: city, postal code, and country are required", ErrInvalidInput)
	}

	return domain.Address{
		UserID:       userID,
		FullName:     strings.TrimSpace(cmd.FullName),
		Phone:        strings.TrimSpace(cmd.Phone),
		AddressLine1: strings.TrimSpace(cmd.AddressLine1),
		AddressLine2: strings.TrimSpace(cmd.AddressLine2),
		City:         strings.TrimSpace(cmd.City),
		State:        strings.TrimSpace(cmd.State),
		PostalCode:   strings.TrimSpace(cmd.PostalCode),
		Country:      strings.TrimSpace(cmd.Country),
		IsDefault:    cmd.IsDefault,
	}, nil
}
