package cart

import (
	"context"
	"time"

	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/stretchr/testify/mock"
)

type MockCartRepository struct {
	mock.Mock
}

func (m *MockCartRepository) Add(ctx context.Context, productID int64, quantity int, owner cart.Owner) (*cart.Line, error) {
	args := m.Called(ctx, productID, quantity, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Line), args.Error(1)
}

func (m *MockCartRepository) GetLine(ctx context.Context, productID int64, owner cart.Owner) (*cart.Line, error) {
	args := m.Called(ctx, productID, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Line), args.Error(1)
}

func (m *MockCartRepository) SetQuantity(ctx context.Context, productID int64, quantity int, owner cart.Owner) (*cart.Line, error) {
	args := m.Called(ctx, productID, quantity, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Line), args.Error(1)
}

func (m *MockCartRepository) Remove(ctx context.Context, productID int64, owner cart.Owner) (int64, error) {
	args := m.Called(ctx, productID, owner)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCartRepository) Snapshot(ctx context.Context, owner cart.Owner) (cart.Snapshot, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).(cart.Snapshot), args.Error(1)
}

func (m *MockCartRepository) Empty(ctx context.Context, owner cart.Owner) (int64, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCartRepository) Transfer(ctx context.Context, fromIP string, toCustomerID int64) (*cart.TransferReport, error) {
	args := m.Called(ctx, fromIP, toCustomerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.TransferReport), args.Error(1)
}

type MockLookup struct {
	mock.Mock
}

func (m *MockLookup) Exists(ctx context.Context, productID int64) (bool, *catalog.Product, error) {
	args := m.Called(ctx, productID)
	p, _ := args.Get(1).(*catalog.Product)
	return args.Bool(0), p, args.Error(2)
}

func (m *MockLookup) ExistingIDs(ctx context.Context, ids []int64) (map[int64]bool, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(map[int64]bool), args.Error(1)
}

type MockIntegrityRepository struct {
	mock.Mock
}

func (m *MockIntegrityRepository) FindOrphans(ctx context.Context, owner cart.Owner) ([]cart.OrphanedLine, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).([]cart.OrphanedLine), args.Error(1)
}

func (m *MockIntegrityRepository) FindInvalidQuantities(ctx context.Context, owner cart.Owner) ([]cart.InvalidQuantityLine, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).([]cart.InvalidQuantityLine), args.Error(1)
}

func (m *MockIntegrityRepository) FindDuplicates(ctx context.Context, owner cart.Owner) ([]cart.DuplicateGroup, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).([]cart.DuplicateGroup), args.Error(1)
}

func (m *MockIntegrityRepository) RemoveOrphans(ctx context.Context, owner cart.Owner) (int64, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockIntegrityRepository) FixQuantities(ctx context.Context, owner cart.Owner) (int64, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockIntegrityRepository) MergeDuplicates(ctx context.Context, owner cart.Owner) (int64, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockIntegrityRepository) DeleteStaleGuestLines(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordCartTransfer(ctx context.Context, succeeded, failed int, err error) {
	m.Called(ctx, succeeded, failed, err)
}

func (m *MockRecorder) RecordRepair(ctx context.Context, trigger, issueType string, affected int64) {
	m.Called(ctx, trigger, issueType, affected)
}

func (m *MockRecorder) RecordStaleGuestCleanup(ctx context.Context, trigger string, removed int64) {
	m.Called(ctx, trigger, removed)
}
