package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCartRepo(t *testing.T) (*GormCartRepository, context.Context) {
	t.Helper()
	db := newSQLiteDB(t)
	seedCatalog(t, db)
	return NewGormCartRepository(db), context.Background()
}

func TestGormCartRepository_Add(t *testing.T) {
	customer := cart.CustomerOwner(42)

	t.Run("creates a line then increments it", func(t *testing.T) {
		repo, ctx := newCartRepo(t)

		line, err := repo.Add(ctx, 1, 2, customer)
		require.NoError(t, err)
		assert.Equal(t, 2, line.Quantity)
		assert.Equal(t, customer, line.Owner)

		line, err = repo.Add(ctx, 1, 3, customer)
		require.NoError(t, err)
		assert.Equal(t, 5, line.Quantity)
		assert.Equal(t, int64(1), countRows(t, repo.db, &models.CartLineModel{}))
	})

	t.Run("rejects a total above the maximum", func(t *testing.T) {
		repo, ctx := newCartRepo(t)

		_, err := repo.Add(ctx, 1, 990, customer)
		require.NoError(t, err)

		_, err = repo.Add(ctx, 1, 10, customer)
		assert.True(t, shared.IsKind(err, shared.KindValidation))

		line, err := repo.GetLine(ctx, 1, customer)
		require.NoError(t, err)
		assert.Equal(t, 990, line.Quantity)
	})

	t.Run("rejects bad quantity and missing owner", func(t *testing.T) {
		repo, ctx := newCartRepo(t)

		_, err := repo.Add(ctx, 1, 0, customer)
		assert.True(t, shared.IsKind(err, shared.KindValidation))

		_, err = repo.Add(ctx, 1, 1, cart.Owner{})
		assert.True(t, shared.IsKind(err, shared.KindValidation))
	})

	t.Run("rejects a guest without an ip address", func(t *testing.T) {
		repo, ctx := newCartRepo(t)

		_, err := repo.Add(ctx, 1, 1, cart.GuestOwner(""))
		assert.True(t, shared.IsKind(err, shared.KindValidation))
		_, err = repo.Snapshot(ctx, cart.GuestOwner(""))
		assert.True(t, shared.IsKind(err, shared.KindValidation))
		assert.Zero(t, countRows(t, repo.db, &models.CartLineModel{}))
	})

	t.Run("guest and customer carts are separate", func(t *testing.T) {
		repo, ctx := newCartRepo(t)
		guest := cart.GuestOwner("10.0.0.1")

		_, err := repo.Add(ctx, 1, 1, guest)
		require.NoError(t, err)
		_, err = repo.Add(ctx, 1, 4, customer)
		require.NoError(t, err)

		g, err := repo.GetLine(ctx, 1, guest)
		require.NoError(t, err)
		c, err := repo.GetLine(ctx, 1, customer)
		require.NoError(t, err)
		assert.Equal(t, 1, g.Quantity)
		assert.Equal(t, 4, c.Quantity)

		var rows []models.CartLineModel
		require.NoError(t, repo.db.Order("id").Find(&rows).Error)
		require.Len(t, rows, 2)
		assert.Nil(t, rows[0].CustomerID)
		assert.Equal(t, "10.0.0.1", rows[0].IPAddress)
		require.NotNil(t, rows[1].CustomerID)
		assert.Equal(t, "", rows[1].IPAddress)
	})
}

func TestGormCartRepository_SetQuantityAndRemove(t *testing.T) {
	owner := cart.GuestOwner("192.168.1.10")

	t.Run("overwrites quantity", func(t *testing.T) {
		repo, ctx := newCartRepo(t)
		_, err := repo.Add(ctx, 2, 1, owner)
		require.NoError(t, err)

		line, err := repo.SetQuantity(ctx, 2, 7, owner)
		require.NoError(t, err)
		assert.Equal(t, 7, line.Quantity)
	})

	t.Run("zero removes the line", func(t *testing.T) {
		repo, ctx := newCartRepo(t)
		_, err := repo.Add(ctx, 2, 1, owner)
		require.NoError(t, err)

		line, err := repo.SetQuantity(ctx, 2, 0, owner)
		require.NoError(t, err)
		assert.Nil(t, line)

		_, err = repo.GetLine(ctx, 2, owner)
		assert.ErrorIs(t, err, shared.ErrCartLineNotFound)
	})

	t.Run("absent line is not found", func(t *testing.T) {
		repo, ctx := newCartRepo(t)
		_, err := repo.SetQuantity(ctx, 2, 3, owner)
		assert.True(t, shared.IsKind(err, shared.KindNotFound))
	})

	t.Run("negative and oversized quantities are rejected", func(t *testing.T) {
		repo, ctx := newCartRepo(t)
		_, err := repo.SetQuantity(ctx, 2, -1, owner)
		assert.True(t, shared.IsKind(err, shared.KindValidation))
		_, err = repo.SetQuantity(ctx, 2, cart.MaxQuantity+1, owner)
		assert.True(t, shared.IsKind(err, shared.KindValidation))
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		repo, ctx := newCartRepo(t)
		_, err := repo.Add(ctx, 2, 1, owner)
		require.NoError(t, err)

		n, err := repo.Remove(ctx, 2, owner)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = repo.Remove(ctx, 2, owner)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})
}

func TestGormCartRepository_Snapshot(t *testing.T) {
	t.Run("orders by title and prices the cart", func(t *testing.T) {
		repo, ctx := newCartRepo(t)
		owner := cart.CustomerOwner(5)

		_, err := repo.Add(ctx, 3, 2, owner) // Zebra Socks 3.25
		require.NoError(t, err)
		_, err = repo.Add(ctx, 1, 1, owner) // Blue Shirt 19.99
		require.NoError(t, err)
		_, err = repo.Add(ctx, 2, 3, owner) // Alpha Hat 5.50
		require.NoError(t, err)

		snap, err := repo.Snapshot(ctx, owner)
		require.NoError(t, err)
		require.Len(t, snap.Items, 3)
		assert.Equal(t, "Alpha Hat", snap.Items[0].Title)
		assert.Equal(t, "Blue Shirt", snap.Items[1].Title)
		assert.Equal(t, "Zebra Socks", snap.Items[2].Title)
		assert.Equal(t, "Apparel", snap.Items[1].Category)
		assert.Equal(t, "Acme", snap.Items[1].Brand)
		assert.Equal(t, "", snap.Items[0].Category)
		assert.Equal(t, 6, snap.TotalItems)
		assert.Equal(t, "42.99", snap.Total().StringFixed(2))
	})

	t.Run("leaves out orphans and sums duplicates", func(t *testing.T) {
		repo, ctx := newCartRepo(t)
		owner := cart.GuestOwner("10.1.1.1")
		now := time.Now()

		insertLine(t, repo.db, 2, 1, owner, now)
		insertLine(t, repo.db, 2, 2, owner, now)
		insertLine(t, repo.db, 404, 1, owner, now)

		snap, err := repo.Snapshot(ctx, owner)
		require.NoError(t, err)
		require.Len(t, snap.Items, 1)
		assert.Equal(t, 3, snap.Items[0].Quantity)
		assert.Equal(t, "16.50", snap.Items[0].Subtotal.StringFixed(2))
	})

	t.Run("empty cart", func(t *testing.T) {
		repo, ctx := newCartRepo(t)
		snap, err := repo.Snapshot(ctx, cart.CustomerOwner(9))
		require.NoError(t, err)
		assert.True(t, snap.IsEmpty())
		assert.True(t, snap.Total().IsZero())
	})
}

func TestGormCartRepository_Empty(t *testing.T) {
	repo, ctx := newCartRepo(t)
	owner := cart.CustomerOwner(8)
	other := cart.CustomerOwner(9)

	_, err := repo.Add(ctx, 1, 1, owner)
	require.NoError(t, err)
	_, err = repo.Add(ctx, 2, 1, owner)
	require.NoError(t, err)
	_, err = repo.Add(ctx, 1, 1, other)
	require.NoError(t, err)

	n, err := repo.Empty(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = repo.GetLine(ctx, 1, other)
	assert.NoError(t, err)
}

func TestGormCartRepository_Transfer(t *testing.T) {
	const ip = "203.0.113.7"
	guest := cart.GuestOwner(ip)
	customer := cart.CustomerOwner(77)

	t.Run("moves new lines and merges existing ones", func(t *testing.T) {
		repo, ctx := newCartRepo(t)
		_, err := repo.Add(ctx, 1, 2, customer)
		require.NoError(t, err)
		_, err = repo.Add(ctx, 1, 3, guest)
		require.NoError(t, err)
		_, err = repo.Add(ctx, 2, 1, guest)
		require.NoError(t, err)

		report, err := repo.Transfer(ctx, ip, 77)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Moved)
		assert.Equal(t, 1, report.Merged)
		assert.Empty(t, report.Failures)

		line, err := repo.GetLine(ctx, 1, customer)
		require.NoError(t, err)
		assert.Equal(t, 5, line.Quantity)
		line, err = repo.GetLine(ctx, 2, customer)
		require.NoError(t, err)
		assert.Equal(t, 1, line.Quantity)

		snap, err := repo.Snapshot(ctx, guest)
		require.NoError(t, err)
		assert.True(t, snap.IsEmpty())
	})

	t.Run("merge clamps to the maximum", func(t *testing.T) {
		repo, ctx := newCartRepo(t)
		_, err := repo.Add(ctx, 1, 900, customer)
		require.NoError(t, err)
		_, err = repo.Add(ctx, 1, 200, guest)
		require.NoError(t, err)

		_, err = repo.Transfer(ctx, ip, 77)
		require.NoError(t, err)

		line, err := repo.GetLine(ctx, 1, customer)
		require.NoError(t, err)
		assert.Equal(t, cart.MaxQuantity, line.Quantity)
	})

	t.Run("second transfer is a no-op", func(t *testing.T) {
		repo, ctx := newCartRepo(t)
		_, err := repo.Add(ctx, 1, 1, guest)
		require.NoError(t, err)

		_, err = repo.Transfer(ctx, ip, 77)
		require.NoError(t, err)
		report, err := repo.Transfer(ctx, ip, 77)
		require.NoError(t, err)
		assert.Equal(t, 0, report.Succeeded())

		line, err := repo.GetLine(ctx, 1, customer)
		require.NoError(t, err)
		assert.Equal(t, 1, line.Quantity)
	})

	t.Run("partial failure commits the rest", func(t *testing.T) {
		repo, ctx := newCartRepo(t)
		_, err := repo.Add(ctx, 1, 1, guest)
		require.NoError(t, err)
		_, err = repo.Add(ctx, 3, 1, guest)
		require.NoError(t, err)
		blockUpdates(t, repo.db, 3)

		report, err := repo.Transfer(ctx, ip, 77)
		require.NoError(t, err)
		assert.True(t, report.Partial())
		require.Len(t, report.Failures, 1)
		assert.Equal(t, int64(3), report.Failures[0].ProductID)
		assert.Equal(t, string(shared.KindDatabaseError), report.Failures[0].Kind)
		assert.Equal(t, int64(1), report.LeftoverRemoved)

		_, err = repo.GetLine(ctx, 1, customer)
		assert.NoError(t, err)
		_, err = repo.GetLine(ctx, 3, guest)
		assert.ErrorIs(t, err, shared.ErrCartLineNotFound)
	})

	t.Run("total failure rolls back and keeps the guest cart", func(t *testing.T) {
		repo, ctx := newCartRepo(t)
		_, err := repo.Add(ctx, 3, 2, guest)
		require.NoError(t, err)
		blockUpdates(t, repo.db, 3)

		report, err := repo.Transfer(ctx, ip, 77)
		assert.True(t, shared.IsKind(err, shared.KindTransferFailed))
		require.NotNil(t, report)
		assert.Len(t, report.Failures, 1)

		line, err := repo.GetLine(ctx, 3, guest)
		require.NoError(t, err)
		assert.Equal(t, 2, line.Quantity)
	})

	t.Run("validates arguments", func(t *testing.T) {
		repo, ctx := newCartRepo(t)
		_, err := repo.Transfer(ctx, "", 77)
		assert.True(t, shared.IsKind(err, shared.KindValidation))
		_, err = repo.Transfer(ctx, ip, 0)
		assert.True(t, shared.IsKind(err, shared.KindValidation))
	})
}

func TestCartDetails_OwnerCheckConstraint(t *testing.T) {
	db := newSQLiteDB(t)
	seedCatalog(t, db)
	now := time.Now()

	both := &models.CartLineModel{ProductID: 1, CustomerID: int64Ptr(5), IPAddress: "1.2.3.4", Quantity: 1, CreatedAt: now, UpdatedAt: now}
	err := db.Create(both).Error
	require.Error(t, err)
	assert.True(t, shared.IsKind(ClassifyError(err), shared.KindValidation), "got %v", err)

	neither := &models.CartLineModel{ProductID: 2, Quantity: 1, CreatedAt: now, UpdatedAt: now}
	require.Error(t, db.Create(neither).Error)

	require.NoError(t, db.Create(models.NewCartLineModel(1, 1, cart.GuestOwner("1.2.3.4"))).Error)
	require.NoError(t, db.Create(models.NewCartLineModel(1, 1, cart.CustomerOwner(5))).Error)
	assert.Equal(t, int64(2), countRows(t, db, &models.CartLineModel{}))
}
