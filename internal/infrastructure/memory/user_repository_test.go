package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/storefront/internal/domain/cart"
	domain "github.com/harborline/storefront/internal/domain/user"
)

func seedUser(t *testing.T, repo *UserRepository) *domain.User {
	t.Helper()
	u := &domain.User{ID: "user-1", Email: "buyer@example.com"}
	require.NoError(t, repo.Save(context.Background(), u))
	return u
}

func TestSaveAndFindByEmail(t *testing.T) {
	repo := NewUserRepository()
	seedUser(t, repo)

	got, err := repo.FindByEmail(context.Background(), "buyer@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.ID)

	_, err = repo.FindByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.FindByEmail(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAddCartItemBumpsVersion(t *testing.T) {
	repo := NewUserRepository()
	seedUser(t, repo)

	item := cart.LineItem{ProductID: "prod-a", AddedAt: time.Now().UTC()}
	require.NoError(t, repo.AddCartItem(context.Background(), "user-1", item, 0))

	got, err := repo.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, got.Cart.Items, 1)
	assert.Equal(t, int64(1), got.Cart.Version)
}

func TestAddCartItemVersionConflict(t *testing.T) {
	repo := NewUserRepository()
	seedUser(t, repo)

	item := cart.LineItem{ProductID: "prod-a", AddedAt: time.Now().UTC()}
	err := repo.AddCartItem(context.Background(), "user-1", item, 7)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	got, getErr := repo.Get(context.Background(), "user-1")
	require.NoError(t, getErr)
	assert.Empty(t, got.Cart.Items)
	assert.Equal(t, int64(0), got.Cart.Version)
}

func TestRemoveCartItem(t *testing.T) {
	repo := NewUserRepository()
	seedUser(t, repo)

	require.NoError(t, repo.AddCartItem(context.Background(), "user-1",
		cart.LineItem{ProductID: "prod-a", AddedAt: time.Now().UTC()}, 0))
	require.NoError(t, repo.AddCartItem(context.Background(), "user-1",
		cart.LineItem{ProductID: "prod-b", AddedAt: time.Now().UTC()}, 1))

	require.NoError(t, repo.RemoveCartItem(context.Background(), "user-1", "prod-a", 2))

	got, err := repo.Get(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, got.Cart.Items, 1)
	assert.Equal(t, "prod-b", got.Cart.Items[0].ProductID)
	assert.Equal(t, int64(3), got.Cart.Version)

	err = repo.RemoveCartItem(context.Background(), "user-1", "prod-a", 3)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestSettleRemovesOnlyListedLines(t *testing.T) {
	repo := NewUserRepository()
	seedUser(t, repo)

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	settled := cart.LineItem{ProductID: "prod-a", AddedAt: at}
	racing := cart.LineItem{ProductID: "prod-a", AddedAt: at.Add(time.Second)}
	require.NoError(t, repo.AddCartItem(context.Background(), "user-1", settled, 0))
	require.NoError(t, repo.AddCartItem(context.Background(), "user-1", racing, 1))

	require.NoError(t, repo.Settle(context.Background(), "user-1", "ord-1",
		[]cart.LineItem{settled}))

	got, err := repo.Get(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, got.Cart.Items, 1)
	assert.Equal(t, racing.AddedAt, got.Cart.Items[0].AddedAt)
	assert.Equal(t, []string{"ord-1"}, got.OrderIDs)
	assert.Equal(t, int64(3), got.Cart.Version)
}

func TestSettleRemovesDuplicateLinesByCount(t *testing.T) {
	repo := NewUserRepository()
	seedUser(t, repo)

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	line := cart.LineItem{ProductID: "prod-a", AddedAt: at}
	require.NoError(t, repo.AddCartItem(context.Background(), "user-1", line, 0))
	require.NoError(t, repo.AddCartItem(context.Background(), "user-1", line, 1))
	require.NoError(t, repo.AddCartItem(context.Background(), "user-1", line, 2))

	// Two settled copies of an identical line remove exactly two.
	require.NoError(t, repo.Settle(context.Background(), "user-1", "ord-1",
		[]cart.LineItem{line, line}))

	got, err := repo.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, got.Cart.Items, 1)
}

func TestSettleIsIdempotent(t *testing.T) {
	repo := NewUserRepository()
	seedUser(t, repo)

	line := cart.LineItem{ProductID: "prod-a", AddedAt: time.Now().UTC()}
	require.NoError(t, repo.AddCartItem(context.Background(), "user-1", line, 0))

	lines := []cart.LineItem{line}
	require.NoError(t, repo.Settle(context.Background(), "user-1", "ord-1", lines))
	require.NoError(t, repo.Settle(context.Background(), "user-1", "ord-1", lines))
	require.NoError(t, repo.Settle(context.Background(), "user-1", "ord-1", lines))

	got, err := repo.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, got.Cart.Items)
	assert.Equal(t, []string{"ord-1"}, got.OrderIDs)
	assert.Equal(t, int64(2), got.Cart.Version, "only the first run mutates the cart")
}

func TestGetReturnsIsolatedCopy(t *testing.T) {
	repo := NewUserRepository()
	seedUser(t, repo)

	require.NoError(t, repo.AddCartItem(context.Background(), "user-1",
		cart.LineItem{ProductID: "prod-a", AddedAt: time.Now().UTC()}, 0))

	got, err := repo.Get(context.Background(), "user-1")
	require.NoError(t, err)
	got.Cart.Items[0].ProductID = "tampered"
	got.OrderIDs = append(got.OrderIDs, "ord-fake")

	again, err := repo.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "prod-a", again.Cart.Items[0].ProductID)
	assert.Empty(t, again.OrderIDs)
}
