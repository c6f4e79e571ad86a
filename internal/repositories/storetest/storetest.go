// Package storetest holds the behaviour every DocumentStore must share.
package storetest

import (
	"context"
	"testing"

	"github.com/chrisdamba/menumanager/internal/models"
	"github.com/chrisdamba/menumanager/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SampleDocument returns a small document with one of everything.
func SampleDocument() *models.Document {
	return &models.Document{Restaurants: []models.Restaurant{{
		Name: "A",
		Menus: []models.Menu{{
			Name: "Lunch",
			Categories: []models.Category{{
				Name: "Mains",
				Items: []models.Item{
					{ID: "pizza", Name: "Pizza", Price: 9.5, Dietary: []string{"vegetarian"}, RewardEligible: true},
					{ID: "pasta", Name: "Pasta", Price: 8, Dietary: []string{}},
				},
			}},
		}},
	}}}
}

// Run checks store against the DocumentStore contract. The store must start
// out empty.
func Run(t *testing.T, store repositories.DocumentStore) {
	ctx := context.Background()

	t.Run("starts empty", func(t *testing.T) {
		snap, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Zero(t, snap.Revision)
		assert.Empty(t, snap.Document.Restaurants)
	})

	t.Run("save bumps the revision", func(t *testing.T) {
		rev, err := store.Save(ctx, SampleDocument(), 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), rev)

		snap, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), snap.Revision)
		assert.Equal(t, SampleDocument(), snap.Document)
	})

	t.Run("stale save is rejected", func(t *testing.T) {
		_, err := store.Save(ctx, models.NewDocument(), 0)
		assert.ErrorIs(t, err, repositories.ErrStaleRevision)

		snap, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), snap.Revision)
		assert.Len(t, snap.Document.Restaurants, 1)
	})

	t.Run("loads are independent copies", func(t *testing.T) {
		snap, err := store.Load(ctx)
		require.NoError(t, err)
		snap.Document.Restaurants[0].Name = "changed"

		again, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "A", again.Document.Restaurants[0].Name)
	})

	t.Run("whole document replace", func(t *testing.T) {
		doc := SampleDocument()
		doc.Restaurants = append(doc.Restaurants, models.Restaurant{Name: "B", Menus: []models.Menu{}})
		rev, err := store.Save(ctx, doc, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), rev)

		snap, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, doc, snap.Document)
	})
}
