package persistence

import (
	"context"
	"testing"

	"github.com/karte/backend/internal/domain/client"
	"github.com/karte/backend/internal/domain/shared"
	"github.com/karte/backend/internal/infrastructure/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClientRepository() (*DocstoreClientRepository, *docstore.MemoryStore) {
	store := docstore.NewMemoryStore()
	repo := NewDocstoreClientRepository(store)
	repo.newID = sequentialIDs("ct")
	return repo, store
}

func TestClientRepository_SaveFindByNameIndex(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestClientRepository()

	c, err := client.NewClient("  ＡＣＭＥ Travel ", "Tokyo", "")
	require.NoError(t, err)
	c.AddContact(client.Contact{PersonName: "Sato", Phone: "03-0000-0000"}, sequentialIDs("c"))

	require.NoError(t, repo.Save(ctx, c))
	assert.NotEmpty(t, c.ID)
	assert.False(t, c.LastUpdated.IsZero())

	found, err := repo.FindByNameIndex(ctx, client.NameIndex("acme travel"))
	require.NoError(t, err)
	assert.Equal(t, c.ID, found.ID)
	assert.Equal(t, "Tokyo", found.Address)
	require.Len(t, found.Contacts, 1)
	assert.True(t, found.Contacts[0].IsPrimary)

	_, err = repo.FindByNameIndex(ctx, "nobody")
	assert.True(t, shared.IsKind(err, shared.KindNotFound))
}

func TestClientRepository_RenameRecomputesIndex(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestClientRepository()

	c, err := client.NewClient("Alpha", "", "")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, c))

	require.NoError(t, c.Update("Omega", "", ""))
	require.NoError(t, repo.Save(ctx, c))

	_, err = repo.FindByNameIndex(ctx, client.NameIndex("Alpha"))
	assert.True(t, shared.IsKind(err, shared.KindNotFound))
	got, err := repo.FindByNameIndex(ctx, client.NameIndex("omega"))
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
}

func TestClientRepository_FindAllOrdered(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestClientRepository()

	for _, name := range []string{"charlie", "Alpha", "bravo"} {
		c, err := client.NewClient(name, "", "")
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, c))
	}

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"Alpha", "bravo", "charlie"}, []string{all[0].Name, all[1].Name, all[2].Name})
}

func TestClientRepository_DecodeMigratesLegacyEntries(t *testing.T) {
	ctx := context.Background()
	repo, store := newTestClientRepository()

	doc, err := store.Put(ctx, ClientCollection, "", []byte(`{
		"name": "Legacy Co",
		"address": 12,
		"contacts": [
			{"personName": "A", "isPrimary": true, "phone": 123},
			{"personName": "B", "isPrimary": true},
			{"personName": "C", "isPrimary": "yes"}
		]
	}`))
	require.NoError(t, err)

	c, err := repo.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "12", c.Address)
	assert.Equal(t, client.NameIndex("Legacy Co"), c.NameIndex)
	require.Len(t, c.Contacts, 3)
	assert.Equal(t, "123", c.Contacts[0].Phone)
	for _, ct := range c.Contacts {
		assert.NotEmpty(t, ct.ID)
	}

	primaries := 0
	for _, ct := range c.Contacts {
		if ct.IsPrimary {
			primaries++
		}
	}
	assert.Equal(t, 1, primaries)
	assert.True(t, c.Contacts[0].IsPrimary)
}

func TestClientRepository_FindByNameIndexMatchesLegacyIndex(t *testing.T) {
	ctx := context.Background()
	repo, store := newTestClientRepository()

	doc, err := store.Put(ctx, ClientCollection, "", []byte(`{"name": "ＪＴＢ商事", "nameIndex": "ｊｔｂ商事", "contacts": []}`))
	require.NoError(t, err)
	_, err = store.Put(ctx, ClientCollection, "", []byte(`{"name": "Acme", "nameIndex": "acme", "contacts": []}`))
	require.NoError(t, err)

	c, err := repo.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "jtb商事", c.NameIndex)

	found, err := repo.FindByNameIndex(ctx, client.NameIndex("JTB商事"))
	require.NoError(t, err)
	assert.Equal(t, doc.ID, found.ID)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Acme", all[0].Name)
	assert.Equal(t, "ＪＴＢ商事", all[1].Name)

	require.NoError(t, repo.Save(ctx, found))
	docs, err := store.Query(ctx, ClientCollection, docstore.Query{}.Where("nameIndex", docstore.OpEq, "jtb商事"))
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestClientRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestClientRepository()

	c, err := client.NewClient("Gone", "", "")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, c))
	require.NoError(t, repo.Delete(ctx, c.ID))

	_, err = repo.FindByID(ctx, c.ID)
	assert.True(t, shared.IsKind(err, shared.KindNotFound))
}
