package client

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/karte/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() shared.IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("ct-%d", n)
	}
}

func primaryCount(c *Client) int {
	n := 0
	for _, ct := range c.Contacts {
		if ct.IsPrimary {
			n++
		}
	}
	return n
}

func TestNewClient(t *testing.T) {
	t.Run("computes name index", func(t *testing.T) {
		c, err := NewClient("  ＡＣＭＥ Travel ", "Tokyo", "")
		require.NoError(t, err)
		assert.Equal(t, "ＡＣＭＥ Travel", c.Name)
		assert.Equal(t, "acme travel", c.NameIndex)
	})

	t.Run("requires a name", func(t *testing.T) {
		_, err := NewClient("   ", "", "")
		assert.True(t, shared.IsKind(err, shared.KindValidation))
	})

	t.Run("update recomputes index", func(t *testing.T) {
		c, err := NewClient("Acme", "", "")
		require.NoError(t, err)
		require.NoError(t, c.Update("Beta Tours", "Osaka", "vip"))
		assert.Equal(t, "beta tours", c.NameIndex)
		assert.Equal(t, "Osaka", c.Address)
	})
}

func TestClient_Contacts(t *testing.T) {
	gen := sequentialIDs()

	t.Run("first contact is promoted", func(t *testing.T) {
		c, _ := NewClient("Acme", "", "")
		first := c.AddContact(Contact{PersonName: "Sato"}, gen)
		assert.True(t, first.IsPrimary)

		second := c.AddContact(Contact{PersonName: "Ito"}, gen)
		assert.False(t, second.IsPrimary)
		assert.Equal(t, 1, primaryCount(c))
	})

	t.Run("new primary demotes siblings", func(t *testing.T) {
		c, _ := NewClient("Acme", "", "")
		c.AddContact(Contact{PersonName: "Sato"}, gen)
		ito := c.AddContact(Contact{PersonName: "Ito", IsPrimary: true}, gen)

		p, ok := c.PrimaryContact()
		require.True(t, ok)
		assert.Equal(t, ito.ID, p.ID)
		assert.Equal(t, 1, primaryCount(c))
	})

	t.Run("update to primary demotes siblings", func(t *testing.T) {
		c, _ := NewClient("Acme", "", "")
		c.AddContact(Contact{PersonName: "Sato"}, gen)
		ito := c.AddContact(Contact{PersonName: "Ito"}, gen)

		ito.IsPrimary = true
		require.NoError(t, c.UpdateContact(ito))
		p, _ := c.PrimaryContact()
		assert.Equal(t, ito.ID, p.ID)
		assert.Equal(t, 1, primaryCount(c))
	})

	t.Run("clearing the primary flag passes it on", func(t *testing.T) {
		c, _ := NewClient("Acme", "", "")
		sato := c.AddContact(Contact{PersonName: "Sato"}, gen)
		ito := c.AddContact(Contact{PersonName: "Ito"}, gen)

		sato.IsPrimary = false
		require.NoError(t, c.UpdateContact(sato))
		p, _ := c.PrimaryContact()
		assert.Equal(t, ito.ID, p.ID)
	})

	t.Run("only contact stays primary", func(t *testing.T) {
		c, _ := NewClient("Acme", "", "")
		sato := c.AddContact(Contact{PersonName: "Sato"}, gen)
		sato.IsPrimary = false
		require.NoError(t, c.UpdateContact(sato))
		assert.Equal(t, 1, primaryCount(c))
	})

	t.Run("deleting the primary promotes first remaining", func(t *testing.T) {
		c, _ := NewClient("Acme", "", "")
		c.AddContact(Contact{PersonName: "Sato"}, gen)
		ito := c.AddContact(Contact{PersonName: "Ito"}, gen)
		c.AddContact(Contact{PersonName: "Kato"}, gen)

		require.NoError(t, c.DeleteContact(c.Contacts[0].ID))
		p, _ := c.PrimaryContact()
		assert.Equal(t, ito.ID, p.ID)

		require.NoError(t, c.DeleteContact(c.Contacts[1].ID))
		require.NoError(t, c.DeleteContact(ito.ID))
		assert.Empty(t, c.Contacts)
		assert.Equal(t, 0, primaryCount(c))
	})

	t.Run("missing contact", func(t *testing.T) {
		c, _ := NewClient("Acme", "", "")
		assert.ErrorIs(t, c.DeleteContact("nope"), shared.ErrNotFound)
		assert.ErrorIs(t, c.UpdateContact(Contact{ID: "nope"}), shared.ErrNotFound)
	})
}

func TestClient_SinglePrimaryUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	gen := sequentialIDs()
	c, _ := NewClient("Acme", "", "")

	for step := 0; step < 500; step++ {
		switch op := rng.Intn(3); {
		case op == 0 || len(c.Contacts) == 0:
			c.AddContact(Contact{PersonName: fmt.Sprintf("p%d", step), IsPrimary: rng.Intn(2) == 0}, gen)
		case op == 1:
			ct := c.Contacts[rng.Intn(len(c.Contacts))]
			ct.IsPrimary = rng.Intn(2) == 0
			require.NoError(t, c.UpdateContact(ct))
		default:
			require.NoError(t, c.DeleteContact(c.Contacts[rng.Intn(len(c.Contacts))].ID))
		}

		if len(c.Contacts) > 0 {
			require.Equal(t, 1, primaryCount(c), "step %d", step)
		} else {
			require.Equal(t, 0, primaryCount(c), "step %d", step)
		}
	}
}

func TestClient_NormalizePrimary(t *testing.T) {
	c := &Client{Contacts: []Contact{{ID: "a"}, {ID: "b", IsPrimary: true}, {ID: "c", IsPrimary: true}}}
	c.NormalizePrimary()
	assert.False(t, c.Contacts[0].IsPrimary)
	assert.True(t, c.Contacts[1].IsPrimary)
	assert.False(t, c.Contacts[2].IsPrimary)

	none := &Client{Contacts: []Contact{{ID: "a"}, {ID: "b"}}}
	none.NormalizePrimary()
	assert.True(t, none.Contacts[0].IsPrimary)
}

func TestClient_FindContactByName(t *testing.T) {
	c, _ := NewClient("Acme", "", "")
	c.AddContact(Contact{PersonName: "Taro Sato"}, sequentialIDs())

	ct, ok := c.FindContactByName(" taro sato ")
	assert.True(t, ok)
	assert.Equal(t, "Taro Sato", ct.PersonName)

	_, ok = c.FindContactByName("Jiro")
	assert.False(t, ok)
}
