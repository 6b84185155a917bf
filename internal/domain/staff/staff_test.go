package staff

import (
	"testing"

	"github.com/karte/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMember(t *testing.T) {
	m, err := NewMember("  Sato ", " sato@example.com", "03-0000", "manager ")
	require.NoError(t, err)
	assert.Equal(t, "Sato", m.Name)
	assert.Equal(t, "sato@example.com", m.Email)
	assert.Equal(t, "manager", m.Role)

	_, err = NewMember("   ", "", "", "")
	assert.True(t, shared.IsKind(err, shared.KindValidation))
}

func TestMember_UpdateKeepsFieldsOnError(t *testing.T) {
	m, err := NewMember("Sato", "", "", "")
	require.NoError(t, err)

	err = m.Update("", "x@example.com", "", "")
	require.Error(t, err)
	assert.Equal(t, "Sato", m.Name)
	assert.Empty(t, m.Email)
}

func TestNames(t *testing.T) {
	members := []*Member{{Name: "Ito"}, {Name: ""}, {Name: "Sato"}, {Name: "Ito"}}
	assert.Equal(t, []string{"Ito", "Sato"}, Names(members))
	assert.Empty(t, Names(nil))
}
