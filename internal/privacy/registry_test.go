package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	assert.NotNil(t, reg.Mapping())
	assert.Equal(t, 0, reg.Len())

	assert.Equal(t, "USER_1", reg.Register("Мария"))
	assert.Equal(t, "USER_2", reg.Register("Иван"))
	assert.Equal(t, "USER_1", reg.Register("Мария"))
	assert.Equal(t, "USER_3", reg.Register("мария"))

	alias, ok := reg.Lookup("Иван")
	assert.True(t, ok)
	assert.Equal(t, "USER_2", alias)

	_, ok = reg.Lookup("Пётр")
	assert.False(t, ok)

	original, ok := reg.Original("USER_3")
	assert.True(t, ok)
	assert.Equal(t, "мария", original)

	assert.Equal(t, 3, reg.Len())
	assert.Equal(t, []Alias{
		{Original: "Мария", Alias: "USER_1"},
		{Original: "Иван", Alias: "USER_2"},
		{Original: "мария", Alias: "USER_3"},
	}, reg.Entries())
}

func TestRegistryRedactions(t *testing.T) {
	reg := NewRegistry()
	reg.AddRedactions(EntityEmail, EmailToken, 2)
	reg.AddRedactions(EntityPhone, PhoneToken, 0)
	reg.AddRedactions(EntityEmail, EmailToken, 1)
	reg.Register("Анна")

	assert.Equal(t, 3, reg.Redactions(EntityEmail))
	assert.Equal(t, 0, reg.Redactions(EntityPhone))
	assert.Equal(t, []Finding{
		{EntityType: EntityPerson, Masked: "USER_<n>", Count: 1},
		{EntityType: EntityEmail, Masked: EmailToken, Count: 3},
	}, reg.Findings())
}
