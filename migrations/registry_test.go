package migrations

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisteredMigrations(t *testing.T) {
	assert.ElementsMatch(t, []string{
		"001_create_relations_indexes",
		"002_create_treaties_indexes",
		"003_create_alliances_indexes",
	}, Versions())

	for version, m := range registered {
		assert.NotEmpty(t, m.Description, version)
		assert.NotNil(t, m.Down, version)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	existing := registered["001_create_relations_indexes"]
	assert.Panics(t, func() { Register(existing) })
	assert.Panics(t, func() { Register(Migration{Version: "999_no_up"}) })
	_, added := registered["999_no_up"]
	assert.False(t, added)
}

func TestIsIndexExistsError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"options conflict", errors.New("(IndexOptionsConflict) Index with name: x already exists with different options"), true},
		{"key specs conflict", errors.New("(IndexKeySpecsConflict) conflicting key spec"), true},
		{"unrelated", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isIndexExistsError(tt.err))
		})
	}
}
