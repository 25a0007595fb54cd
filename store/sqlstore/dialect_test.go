package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		name string
		d    dialect
		in   string
		want string
	}{
		{"sqlite keeps markers", sqliteDialect, "a = ? AND b = ?", "a = ? AND b = ?"},
		{"postgres numbers markers", postgresDialect, "a = ? AND b = ?", "a = $1 AND b = $2"},
		{"no markers", postgresDialect, "SELECT 1", "SELECT 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.rebind(tt.in))
		})
	}
}

func TestDialectFor(t *testing.T) {
	d, err := dialectFor("postgres")
	require.NoError(t, err)
	assert.True(t, d.numbered)

	_, err = dialectFor("oracle")
	assert.Error(t, err)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `TS\_\%\\`, escapeLike(`TS_%\`))
}
