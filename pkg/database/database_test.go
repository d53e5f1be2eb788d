package database

import (
	"errors"
	"testing"

	"github.com/haierkeys/fast-db-backup-service/pkg/code"
	"github.com/haierkeys/fast-db-backup-service/pkg/database/dbcore"
	"github.com/haierkeys/fast-db-backup-service/pkg/database/mongodb"
	"github.com/haierkeys/fast-db-backup-service/pkg/database/mssql"
	"github.com/haierkeys/fast-db-backup-service/pkg/database/mysql"
	"github.com/haierkeys/fast-db-backup-service/pkg/database/postgresql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConnector(t *testing.T) {
	tests := []struct {
		typ  string
		want any
	}{
		{PostgreSQL, &postgresql.Connector{}},
		{MySQL, &mysql.Connector{}},
		{MariaDB, &mysql.Connector{}},
		{MongoDB, &mongodb.Connector{}},
		{MSSQL, &mssql.Connector{}},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			c, err := NewConnector(&dbcore.Config{Type: tt.typ}, nil)
			require.NoError(t, err)
			assert.IsType(t, tt.want, c)
		})
	}
}

func TestNewConnectorRejectsUnknownType(t *testing.T) {
	_, err := NewConnector(&dbcore.Config{Type: "oracle"}, nil)
	assert.True(t, errors.Is(err, code.ErrorInvalidDatabaseType))
	assert.Equal(t, code.KindValidation, code.KindOf(err))

	_, err = NewConnector(nil, nil)
	assert.Error(t, err)
}

func TestCompressesItself(t *testing.T) {
	assert.True(t, CompressesItself(MongoDB))
	assert.False(t, CompressesItself(PostgreSQL))
}
