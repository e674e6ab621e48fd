// Package repomanager vends repositories bound to a database handle or an
// open transaction, so a service can run several of them atomically.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/petmarket/internal/dbx"
	"github.com/dmitrijs2005/petmarket/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/petmarket/internal/server/repositories/products"
	"github.com/dmitrijs2005/petmarket/internal/server/repositories/refreshtokens"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	Products(db dbx.DBTX) products.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
