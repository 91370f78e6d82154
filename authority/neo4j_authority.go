// authority/neo4j_authority.go
package authority

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/clinicore/authcore/db"
	authcore_errors "github.com/clinicore/authcore/errors"
	logger "github.com/clinicore/authcore/logging"
)

// Neo4jAuthority answers permission checks from the role/permission graph:
// an identity holds a permission when one of its roles grants it.
type Neo4jAuthority struct {
	Driver neo4j.Driver
}

func NewNeo4jAuthority(driver neo4j.Driver) *Neo4jAuthority {
	return &Neo4jAuthority{Driver: driver}
}

func (a *Neo4jAuthority) CheckPermission(ctx context.Context, identityID string, code string) (bool, error) {
	start := time.Now()

	result, err := db.ExecuteReadTransaction(ctx, a.Driver, func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (u:User {id: $identityID})-[:HAS_ROLE]->(:Role)-[:GRANTS]->(p:Permission {code: $code})
        RETURN count(p) > 0 AS granted
        `

		params := map[string]interface{}{
			"identityID": identityID,
			"code":       code,
		}

		res, err := transaction.Run(query, params)
		if err != nil {
			return nil, err
		}

		if res.Next() {
			return res.Record().Values[0], nil
		}

		return false, nil
	})

	duration := time.Since(start)
	if err != nil {
		logger.Error("Authority check failed",
			zap.Error(err),
			zap.String("identityID", identityID),
			zap.String("code", code),
			zap.Duration("duration", duration))
		return false, fmt.Errorf("%w: %v", authcore_errors.ErrAuthorityUnavailable, err)
	}

	granted, ok := result.(bool)
	if !ok {
		return false, authcore_errors.ErrAuthorityUnavailable
	}

	logger.Debug("Authority check completed",
		zap.String("identityID", identityID),
		zap.String("code", code),
		zap.Bool("granted", granted),
		zap.Duration("duration", duration))
	return granted, nil
}
