package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Querier is the one seam between the store and the graph database:
// a parameterized Cypher statement in, flat records out.
type Querier interface {
	Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

// Client implements Querier against a Neo4j driver.
type Client struct {
	driver   neo4j.DriverWithContext
	database string
}

func NewClient(driver neo4j.DriverWithContext, database string) *Client {
	return &Client{driver: driver, database: database}
}

func (c *Client) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	result, err := neo4j.ExecuteQuery(ctx, c.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.database),
	)
	if err != nil {
		return nil, err
	}

	records := make([]map[string]any, 0, len(result.Records))
	for _, rec := range result.Records {
		records = append(records, rec.AsMap())
	}
	return records, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}
