package reference

import (
	"context"
	"fmt"

	"github.com/leeforge/moneykeeper/postgres"
)

// PostgresSource reads the "MCC" table.
type PostgresSource struct {
	db postgres.Querier
}

func NewPostgresSource(db postgres.Querier) *PostgresSource {
	return &PostgresSource{db: db}
}

// FetchMCC returns the rows in table order. Codes are stored as integers or
// text depending on the schema, so both are rendered as their decimal string.
func (s *PostgresSource) FetchMCC(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.Query(ctx, mccQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			code     any
			category string
		)
		if err := rows.Scan(&code, &category); err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Code: fmt.Sprint(code), Category: category})
	}
	return entries, rows.Err()
}
