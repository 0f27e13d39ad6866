package pricing

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RuleRepository loads catalog overrides maintained by the billing office.
type RuleRepository interface {
	ListActive(ctx context.Context) ([]Rule, error)
}

type ruleRepoPG struct{ pool *pgxpool.Pool }

func NewRuleRepoPG(pool *pgxpool.Pool) RuleRepository { return &ruleRepoPG{pool: pool} }

func (r *ruleRepoPG) ListActive(ctx context.Context) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT code, label, percentage, direction
		FROM adjustment_rules WHERE active ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("query adjustment rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var rule Rule
		if err := rows.Scan(&rule.Code, &rule.Label, &rule.Percentage, &rule.Direction); err != nil {
			return nil, fmt.Errorf("scan adjustment rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// LoadCatalog merges the active stored rules over base.
func LoadCatalog(ctx context.Context, repo RuleRepository, base *Catalog) (*Catalog, error) {
	if base == nil {
		base = DefaultCatalog()
	}
	rules, err := repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return base, nil
	}
	return base.With(rules...)
}
