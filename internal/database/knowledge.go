package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/benvon/health-chat/internal/knowledge"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// DefaultKnowledgeLimit caps the rows a single lookup returns
const DefaultKnowledgeLimit = 20

var knowledgeNamespace = uuid.MustParse("6f1c3a52-5d0e-4c1e-9a53-4b8f0d7e2a10")

// KnowledgeRepository stores grounding facts in Postgres. It implements knowledge.Lookup.
type KnowledgeRepository struct {
	db    *DB
	limit int
}

// NewKnowledgeRepository creates a new knowledge repository
func NewKnowledgeRepository(db *DB) *KnowledgeRepository {
	return &KnowledgeRepository{db: db, limit: DefaultKnowledgeLimit}
}

var _ knowledge.Lookup = (*KnowledgeRepository)(nil)

// Lookup implements knowledge.Lookup by matching any of the entities against the fact's tags
func (r *KnowledgeRepository) Lookup(ctx context.Context, entities []string, domain knowledge.Domain) ([]knowledge.Fact, error) {
	normalized := knowledge.Normalize(entities)
	if len(normalized) == 0 {
		return []knowledge.Fact{}, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT domain, entities, text, source
		FROM knowledge_facts
		WHERE domain = $1 AND entities && $2::text[]
		ORDER BY created_at ASC
		LIMIT $3
	`, string(domain), pq.Array(normalized), r.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge facts: %w", err)
	}
	defer rows.Close()

	out := []knowledge.Fact{}
	for rows.Next() {
		var fact knowledge.Fact
		var d string
		if err := rows.Scan(&d, pq.Array(&fact.Entities), &fact.Text, &fact.Source); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge fact: %w", err)
		}
		fact.Domain = knowledge.Domain(d)
		out = append(out, fact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate knowledge facts: %w", err)
	}
	return out, nil
}

// Upsert inserts a fact or refreshes its entity tags. Facts are keyed by domain, source and text
// so seeding the same catalog twice is idempotent.
func (r *KnowledgeRepository) Upsert(ctx context.Context, fact knowledge.Fact) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO knowledge_facts (id, domain, entities, text, source)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET entities = EXCLUDED.entities
	`, factID(fact), string(fact.Domain), pq.Array(knowledge.Normalize(fact.Entities)), fact.Text, fact.Source)
	if err != nil {
		return fmt.Errorf("failed to upsert knowledge fact: %w", err)
	}
	return nil
}

// Count returns the number of stored facts per domain
func (r *KnowledgeRepository) Count(ctx context.Context) (map[knowledge.Domain]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT domain, COUNT(*) FROM knowledge_facts GROUP BY domain`)
	if err != nil {
		return nil, fmt.Errorf("failed to count knowledge facts: %w", err)
	}
	defer rows.Close()

	counts := make(map[knowledge.Domain]int)
	for rows.Next() {
		var d string
		var n int
		if err := rows.Scan(&d, &n); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge count: %w", err)
		}
		counts[knowledge.Domain(d)] = n
	}
	return counts, rows.Err()
}

func factID(fact knowledge.Fact) uuid.UUID {
	key := strings.Join([]string{string(fact.Domain), fact.Source, strings.TrimSpace(fact.Text)}, "\n")
	return uuid.NewSHA1(knowledgeNamespace, []byte(key))
}
