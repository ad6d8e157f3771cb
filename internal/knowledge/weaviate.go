package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	weaviate "github.com/weaviate/weaviate-go-client/v5/weaviate"
	filters "github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	gql "github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	wmodels "github.com/weaviate/weaviate/entities/models"
)

// WeaviateClass is the collection that holds knowledge facts
const WeaviateClass = "KnowledgeFact"

var weaviateNamespace = uuid.MustParse("b0e4f1d2-7a9c-4e3b-8c61-2f5a9d0e7c34")

// Weaviate looks facts up with a keyword hybrid query restricted to the domain and entity tags
type Weaviate struct {
	client *weaviate.Client
	limit  int
}

// NewWeaviate connects to a Weaviate instance at host
func NewWeaviate(host string, limit int) (*Weaviate, error) {
	cl, err := weaviate.NewClient(weaviate.Config{Scheme: "http", Host: host})
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	if limit <= 0 {
		limit = 10
	}
	return &Weaviate{client: cl, limit: limit}, nil
}

// EnsureSchema creates the fact class when it does not exist yet
func (w *Weaviate) EnsureSchema(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if ex, err := w.client.Schema().ClassGetter().WithClassName(WeaviateClass).Do(cctx); err == nil && ex != nil {
		return nil
	}
	class := &wmodels.Class{
		Class:      WeaviateClass,
		Vectorizer: "none",
		Properties: []*wmodels.Property{
			{Name: "domain", DataType: []string{"text"}},
			{Name: "entities", DataType: []string{"text[]"}},
			{Name: "text", DataType: []string{"text"}},
			{Name: "source", DataType: []string{"text"}},
		},
	}
	if err := w.client.Schema().ClassCreator().WithClass(class).Do(cctx); err != nil {
		return fmt.Errorf("failed to create class %s: %w", WeaviateClass, err)
	}
	return nil
}

// Upsert stores facts with deterministic IDs so reseeding replaces instead of duplicating
func (w *Weaviate) Upsert(ctx context.Context, facts ...Fact) error {
	objs := make([]*wmodels.Object, 0, len(facts))
	for _, f := range facts {
		key := string(f.Domain) + "\n" + f.Source + "\n" + strings.TrimSpace(f.Text)
		objs = append(objs, &wmodels.Object{
			Class: WeaviateClass,
			ID:    strfmt.UUID(uuid.NewSHA1(weaviateNamespace, []byte(key)).String()),
			Properties: map[string]interface{}{
				"domain":   string(f.Domain),
				"entities": Normalize(f.Entities),
				"text":     f.Text,
				"source":   f.Source,
			},
		})
	}
	if len(objs) == 0 {
		return nil
	}
	if _, err := w.client.Batch().ObjectsBatcher().WithObjects(objs...).Do(ctx); err != nil {
		return fmt.Errorf("failed to upsert %d facts: %w", len(objs), err)
	}
	return nil
}

// Lookup implements Lookup
func (w *Weaviate) Lookup(ctx context.Context, entities []string, domain Domain) ([]Fact, error) {
	normalized := Normalize(entities)
	if len(normalized) == 0 {
		return []Fact{}, nil
	}

	where := filters.Where().
		WithOperator(filters.And).
		WithOperands([]*filters.WhereBuilder{
			filters.Where().WithPath([]string{"domain"}).WithOperator(filters.Equal).WithValueText(string(domain)),
			filters.Where().WithPath([]string{"entities"}).WithOperator(filters.ContainsAny).WithValueText(normalized...),
		})
	hy := (&gql.HybridArgumentBuilder{}).
		WithQuery(strings.Join(normalized, " ")).
		WithAlpha(0).
		WithProperties([]string{"text", "entities"})

	resp, err := w.client.GraphQL().Get().
		WithClassName(WeaviateClass).
		WithWhere(where).
		WithHybrid(hy).
		WithLimit(w.limit).
		WithFields(
			gql.Field{Name: "domain"},
			gql.Field{Name: "entities"},
			gql.Field{Name: "text"},
			gql.Field{Name: "source"},
			gql.Field{Name: "_additional", Fields: []gql.Field{{Name: "score"}}},
		).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate query failed: %w", err)
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("weaviate graphql: %s", strings.Join(msgs, "; "))
	}
	return parseWeaviateFacts(resp.Data), nil
}

// parseWeaviateFacts reads Get.KnowledgeFact from a GraphQL response, tolerating missing fields
func parseWeaviateFacts(data map[string]wmodels.JSONObject) []Fact {
	out := []Fact{}
	getData, ok := data["Get"].(map[string]interface{})
	if !ok {
		return out
	}
	raw, ok := getData[WeaviateClass].([]interface{})
	if !ok {
		return out
	}
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		text, _ := m["text"].(string)
		source, _ := m["source"].(string)
		if text == "" {
			continue
		}
		d, _ := m["domain"].(string)
		fact := Fact{Domain: Domain(d), Text: text, Source: source}
		if ents, ok := m["entities"].([]interface{}); ok {
			for _, e := range ents {
				if s, ok := e.(string); ok {
					fact.Entities = append(fact.Entities, s)
				}
			}
		}
		out = append(out, fact)
	}
	return out
}
