package vector

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	mclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const vectorField = "vector"

var milvusOutputFields = []string{"id", "user_id", "title", "text", "created_at"}

// MilvusConfig configures the Milvus backend.
type MilvusConfig struct {
	Address    string
	Username   string
	Password   string
	DBName     string
	Collection string
	Dim        int
}

// Milvus is an Index backed by a Milvus collection.
type Milvus struct {
	cli        mclient.Client
	collection string
	dim        int
}

// NewMilvus connects to Milvus, creating and loading the collection when missing.
func NewMilvus(ctx context.Context, cfg MilvusConfig) (*Milvus, error) {
	cli, err := mclient.NewClient(ctx, mclient.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.DBName,
	})
	if err != nil {
		return nil, fmt.Errorf("vector: connect milvus %s: %w", cfg.Address, err)
	}

	m := &Milvus{cli: cli, collection: cfg.Collection, dim: cfg.Dim}
	if err := m.ensureCollection(ctx); err != nil {
		_ = cli.Close()
		return nil, err
	}
	return m, nil
}

func (m *Milvus) ensureCollection(ctx context.Context) error {
	exists, err := m.cli.HasCollection(ctx, m.collection)
	if err != nil {
		return fmt.Errorf("vector: has collection: %w", err)
	}
	if !exists {
		schema := &entity.Schema{
			CollectionName: m.collection,
			Description:    "NeuralOS note embeddings",
			Fields: []*entity.Field{
				{
					Name:       "id",
					DataType:   entity.FieldTypeVarChar,
					PrimaryKey: true,
					TypeParams: map[string]string{"max_length": "64"},
				},
				{
					Name:       vectorField,
					DataType:   entity.FieldTypeFloatVector,
					TypeParams: map[string]string{entity.TypeParamDim: strconv.Itoa(m.dim)},
				},
				{
					Name:       "user_id",
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "256"},
				},
				{
					Name:       "title",
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "1024"},
				},
				{
					Name:       "text",
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "65535"},
				},
				{
					Name:       "created_at",
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "64"},
				},
			},
		}
		if err := m.cli.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("vector: create collection: %w", err)
		}
		idx, err := entity.NewIndexAUTOINDEX(entity.COSINE)
		if err != nil {
			return fmt.Errorf("vector: build index: %w", err)
		}
		if err := m.cli.CreateIndex(ctx, m.collection, vectorField, idx, false); err != nil {
			return fmt.Errorf("vector: create index: %w", err)
		}
	}
	if err := m.cli.LoadCollection(ctx, m.collection, false); err != nil {
		return fmt.Errorf("vector: load collection: %w", err)
	}
	return nil
}

// Upsert writes entries through Milvus upsert, keyed by note id.
func (m *Milvus) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	ids := make([]string, 0, len(entries))
	vecs := make([][]float32, 0, len(entries))
	users := make([]string, 0, len(entries))
	titles := make([]string, 0, len(entries))
	texts := make([]string, 0, len(entries))
	created := make([]string, 0, len(entries))
	for _, e := range entries {
		if len(e.Vector) != m.dim {
			return fmt.Errorf("vector: dim mismatch for %s: got %d, want %d", e.ID, len(e.Vector), m.dim)
		}
		ids = append(ids, e.ID)
		vecs = append(vecs, e.Vector)
		users = append(users, e.UserID)
		titles = append(titles, e.Title)
		texts = append(texts, e.Text)
		created = append(created, formatTime(e.CreatedAt))
	}

	_, err := m.cli.Upsert(ctx, m.collection, "",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnFloatVector(vectorField, m.dim, vecs),
		entity.NewColumnVarChar("user_id", users),
		entity.NewColumnVarChar("title", titles),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("created_at", created),
	)
	if err != nil {
		return fmt.Errorf("vector: milvus upsert: %w", err)
	}
	return nil
}

// Delete removes entries by primary key.
func (m *Milvus) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = strconv.Quote(id)
	}
	expr := fmt.Sprintf("id in [%s]", strings.Join(quoted, ","))
	if err := m.cli.Delete(ctx, m.collection, "", expr); err != nil {
		return fmt.Errorf("vector: milvus delete: %w", err)
	}
	return nil
}

// Query searches the collection filtered to userID.
func (m *Milvus) Query(ctx context.Context, vec []float32, userID string, topK int) ([]Match, error) {
	if topK <= 0 {
		return []Match{}, nil
	}
	sp, err := entity.NewIndexAUTOINDEXSearchParam(1)
	if err != nil {
		return nil, fmt.Errorf("vector: search param: %w", err)
	}

	res, err := m.cli.Search(ctx, m.collection, nil,
		"user_id == "+strconv.Quote(userID),
		milvusOutputFields,
		[]entity.Vector{entity.FloatVector(vec)},
		vectorField,
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("vector: milvus search: %w", err)
	}

	out := []Match{}
	if len(res) == 0 {
		return out, nil
	}
	sr := res[0]
	if sr.Err != nil {
		return nil, fmt.Errorf("vector: milvus search: %w", sr.Err)
	}

	col := func(name string) entity.Column {
		for _, c := range sr.Fields {
			if c.Name() == name {
				return c
			}
		}
		return nil
	}
	str := func(c entity.Column, i int) string {
		if c == nil {
			return ""
		}
		v, _ := c.GetAsString(i)
		return v
	}
	userCol, titleCol, textCol, createdCol := col("user_id"), col("title"), col("text"), col("created_at")

	for i := 0; i < sr.ResultCount; i++ {
		id, _ := sr.IDs.GetAsString(i)
		out = append(out, Match{
			ID:        id,
			UserID:    str(userCol, i),
			Title:     str(titleCol, i),
			Text:      str(textCol, i),
			CreatedAt: str(createdCol, i),
			Score:     float64(sr.Scores[i]),
		})
	}
	return out, nil
}

// Close closes the Milvus client.
func (m *Milvus) Close() error {
	return m.cli.Close()
}
