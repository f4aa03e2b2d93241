// Package semantic owns all Qdrant operations: the embedding store holding
// one point per resource chunk, keyed by a deterministic UUID.
package semantic

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/LexbaseAI/lexbase-mvp/engine/domain"
)

// pointsAPI is the subset of pb.PointsClient the store uses.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	Count(ctx context.Context, in *pb.CountPoints, opts ...grpc.CallOption) (*pb.CountResponse, error)
	Scroll(ctx context.Context, in *pb.ScrollPoints, opts ...grpc.CallOption) (*pb.ScrollResponse, error)
}

// collectionsAPI is the subset of pb.CollectionsClient the store uses.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// VectorStore is the sole owner of all Qdrant operations.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
}

// New creates a VectorStore connected to Qdrant at the given gRPC address.
func New(addr string, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// NewWithClients constructs a VectorStore over pre-built clients. Used by tests.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string) *VectorStore {
	return &VectorStore{points: points, collections: collections, collection: collection}
}

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist.
func (v *VectorStore) EnsureCollection(ctx context.Context, dims int) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return nil
		}
	}

	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
	}
	return nil
}

// DeleteCollection deletes the collection.
func (v *VectorStore) DeleteCollection(ctx context.Context) error {
	_, err := v.collections.Delete(ctx, &pb.DeleteCollection{
		CollectionName: v.collection,
	})
	if err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", v.collection, err)
	}
	return nil
}

// Upsert stores embedding records. Point IDs are deterministic per
// (resource, chunk index), so repeat upserts overwrite in place.
func (v *VectorStore) Upsert(ctx context.Context, records []domain.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(r.ResourceID, r.ChunkIndex)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Embedding},
				},
			},
			Payload: map[string]*pb.Value{
				"resource_id":  {Kind: &pb.Value_StringValue{StringValue: r.ResourceID}},
				"chunk_index":  {Kind: &pb.Value_IntegerValue{IntegerValue: int64(r.ChunkIndex)}},
				"chunk_text":   {Kind: &pb.Value_StringValue{StringValue: r.ChunkText}},
				"token_count":  {Kind: &pb.Value_IntegerValue{IntegerValue: int64(r.TokenCount)}},
				"source_title": {Kind: &pb.Value_StringValue{StringValue: r.SourceTitle}},
				"source_url":   {Kind: &pb.Value_StringValue{StringValue: r.SourceURL}},
			},
		}
	}

	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(records), err)
	}
	return nil
}

// DeleteByResource removes all points belonging to a resource. Deleting a
// resource with no points is a no-op on the Qdrant side, so the call is
// idempotent.
func (v *VectorStore) DeleteByResource(ctx context.Context, resourceID string) error {
	wait := true
	_, err := v.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{fieldMatch("resource_id", resourceID)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: delete by resource %s: %w", resourceID, err)
	}
	return nil
}

// TrimBeyond removes a resource's points whose chunk index is >= n. After a
// re-embed produced n chunks, this clears points left over from a previous,
// longer version of the content.
func (v *VectorStore) TrimBeyond(ctx context.Context, resourceID string, n int) error {
	gte := float64(n)
	wait := true
	_, err := v.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{
						fieldMatch("resource_id", resourceID),
						{
							ConditionOneOf: &pb.Condition_Field{
								Field: &pb.FieldCondition{
									Key:   "chunk_index",
									Range: &pb.Range{Gte: &gte},
								},
							},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: trim resource %s beyond %d: %w", resourceID, n, err)
	}
	return nil
}

// CountByResource returns the number of points stored for a resource.
func (v *VectorStore) CountByResource(ctx context.Context, resourceID string) (int, error) {
	exact := true
	resp, err := v.points.Count(ctx, &pb.CountPoints{
		CollectionName: v.collection,
		Exact:          &exact,
		Filter: &pb.Filter{
			Must: []*pb.Condition{fieldMatch("resource_id", resourceID)},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("semantic: count resource %s: %w", resourceID, err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// CountAll returns the total number of points in the collection.
func (v *VectorStore) CountAll(ctx context.Context) (int, error) {
	exact := true
	resp, err := v.points.Count(ctx, &pb.CountPoints{
		CollectionName: v.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("semantic: count all: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// EmbeddedResources scrolls the collection and returns, per resource ID, how
// many points it has. With a non-empty allowlist the scroll is filtered to
// those resources.
func (v *VectorStore) EmbeddedResources(ctx context.Context, resourceIDs []string) (map[string]int, error) {
	counts := make(map[string]int)
	limit := uint32(scrollPageSize)
	req := &pb.ScrollPoints{
		CollectionName: v.collection,
		Limit:          &limit,
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Include{
				Include: &pb.PayloadIncludeSelector{Fields: []string{"resource_id"}},
			},
		},
	}
	if len(resourceIDs) > 0 {
		req.Filter = &pb.Filter{
			Must: []*pb.Condition{fieldMatchAny("resource_id", resourceIDs)},
		}
	}

	for {
		resp, err := v.points.Scroll(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("semantic: scroll resources: %w", err)
		}
		for _, p := range resp.GetResult() {
			if id := p.GetPayload()["resource_id"].GetStringValue(); id != "" {
				counts[id]++
			}
		}
		next := resp.GetNextPageOffset()
		if next == nil {
			return counts, nil
		}
		req.Offset = next
	}
}

const scrollPageSize = 256

// Search performs similarity search, dropping hits below the score threshold.
// A non-empty resourceIDs restricts hits to those resources.
func (v *VectorStore) Search(ctx context.Context, embedding []float32, limit int, threshold float32, resourceIDs []string) ([]domain.SourceChunk, error) {
	req := &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         embedding,
		Limit:          uint64(limit),
		ScoreThreshold: &threshold,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if len(resourceIDs) > 0 {
		req.Filter = &pb.Filter{
			Must: []*pb.Condition{fieldMatchAny("resource_id", resourceIDs)},
		}
	}

	resp, err := v.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	chunks := make([]domain.SourceChunk, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		chunks[i] = chunkFromPayload(r.GetId().GetUuid(), r.GetScore(), r.GetPayload())
	}
	return chunks, nil
}

func chunkFromPayload(id string, score float32, payload map[string]*pb.Value) domain.SourceChunk {
	return domain.SourceChunk{
		ID:         id,
		ResourceID: payload["resource_id"].GetStringValue(),
		ChunkIndex: int(payload["chunk_index"].GetIntegerValue()),
		Text:       payload["chunk_text"].GetStringValue(),
		Similarity: score,
		Title:      payload["source_title"].GetStringValue(),
		URL:        payload["source_url"].GetStringValue(),
	}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

func fieldMatchAny(key string, values []string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keywords{
						Keywords: &pb.RepeatedStrings{Strings: values},
					},
				},
			},
		},
	}
}
