package vectorstore

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marketmatch/marketmatch/internal/config"
	"github.com/marketmatch/marketmatch/internal/domain"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// qdrantTimeout bounds every Qdrant RPC.
const qdrantTimeout = 60 * time.Second

// apiKeyInterceptor adds the API key to outgoing request metadata.
func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// QdrantStore is the managed vector index backend, speaking gRPC to a
// Qdrant server. Supports both local Qdrant (insecure) and Qdrant
// Cloud (TLS + API key).
type QdrantStore struct {
	conn          *grpc.ClientConn
	pointsClient  pb.PointsClient
	collectClient pb.CollectionsClient
	collection    string
	dimensions    int
}

// NewQdrantStore dials the configured Qdrant server. TLS is enabled
// when an API key is set or UseTLS is explicit. The connection is lazy;
// use EnsureCollection to verify reachability.
func NewQdrantStore(cfg config.QdrantConfig, dimensions int) (*QdrantStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("invalid dimensions %d", dimensions)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var opts []grpc.DialOption
	useTLS := cfg.UseTLS || cfg.APIKey != ""
	if useTLS {
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
		if cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
		}
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to qdrant: %v", ErrBackendUnavailable, err)
	}

	return &QdrantStore{
		conn:          conn,
		pointsClient:  pb.NewPointsClient(conn),
		collectClient: pb.NewCollectionsClient(conn),
		collection:    cfg.Collection,
		dimensions:    dimensions,
	}, nil
}

// Kind identifies the backend.
func (s *QdrantStore) Kind() string { return KindQdrant }

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error { return s.conn.Close() }

// EnsureCollection creates the collection if absent and verifies the
// vector size of an existing one. It doubles as the reachability check
// during backend resolution.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, qdrantTimeout)
	defer cancel()

	info, err := s.collectClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: s.collection,
	})
	if err == nil {
		if size, ok := collectionVectorSize(info.GetResult()); ok {
			if size != uint64(s.dimensions) {
				return fmt.Errorf("%w: collection %s has vector size %d, expected %d",
					ErrDimensionMismatch, s.collection, size, s.dimensions)
			}
		}
		return nil
	}

	if err := s.createCollection(ctx); err != nil {
		return err
	}
	return s.seedPlaceholder(ctx)
}

func (s *QdrantStore) createCollection(ctx context.Context) error {
	_, err := s.collectClient.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(s.dimensions),
					Distance: pb.Distance_Cosine,
				},
			},
		},
		HnswConfig: &pb.HnswConfigDiff{
			M:                 optionalUint64(16),
			EfConstruct:       optionalUint64(128),
			FullScanThreshold: optionalUint64(10000),
		},
	})
	if err != nil {
		return fmt.Errorf("%w: failed to create collection: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (s *QdrantStore) seedPlaceholder(ctx context.Context) error {
	item := placeholderItem(s.dimensions)
	return s.upsert(ctx, []Item{item})
}

// Upsert inserts or replaces the given items. Item IDs must be UUIDs.
func (s *QdrantStore) Upsert(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, qdrantTimeout)
	defer cancel()
	return s.upsert(ctx, items)
}

func (s *QdrantStore) upsert(ctx context.Context, items []Item) error {
	points := make([]*pb.PointStruct, 0, len(items))
	for _, item := range items {
		uid, err := uuid.Parse(item.ID)
		if err != nil {
			return fmt.Errorf("invalid point ID %q: %w", item.ID, err)
		}
		if len(item.Vector) != s.dimensions {
			return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(item.Vector), s.dimensions)
		}
		points = append(points, &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: uid.String()},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: item.Vector},
				},
			},
			Payload: map[string]*pb.Value{
				"chunk_id":       {Kind: &pb.Value_StringValue{StringValue: item.Metadata.ChunkID}},
				"document_id":    {Kind: &pb.Value_StringValue{StringValue: item.Metadata.DocumentID}},
				"document_title": {Kind: &pb.Value_StringValue{StringValue: item.Metadata.DocumentTitle}},
				"chunk_index":    {Kind: &pb.Value_IntegerValue{IntegerValue: int64(item.Metadata.ChunkIndex)}},
				"content":        {Kind: &pb.Value_StringValue{StringValue: item.Content}},
			},
		})
	}

	_, err := s.pointsClient.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to upsert points: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// SimilaritySearch returns up to k matches, best first. The server is
// asked for one extra hit so the placeholder can be dropped without
// shrinking the result set.
func (s *QdrantStore) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]domain.Match, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(vector) != s.dimensions {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vector), s.dimensions)
	}

	ctx, cancel := context.WithTimeout(ctx, qdrantTimeout)
	defer cancel()

	resp, err := s.pointsClient.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(k + 1),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to search: %v", ErrBackendUnavailable, err)
	}

	matches := make([]domain.Match, 0, len(resp.Result))
	for _, scored := range resp.Result {
		meta := parseQdrantPayload(scored.Payload)
		if meta.ChunkID == PlaceholderChunkID {
			continue
		}
		matches = append(matches, domain.Match{
			Content:  payloadContent(scored.Payload),
			Metadata: meta,
			Score:    scored.Score,
		})
		if len(matches) == k {
			break
		}
	}
	return matches, nil
}

// DeleteAll drops the collection, recreates it, and re-seeds the
// placeholder. Recreating is cheaper and more thorough than a filtered
// point delete.
func (s *QdrantStore) DeleteAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, qdrantTimeout)
	defer cancel()

	_, err := s.collectClient.Delete(ctx, &pb.DeleteCollection{
		CollectionName: s.collection,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to delete collection: %v", ErrBackendUnavailable, err)
	}
	if err := s.createCollection(ctx); err != nil {
		return err
	}
	return s.seedPlaceholder(ctx)
}

// Stats reports the point count excluding the placeholder.
func (s *QdrantStore) Stats(ctx context.Context) (Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, qdrantTimeout)
	defer cancel()

	resp, err := s.pointsClient.Count(ctx, &pb.CountPoints{
		CollectionName: s.collection,
		Exact:          optionalBool(true),
	})
	if err != nil {
		return Stats{}, fmt.Errorf("%w: failed to count points: %v", ErrBackendUnavailable, err)
	}

	count := int64(resp.GetResult().GetCount())
	if count > 0 {
		count-- // placeholder
	}
	return Stats{Kind: KindQdrant, Count: count, Dimensions: s.dimensions}, nil
}

func optionalUint64(v uint64) *uint64 { return &v }
func optionalBool(v bool) *bool       { return &v }

func collectionVectorSize(info *pb.CollectionInfo) (uint64, bool) {
	if info == nil {
		return 0, false
	}
	config := info.GetConfig()
	if config == nil {
		return 0, false
	}
	params := config.GetParams()
	if params == nil {
		return 0, false
	}
	vectors := params.GetVectorsConfig()
	if vectors == nil {
		return 0, false
	}
	if single := vectors.GetParams(); single != nil {
		if size := single.GetSize(); size > 0 {
			return size, true
		}
	}
	if paramsMap := vectors.GetParamsMap(); paramsMap != nil {
		for _, vectorParams := range paramsMap.GetMap() {
			if vectorParams == nil {
				continue
			}
			if size := vectorParams.GetSize(); size > 0 {
				return size, true
			}
		}
	}
	return 0, false
}

func parseQdrantPayload(payload map[string]*pb.Value) domain.VectorMetadata {
	meta := domain.VectorMetadata{}
	if payload == nil {
		return meta
	}
	if v, ok := payload["chunk_id"]; ok {
		meta.ChunkID = v.GetStringValue()
	}
	if v, ok := payload["document_id"]; ok {
		meta.DocumentID = v.GetStringValue()
	}
	if v, ok := payload["document_title"]; ok {
		meta.DocumentTitle = v.GetStringValue()
	}
	if v, ok := payload["chunk_index"]; ok {
		meta.ChunkIndex = int(v.GetIntegerValue())
	}
	return meta
}

func payloadContent(payload map[string]*pb.Value) string {
	if v, ok := payload["content"]; ok {
		return v.GetStringValue()
	}
	return ""
}
