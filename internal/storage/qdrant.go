package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	qdrant "github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/models"
)

// QdrantIndex keeps report embeddings in a Qdrant collection
type QdrantIndex struct {
	collections    qdrant.CollectionsClient
	points         qdrant.PointsClient
	conn           *grpc.ClientConn
	collectionName string
	dimension      int
}

// NewQdrantIndex connects to Qdrant over gRPC
func NewQdrantIndex(address, collectionName string, dimension int) (*QdrantIndex, error) {
	conn, err := grpc.Dial(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	return &QdrantIndex{
		collections:    qdrant.NewCollectionsClient(conn),
		points:         qdrant.NewPointsClient(conn),
		conn:           conn,
		collectionName: collectionName,
		dimension:      dimension,
	}, nil
}

// EnsureCollection creates the cosine collection and its payload indexes if missing
func (q *QdrantIndex) EnsureCollection(ctx context.Context) error {
	_, err := q.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{
		CollectionName: q.collectionName,
	})
	if err == nil {
		log.Info().Str("collection", q.collectionName).Msg("Qdrant collection already exists")
		return nil
	}

	m := uint64(16)
	efConstruct := uint64(100)

	_, err = q.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: q.collectionName,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(q.dimension),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
		HnswConfig: &qdrant.HnswConfigDiff{
			M:           &m,
			EfConstruct: &efConstruct,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	fieldType := qdrant.FieldType_FieldTypeKeyword
	for _, field := range []string{"kind", "category", "status"} {
		_, err := q.points.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: q.collectionName,
			FieldName:      field,
			FieldType:      &fieldType,
			Wait:           boolPtr(true),
		})
		if err != nil {
			return fmt.Errorf("failed to index payload field %s: %w", field, err)
		}
	}

	log.Info().
		Str("collection", q.collectionName).
		Int("dimension", q.dimension).
		Msg("Qdrant collection created")
	return nil
}

// UpsertReportVector stores a report's embedding with its filterable payload
func (q *QdrantIndex) UpsertReportVector(ctx context.Context, report *models.Report, vector []float64) error {
	if q.dimension > 0 && len(vector) != q.dimension {
		return fmt.Errorf("invalid embedding dimension: %d, expected %d", len(vector), q.dimension)
	}

	point := &qdrant.PointStruct{
		Id: &qdrant.PointId{
			PointIdOptions: &qdrant.PointId_Uuid{
				Uuid: pointID(report.ID),
			},
		},
		Vectors: &qdrant.Vectors{
			VectorsOptions: &qdrant.Vectors_Vector{
				Vector: &qdrant.Vector{
					Data: toFloat32(vector),
				},
			},
		},
		Payload: reportPayload(report),
	}

	_, err := q.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collectionName,
		Points:         []*qdrant.PointStruct{point},
		Wait:           boolPtr(true),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}

	log.Debug().Str("report_id", report.ID).Msg("Report vector indexed")
	return nil
}

// HealthCheck verifies the collection is reachable
func (q *QdrantIndex) HealthCheck(ctx context.Context) error {
	_, err := q.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{
		CollectionName: q.collectionName,
	})
	return err
}

// Close closes the connection to Qdrant
func (q *QdrantIndex) Close() error {
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// pointID maps a report ID onto a Qdrant UUID point ID. Non-UUID IDs get a
// stable name-based UUID.
func pointID(reportID string) string {
	if id, err := uuid.Parse(reportID); err == nil {
		return id.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("report:"+reportID)).String()
}

func reportPayload(report *models.Report) map[string]*qdrant.Value {
	payload := map[string]*qdrant.Value{
		"report_id": stringValue(report.ID),
		"kind":      stringValue(string(report.Kind)),
		"category":  stringValue(report.Category),
		"status":    stringValue(string(report.Status)),
	}
	if report.Location.City != "" {
		payload["city"] = stringValue(report.Location.City)
	}
	return payload
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

func boolPtr(b bool) *bool {
	return &b
}
