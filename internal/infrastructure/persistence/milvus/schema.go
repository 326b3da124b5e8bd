// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionExhibitionVectors 展览向量集合
	CollectionExhibitionVectors = "exhibition_vectors"

	// VectorDimension 向量维度（embedding-passage 输出维度）
	VectorDimension = 4096
)

// ExhibitionVectorsSchema 展览向量 Collection Schema
func ExhibitionVectorsSchema() *entity.Schema {
	return &entity.Schema{
		CollectionName: CollectionExhibitionVectors,
		Description:    "Exhibition documents for semantic search",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": "4096",
				},
			},
			{
				Name:     "item_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "text_content",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
		},
	}
}

// ExhibitionVector 展览向量数据结构
type ExhibitionVector struct {
	ID          string    `json:"id"`
	Vector      []float32 `json:"vector"`
	ItemID      string    `json:"item_id"`
	TextContent string    `json:"text_content"`
}
