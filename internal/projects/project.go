// Package projects implementa o endpoint seguro de CRUD de projetos do
// marketplace, atrás do gateway de segurança.
package projects

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
)

// MaxTags é o número máximo de tags guardadas por projeto.
const MaxTags = 10

var ErrNotFound = errors.New("project not found")

type Project struct {
	ID            string         `gorm:"primaryKey;size:36" json:"id"`
	Title         string         `gorm:"size:100;not null" json:"title"`
	Description   *string        `gorm:"size:2000" json:"description"`
	Category      *string        `gorm:"size:100" json:"category"`
	Tags          datatypes.JSON `json:"tags"`
	Price         float64        `gorm:"not null;default:0" json:"price"`
	IsFree        bool           `gorm:"not null;default:false" json:"is_free"`
	Rating        float64        `gorm:"not null;default:0" json:"rating"`
	RatingCount   int            `gorm:"not null;default:0" json:"rating_count"`
	DownloadCount int            `gorm:"not null;default:0" json:"download_count"`
	CreatorID     string         `gorm:"size:64;not null;index" json:"creator_id"`
	IsPublished   bool           `gorm:"not null;default:false" json:"is_published"`
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (Project) TableName() string { return "projects" }

// Changes são as colunas alteradas por um update. Valores nil gravam NULL.
type Changes map[string]any

type Repository interface {
	// ListByCreator devolve os projetos do criador, mais recentes primeiro.
	ListByCreator(ctx context.Context, creatorID string) ([]Project, error)
	Create(ctx context.Context, p *Project) error
	// Get devolve ErrNotFound quando o id não existe.
	Get(ctx context.Context, id string) (*Project, error)
	Update(ctx context.Context, id string, changes Changes) (*Project, error)
}
