package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Clients read precio as a plain JSON number.
	decimal.MarshalJSONWithoutQuotes = true
}

// Product represents a catalog item.
type Product struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	Codigo      string          `json:"codigo" gorm:"uniqueIndex;type:varchar(64);not null"`
	Nombre      string          `json:"nombre" gorm:"type:varchar(255);not null"`
	Descripcion string          `json:"descripcion" gorm:"not null;default:''"`
	Precio      decimal.Decimal `json:"precio" gorm:"type:decimal(12,2);not null"`
	Stock       int             `json:"stock" gorm:"not null"`
	Categoria   string          `json:"categoria" gorm:"type:varchar(128)"`
	Imagenes    string          `json:"imagenes"`
	Bloqueado   bool            `json:"bloqueado" gorm:"not null;default:false;index"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// TableName keeps the table name stable across naming strategies.
func (Product) TableName() string {
	return "productos"
}

// ProductFilter narrows a product listing.
type ProductFilter struct {
	Bloqueado bool
	Codigo    string
	Categoria string
}
