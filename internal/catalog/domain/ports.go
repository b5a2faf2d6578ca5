package domain

import "context"

// CatalogRepository es el almacén primario (sistema de registro). Todas las
// escrituras usan la transacción que viaja en el contexto, si existe.
type CatalogRepository interface {
	CreateGame(ctx context.Context, g *Game) error
	UpdateGame(ctx context.Context, g *Game) error
	GetGame(ctx context.Context, id int64) (*Game, error)

	CreatePromotion(ctx context.Context, p *Promotion) error
	UpdatePromotion(ctx context.Context, p *Promotion) error
	GetPromotion(ctx context.Context, id int64) (*Promotion, error)

	// ReplacePromotionGames deja exactamente gameIDs apuntando a la promoción.
	ReplacePromotionGames(ctx context.Context, promotionID int64, gameIDs []int64) error
	GameIDsByPromotion(ctx context.Context, promotionID int64) ([]int64, error)
}

// CatalogSource es la vista de solo lectura que usa la reconciliación.
type CatalogSource interface {
	CountGames(ctx context.Context) (int, error)
	CountPromotions(ctx context.Context) (int, error)
	ListGameSnapshots(ctx context.Context) ([]GameSnapshot, error)
	ListPromotionAssignments(ctx context.Context) ([]PromotionAssignment, error)
}

// GameProjectionStore guarda GameDocument por id natural.
type GameProjectionStore interface {
	// Upsert reemplaza el documento entero; created indica si no existía.
	Upsert(ctx context.Context, doc GameDocument) (created bool, err error)
	Get(ctx context.Context, id int64) (GameDocument, error)
	List(ctx context.Context) ([]GameDocument, error)
	FindByPromotion(ctx context.Context, promotionID int64) ([]GameDocument, error)
	Count(ctx context.Context) (int, error)
}

type PromotionProjectionStore interface {
	Upsert(ctx context.Context, doc PromotionDocument) (created bool, err error)
	Get(ctx context.Context, id int64) (PromotionDocument, error)
	List(ctx context.Context) ([]PromotionDocument, error)
	Count(ctx context.Context) (int, error)
}

// SearchIndex escribe y consulta el índice de texto. Index sobrescribe por id.
type SearchIndex interface {
	EnsureIndex(ctx context.Context) error
	Index(ctx context.Context, doc SearchDocument) error
	Get(ctx context.Context, id int64) (SearchDocument, error)
	Count(ctx context.Context) (int, error)
	Search(ctx context.Context, text string, limit int) ([]SearchDocument, error)
}

// EventStore es el registro de auditoría, solo de anexado.
type EventStore interface {
	Append(ctx context.Context, fact DomainFact) error
	ReadStream(ctx context.Context, stream string) ([]DomainFact, error)
}
