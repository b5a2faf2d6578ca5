package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/davicafu/catalogsync/internal/catalog/domain"
	"github.com/davicafu/catalogsync/internal/shared/infra/platform/db/sqldb"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const pgUniqueViolation = "23505"

// CatalogRepo es el almacén primario sobre PostgreSQL o SQLite. Cada consulta
// usa la transacción del contexto si existe.
type CatalogRepo struct {
	db      *sql.DB
	dialect sqldb.Dialect
}

func NewCatalogRepo(db *sql.DB, dialect sqldb.Dialect) *CatalogRepo {
	return &CatalogRepo{db: db, dialect: dialect}
}

func (r *CatalogRepo) exec(ctx context.Context) sqldb.DBTX {
	return sqldb.Executor(ctx, r.db)
}

func (r *CatalogRepo) CreateGame(ctx context.Context, g *domain.Game) error {
	err := r.exec(ctx).QueryRowContext(ctx, r.dialect.Rebind(
		`INSERT INTO games (name, genre, price, currency, promotion_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`),
		g.Name, g.Genre, g.Price.StringFixed(2), g.Currency, nullID(g.PromotionID), g.CreatedAt.UTC(), g.UpdatedAt.UTC(),
	).Scan(&g.ID)
	if err != nil {
		return translateWriteErr("insert game", err)
	}
	return nil
}

func (r *CatalogRepo) UpdateGame(ctx context.Context, g *domain.Game) error {
	res, err := r.exec(ctx).ExecContext(ctx, r.dialect.Rebind(
		`UPDATE games SET name = ?, genre = ?, price = ?, currency = ?, promotion_id = ?, updated_at = ?
		 WHERE id = ?`),
		g.Name, g.Genre, g.Price.StringFixed(2), g.Currency, nullID(g.PromotionID), g.UpdatedAt.UTC(), g.ID,
	)
	if err != nil {
		return translateWriteErr("update game", err)
	}
	return requireAffected(res, fmt.Errorf("%w: %d", domain.ErrGameNotFound, g.ID))
}

func (r *CatalogRepo) GetGame(ctx context.Context, id int64) (*domain.Game, error) {
	row := r.exec(ctx).QueryRowContext(ctx, r.dialect.Rebind(
		`SELECT id, name, genre, price, currency, promotion_id, created_at, updated_at
		 FROM games WHERE id = ?`), id)

	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", domain.ErrGameNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return g, nil
}

func (r *CatalogRepo) CreatePromotion(ctx context.Context, p *domain.Promotion) error {
	err := r.exec(ctx).QueryRowContext(ctx, r.dialect.Rebind(
		`INSERT INTO promotions (discount_percent, starts_at, ends_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING id`),
		p.DiscountPercent.StringFixed(2), p.StartsAt.UTC(), p.EndsAt.UTC(), p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert promotion: %w", err)
	}
	return nil
}

func (r *CatalogRepo) UpdatePromotion(ctx context.Context, p *domain.Promotion) error {
	res, err := r.exec(ctx).ExecContext(ctx, r.dialect.Rebind(
		`UPDATE promotions SET discount_percent = ?, starts_at = ?, ends_at = ?, updated_at = ?
		 WHERE id = ?`),
		p.DiscountPercent.StringFixed(2), p.StartsAt.UTC(), p.EndsAt.UTC(), p.UpdatedAt.UTC(), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update promotion: %w", err)
	}
	return requireAffected(res, fmt.Errorf("%w: %d", domain.ErrPromotionNotFound, p.ID))
}

func (r *CatalogRepo) GetPromotion(ctx context.Context, id int64) (*domain.Promotion, error) {
	var p domain.Promotion
	err := r.exec(ctx).QueryRowContext(ctx, r.dialect.Rebind(
		`SELECT id, discount_percent, starts_at, ends_at, created_at, updated_at
		 FROM promotions WHERE id = ?`), id,
	).Scan(&p.ID, &p.DiscountPercent, &p.StartsAt, &p.EndsAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", domain.ErrPromotionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	normalizePromotion(&p)
	return &p, nil
}

// ReplacePromotionGames suelta los juegos que ya no pertenecen a la promoción y
// engancha los nuevos. Un id inexistente devuelve ErrGameNotFound.
func (r *CatalogRepo) ReplacePromotionGames(ctx context.Context, promotionID int64, gameIDs []int64) error {
	ex := r.exec(ctx)

	if _, err := ex.ExecContext(ctx, r.dialect.Rebind(
		`UPDATE games SET promotion_id = NULL WHERE promotion_id = ?`), promotionID,
	); err != nil {
		return fmt.Errorf("detach games from promotion %d: %w", promotionID, err)
	}

	for _, id := range gameIDs {
		res, err := ex.ExecContext(ctx, r.dialect.Rebind(
			`UPDATE games SET promotion_id = ? WHERE id = ?`), promotionID, id)
		if err != nil {
			return fmt.Errorf("attach game %d to promotion %d: %w", id, promotionID, err)
		}
		if err := requireAffected(res, fmt.Errorf("%w: %d", domain.ErrGameNotFound, id)); err != nil {
			return err
		}
	}
	return nil
}

func (r *CatalogRepo) GameIDsByPromotion(ctx context.Context, promotionID int64) ([]int64, error) {
	rows, err := r.exec(ctx).QueryContext(ctx, r.dialect.Rebind(
		`SELECT id FROM games WHERE promotion_id = ? ORDER BY id`), promotionID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- Lecturas para la reconciliación ---

func (r *CatalogRepo) CountGames(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM games`)
}

func (r *CatalogRepo) CountPromotions(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM promotions`)
}

func (r *CatalogRepo) count(ctx context.Context, query string) (int, error) {
	var n int
	if err := r.exec(ctx).QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// ListGameSnapshots devuelve cada juego con la instantánea de su promoción, ordenados por id.
func (r *CatalogRepo) ListGameSnapshots(ctx context.Context) ([]domain.GameSnapshot, error) {
	rows, err := r.exec(ctx).QueryContext(ctx,
		`SELECT g.id, g.name, g.genre, g.price, g.currency, g.promotion_id,
		        p.discount_percent, p.starts_at, p.ends_at
		 FROM games g
		 LEFT JOIN promotions p ON p.id = g.promotion_id
		 ORDER BY g.id`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []domain.GameSnapshot
	for rows.Next() {
		var (
			s        domain.GameSnapshot
			promoID  sql.NullInt64
			discount decimal.NullDecimal
			startsAt sql.NullTime
			endsAt   sql.NullTime
		)
		if err := rows.Scan(&s.GameID, &s.Name, &s.Genre, &s.Price, &s.Currency, &promoID,
			&discount, &startsAt, &endsAt); err != nil {
			return nil, err
		}

		if promoID.Valid {
			id := promoID.Int64
			s.PromotionID = &id
			if discount.Valid && startsAt.Valid && endsAt.Valid {
				s.Promotion = &domain.PromotionSnapshot{
					PromotionID:     id,
					DiscountPercent: discount.Decimal,
					StartsAt:        startsAt.Time.UTC(),
					EndsAt:          endsAt.Time.UTC(),
				}
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListPromotionAssignments devuelve cada promoción con su conjunto de juegos.
func (r *CatalogRepo) ListPromotionAssignments(ctx context.Context) ([]domain.PromotionAssignment, error) {
	ex := r.exec(ctx)

	rows, err := ex.QueryContext(ctx,
		`SELECT id, discount_percent, starts_at, ends_at FROM promotions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	var out []domain.PromotionAssignment
	index := make(map[int64]int)
	for rows.Next() {
		var a domain.PromotionAssignment
		if err := rows.Scan(&a.PromotionID, &a.DiscountPercent, &a.StartsAt, &a.EndsAt); err != nil {
			rows.Close()
			return nil, err
		}
		a.StartsAt = a.StartsAt.UTC()
		a.EndsAt = a.EndsAt.UTC()
		a.GameIDs = []int64{}
		index[a.PromotionID] = len(out)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// segunda consulta con el cursor anterior ya cerrado (SQLite usa una sola conexión)
	links, err := ex.QueryContext(ctx,
		`SELECT id, promotion_id FROM games WHERE promotion_id IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer links.Close()

	for links.Next() {
		var gameID, promoID int64
		if err := links.Scan(&gameID, &promoID); err != nil {
			return nil, err
		}
		if i, ok := index[promoID]; ok {
			out[i].GameIDs = append(out[i].GameIDs, gameID)
		}
	}
	return out, links.Err()
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*domain.Game, error) {
	var (
		g       domain.Game
		promoID sql.NullInt64
	)
	if err := row.Scan(&g.ID, &g.Name, &g.Genre, &g.Price, &g.Currency, &promoID, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	if promoID.Valid {
		id := promoID.Int64
		g.PromotionID = &id
	}
	g.CreatedAt = g.CreatedAt.UTC()
	g.UpdatedAt = g.UpdatedAt.UTC()
	return &g, nil
}

func normalizePromotion(p *domain.Promotion) {
	p.StartsAt = p.StartsAt.UTC()
	p.EndsAt = p.EndsAt.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
}

func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// translateWriteErr traduce la violación del índice único de nombre.
func translateWriteErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%s: %w", op, domain.ErrDuplicateGame)
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%s: %w", op, domain.ErrDuplicateGame)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Verificación en tiempo de compilación.
var (
	_ domain.CatalogRepository = (*CatalogRepo)(nil)
	_ domain.CatalogSource     = (*CatalogRepo)(nil)
)
