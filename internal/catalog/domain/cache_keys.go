package domain

import "strconv"

// CacheKeys genera las claves jerárquicas de caché. Borrar por el prefijo
// GamesPrefix() invalida todas las claves de juegos.
type CacheKeys struct {
	root string
}

func NewCacheKeys(root string) CacheKeys {
	if root == "" {
		root = "app"
	}
	return CacheKeys{root: root}
}

func (k CacheKeys) GamesPrefix() string      { return k.root + ":games" }
func (k CacheKeys) AllGames() string         { return k.GamesPrefix() + ":all" }
func (k CacheKeys) Game(id int64) string     { return k.GamesPrefix() + ":id:" + strconv.FormatInt(id, 10) }
func (k CacheKeys) PromotionsPrefix() string { return k.root + ":promotions" }
func (k CacheKeys) AllPromotions() string    { return k.PromotionsPrefix() + ":all" }
func (k CacheKeys) Promotion(id int64) string {
	return k.PromotionsPrefix() + ":id:" + strconv.FormatInt(id, 10)
}
