package areas

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"satinel-backend/internal/database"

	"gorm.io/gorm"
)

// DBRepository serves areas from the areas table. Rows are loaded once at
// construction; the registry does not change while the process runs.
type DBRepository struct {
	static *StaticRepository
}

var _ Repository = (*DBRepository)(nil)

func NewDBRepository(ctx context.Context, db *gorm.DB) (*DBRepository, error) {
	var rows []database.Area
	if err := db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error loading areas: %w", err)
	}

	list := make([]Area, 0, len(rows))
	for _, row := range rows {
		list = append(list, fromRow(row))
	}

	static, err := NewStaticRepository(list)
	if err != nil {
		return nil, fmt.Errorf("invalid area in database: %w", err)
	}

	return &DBRepository{static: static}, nil
}

func (r *DBRepository) Get(ctx context.Context, id string) (Area, error) {
	return r.static.Get(ctx, id)
}

func (r *DBRepository) List(ctx context.Context) ([]Area, error) {
	return r.static.List(ctx)
}

// SeedAreas inserts any of the given areas missing from the table.
func SeedAreas(ctx context.Context, db *gorm.DB, list []Area) error {
	for _, a := range list {
		row := toRow(a.withDefaults())

		var existing database.Area
		err := db.WithContext(ctx).First(&existing, "id = ?", row.Id).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("error checking area %s: %w", a.Id, err)
		}

		if err := db.WithContext(ctx).Create(&row).Error; err != nil {
			return fmt.Errorf("error creating area %s: %w", a.Id, err)
		}
		slog.Info("seeded area", "area_id", a.Id)
	}
	return nil
}

func fromRow(row database.Area) Area {
	a := Area{
		Id:          row.Id,
		Name:        row.Name,
		BBox:        BBox{row.MinLon, row.MinLat, row.MaxLon, row.MaxLat},
		Description: row.Description,
	}
	if row.CenterLat.Valid && row.CenterLon.Valid {
		a.Center = Point{Lat: row.CenterLat.Float64, Lon: row.CenterLon.Float64}
	}
	return a
}

func toRow(a Area) database.Area {
	return database.Area{
		Id:          a.Id,
		Name:        a.Name,
		MinLon:      a.BBox[0],
		MinLat:      a.BBox[1],
		MaxLon:      a.BBox[2],
		MaxLat:      a.BBox[3],
		CenterLat:   sql.NullFloat64{Float64: a.Center.Lat, Valid: true},
		CenterLon:   sql.NullFloat64{Float64: a.Center.Lon, Valid: true},
		Description: a.Description,
	}
}

