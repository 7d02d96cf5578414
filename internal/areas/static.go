package areas

import (
	"context"
	"fmt"
	"os"

	"satinel-backend/internal/core/types"

	"gopkg.in/yaml.v2"
)

type StaticRepository struct {
	areas map[string]Area
	order []string
}

var _ Repository = (*StaticRepository)(nil)

func NewStaticRepository(areas []Area) (*StaticRepository, error) {
	repo := &StaticRepository{areas: make(map[string]Area, len(areas))}
	for _, a := range areas {
		if err := a.validate(); err != nil {
			return nil, err
		}
		if _, ok := repo.areas[a.Id]; ok {
			return nil, fmt.Errorf("duplicate area id %s", a.Id)
		}
		repo.areas[a.Id] = a.withDefaults()
		repo.order = append(repo.order, a.Id)
	}
	return repo, nil
}

func (r *StaticRepository) Get(ctx context.Context, id string) (Area, error) {
	a, ok := r.areas[id]
	if !ok {
		return Area{}, fmt.Errorf("%w: unknown area '%s'", types.ErrAreaNotFound, id)
	}
	return a, nil
}

func (r *StaticRepository) List(ctx context.Context) ([]Area, error) {
	out := make([]Area, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.areas[id])
	}
	return out, nil
}

type areaEntry struct {
	Id          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	BBox        []float64 `yaml:"bbox"`
	Center      *Point    `yaml:"center"`
	Description string    `yaml:"description"`
}

type areasFile struct {
	Areas []areaEntry `yaml:"areas"`
}

// LoadYAML reads a registry file of the form
//
//	areas:
//	  - id: AREA_1
//	    name: Sample
//	    bbox: [0, 0, 1, 1]
func LoadYAML(path string) (*StaticRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading areas file: %w", err)
	}

	var file areasFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error parsing areas file %s: %w", path, err)
	}

	areas := make([]Area, 0, len(file.Areas))
	for _, entry := range file.Areas {
		if len(entry.BBox) != 4 {
			return nil, fmt.Errorf("area %s: bbox must have 4 values, got %d", entry.Id, len(entry.BBox))
		}
		area := Area{
			Id:          entry.Id,
			Name:        entry.Name,
			BBox:        BBox{entry.BBox[0], entry.BBox[1], entry.BBox[2], entry.BBox[3]},
			Description: entry.Description,
		}
		if entry.Center != nil {
			area.Center = *entry.Center
		}
		areas = append(areas, area)
	}

	return NewStaticRepository(areas)
}
