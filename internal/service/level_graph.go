package service

import (
	"sort"

	"github.com/noah-isme/church-class-api/internal/models"
)

// levelGraph is an in-memory view of one class's levels and their
// prerequisite edges.
type levelGraph struct {
	levels map[string]models.Level
}

func newLevelGraph(levels []models.Level) *levelGraph {
	g := &levelGraph{levels: make(map[string]models.Level, len(levels))}
	for _, level := range levels {
		g.levels[level.ID] = level
	}
	return g
}

func (g *levelGraph) has(id string) bool {
	_, ok := g.levels[id]
	return ok
}

// nextOrder suggests max(order)+1, or 1 for an empty class.
func (g *levelGraph) nextOrder() int {
	max := 0
	for _, level := range g.levels {
		if level.OrderNumber > max {
			max = level.OrderNumber
		}
	}
	return max + 1
}

// orderHolder returns the level using order, ignoring excludeID.
func (g *levelGraph) orderHolder(order int, excludeID string) (models.Level, bool) {
	for id, level := range g.levels {
		if id != excludeID && level.OrderNumber == order {
			return level, true
		}
	}
	return models.Level{}, false
}

// createsCycle reports whether pointing levelID at prerequisiteID would close
// a loop. It walks the prerequisite chain upwards from prerequisiteID; a
// revisited node means the stored graph is already cyclic and is treated the same.
func (g *levelGraph) createsCycle(levelID, prerequisiteID string) bool {
	if prerequisiteID == "" {
		return false
	}
	if prerequisiteID == levelID {
		return true
	}
	seen := map[string]struct{}{}
	current := prerequisiteID
	for current != "" {
		if current == levelID {
			return true
		}
		if _, ok := seen[current]; ok {
			return true
		}
		seen[current] = struct{}{}
		level, ok := g.levels[current]
		if !ok || level.PrerequisiteLevelID == nil {
			return false
		}
		current = *level.PrerequisiteLevelID
	}
	return false
}

// dependents lists levels whose prerequisite is id.
func (g *levelGraph) dependents(id string) []models.Level {
	var result []models.Level
	for _, level := range g.levels {
		if level.PrerequisiteLevelID != nil && *level.PrerequisiteLevelID == id {
			result = append(result, level)
		}
	}
	sortLevels(result)
	return result
}

// ordered returns the levels by order number, oldest first on ties.
func (g *levelGraph) ordered() []models.Level {
	result := make([]models.Level, 0, len(g.levels))
	for _, level := range g.levels {
		result = append(result, level)
	}
	sortLevels(result)
	return result
}

func sortLevels(levels []models.Level) {
	sort.SliceStable(levels, func(i, j int) bool {
		if levels[i].OrderNumber != levels[j].OrderNumber {
			return levels[i].OrderNumber < levels[j].OrderNumber
		}
		if !levels[i].CreatedAt.Equal(levels[j].CreatedAt) {
			return levels[i].CreatedAt.Before(levels[j].CreatedAt)
		}
		return levels[i].ID < levels[j].ID
	})
}
