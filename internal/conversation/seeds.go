package conversation

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
)

//go:embed seeds/*.yaml
var seedFS embed.FS

// LoadSeedGraphs parses every embedded seed flow. Seeds are authored in YAML
// for readability and stored as JSON like any other graph.
func LoadSeedGraphs() (map[string]Graph, error) {
	entries, err := fs.Glob(seedFS, "seeds/*.yaml")
	if err != nil {
		return nil, err
	}

	out := make(map[string]Graph, len(entries))
	for _, name := range entries {
		data, err := seedFS.ReadFile(name)
		if err != nil {
			return nil, err
		}
		var g Graph
		if err := yaml.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("seed %s is not valid YAML: %w", name, err)
		}
		if err := g.Validate(); err != nil {
			return nil, fmt.Errorf("seed %s: %w", name, err)
		}
		out[name] = g
	}
	return out, nil
}

// EnsurePublishedMap returns the campaign's published map, seeding the
// default flow as revision 1 when the campaign has none.
func EnsurePublishedMap(ctx context.Context, repo *repository.Repository, campaignID uuid.UUID) (domain.ConversationMap, error) {
	cm, err := repo.GetPublishedMap(ctx, campaignID)
	if err == nil {
		return cm, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.ConversationMap{}, err
	}

	graphs, err := LoadSeedGraphs()
	if err != nil {
		return domain.ConversationMap{}, err
	}
	g, ok := graphs["seeds/cold_outreach.yaml"]
	if !ok {
		return domain.ConversationMap{}, fmt.Errorf("default seed flow is missing")
	}
	payload, err := json.Marshal(g)
	if err != nil {
		return domain.ConversationMap{}, err
	}
	return repo.InsertMap(ctx, campaignID, 1, domain.MapPublished, payload)
}
