package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/catalogmatch/internal/types"
)

// snapshotFile is the on-disk shape of a catalog snapshot: the YAML
// sibling of the SQL-backed production catalog (§6.4), used for local
// runs and tests where no RDBMS is configured.
type snapshotFile struct {
	Generation uint64 `yaml:"generation"`
	Domains    []struct {
		ID       string   `yaml:"id"`
		Name     string   `yaml:"name"`
		Keywords []string `yaml:"keywords"`
		Chief    string   `yaml:"chief"`
	} `yaml:"domains"`
	Owners []struct {
		ID           string  `yaml:"id"`
		Name         string  `yaml:"name"`
		Email        string  `yaml:"email"`
		DomainID     string  `yaml:"domain_id"`
		ApprovalRate float64 `yaml:"approval_rate"`
		TablesCount  int     `yaml:"tables_count"`
	} `yaml:"owners"`
	Tables []struct {
		ID              string   `yaml:"id"`
		Name            string   `yaml:"name"`
		DisplayName     string   `yaml:"display_name"`
		Summary         string   `yaml:"summary"`
		DomainID        string   `yaml:"domain_id"`
		OwnerID         string   `yaml:"owner_id"`
		Keywords        []string `yaml:"keywords"`
		Granularity     string   `yaml:"granularity"`
		MainEntities    []string `yaml:"main_entities"`
		DataLayer       string   `yaml:"data_layer"`
		IsGoldenSource  bool     `yaml:"is_golden_source"`
		IsVisaoCliente  bool     `yaml:"is_visao_cliente"`
		UpdateFrequency string   `yaml:"update_frequency"`
		InferredProduct string   `yaml:"inferred_product"`
	} `yaml:"tables"`
}

func keywordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// LoadSnapshot reads a YAML catalog snapshot from path and builds a
// validated types.Catalog (spec §3 generation snapshot). An empty path
// returns an empty, valid, generation-0 catalog.
func LoadSnapshot(path string) (*types.Catalog, error) {
	if path == "" {
		return types.NewCatalog(0, nil, nil, nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: reading snapshot %s: %w", path, err)
	}

	var raw snapshotFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("catalog: parsing snapshot %s: %w", path, err)
	}

	domains := make([]*types.DomainInfo, 0, len(raw.Domains))
	for _, d := range raw.Domains {
		domains = append(domains, &types.DomainInfo{
			ID:       d.ID,
			Name:     d.Name,
			Keywords: keywordSet(d.Keywords),
			Chief:    d.Chief,
		})
	}

	owners := make([]*types.OwnerInfo, 0, len(raw.Owners))
	for _, o := range raw.Owners {
		owners = append(owners, &types.OwnerInfo{
			ID:           o.ID,
			Name:         o.Name,
			Email:        o.Email,
			DomainID:     o.DomainID,
			ApprovalRate: o.ApprovalRate,
			TablesCount:  o.TablesCount,
		})
	}

	tables := make([]*types.TableInfo, 0, len(raw.Tables))
	for _, t := range raw.Tables {
		tables = append(tables, &types.TableInfo{
			ID:              t.ID,
			Name:            t.Name,
			DisplayName:     t.DisplayName,
			Summary:         t.Summary,
			DomainID:        t.DomainID,
			OwnerID:         t.OwnerID,
			Keywords:        keywordSet(t.Keywords),
			Granularity:     t.Granularity,
			MainEntities:    t.MainEntities,
			DataLayer:       types.DataLayer(t.DataLayer),
			IsGoldenSource:  t.IsGoldenSource,
			IsVisaoCliente:  t.IsVisaoCliente,
			UpdateFrequency: types.UpdateFrequency(t.UpdateFrequency),
			InferredProduct: t.InferredProduct,
		})
	}

	return types.NewCatalog(raw.Generation, domains, owners, tables)
}
