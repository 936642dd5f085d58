package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"washly/internal/config"
	"washly/internal/infra"
	"washly/internal/model"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// catalogFile is the seed format:
//
//	{"services": [{"name": "Lavado por kg", "unit": "kg", "unit_price": "6.50"}],
//	 "clients":  [{"name": "Ana Torres", "phone": "999888777"}]}
type catalogFile struct {
	Services []struct {
		Name      string          `json:"name"`
		Unit      string          `json:"unit"`
		UnitPrice decimal.Decimal `json:"unit_price"`
	} `json:"services"`
	Clients []struct {
		Name  string  `json:"name"`
		Phone *string `json:"phone"`
		Email *string `json:"email"`
	} `json:"clients"`
}

func readCatalogFile(path string) (*catalogFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cf catalogFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	for i, s := range cf.Services {
		if strings.TrimSpace(s.Name) == "" {
			return nil, fmt.Errorf("service #%d: name is required", i+1)
		}
		if s.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("service %q: negative unit_price", s.Name)
		}
	}
	for i, c := range cf.Clients {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("client #%d: name is required", i+1)
		}
	}
	return &cf, nil
}

type seedCatalogCmd struct {
	file string
}

func (*seedCatalogCmd) Name() string     { return "seedcatalog" }
func (*seedCatalogCmd) Synopsis() string { return "loads services and clients from a JSON file" }
func (*seedCatalogCmd) Usage() string {
	return `seedcatalog -file <catalog.json>

Services are upserted by name (price and unit are refreshed). Clients are
always inserted.
`
}
func (c *seedCatalogCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "file", "", "Path to the catalog JSON file.")
}

func (c *seedCatalogCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.file == "" {
		fmt.Fprintln(os.Stderr, "Error: -file is required.")
		return subcommands.ExitUsageError
	}
	cf, err := readCatalogFile(c.file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return subcommands.ExitFailure
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to postgres: %v\n", err)
		return subcommands.ExitFailure
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, s := range cf.Services {
			unit := s.Unit
			if unit == "" {
				unit = "unidad"
			}
			row := model.CatalogService{Name: strings.TrimSpace(s.Name), Unit: unit, UnitPrice: s.UnitPrice, Active: true}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{"unit", "unit_price", "active", "updated_at"}),
			}).Create(&row).Error; err != nil {
				return fmt.Errorf("service %q: %w", s.Name, err)
			}
		}
		for _, cl := range cf.Clients {
			row := model.Client{Name: strings.TrimSpace(cl.Name), Phone: cl.Phone, Email: cl.Email, Active: true}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("client %q: %w", cl.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error seeding catalog: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Seeded %d services and %d clients.\n", len(cf.Services), len(cf.Clients))
	return subcommands.ExitSuccess
}
