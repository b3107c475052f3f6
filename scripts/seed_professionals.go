package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"agendo/internal/database"
	"agendo/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type professionalEntry struct {
	models.Professional `yaml:",inline"`
	Services            []models.Service      `yaml:"services"`
	WorkingHours        []models.WorkingHours `yaml:"working_hours"`
}

type seedFile struct {
	Professionals []professionalEntry `yaml:"professionals"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		seedPath = flag.String("professionals", "configs/professionals.yaml", "path to professionals.yaml")
		dbPath   = flag.String("db", "./data/agendo.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*seedPath)
	if err != nil {
		return fmt.Errorf("read professionals: %w", err)
	}
	var seed seedFile
	if err = yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse professionals: %w", err)
	}
	if len(seed.Professionals) == 0 {
		return fmt.Errorf("no professionals in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	services := 0
	for i := range seed.Professionals {
		p := &seed.Professionals[i]
		if p.ID == "" {
			continue
		}
		if err = db.UpsertProfessional(ctx, &p.Professional); err != nil {
			return fmt.Errorf("upsert %s: %w", p.ID, err)
		}
		for j := range p.Services {
			svc := &p.Services[j]
			svc.ProfessionalID = p.ID
			if err = svc.Validate(); err != nil {
				return fmt.Errorf("service for %s: %w", p.ID, err)
			}
			if err = db.UpsertService(ctx, svc); err != nil {
				return fmt.Errorf("upsert service %s: %w", svc.ID, err)
			}
			services++
		}
		if len(p.WorkingHours) > 0 {
			if err = db.ReplaceWorkingHours(ctx, p.ID, p.WorkingHours); err != nil {
				return fmt.Errorf("working hours for %s: %w", p.ID, err)
			}
		}
	}

	fmt.Printf("done: professionals=%d services=%d\n", len(seed.Professionals), services)
	return nil
}
