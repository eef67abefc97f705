//go:build ignore

package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"

	"github.com/aditya/go-carpool/internal/config"
	"github.com/aditya/go-carpool/internal/database"
	"github.com/aditya/go-carpool/internal/models"
	"github.com/aditya/go-carpool/internal/repository"
)

// Carrier ids start far above real chat ids so seeded rows are easy to spot.
const seedIDBase = 9_000_000_000

var (
	firstNames = []string{"Aziz", "Bekzod", "Dilshod", "Jasur", "Otabek", "Rustam", "Sardor", "Timur", "Ulugbek", "Zafar"}
	lastNames  = []string{"Karimov", "Rakhimov", "Yusupov", "Tursunov", "Aliev", "Saidov"}
	carModels  = []string{"Cobalt", "Gentra", "Nexia", "Spark", "Malibu", "Damas"}
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.DatabaseURL, cfg.DBMaxConnections, cfg.DBMaxIdleConnections, false)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	profileRepo := repository.NewProfileRepository(db.DB)

	// Five carriers per route, most of them approved and online
	log.Printf("Seeding carriers for %d routes...", len(cfg.Routes))
	seeded := 0
	for ri, route := range cfg.Routes {
		for i := 0; i < 5; i++ {
			p := &models.Profile{
				ID:             int64(seedIDBase + ri*100 + i),
				Role:           models.RoleCarrier,
				Name:           fmt.Sprintf("%s %s", firstNames[rand.Intn(len(firstNames))], lastNames[rand.Intn(len(lastNames))]),
				Phone:          fmt.Sprintf("+99890%07d", rand.Intn(10000000)),
				CarModel:       carModels[rand.Intn(len(carModels))],
				Route:          route.Key,
				Online:         i < 4,
				ApprovalStatus: models.ApprovalApproved,
			}
			if i == 4 {
				p.ApprovalStatus = models.ApprovalPending
			}
			if err := profileRepo.Save(ctx, p); err != nil {
				log.Printf("Failed to save carrier %d: %v", p.ID, err)
				continue
			}
			seeded++
		}
	}

	log.Printf("Seeded %d carriers", seeded)
	if len(cfg.Routes) > 0 {
		log.Println("Sample carrier ID:", seedIDBase)
	}
}
