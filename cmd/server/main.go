package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"insightpilot/backend/internal/auth"
	"insightpilot/backend/internal/config"
	"insightpilot/backend/internal/customers"
	"insightpilot/backend/internal/demo"
	"insightpilot/backend/internal/handlers"
	"insightpilot/backend/internal/ingest"
	"insightpilot/backend/internal/store"
	"insightpilot/backend/internal/suggest"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	gin.SetMode(cfg.Server.Mode)

	// init DB
	db, err := store.Open(cfg.Database)
	if err != nil {
		log.Fatalf("failed to init db: %v", err)
	}
	s := store.New(db, cfg.Import.BatchSize)
	defer s.Close()

	gen, err := suggest.New(cfg.Suggest)
	if err != nil {
		log.Fatalf("failed to init suggestion provider: %v", err)
	}
	log.Printf("database driver %s, suggestion provider %s, auth enabled %t", cfg.Database.Driver, cfg.Suggest.Provider, cfg.Auth.Enabled)

	h := handlers.New(cfg, s,
		ingest.NewImporter(s, time.Now),
		customers.NewService(s, gen, time.Now, cfg.Query),
		auth.NewService(s, cfg.Auth, time.Now),
		demo.NewLoader(s, time.Now, cfg.Demo.Size, cfg.Demo.Seed),
	)

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// register handlers
	h.RegisterRoutes(r)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
