package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/arnavshah/covers-scheduler-api/pkg/config"
	"github.com/arnavshah/covers-scheduler-api/pkg/logging"
	"github.com/arnavshah/covers-scheduler-api/pkg/server"
	"github.com/gin-gonic/gin"
)

var app *server.App

func init() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}
	logger, err := logging.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("could not build logger: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	app, err = server.New(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
}

// Handler is the entry point for Vercel Go Runtime
func Handler(w http.ResponseWriter, r *http.Request) {
	app.Router.ServeHTTP(w, r)
}
