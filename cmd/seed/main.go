// seed imports the legacy portfolio into Postgres and the blob store. Run via ./scripts/seed.sh.
// Idempotent: projects are upserted by slug and images are only imported for projects that have none.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"go.uber.org/zap"

	"adhoc-admin/backend/internal/blob"
	"adhoc-admin/backend/internal/config"
	"adhoc-admin/backend/internal/db"
	"adhoc-admin/backend/internal/logger"
	"adhoc-admin/backend/internal/project/importer"
	projectrepo "adhoc-admin/backend/internal/project/repository"
)

func main() {
	jsonPath := flag.String("projects", "src/data/projects.json", "Path to the projects.json list")
	imagesDir := flag.String("images", "public/projects", "Directory holding one image folder per project")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	if !cfg.BlobConfigured() {
		log.Fatal("MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY and MINIO_BUCKET must be set")
	}

	zl, err := logger.New(logger.Config{Level: cfg.LogLevel, Dev: true})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	raw, err := os.ReadFile(*jsonPath)
	if err != nil {
		zl.Fatal("read projects", zap.Error(err))
	}
	var items []importer.Item
	if err := json.Unmarshal(raw, &items); err != nil {
		zl.Fatal("projects.json must be an array", zap.Error(err))
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		zl.Fatal("db", zap.Error(err))
	}
	defer conn.Close()

	ctx := context.Background()
	blobs, err := blob.NewS3Store(ctx, blob.S3Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		Region:    cfg.MinioRegion,
	})
	if err != nil {
		zl.Fatal("blob store", zap.Error(err))
	}

	im := importer.New(projectrepo.NewPostgresRepository(conn), blobs, zl)
	res, err := im.Import(ctx, items, os.DirFS(*imagesDir))
	if err != nil {
		zl.Fatal("seed failed", zap.Error(err))
	}
	zl.Info("seed completed",
		zap.Int("projects", res.Projects),
		zap.Int("images", res.Images),
		zap.Int("skipped", res.Skipped))
}
