package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/annel0/trigger-store/internal/config"
	"github.com/annel0/trigger-store/internal/storage"
)

func main() {
	var (
		configPath = flag.String("config", "", "путь к YAML конфигурации сервера")
		command    = flag.String("cmd", "export", "Command: export, import")
		folder     = flag.String("folder", "", "папка триггеров (по умолчанию location_folder из конфигурации)")
		file       = flag.String("file", "", "файл архива (.jsonl.zst)")
	)
	flag.Parse()

	if *file == "" {
		fmt.Println("❌ Не задан -file")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	if *folder == "" {
		*folder = cfg.Storage.LocationDir
	}

	dataDir := cfg.Storage.DataDir
	if cfg.Storage.Backend == string(storage.KindBadger) {
		dataDir = filepath.Join(dataDir, "badger")
	}
	factory, err := storage.NewFactory(storage.FactoryConfig{
		Kind:    storage.Kind(cfg.Storage.Backend),
		DataDir: dataDir,
		Redis: &storage.RedisConfig{
			Addr:      cfg.Storage.RedisAddr,
			Password:  cfg.Storage.RedisPassword,
			DB:        cfg.Storage.RedisDB,
			KeyPrefix: cfg.Storage.RedisPrefix,
		},
		MySQL: cfg.Storage.MySQLDSN,
		Mongo: &storage.MongoConfig{
			URI:      cfg.Storage.MongoURI,
			Database: cfg.Storage.MongoDatabase,
		},
	})
	if err != nil {
		log.Fatalf("❌ Ошибка конфигурации хранилища: %v", err)
	}
	defer factory.Close()

	backend, err := factory.Open(*folder)
	if err != nil {
		log.Fatalf("❌ Ошибка открытия папки %s: %v", *folder, err)
	}
	defer backend.Close()

	ctx := context.Background()

	switch *command {
	case "export":
		f, err := os.Create(*file)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		n, err := storage.ExportArchive(ctx, backend, *folder, f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			log.Fatalf("❌ Export failed: %v", err)
		}
		fmt.Printf("📦 %s: exported %d files to %s\n", *folder, n, *file)

	case "import":
		f, err := os.Open(*file)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		defer f.Close()
		header, n, err := storage.ImportArchive(ctx, f, backend)
		if err != nil {
			log.Fatalf("❌ Import failed after %d files: %v", n, err)
		}
		fmt.Printf("📦 %s: imported %d files (archive of %s, %s)\n", *folder, n, header.Folder, header.Created.Format("2006-01-02 15:04:05"))
		fmt.Println("💡 Запущенный сервер подхватит файлы после POST /api/reload")

	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: export, import")
		os.Exit(1)
	}
}
