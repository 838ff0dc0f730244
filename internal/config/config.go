package config

import (
	"errors"
	"io/fs"
	"log"
	"net"

	"carrito/internal/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the server configuration, read from the environment.
type Config struct {
	Port           string
	ServerIP       string
	DBDriver       string
	DatabaseURL    string
	UploadDir      string
	UploadMaxBytes int64
	ImageStore     string
	Minio          storage.MinioConfig
	RabbitMQURL    string
}

// Addr is the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.ServerIP, c.Port)
}

// Load reads the configuration from environment variables, after loading a
// .env file when one exists.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("[config] ignoring .env: %v", err)
	}

	v := viper.New()
	v.SetDefault("PORT", "3001")
	v.SetDefault("SERVER_IP", "0.0.0.0")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DATABASE_URL", "host=127.0.0.1 user=postgres password=postgres dbname=carrito port=5432 sslmode=disable")
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("UPLOAD_MAX_BYTES", 5<<20)
	v.SetDefault("IMAGE_STORE", "local")
	v.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	v.SetDefault("MINIO_BUCKET", "productos")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("RABBITMQ_URL", "")
	v.AutomaticEnv()

	cfg := Config{
		Port:           v.GetString("PORT"),
		ServerIP:       v.GetString("SERVER_IP"),
		DBDriver:       v.GetString("DB_DRIVER"),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		UploadDir:      v.GetString("UPLOAD_DIR"),
		UploadMaxBytes: v.GetInt64("UPLOAD_MAX_BYTES"),
		ImageStore:     v.GetString("IMAGE_STORE"),
		Minio: storage.MinioConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			PublicURL: v.GetString("MINIO_PUBLIC_URL"),
		},
		RabbitMQURL: v.GetString("RABBITMQ_URL"),
	}
	log.Printf("[config] listen=%s db_driver=%s image_store=%s events=%t",
		cfg.Addr(), cfg.DBDriver, cfg.ImageStore, cfg.RabbitMQURL != "")
	return cfg
}
