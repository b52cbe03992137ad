package configuration

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type (
	Properties struct {
		LogLevel string `env:"LOG_LEVEL" envDefault:"DEBUG"`
		EnvFile  string `env:"ENV_FILE" envDefault:".env"`

		Auth    AuthProperties       `envPrefix:"AUTH_"`
		S3      S3Properties         `envPrefix:"S3_"`
		Server  HttpServerProperties `envPrefix:"HTTP_"`
		Store   StoreProperties      `envPrefix:"STORE_"`
		Session SessionProperties    `envPrefix:"SESSION_"`
		Image   ImageProperties      `envPrefix:"IMAGE_"`
	}

	AuthProperties struct {
		// Mode selects the credential verifier: static, bcrypt or oidc.
		Mode         string        `env:"MODE" envDefault:"static"`
		Username     string        `env:"USERNAME" envDefault:"admin"`
		Password     string        `env:"PASSWORD" envDefault:"P@ssw0rd"`
		PasswordHash string        `env:"PASSWORD_HASH"`
		Host         string        `env:"HOST" envDefault:"https://gitlab.my.com"`
		ID           string        `env:"ID"`
		Secret       string        `env:"SECRET"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	}

	HttpServerProperties struct {
		Name         string        `env:"NAME" envDefault:"labeladmin"`
		Brand        string        `env:"BRAND" envDefault:"BADINVSTMENT"`
		Port         string        `env:"PORT" envDefault:"8088"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
		AllowOrigins []string      `env:"ALLOW_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
		Pprof        bool          `env:"PPROF" envDefault:"false"`
		Release      bool          `env:"RELEASE" envDefault:"false"`
	}

	StoreProperties struct {
		// Driver is one of memory, sqlite, postgres or firestore.
		Driver    string `env:"DRIVER" envDefault:"sqlite"`
		DSN       string `env:"DSN" envDefault:"file:labeladmin.db?_pragma=busy_timeout(5000)"`
		ProjectID string `env:"PROJECT_ID"`
	}

	SessionProperties struct {
		// Driver is memory or redis.
		Driver        string `env:"DRIVER" envDefault:"memory"`
		RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
		RedisPassword string `env:"REDIS_PASSWORD"`
		RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
		CookieName    string `env:"COOKIE" envDefault:"labeladmin_client"`
	}

	S3Properties struct {
		Enabled   bool          `env:"ENABLED" envDefault:"false"`
		Host      string        `env:"HOST" envDefault:"s3.minio.com"`
		AccessKey string        `env:"ACCESS_KEY"`
		SecretKey string        `env:"SECRET_KEY"`
		Bucket    string        `env:"BUCKET" envDefault:"exports"`
		UseSSL    bool          `env:"USE_SSL" envDefault:"true"`
		URLExpiry time.Duration `env:"URL_EXPIRY" envDefault:"24h"`
	}

	ImageProperties struct {
		MaxSourceBytes  int64 `env:"MAX_SOURCE_BYTES" envDefault:"5242880"`
		MaxEdge         int   `env:"MAX_EDGE" envDefault:"800"`
		MaxPayloadChars int   `env:"MAX_PAYLOAD_CHARS" envDefault:"800000"`
	}
)

// ReadProperties loads an optional dotenv file and then parses the environment.
// Variables already present in the environment win over the file.
func ReadProperties() (*Properties, error) {
	config := &Properties{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("read config error: %w", err)
	}
	if config.EnvFile == "" {
		return config, nil
	}
	if err := godotenv.Load(config.EnvFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return config, nil
		}
		return nil, fmt.Errorf("load %s: %w", config.EnvFile, err)
	}
	config = &Properties{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("read config error: %w", err)
	}
	return config, nil
}
