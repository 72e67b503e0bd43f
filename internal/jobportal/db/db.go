package db

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	dbmodels "github.com/gartstein/jobportal/internal/jobportal/db/models"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	// sqliteDriverName is go-sqlite3 with a REGEXP function registered.
	sqliteDriverName = "sqlite3_jobportal"

	regexCacheSize = 256
)

// regexCache holds the most recently used compiled REGEXP patterns.
var regexCache = mustRegexCache(regexCacheSize)

func mustRegexCache(size int) *lru.Cache[string, *regexp.Regexp] {
	c, err := lru.New[string, *regexp.Regexp](size)
	if err != nil {
		panic(err)
	}
	return c
}

func init() {
	sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("regexp", sqliteRegexp, true)
		},
	})
}

// sqliteRegexp backs "value REGEXP pattern". NULL values never match.
func sqliteRegexp(pattern string, value interface{}) (bool, error) {
	var s string
	switch v := value.(type) {
	case nil:
		return false, nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		s = fmt.Sprint(v)
	}
	if re, ok := regexCache.Get(pattern); ok {
		return re.MatchString(s), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, err
	}
	regexCache.Add(pattern, re)
	return re.MatchString(s), nil
}

type Repository struct {
	db *gorm.DB
}

type Config struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	// SQLitePath is used when Driver is "sqlite"; ":memory:" is allowed.
	SQLitePath string
	LogQueries bool
}

// Dialector builds the gorm dialector for the configured driver.
func (c *Config) Dialector() (gorm.Dialector, error) {
	switch c.Driver {
	case "", DriverPostgres:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
		return postgres.Open(dsn), nil
	case DriverSQLite:
		path := c.SQLitePath
		if path == "" {
			path = ":memory:"
		}
		return &sqlite.Dialector{DriverName: sqliteDriverName, DSN: path}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

// NewRepository connects to the configured database and migrates the schema.
func NewRepository(cfg *Config) (*Repository, error) {
	dialector, err := cfg.Dialector()
	if err != nil {
		return nil, err
	}

	gormCfg := &gorm.Config{TranslateError: true}
	if !cfg.LogQueries {
		gormCfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if db.Dialector.Name() == DriverSQLite {
		// one connection keeps ":memory:" databases shared and serialises writers
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	repo := &Repository{db: db}
	if err := repo.Migrate(context.Background()); err != nil {
		return nil, err
	}
	return repo, nil
}

// Migrate creates or updates the schema, including the unique constraints
// the create-or-fetch paths rely on.
func (r *Repository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(dbmodels.All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (r *Repository) isPostgres() bool {
	return r.db.Dialector.Name() == DriverPostgres
}

// Exec runs a raw statement, e.g. to reset tables between integration runs.
func (r *Repository) Exec(ctx context.Context, sql string, args ...interface{}) error {
	return r.db.WithContext(ctx).Exec(sql, args...).Error
}

// Ping checks that the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

func (r *Repository) Close() error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
