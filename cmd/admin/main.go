package main

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"eventFlow/internal/auth"
	"eventFlow/internal/config"
	"eventFlow/internal/content"
	"eventFlow/internal/database"
)

func main() {
	var (
		username      = flag.String("username", "", "初始主办方用户名（必填，除非只做模板播种）")
		seedTemplates = flag.Bool("seed-templates", false, "播种内置公开模板")
		dbHost        = flag.String("db-host", "", "数据库 Host（可选，默认读 DATABASE_HOST）")
		dbPort        = flag.Int("db-port", 0, "数据库 Port（可选，默认读 DATABASE_PORT）")
		dbName        = flag.String("db-name", "", "数据库名（可选，默认读 POSTGRES_DB）")
		dbUser        = flag.String("db-user", "", "数据库用户（可选，默认读 POSTGRES_USER）")
		dbPass        = flag.String("db-password", "", "数据库密码（可选，默认读 POSTGRES_PASSWORD）")
		sslMode       = flag.String("db-sslmode", "", "数据库 SSLMODE（可选，默认读 DATABASE_SSLMODE）")
	)
	flag.Parse()

	u := strings.TrimSpace(*username)
	if u == "" && !*seedTemplates {
		log.Fatal("missing required flag: --username")
	}

	dbCfg, err := loadDatabaseConfig(*dbHost, *dbPort, *dbName, *dbUser, *dbPass, *sslMode)
	if err != nil {
		log.Fatalf("load database config: %v", err)
	}

	db, err := database.InitDatabase(dbCfg)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}

	if err := db.AutoMigrate(database.AllModels()...); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}

	if *seedTemplates {
		n, err := seedPublicTemplates(db)
		if err != nil {
			log.Fatalf("seed templates: %v", err)
		}
		log.Printf("seeded %d public templates", n)
		if u == "" {
			return
		}
	}

	var existing database.User
	switch err := db.Where("username = ?", u).First(&existing).Error; {
	case err == nil:
		log.Fatalf("user %q already exists", u)
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		log.Fatalf("query user: %v", err)
	}

	password, err := generateRandomPassword(24)
	if err != nil {
		log.Fatalf("generate password: %v", err)
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	user := database.User{
		Username:           u,
		PasswordHash:       hashed,
		Whitelisted:        true,
		MustChangePassword: true,
	}
	if err := db.Create(&user).Error; err != nil {
		log.Fatalf("create user: %v", err)
	}

	fmt.Printf("已创建白名单主办方账号（首次登录需强制改密）：\n")
	fmt.Printf("用户名: %s\n", u)
	fmt.Printf("初始密码: %s\n", password)
	fmt.Printf("提示：请立即登录并修改密码（该密码仅显示一次）。\n")
}

// seedPublicTemplates 写入内置公开模板，按标题幂等。
func seedPublicTemplates(db *gorm.DB) (int, error) {
	seeds := []struct {
		title  string
		blocks []content.BlockType
	}{
		{"大会标准页", []content.BlockType{content.BlockHero, content.BlockAgenda, content.BlockSpeaker, content.BlockButton}},
		{"沙龙简约页", []content.BlockType{content.BlockHero, content.BlockText, content.BlockButton}},
		{"发布会页", []content.BlockType{content.BlockHero, content.BlockImage, content.BlockFAQ, content.BlockButton}},
	}

	created := 0
	for _, seed := range seeds {
		var count int64
		if err := db.Model(&database.Template{}).
			Where("title = ? AND is_public = ?", seed.title, true).
			Count(&count).Error; err != nil {
			return created, fmt.Errorf("query template %q: %w", seed.title, err)
		}
		if count > 0 {
			continue
		}

		doc := content.NewDocument(seed.title)
		for _, t := range seed.blocks {
			doc.Blocks = append(doc.Blocks, content.NewBlock(t))
		}
		doc.FormFields = []content.FormField{
			{ID: "name", Label: "姓名", Type: content.FieldText},
			{ID: "email", Label: "邮箱", Type: content.FieldEmail},
		}

		encoded, err := doc.Encode()
		if err != nil {
			return created, fmt.Errorf("encode template %q: %w", seed.title, err)
		}
		model := database.Template{
			Title:    seed.title,
			Content:  datatypes.JSON(encoded),
			IsPublic: true,
		}
		if err := db.Create(&model).Error; err != nil {
			return created, fmt.Errorf("create template %q: %w", seed.title, err)
		}
		created++
	}
	return created, nil
}

func loadDatabaseConfig(host string, port int, name, user, password, sslmode string) (config.DatabaseConfig, error) {
	if strings.TrimSpace(host) == "" {
		host = os.Getenv("DATABASE_HOST")
	}
	if port <= 0 {
		if env := strings.TrimSpace(os.Getenv("DATABASE_PORT")); env != "" {
			p, err := strconv.Atoi(env)
			if err != nil {
				return config.DatabaseConfig{}, fmt.Errorf("parse DATABASE_PORT: %w", err)
			}
			port = p
		}
	}
	if strings.TrimSpace(name) == "" {
		name = os.Getenv("POSTGRES_DB")
	}
	if strings.TrimSpace(name) == "" {
		name = os.Getenv("DB_NAME")
	}
	if strings.TrimSpace(user) == "" {
		user = os.Getenv("POSTGRES_USER")
	}
	if strings.TrimSpace(user) == "" {
		user = os.Getenv("DB_USER")
	}
	if strings.TrimSpace(password) == "" {
		password = os.Getenv("POSTGRES_PASSWORD")
	}
	if strings.TrimSpace(password) == "" {
		password = os.Getenv("DB_PASSWORD")
	}
	if strings.TrimSpace(sslmode) == "" {
		sslmode = os.Getenv("DATABASE_SSLMODE")
	}

	if strings.TrimSpace(host) == "" {
		host = "localhost"
	}
	if port <= 0 {
		port = 5432
	}
	if strings.TrimSpace(sslmode) == "" {
		sslmode = "disable"
	}
	if strings.TrimSpace(name) == "" {
		return config.DatabaseConfig{}, errors.New("database name is required (POSTGRES_DB)")
	}
	if strings.TrimSpace(user) == "" {
		return config.DatabaseConfig{}, errors.New("database user is required (POSTGRES_USER)")
	}
	if strings.TrimSpace(password) == "" {
		return config.DatabaseConfig{}, errors.New("database password is required (POSTGRES_PASSWORD)")
	}

	return config.DatabaseConfig{
		Host:     host,
		Port:     port,
		Name:     name,
		User:     user,
		Password: password,
		SSLMode:  sslmode,
	}, nil
}

func generateRandomPassword(bytesLen int) (string, error) {
	if bytesLen <= 0 {
		bytesLen = 24
	}
	buf := make([]byte, bytesLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
