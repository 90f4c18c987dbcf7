package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"brightfold/admin"
	"brightfold/analytics"
	"brightfold/blog"
	"brightfold/cache"
	"brightfold/chat"
	"brightfold/common"
	"brightfold/database"
	"brightfold/email"
	"brightfold/generator"
	"brightfold/live"
	"brightfold/site"
)

func main() {
	godotenv.Load()

	db := common.ConnectDb()
	if db == nil {
		log.Fatal("Failed to connect to database")
	}

	if err := database.RunMigrations(db); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}
	if err := database.SeedAdminUser(db); err != nil {
		log.Fatal("Failed to seed admin user:", err)
	}

	analyticsModule := analytics.NewAnalyticsModule(common.ConnectAnalyticsDb())

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("Failed to access underlying database:", err)
	}

	liveStore := live.NewGormStore(db)
	monitor := live.NewMonitor(sqlDB.Ping, func() error { return nil })
	runner := live.NewRunner(liveStore, monitor)
	registry := live.NewRegistry()

	genServiceURL := os.Getenv("GENERATOR_URL")
	if genServiceURL == "" {
		genServiceURL = "http://localhost:3001"
	}
	genClient := generator.NewClient(genServiceURL)

	emailService := email.NewEmailService()

	router := gin.Default()

	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		log.Fatal("SESSION_SECRET environment variable not set")
	}

	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   false,
	})

	router.Use(sessions.Sessions("brightfold-session", store))
	router.Use(cache.CacheMiddleware(10 * time.Minute))

	router.SetFuncMap(map[string]interface{}{
		"now": func() time.Time {
			return time.Now()
		},
		"domain": func() string {
			d := os.Getenv("DOMAIN")
			if d == "" {
				return "http://localhost:8080"
			}
			return d
		},
	})

	router.LoadHTMLGlob("*/views/*.html")

	router.Static("/public", "./public")

	chatModule := chat.NewChatModule(db, liveStore, runner, registry)
	chatModule.RegisterRoutes(router)

	adminModule := admin.NewAdminModule(db, liveStore, chatModule, genClient, analyticsModule)
	adminModule.RegisterRoutes(router)

	blogModule := blog.NewBlogModule(db, liveStore, analyticsModule)
	blogModule.RegisterRoutes(router)

	siteModule := site.NewSiteModule(db, emailService)
	siteModule.RegisterRoutes(router)

	scheduler := cron.New()
	scheduler.AddFunc("@hourly", func() {
		if err := cache.ClearOldCache(24 * time.Hour); err != nil {
			log.Printf("Error clearing old cache: %v", err)
		}
	})
	scheduler.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Println("Shutting down...")
		scheduler.Stop()
		registry.Close()
		os.Exit(0)
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting server on port %s...", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
