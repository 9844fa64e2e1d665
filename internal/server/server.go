package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/PhoenixSmith/seraph-v2-sub000/internal/config"
	"github.com/PhoenixSmith/seraph-v2-sub000/internal/middleware"
	"github.com/PhoenixSmith/seraph-v2-sub000/internal/queue"
	"github.com/PhoenixSmith/seraph-v2-sub000/internal/scheduler"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/ratelimiter"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/storage"

	achievementHttp "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/achievement/delivery/http"
	achievementRepo "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/achievement/repository"
	achievementService "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/achievement/service"

	avatarHttp "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/avatar/delivery/http"
	avatarRepo "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/avatar/repository"
	avatarService "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/avatar/service"

	challengeHttp "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/challenge/delivery/http"
	challengeRepo "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/challenge/repository"
	challengeService "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/challenge/service"

	groupHttp "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/group/delivery/http"
	groupRepo "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/group/repository"
	groupService "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/group/service"

	leaderboardHttp "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/leaderboard/delivery/http"
	leaderboardRepo "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/leaderboard/repository"
	leaderboardService "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/leaderboard/service"

	notiHttp "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/notification/delivery/http"
	notifRepo "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/notification/repository"
	notifService "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/notification/service"

	progressionHttp "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/progression/delivery/http"
	progressionRepo "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/progression/repository"
	progressionService "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/progression/service"

	"github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/recompute"

	searchService "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/search/service"

	userHttp "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/user/delivery/http"
	userRepo "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/user/repository"
	userService "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/user/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Server struct {
	cfg         *config.Config
	engine      *gin.Engine
	db          *gorm.DB
	redisClient *redis.Client

	tasks        queue.Queue
	worker       *queue.Worker
	scheduler    *scheduler.Scheduler
	recoverTasks func(ctx context.Context) (int, error)
	closeQ       func()
}

func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	s := &Server{cfg: cfg, db: db, redisClient: redisClient}

	// Task queue: durable on redis, in-process otherwise.
	if redisClient != nil {
		q := queue.NewRedisQueue(redisClient, cfg.TaskQueueKey)
		s.tasks, s.recoverTasks = q, q.Recover
	} else {
		q := queue.NewMemoryQueue(1024)
		s.tasks, s.closeQ = q, q.Close
	}

	imageStorage, err := storage.NewCloudinaryStorage(storage.CloudinaryConfig{
		CloudName:    cfg.CloudinaryCloudName,
		APIKey:       cfg.CloudinaryAPIKey,
		APISecret:    cfg.CloudinaryAPISecret,
		UploadFolder: cfg.CloudinaryUploadFolder,
	})
	if err != nil {
		log.Printf("Cloudinary unavailable, group image upload disabled: %v", err)
		imageStorage = nil
	}

	meiliHost := cfg.MeiliSearchHost
	if !strings.HasPrefix(meiliHost, "http") {
		meiliHost = "http://" + meiliHost + ":7700"
	}
	meiliClient := meilisearch.New(meiliHost, meilisearch.WithAPIKey(cfg.MeiliMasterKey))
	searchSvc := searchService.NewSearchService(meiliClient)

	limiter := ratelimiter.New(redisClient)

	// Notification Module
	notificationRepository := notifRepo.NewNotificationRepository(db)
	notificationSvc := notifService.NewNotificationService(notificationRepository, redisClient)
	notificationHandler := notiHttp.NewNotificationHandler(notificationSvc, redisClient)

	userRepository := userRepo.NewUserRepository(db)
	userSvc := userService.NewUserService(userRepository)
	userHandler := userHttp.NewUserHandler(userSvc)

	achievementSvc := achievementService.NewAchievementService(achievementRepo.NewAchievementRepository(db), s.tasks, notificationSvc, cfg.Location)
	achievementHandler := achievementHttp.NewAchievementHandler(achievementSvc)

	progressionSvc := progressionService.NewProgressionService(progressionRepo.NewProgressionRepository(db), s.tasks, achievementSvc, notificationSvc, cfg.Location)
	progressionHandler := progressionHttp.NewProgressionHandler(progressionSvc)

	avatarSvc := avatarService.NewAvatarService(avatarRepo.NewAvatarRepository(db))
	avatarHandler := avatarHttp.NewAvatarHandler(avatarSvc)

	groupSvc := groupService.NewGroupService(groupRepo.NewGroupRepository(db), searchSvc, imageStorage, limiter, notificationSvc, cfg.RateLimitInvite, cfg.Location)
	groupHandler := groupHttp.NewGroupHandler(groupSvc)

	challengeSvc := challengeService.NewChallengeService(challengeRepo.NewChallengeRepository(db), s.tasks, notificationSvc, limiter, cfg.RateLimitChallenge)
	challengeHandler := challengeHttp.NewChallengeHandler(challengeSvc)

	leaderboardSvc := leaderboardService.NewLeaderboardService(leaderboardRepo.NewLeaderboardRepository(db), cfg.Location)
	leaderboardHandler := leaderboardHttp.NewLeaderboardHandler(leaderboardSvc)

	// Background recomputation
	s.worker = queue.NewWorker(s.tasks, cfg.TaskWorkers, cfg.TaskMaxAttempts)
	recompute.NewHandlers(progressionSvc, achievementSvc).Register(s.worker)

	s.scheduler = scheduler.New()
	for _, job := range []scheduler.Job{
		scheduler.ChallengeSweep(cfg.ChallengeSweepSchedule, challengeSvc),
		scheduler.RollingGC(cfg.RollingGCSchedule, progressionSvc),
		scheduler.SearchReindex(cfg.SearchReindexSchedule, groupSvc),
	} {
		if err := s.scheduler.Register(job); err != nil {
			return nil, err
		}
	}

	router := gin.New()

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/api/notifications/unread-count"},
	}))

	authMiddleware := middleware.NewAuthMiddleware(userRepository, cfg.JWTSecret)

	api := router.Group("/api")
	api.Use(authMiddleware.RequireAuth())
	{
		// Registration is the only route open to unregistered identities.
		api.POST("/users/me", userHandler.Register)
		api.GET("/users/me", userHandler.GetMe)
	}

	protected := api.Group("")
	protected.Use(authMiddleware.RequireRegistered())
	{
		// Progress routes
		protected.POST("/progress/verses", progressionHandler.RecordVerseRead)
		protected.POST("/progress/quiz-answers", progressionHandler.RecordQuizAnswer)
		protected.POST("/progress/chapters", progressionHandler.CompleteChapter)
		protected.GET("/progress/summary", progressionHandler.GetSummary)
		protected.GET("/progress/books", progressionHandler.GetBookProgress)

		protected.GET("/achievements", achievementHandler.ListAchievements)
		protected.GET("/avatar-items", avatarHandler.ListItems)
		protected.POST("/avatar-items/:item_id/purchase", avatarHandler.PurchaseItem)

		// Group routes
		protected.POST("/groups", groupHandler.CreateGroup)
		protected.GET("/groups", groupHandler.ListMyGroups)
		protected.GET("/groups/browse", groupHandler.BrowseGroups)
		protected.POST("/groups/join", groupHandler.JoinGroup)
		protected.GET("/groups/:group_id", groupHandler.GetGroup)
		protected.PUT("/groups/:group_id", groupHandler.UpdateGroup)
		protected.POST("/groups/:group_id/leave", groupHandler.LeaveGroup)
		protected.DELETE("/groups/:group_id/members/:user_id", groupHandler.RemoveMember)
		protected.POST("/groups/:group_id/transfer", groupHandler.TransferLeadership)
		protected.GET("/groups/:group_id/invite-code", groupHandler.GetInviteCode)
		protected.POST("/groups/:group_id/invite-code", groupHandler.RegenerateInviteCode)
		protected.POST("/groups/:group_id/image", groupHandler.UploadImage)
		protected.GET("/groups/:group_id/challenges", challengeHandler.ListGroupChallenges)

		// Challenge routes
		protected.POST("/challenges", challengeHandler.CreateChallenge)
		protected.GET("/challenges/:challenge_id", challengeHandler.GetChallenge)
		protected.POST("/challenges/:challenge_id/accept", challengeHandler.AcceptChallenge)
		protected.POST("/challenges/:challenge_id/decline", challengeHandler.DeclineChallenge)
		protected.POST("/challenges/:challenge_id/cancel", challengeHandler.CancelChallenge)

		protected.GET("/leaderboard", leaderboardHandler.GetLeaderboard)
		protected.GET("/leaderboard/groups", leaderboardHandler.GetGroupLeaderboard)

		// Notification routes
		protected.GET("/notifications", notificationHandler.GetNotifications)
		protected.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		protected.PUT("/notifications/:id/read", notificationHandler.MarkAsRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
		protected.GET("/notifications/ws", notificationHandler.HandleWebSocket)
	}

	s.engine = router
	return s, nil
}

// Run serves HTTP and the background workers until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	if s.recoverTasks != nil {
		if n, err := s.recoverTasks(ctx); err != nil {
			log.Printf("[queue] failed to recover in-flight tasks: %v", err)
		} else if n > 0 {
			log.Printf("[queue] requeued %d in-flight tasks", n)
		}
	}

	workerCtx, stopWorker := context.WithCancel(context.WithoutCancel(ctx))
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := s.worker.Run(workerCtx); err != nil {
			log.Printf("[worker] stopped: %v", err)
		}
	}()

	s.scheduler.Start()

	srv := &http.Server{Addr: addr, Handler: s.engine}
	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Listening on %s", addr)
		serveErr <- srv.ListenAndServe()
	}()

	var err error
	select {
	case err = <-serveErr:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err = srv.Shutdown(shutdownCtx)
	}

	s.scheduler.Stop()
	if s.closeQ != nil {
		// Drain what is buffered before stopping consumers.
		s.closeQ()
	} else {
		stopWorker()
	}
	<-workerDone
	stopWorker()

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func setupCORS(router *gin.Engine, allowedOrigins string) {
	var origins []string
	if allowedOrigins != "" {
		origins = strings.Split(allowedOrigins, ",")
	} else {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
