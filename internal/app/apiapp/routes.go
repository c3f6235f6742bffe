package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nikitagusev/learnhub/backend/internal/config"
	authsvc "github.com/nikitagusev/learnhub/backend/internal/services/auth"
	coursesvc "github.com/nikitagusev/learnhub/backend/internal/services/courses"
	mediasvc "github.com/nikitagusev/learnhub/backend/internal/services/media"
	progresssvc "github.com/nikitagusev/learnhub/backend/internal/services/progress"
	purchasesvc "github.com/nikitagusev/learnhub/backend/internal/services/purchases"
	"github.com/nikitagusev/learnhub/backend/internal/transport/http/handlers"
)

type Dependencies struct {
	AuthService     *authsvc.Service
	CourseService   *coursesvc.Service
	MediaService    *mediasvc.Service
	ProgressService *progresssvc.Service
	PurchaseService *purchasesvc.Service
	Logger          *zap.Logger
	Config          config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(deps.AuthService)
	courseHandler := handlers.NewCourseHandler(deps.CourseService)
	mediaHandler := handlers.NewMediaHandler(deps.MediaService)
	progressHandler := handlers.NewProgressHandler(deps.ProgressService)
	purchaseHandler := handlers.NewPurchaseHandler(deps.PurchaseService)

	authMW := AuthMiddleware(deps.AuthService, deps.Logger)
	instructorMW := RequireRole(authsvc.RoleInstructor)

	r.Get("/healthz", healthHandler.Get)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.With(authMW).Post("/logout", authHandler.Logout)
		r.With(authMW).Post("/logout-all", authHandler.LogoutAll)
		r.With(authMW).Get("/me", authHandler.Me)
		r.With(authMW).Patch("/me", authHandler.UpdateProfile)
	})

	// The webhook route takes the raw request body: the gateway signature
	// is computed over the exact bytes, so nothing here may decode or
	// rewrite it before the handler runs.
	r.Post("/purchase/webhook", purchaseHandler.Webhook)

	r.With(authMW).Post("/purchase/checkout", purchaseHandler.Checkout)
	r.With(authMW).Get("/purchase/my-courses", purchaseHandler.EnrolledCourses)
	r.With(authMW, instructorMW).Get("/purchase/instructor", purchaseHandler.InstructorSales)

	r.Route("/courses", func(r chi.Router) {
		r.Get("/", courseHandler.Search)
		r.With(authMW, instructorMW).Post("/", courseHandler.Create)
		r.With(authMW, instructorMW).Get("/mine", courseHandler.ListMine)
		r.Route("/{courseID}", func(r chi.Router) {
			r.Get("/", courseHandler.Get)
			r.With(authMW).Get("/detail", purchaseHandler.CourseDetail)
			r.Get("/lectures", courseHandler.ListLectures)
			r.With(authMW, instructorMW).Patch("/", courseHandler.Update)
			r.With(authMW, instructorMW).Post("/publish", courseHandler.Publish)
			r.With(authMW, instructorMW).Post("/lectures", courseHandler.AddLecture)
			r.With(authMW, instructorMW).Patch("/lectures/{lectureID}", courseHandler.UpdateLecture)
			r.With(authMW, instructorMW).Delete("/lectures/{lectureID}", courseHandler.DeleteLecture)
			r.Route("/progress", func(r chi.Router) {
				r.Use(authMW)
				r.Get("/", progressHandler.Get)
				r.Post("/reset", progressHandler.Reset)
				r.Post("/lectures/{lectureID}/view", progressHandler.ViewLecture)
			})
		})
	})

	r.Route("/media", func(r chi.Router) {
		r.Use(authMW)
		r.Get("/url", mediaHandler.ResolveURL)
		r.With(instructorMW).Post("/thumbnail", mediaHandler.UploadThumbnail)
		r.With(instructorMW).Post("/video", mediaHandler.UploadLectureVideo)
		r.With(instructorMW).Delete("/", mediaHandler.Delete)
		r.Post("/photo", mediaHandler.UploadProfilePhoto)
	})
}
