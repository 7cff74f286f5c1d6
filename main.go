package main

import (
	"log"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"storefront-backend/internal/config"
	"storefront-backend/internal/database"
	"storefront-backend/internal/handlers"
	"storefront-backend/internal/mailer"
	"storefront-backend/internal/middleware"
	"storefront-backend/internal/pricing"
)

func main() {
	config.Load()

	client, err := database.Connect(config.AppEnv.MongoURI)
	if err != nil {
		log.Fatal(err)
	}

	db := client.Database(config.AppEnv.DBName)

	log.Println("MongoDB connected to:", db.Name())

	if err := database.EnsureUserIndexes(db); err != nil {
		log.Printf("user index warning: %v", err)
	}
	if err := database.EnsureProductIndexes(db); err != nil {
		log.Printf("product index warning: %v", err)
	}
	if err := database.EnsureOrderIndexes(db); err != nil {
		log.Printf("order index warning: %v", err)
	}
	if err := database.EnsureCartIndexes(db); err != nil {
		log.Printf("cart index warning: %v", err)
	}
	if err := database.EnsureWishlistIndexes(db); err != nil {
		log.Printf("wishlist index warning: %v", err)
	}
	if err := database.EnsureWebhookEventIndexes(db); err != nil {
		log.Printf("webhook event index warning: %v", err)
	}

	rules := pricing.Rules{
		TaxRatePercent:             config.AppEnv.TaxRatePercent,
		FlatShippingCents:          config.AppEnv.FlatShippingCents,
		FreeShippingThresholdCents: config.AppEnv.FreeShippingThresholdCents,
	}

	mail := mailer.New(
		config.AppEnv.SMTPHost,
		config.AppEnv.SMTPPort,
		config.AppEnv.SMTPUser,
		config.AppEnv.SMTPPass,
		config.AppEnv.SMTPFrom,
	)

	paymentCfg := handlers.PaymentConfig{
		SecretKey:     config.AppEnv.StripeSecretKey,
		WebhookSecret: config.AppEnv.StripeWebhookSecret,
		SuccessURL:    config.AppEnv.CheckoutSuccessURL,
		CancelURL:     config.AppEnv.CheckoutCancelURL,
	}

	jwtSecret := config.AppEnv.JWTSecret
	accessTTL := config.AppEnv.AccessTokenTTL
	refreshTTL := config.AppEnv.RefreshTokenTTL

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     config.AppEnv.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Stripe-Signature"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Static("/public", "./public")

	api := r.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/register", handlers.Register(db, jwtSecret, accessTTL, refreshTTL))
		auth.POST("/login", handlers.Login(db, jwtSecret, accessTTL, refreshTTL))
		auth.POST("/google", handlers.GoogleLogin(db, config.AppEnv.GoogleClientID, jwtSecret, accessTTL, refreshTTL))
		auth.POST("/refresh", handlers.Refresh(db, jwtSecret, accessTTL, refreshTTL))
		auth.POST("/logout", handlers.Logout(db))
		auth.GET("/me", middleware.RequireAuth(jwtSecret), handlers.GetMe(db))
		auth.DELETE("/me", middleware.RequireAuth(jwtSecret), handlers.DeleteMe(db))
	}

	api.GET("/products", handlers.GetProducts(db))
	api.GET("/products/:id", handlers.GetProduct(db))
	api.POST("/products/:id/reviews", middleware.RequireAuth(jwtSecret), handlers.AddReview(db))
	api.GET("/categories", handlers.GetCategories(db))

	me := api.Group("/users/me")
	me.Use(middleware.RequireAuth(jwtSecret))
	{
		me.PUT("", handlers.UpdateProfile(db))
		me.GET("/addresses", handlers.GetUserAddresses(db))
		me.POST("/addresses", handlers.CreateUserAddress(db))
		me.PUT("/addresses/:id", handlers.UpdateUserAddress(db))
		me.DELETE("/addresses/:id", handlers.DeleteUserAddress(db))
	}

	cart := api.Group("/cart")
	cart.Use(middleware.RequireAuth(jwtSecret))
	{
		cart.GET("", handlers.GetCart(db, rules))
		cart.POST("", handlers.AddCartItem(db, rules))
		cart.DELETE("", handlers.ClearCart(db))
		cart.PUT("/items/:productId", handlers.UpdateCartItem(db, rules))
		cart.DELETE("/items/:productId", handlers.RemoveCartItem(db, rules))
	}

	wishlist := api.Group("/wishlist")
	wishlist.Use(middleware.RequireAuth(jwtSecret))
	{
		wishlist.GET("", handlers.GetWishlist(db))
		wishlist.POST("", handlers.AddWishlistItem(db))
		wishlist.DELETE("/:productId", handlers.RemoveWishlistItem(db))
	}

	orders := api.Group("/orders")
	orders.Use(middleware.RequireAuth(jwtSecret))
	{
		orders.POST("", handlers.CreateOrder(db, rules, mail))
		orders.GET("", handlers.ListMyOrders(db))
		orders.GET("/:id", handlers.GetOrder(db))
		orders.POST("/:id/cancel", handlers.CancelOrder(db))
	}

	payments := api.Group("/payments")
	{
		payments.POST("/create-checkout-session", middleware.RequireAuth(jwtSecret), handlers.CreateCheckoutSession(db, paymentCfg))
		payments.POST("/create-payment-intent", middleware.RequireAuth(jwtSecret), handlers.CreatePaymentIntent(db, paymentCfg))
		// No auth middleware: Stripe signs its own requests.
		payments.POST("/webhook", handlers.HandleWebhook(db, paymentCfg.WebhookSecret))
	}

	admin := api.Group("/admin")
	admin.Use(middleware.RequireAdmin(jwtSecret))
	{
		admin.GET("/dashboard", handlers.GetDashboard(db))

		admin.GET("/products", handlers.GetAllProducts(db))
		admin.POST("/products", handlers.CreateProduct(db))
		admin.PUT("/products/:id", handlers.UpdateProduct(db))
		admin.DELETE("/products/:id", handlers.DeleteProduct(db))
		admin.POST("/products/:id/image", handlers.UploadProductImage(db))

		admin.GET("/categories", handlers.GetAllCategories(db))
		admin.POST("/categories", handlers.CreateCategory(db))
		admin.PUT("/categories/:id", handlers.UpdateCategory(db))
		admin.DELETE("/categories/:id", handlers.DeleteCategory(db))

		admin.GET("/orders", handlers.ListOrders(db))
		admin.PUT("/orders/:id/status", handlers.UpdateOrderStatus(db))
		admin.POST("/orders/:id/refund", handlers.InitiateRefund(db, config.AppEnv.StripeSecretKey))

		admin.GET("/users", handlers.ListUsers(db))
		admin.DELETE("/users/:id", handlers.DeleteUser(db))
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}
