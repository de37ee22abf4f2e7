package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/schoolpay-next/internal/authz"
	"github.com/schoolpay-next/internal/cache"
	"github.com/schoolpay-next/internal/config"
	adminhandlers "github.com/schoolpay-next/internal/http/handlers/admin"
	publichandlers "github.com/schoolpay-next/internal/http/handlers/public"
	"github.com/schoolpay-next/internal/http/response"
	"github.com/schoolpay-next/internal/logger"
	"github.com/schoolpay-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "sp"
	}
	redisClient := cache.Client()
	studentLoginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:student_login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		MessageKey:    "error.login_too_many",
	}
	adminLoginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:admin_login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		MessageKey:    "error.login_too_many",
	}

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		// 学生认证
		auth := apiV1.Group("/auth")
		{
			auth.GET("/login-guard", publicHandler.GetLoginGuard)
			auth.GET("/captcha", publicHandler.GetImageCaptcha)
			auth.POST("/login", RateLimitMiddleware(redisClient, studentLoginRule, KeyByIPAndJSONFields("school_code", "admission_no")), publicHandler.StudentLogin)
		}

		// 网关回调：签名校验在服务层完成
		apiV1.POST("/payments/paystack/webhook", publicHandler.PaystackWebhook)
		apiV1.POST("/refunds/paystack/webhook", publicHandler.PaystackRefundWebhook)
		apiV1.GET("/payments/paystack/callback", publicHandler.PaystackCallback)

		// 学生接口（需鉴权）
		student := apiV1.Group("")
		student.Use(StudentJWTAuthMiddleware(cfg.StudentJWT.SecretKey, c.StudentRepo))
		{
			student.GET("/me", publicHandler.GetCurrentStudent)
			student.PUT("/me/password", publicHandler.ChangeStudentPassword)
			student.GET("/fees", publicHandler.ListMyFees)
			student.POST("/payments", publicHandler.InitializePayment)
			student.GET("/payments", publicHandler.ListMyPayments)
			student.GET("/payments/:id", publicHandler.GetMyPayment)
			student.POST("/payments/:id/verify", publicHandler.VerifyMyPayment)
			student.GET("/payments/:id/receipts", publicHandler.ListMyPaymentReceipts)
			student.POST("/payments/:id/refunds", publicHandler.RequestRefund)
			student.GET("/refunds", publicHandler.ListMyRefunds)
			student.GET("/refunds/:id", publicHandler.GetMyRefund)
		}

		admin := apiV1.Group("/admin")
		{
			admin.POST("/login", RateLimitMiddleware(redisClient, adminLoginRule, KeyByIPAndJSONFields("username")), adminHandler.AdminLogin)

			// 个人账户接口只要求登录
			self := admin.Group("")
			self.Use(JWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo))
			{
				self.GET("/me", adminHandler.GetAdminProfile)
				self.PUT("/password", adminHandler.UpdateAdminPassword)
			}

			authorized := admin.Group("")
			authorized.Use(JWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo), AdminRBACMiddleware(c.AuthzService))
			{
				// 学校与学生
				authorized.GET("/schools", adminHandler.ListSchools)
				authorized.POST("/schools", adminHandler.CreateSchool)
				authorized.GET("/students", adminHandler.ListStudents)
				authorized.POST("/students", adminHandler.CreateStudent)

				// 费用
				authorized.GET("/fees", adminHandler.ListFees)
				authorized.POST("/fees", adminHandler.CreateFee)
				authorized.GET("/fees/:id", adminHandler.GetFee)
				authorized.GET("/fees/:id/assignments", adminHandler.ListFeeAssignments)
				authorized.POST("/fees/:id/assignments", adminHandler.AssignFee)

				// 缴费与退款
				authorized.GET("/payments", adminHandler.ListAdminPayments)
				authorized.GET("/payments/:id", adminHandler.GetAdminPayment)
				authorized.POST("/payments/:id/verify", adminHandler.VerifyAdminPayment)
				authorized.GET("/refunds", adminHandler.ListAdminRefunds)
				authorized.GET("/refunds/:id", adminHandler.GetAdminRefund)
				authorized.POST("/refunds/:id/review", adminHandler.ReviewRefund)

				// 网关配置与交易日志
				authorized.GET("/gateway-config", adminHandler.GetGatewayConfig)
				authorized.PUT("/gateway-config", adminHandler.UpdateGatewayConfig)
				authorized.GET("/transaction-logs", adminHandler.ListTransactionLogs)

				// 风控
				authorized.GET("/fraud/evaluations", adminHandler.ListFraudEvaluations)
				authorized.GET("/fraud/queue", adminHandler.ListFraudQueue)
				authorized.POST("/fraud/queue/:id/retry", adminHandler.RetryFraudQueueEntry)

				// 管理员与权限
				authorized.GET("/admins", adminHandler.ListAuthzAdmins)
				authorized.POST("/admins", adminHandler.CreateAuthzAdmin)
				authorized.GET("/authz/roles", adminHandler.ListAuthzRoles)
				authorized.GET("/authz/admins/:id/roles", adminHandler.GetAuthzAdminRoles)
				authorized.PUT("/authz/admins/:id/roles", adminHandler.SetAuthzAdminRoles)
				authorized.GET("/authz/permissions/catalog", func(ctx *gin.Context) {
					response.Success(ctx, buildAdminPermissionCatalog(r))
				})
			}
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}

type adminPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

func buildAdminPermissionCatalog(engine *gin.Engine) []adminPermissionCatalogItem {
	if engine == nil {
		return []adminPermissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]adminPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/admin/") {
			continue
		}
		if item.Path == "/api/v1/admin/login" || item.Path == "/api/v1/admin/me" || item.Path == "/api/v1/admin/password" {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, adminPermissionCatalogItem{
			Module:     deriveAdminPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func deriveAdminPermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 {
		return segments[0]
	}
	if segments[0] != "admin" {
		return segments[0]
	}
	if segments[1] == "authz" || segments[1] == "admins" {
		return "authz"
	}
	return segments[1]
}
