package provider

import (
	"time"

	"github.com/schoolpay-next/internal/anomaly"
	"github.com/schoolpay-next/internal/authz"
	"github.com/schoolpay-next/internal/cache"
	"github.com/schoolpay-next/internal/config"
	"github.com/schoolpay-next/internal/logger"
	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/payment/paystack"
	"github.com/schoolpay-next/internal/queue"
	"github.com/schoolpay-next/internal/repository"
	"github.com/schoolpay-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	AdminRepo           repository.AdminRepository
	SchoolRepo          repository.SchoolRepository
	StudentRepo         repository.StudentRepository
	FeeRepo             repository.FeeRepository
	FeeAssignmentRepo   repository.FeeAssignmentRepository
	PaymentRepo         repository.PaymentRepository
	RefundRepo          repository.RefundRepository
	TransactionLogRepo  repository.TransactionLogRepository
	DeviceRecordRepo    repository.DeviceRecordRepository
	FraudCheckQueueRepo repository.FraudCheckQueueRepository
	FraudEvaluationRepo repository.FraudEvaluationRepository
	GatewayConfigRepo   repository.GatewayConfigRepository
	ReceiptRepo         repository.ReceiptRepository

	// Services
	TxRecorder            service.TransactionRecorder
	AuthzService          *authz.Service
	AuthService           *service.AuthService
	StudentAuthService    *service.StudentAuthService
	CaptchaService        *service.CaptchaService
	EmailService          *service.EmailService
	GatewayConfigService  *service.GatewayConfigService
	FraudService          *service.FraudService
	ReceiptService        *service.ReceiptService
	NotificationService   *service.NotificationService
	PaymentService        *service.PaymentService
	RefundService         *service.RefundService
	FeeService            *service.FeeService
	SchoolService         *service.SchoolService
	TransactionLogService *service.TransactionLogService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 缓存不可用时降级为进程内实现
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}
	c.initRepositories()
	c.initServices()
	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.SchoolRepo = repository.NewSchoolRepository(db)
	c.StudentRepo = repository.NewStudentRepository(db)
	c.FeeRepo = repository.NewFeeRepository(db)
	c.FeeAssignmentRepo = repository.NewFeeAssignmentRepository(db)
	c.PaymentRepo = repository.NewPaymentRepository(db)
	c.RefundRepo = repository.NewRefundRepository(db)
	c.TransactionLogRepo = repository.NewTransactionLogRepository(db)
	c.DeviceRecordRepo = repository.NewDeviceRecordRepository(db)
	c.FraudCheckQueueRepo = repository.NewFraudCheckQueueRepository(db)
	c.FraudEvaluationRepo = repository.NewFraudEvaluationRepository(db)
	c.GatewayConfigRepo = repository.NewGatewayConfigRepository(db)
	c.ReceiptRepo = repository.NewReceiptRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_roles_failed", "error", err)
		panic(err)
	}

	cfg := c.Config
	c.TxRecorder = service.NewTransactionRecorder(c.TransactionLogRepo)
	c.AuthService = service.NewAuthService(cfg, c.AdminRepo)
	c.CaptchaService = service.NewCaptchaService(cfg.Captcha)
	c.StudentAuthService = service.NewStudentAuthService(
		cfg,
		c.SchoolRepo,
		c.StudentRepo,
		c.DeviceRecordRepo,
		c.TransactionLogRepo,
		c.TxRecorder,
		c.CaptchaService,
	)
	c.EmailService = service.NewEmailService(&cfg.Email)
	c.GatewayConfigService = service.NewGatewayConfigService(cfg.Paystack, c.GatewayConfigRepo, c.TxRecorder)

	oracle := anomaly.NewClient(cfg.Fraud.OracleURL, cfg.Fraud.APIKey, time.Duration(cfg.Fraud.TimeoutSeconds)*time.Second)
	c.FraudService = service.NewFraudService(
		cfg.Fraud,
		oracle,
		c.PaymentRepo,
		c.FeeAssignmentRepo,
		c.StudentRepo,
		c.DeviceRecordRepo,
		c.FraudCheckQueueRepo,
		c.FraudEvaluationRepo,
		c.TxRecorder,
		c.QueueClient,
	)
	c.ReceiptService = service.NewReceiptService(
		c.ReceiptRepo,
		c.PaymentRepo,
		c.StudentRepo,
		c.SchoolRepo,
		c.FeeRepo,
		c.EmailService,
		c.QueueClient,
	)
	c.NotificationService = service.NewNotificationService(
		c.RefundRepo,
		c.PaymentRepo,
		c.StudentRepo,
		c.SchoolRepo,
		c.EmailService,
		c.QueueClient,
	)

	gateway := paystack.NewClient()
	c.PaymentService = service.NewPaymentService(
		c.PaymentRepo,
		c.FeeRepo,
		c.FeeAssignmentRepo,
		c.StudentRepo,
		c.SchoolRepo,
		c.DeviceRecordRepo,
		c.GatewayConfigService,
		gateway,
		c.TxRecorder,
		c.FraudService,
		c.ReceiptService,
	)
	c.RefundService = service.NewRefundService(
		c.RefundRepo,
		c.PaymentRepo,
		c.GatewayConfigService,
		gateway,
		c.TxRecorder,
		c.FraudService,
		c.NotificationService,
	)
	c.FeeService = service.NewFeeService(c.FeeRepo, c.FeeAssignmentRepo, c.StudentRepo, c.TxRecorder)
	c.SchoolService = service.NewSchoolService(cfg, c.SchoolRepo, c.StudentRepo)
	c.TransactionLogService = service.NewTransactionLogService(c.TransactionLogRepo)
}
