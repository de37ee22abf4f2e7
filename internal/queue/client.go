package queue

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/schoolpay-next/internal/config"
	"github.com/schoolpay-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// DefaultQueue 回执与通知队列
	DefaultQueue = constants.QueueDefault
	// CriticalQueue 风控等高优先级队列
	CriticalQueue = constants.QueueCritical

	defaultConcurrency = 10
)

// Client 队列未启用时所有投递都是空操作
type Client struct {
	inner *asynq.Client
}

// NewClient 创建队列客户端
func NewClient(cfg *config.QueueConfig) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{}, nil
	}
	return &Client{inner: asynq.NewClient(buildRedisOpt(cfg))}, nil
}

// Enabled 判断是否启用
func (c *Client) Enabled() bool {
	return c != nil && c.inner != nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.inner.Close()
}

// EnqueuePaymentReceipt 推送支付凭证任务，同一笔支付只会排队一次
func (c *Client) EnqueuePaymentReceipt(payload PaymentDocumentPayload, opts ...asynq.Option) error {
	return c.submit(func() (*asynq.Task, error) { return NewPaymentReceiptTask(payload) },
		DefaultQueue, documentTaskID(TaskPaymentReceipt, payload.PaymentID), opts...)
}

// EnqueuePaymentInvoice 推送发票任务
func (c *Client) EnqueuePaymentInvoice(payload PaymentDocumentPayload, opts ...asynq.Option) error {
	return c.submit(func() (*asynq.Task, error) { return NewPaymentInvoiceTask(payload) },
		DefaultQueue, documentTaskID(TaskPaymentInvoice, payload.PaymentID), opts...)
}

// EnqueueRefundStatusNotice 推送退款状态通知任务
func (c *Client) EnqueueRefundStatusNotice(payload RefundStatusNoticePayload, opts ...asynq.Option) error {
	return c.submit(func() (*asynq.Task, error) { return NewRefundStatusNoticeTask(payload) },
		DefaultQueue, "", opts...)
}

// EnqueueFraudCheckRetry 延迟推送风控重试任务，重试节奏由风控队列自身控制
func (c *Client) EnqueueFraudCheckRetry(payload FraudCheckRetryPayload, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	return c.submit(func() (*asynq.Task, error) { return NewFraudCheckRetryTask(payload) },
		CriticalQueue, "", asynq.ProcessIn(delay), asynq.MaxRetry(0))
}

func (c *Client) submit(build func() (*asynq.Task, error), queueName, taskID string, opts ...asynq.Option) error {
	if !c.Enabled() {
		return nil
	}
	task, err := build()
	if err != nil {
		return err
	}
	options := []asynq.Option{asynq.Queue(queueName)}
	if taskID != "" {
		options = append(options, asynq.TaskID(taskID))
	}
	_, err = c.inner.Enqueue(task, append(options, opts...)...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func documentTaskID(taskType string, paymentID uint) string {
	return fmt.Sprintf("%s:%d", taskType, paymentID)
}

// BuildServerConfig 生成队列服务配置
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	serverCfg := asynq.Config{
		Concurrency: defaultConcurrency,
		Queues:      map[string]int{CriticalQueue: 6, DefaultQueue: 3},
	}
	if cfg != nil {
		if cfg.Concurrency > 0 {
			serverCfg.Concurrency = cfg.Concurrency
		}
		if len(cfg.Queues) > 0 {
			serverCfg.Queues = cfg.Queues
		}
	}
	return buildRedisOpt(cfg), serverCfg
}

func buildRedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	opt := asynq.RedisClientOpt{Addr: net.JoinHostPort("127.0.0.1", "6379")}
	if cfg == nil {
		return opt
	}
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port <= 0 {
		port = 6379
	}
	opt.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	opt.Password = cfg.Password
	opt.DB = cfg.DB
	return opt
}
