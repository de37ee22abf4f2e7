package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/schoolpay-next/internal/anomaly"
	"github.com/schoolpay-next/internal/config"
	"github.com/schoolpay-next/internal/constants"
	"github.com/schoolpay-next/internal/logger"
	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/queue"
	"github.com/schoolpay-next/internal/repository"
)

const (
	defaultFraudRetryMaxAttempts = 5
	defaultFraudRetryInterval    = 2 * time.Minute
	defaultFraudRetryBatchSize   = 50
	// 无历史缴费时的默认间隔天数
	defaultDaysSinceLastPayment = 30
)

// FraudOracle 异常检测模型
type FraudOracle interface {
	Score(ctx context.Context, features anomaly.FeatureVector) (*anomaly.Result, error)
}

// FraudScore 返回给调用方的风控结论
type FraudScore struct {
	FraudScore   float64 `json:"fraud_score"`
	AnomalyScale string  `json:"anomaly_scale"`
}

// FraudService 风控评分服务
type FraudService struct {
	cfg            config.FraudConfig
	oracle         FraudOracle
	paymentRepo    repository.PaymentRepository
	assignmentRepo repository.FeeAssignmentRepository
	studentRepo    repository.StudentRepository
	deviceRepo     repository.DeviceRecordRepository
	queueRepo      repository.FraudCheckQueueRepository
	evalRepo       repository.FraudEvaluationRepository
	recorder       TransactionRecorder
	queueClient    *queue.Client
}

// NewFraudService 创建风控评分服务
func NewFraudService(
	cfg config.FraudConfig,
	oracle FraudOracle,
	paymentRepo repository.PaymentRepository,
	assignmentRepo repository.FeeAssignmentRepository,
	studentRepo repository.StudentRepository,
	deviceRepo repository.DeviceRecordRepository,
	queueRepo repository.FraudCheckQueueRepository,
	evalRepo repository.FraudEvaluationRepository,
	recorder TransactionRecorder,
	queueClient *queue.Client,
) *FraudService {
	return &FraudService{
		cfg:            cfg,
		oracle:         oracle,
		paymentRepo:    paymentRepo,
		assignmentRepo: assignmentRepo,
		studentRepo:    studentRepo,
		deviceRepo:     deviceRepo,
		queueRepo:      queueRepo,
		evalRepo:       evalRepo,
		recorder:       recorder,
		queueClient:    queueClient,
	}
}

// ScoreFraud 对一笔支付评分，模型不可用时写入重试队列并返回低风险
func (s *FraudService) ScoreFraud(ctx context.Context, payment *models.Payment, deviceSignature string) FraudScore {
	fallback := FraudScore{FraudScore: 0, AnomalyScale: constants.AnomalyScaleLow}
	if payment == nil {
		return fallback
	}
	log := logger.SW("payment_id", payment.ID, "reference", payment.Reference)

	features, err := s.BuildFeatureVector(payment, deviceSignature)
	if err != nil {
		log.Warnw("fraud_feature_build_failed", "error", err)
		s.enqueueRetry(payment, features, err)
		return fallback
	}

	result, err := s.oracle.Score(ctx, features)
	if err != nil {
		log.Warnw("fraud_oracle_failed", "error", err)
		s.enqueueRetry(payment, features, err)
		return fallback
	}

	score := s.recordEvaluation(payment, features, result, constants.FraudSourceLive)
	log.Infow("fraud_check_completed", "fraud_score", score.FraudScore, "anomaly_scale", score.AnomalyScale)
	return score
}

// BuildFeatureVector 组装特征向量，查询失败时仍返回已填充的默认值
func (s *FraudService) BuildFeatureVector(payment *models.Payment, deviceSignature string) (anomaly.FeatureVector, error) {
	createdAt := payment.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	features := anomaly.FeatureVector{
		AmountPaid:               payment.Amount.InexactFloat64(),
		PaymentMethod:            resolvePaymentMethod(payment.Provider),
		StudentType:              constants.StudentTypeOther,
		IsNewDevice:              true,
		StudentNameMatch:         true,
		TimeSinceLastPaymentDays: defaultDaysSinceLastPayment,
		Timestamp:                createdAt.UTC().Format(time.RFC3339),
	}

	assignment, err := s.assignmentRepo.GetByID(payment.FeeAssignmentID)
	if err != nil {
		return features, err
	}
	if assignment != nil {
		features.FeeAmountDue = assignment.AmountDue.InexactFloat64()
	}

	student, err := s.studentRepo.GetByID(payment.StudentID)
	if err != nil {
		return features, err
	}
	if student != nil {
		features.StudentType = resolveStudentType(student.EnrollmentType)
	}

	latest, err := s.deviceRepo.GetLatestByStudent(payment.StudentID)
	if err != nil {
		return features, err
	}
	if latest != nil && strings.TrimSpace(deviceSignature) != "" {
		features.IsNewDevice = latest.Signature != strings.TrimSpace(deviceSignature)
	}

	last, err := s.paymentRepo.GetLastConfirmedByStudent(payment.StudentID, payment.ID)
	if err != nil {
		return features, err
	}
	if last != nil {
		at := last.CreatedAt
		if last.ConfirmedAt != nil {
			at = *last.ConfirmedAt
		}
		days := createdAt.Sub(at).Hours() / 24
		if days < 0 {
			days = 0
		}
		features.TimeSinceLastPaymentDays = days
	}
	return features, nil
}

// ProcessRetry 重试一条排队中的评分，retries 作为乐观锁版本
func (s *FraudService) ProcessRetry(ctx context.Context, queueID uint) error {
	entry, err := s.queueRepo.GetByID(queueID)
	if err != nil {
		return err
	}
	if entry == nil {
		return ErrFraudQueueEntryNotFound
	}
	if entry.Status != constants.FraudCheckStatusQueued {
		return nil
	}
	log := logger.SW("fraud_queue_id", entry.ID, "payment_id", entry.PaymentID, "retries", entry.Retries)

	features, err := decodeFeatureVector(entry.RequestPayload)
	if err != nil {
		// 无法解析的负载不会自愈，直接置为失败
		if _, updateErr := s.queueRepo.RecordFailure(entry.ID, entry.Retries, constants.FraudCheckStatusFailed, err.Error(), time.Now()); updateErr != nil {
			return updateErr
		}
		log.Warnw("fraud_retry_payload_invalid", "error", err)
		return nil
	}

	result, scoreErr := s.oracle.Score(ctx, features)
	now := time.Now()
	if scoreErr != nil {
		retries := entry.Retries + 1
		status := constants.FraudCheckStatusQueued
		if retries >= s.maxAttempts() {
			status = constants.FraudCheckStatusFailed
		}
		rows, err := s.queueRepo.RecordFailure(entry.ID, entry.Retries, status, scoreErr.Error(), now)
		if err != nil {
			return err
		}
		if rows == 0 {
			log.Debugw("fraud_retry_claimed_elsewhere")
			return nil
		}
		if status == constants.FraudCheckStatusFailed {
			log.Warnw("fraud_retry_exhausted", "error", scoreErr)
			txLog := newTxLog(constants.TxActionFraudRetryExhausted, constants.ActorTypeSystem, 0, RequestMeta{})
			txLog.SchoolID = entry.SchoolID
			txLog.StudentID = uintPtr(entry.StudentID)
			txLog.PaymentID = uintPtr(entry.PaymentID)
			txLog.ErrorMessage = scoreErr.Error()
			txLog.Metadata["retries"] = retries
			s.recordTxLog(txLog)
			return nil
		}
		log.Infow("fraud_retry_rescheduled", "error", scoreErr, "next_retries", retries)
		s.scheduleRetry(entry.ID)
		return nil
	}

	rows, err := s.queueRepo.MarkProcessed(entry.ID, entry.Retries, now)
	if err != nil {
		return err
	}
	if rows == 0 {
		log.Debugw("fraud_retry_claimed_elsewhere")
		return nil
	}

	payment, err := s.paymentRepo.GetByID(entry.PaymentID)
	if err != nil {
		return err
	}
	if payment == nil {
		payment = &models.Payment{ID: entry.PaymentID, SchoolID: entry.SchoolID, StudentID: entry.StudentID}
	}
	score := s.recordEvaluation(payment, features, result, constants.FraudSourceRetry)
	log.Infow("fraud_retry_processed", "fraud_score", score.FraudScore, "anomaly_scale", score.AnomalyScale)
	return nil
}

// SweepQueued 批量重试排队中的评分，返回本轮处理条数
func (s *FraudService) SweepQueued(ctx context.Context) (int, error) {
	entries, err := s.queueRepo.ListQueued(s.batchSize())
	if err != nil {
		return 0, err
	}
	processed := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		if err := s.ProcessRetry(ctx, entry.ID); err != nil {
			logger.Warnw("fraud_sweep_entry_failed", "fraud_queue_id", entry.ID, "error", err)
			continue
		}
		processed++
	}
	return processed, nil
}

// RequeueFailed 管理员将已失败的条目重新排队
func (s *FraudService) RequeueFailed(adminID, queueID uint, meta RequestMeta) error {
	entry, err := s.queueRepo.GetByID(queueID)
	if err != nil {
		return err
	}
	if entry == nil {
		return ErrFraudQueueEntryNotFound
	}
	rows, err := s.queueRepo.Requeue(queueID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrFraudQueueEntryNotFailed
	}
	txLog := newTxLog(constants.TxActionFraudRetryRequeued, constants.ActorTypeAdmin, adminID, meta)
	txLog.SchoolID = entry.SchoolID
	txLog.PaymentID = uintPtr(entry.PaymentID)
	txLog.Metadata["fraud_queue_id"] = queueID
	s.recordTxLog(txLog)
	s.scheduleRetry(queueID)
	return nil
}

// ListQueue 风控重试队列列表
func (s *FraudService) ListQueue(filter repository.FraudCheckQueueListFilter) ([]models.FraudCheckQueue, int64, error) {
	return s.queueRepo.List(filter)
}

// ListEvaluations 风控评分记录列表
func (s *FraudService) ListEvaluations(filter repository.FraudEvaluationListFilter) ([]models.FraudEvaluationLog, int64, error) {
	return s.evalRepo.List(filter)
}

// LatestScore 支付最近一次评分，无记录时为 0
func (s *FraudService) LatestScore(paymentID uint) float64 {
	latest, err := s.evalRepo.GetLatestByPayment(paymentID)
	if err != nil {
		logger.Warnw("fraud_latest_score_lookup_failed", "payment_id", paymentID, "error", err)
		return 0
	}
	if latest == nil {
		return 0
	}
	return latest.FraudScore
}

func (s *FraudService) recordEvaluation(payment *models.Payment, features anomaly.FeatureVector, result *anomaly.Result, source string) FraudScore {
	score := anomaly.FraudScore(result.ReconstructionError, result.Threshold)
	scale := strings.TrimSpace(result.AnomalyScale)
	if scale == "" {
		scale = anomalyScaleForScore(score)
	}
	payload := encodeFeatureVector(features)

	evaluation := &models.FraudEvaluationLog{
		PaymentID:           payment.ID,
		SchoolID:            payment.SchoolID,
		StudentID:           payment.StudentID,
		Source:              source,
		ReconstructionError: result.ReconstructionError,
		Threshold:           result.Threshold,
		FraudScore:          score,
		AnomalyScale:        scale,
		RequestPayload:      payload,
	}
	if err := s.evalRepo.Create(evaluation); err != nil {
		logger.Warnw("fraud_evaluation_save_failed", "payment_id", payment.ID, "error", err)
	}

	action := constants.TxActionFraudCheckCompleted
	if source == constants.FraudSourceRetry {
		action = constants.TxActionFraudRetryProcessed
	}
	txLog := newTxLog(action, constants.ActorTypeSystem, 0, RequestMeta{})
	txLog.SchoolID = payment.SchoolID
	txLog.StudentID = uintPtr(payment.StudentID)
	txLog.PaymentID = uintPtr(payment.ID)
	txLog.Metadata["fraud_score"] = score
	txLog.Metadata["anomaly_scale"] = scale
	txLog.Metadata["reference"] = payment.Reference
	s.recordTxLog(txLog)

	return FraudScore{FraudScore: score, AnomalyScale: scale}
}

// enqueueRetry 每次评分失败只写入一条排队记录
func (s *FraudService) enqueueRetry(payment *models.Payment, features anomaly.FeatureVector, cause error) {
	entry := &models.FraudCheckQueue{
		PaymentID:      payment.ID,
		SchoolID:       payment.SchoolID,
		StudentID:      payment.StudentID,
		RequestPayload: encodeFeatureVector(features),
		Status:         constants.FraudCheckStatusQueued,
		Retries:        0,
		LastError:      cause.Error(),
	}
	if err := s.queueRepo.Create(entry); err != nil {
		logger.Errorw("fraud_queue_create_failed", "payment_id", payment.ID, "error", err)
		return
	}

	txLog := newTxLog(constants.TxActionFraudCheckFailed, constants.ActorTypeSystem, 0, RequestMeta{})
	txLog.SchoolID = payment.SchoolID
	txLog.StudentID = uintPtr(payment.StudentID)
	txLog.PaymentID = uintPtr(payment.ID)
	txLog.ErrorMessage = cause.Error()
	txLog.Metadata["fraud_queue_id"] = entry.ID
	txLog.Metadata["reference"] = payment.Reference
	s.recordTxLog(txLog)

	s.scheduleRetry(entry.ID)
}

func (s *FraudService) scheduleRetry(queueID uint) {
	if s.queueClient == nil || !s.queueClient.Enabled() {
		return
	}
	if err := s.queueClient.EnqueueFraudCheckRetry(queue.FraudCheckRetryPayload{QueueID: queueID}, s.retryInterval()); err != nil {
		logger.Warnw("fraud_retry_enqueue_failed", "fraud_queue_id", queueID, "error", err)
	}
}

func (s *FraudService) recordTxLog(entry *models.TransactionLog) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(entry); err != nil {
		logger.Warnw("fraud_tx_log_failed", "action", entry.Action, "error", err)
	}
}

func (s *FraudService) maxAttempts() int {
	if s.cfg.RetryMaxAttempts > 0 {
		return s.cfg.RetryMaxAttempts
	}
	return defaultFraudRetryMaxAttempts
}

func (s *FraudService) retryInterval() time.Duration {
	if s.cfg.RetryIntervalSeconds > 0 {
		return time.Duration(s.cfg.RetryIntervalSeconds) * time.Second
	}
	return defaultFraudRetryInterval
}

// RetryInterval 重试扫描间隔
func (s *FraudService) RetryInterval() time.Duration {
	return s.retryInterval()
}

func (s *FraudService) batchSize() int {
	if s.cfg.RetryBatchSize > 0 {
		return s.cfg.RetryBatchSize
	}
	return defaultFraudRetryBatchSize
}

func resolvePaymentMethod(provider string) string {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case constants.PaymentProviderPaystack:
		return constants.PaymentMethodCard
	default:
		return constants.PaymentMethodOther
	}
}

func resolveStudentType(enrollmentType string) string {
	switch strings.ToLower(strings.TrimSpace(enrollmentType)) {
	case constants.EnrollmentTypeBoarding:
		return constants.StudentTypeBoarder
	case constants.EnrollmentTypeDay:
		return constants.StudentTypeDayScholar
	default:
		return constants.StudentTypeOther
	}
}

func anomalyScaleForScore(score float64) string {
	switch {
	case score >= 70:
		return constants.AnomalyScaleHigh
	case score >= 40:
		return constants.AnomalyScaleMedium
	default:
		return constants.AnomalyScaleLow
	}
}

func encodeFeatureVector(features anomaly.FeatureVector) models.JSON {
	raw, err := json.Marshal(features)
	if err != nil {
		return models.JSON{}
	}
	out := models.JSON{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return models.JSON{}
	}
	return out
}

func decodeFeatureVector(payload models.JSON) (anomaly.FeatureVector, error) {
	var features anomaly.FeatureVector
	if len(payload) == 0 {
		return features, errors.New("empty feature payload")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return features, fmt.Errorf("encode feature payload: %w", err)
	}
	if err := json.Unmarshal(raw, &features); err != nil {
		return features, fmt.Errorf("decode feature payload: %w", err)
	}
	return features, nil
}
