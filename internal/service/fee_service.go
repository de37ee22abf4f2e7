package service

import (
	"context"
	"strings"
	"time"

	"github.com/schoolpay-next/internal/constants"
	"github.com/schoolpay-next/internal/logger"
	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FeeService 收费项目与缴费义务
type FeeService struct {
	feeRepo        repository.FeeRepository
	assignmentRepo repository.FeeAssignmentRepository
	studentRepo    repository.StudentRepository
	recorder       TransactionRecorder
}

// NewFeeService 创建收费服务
func NewFeeService(
	feeRepo repository.FeeRepository,
	assignmentRepo repository.FeeAssignmentRepository,
	studentRepo repository.StudentRepository,
	recorder TransactionRecorder,
) *FeeService {
	return &FeeService{
		feeRepo:        feeRepo,
		assignmentRepo: assignmentRepo,
		studentRepo:    studentRepo,
		recorder:       recorder,
	}
}

// CreateFeeInput 创建收费项目
type CreateFeeInput struct {
	SchoolID            uint
	Title               string
	Description         string
	Term                string
	AmountDue           models.Money
	DueDate             time.Time
	AllowPartialPayment bool
}

// AssignFeeResult 批量分配结果
type AssignFeeResult struct {
	Created []models.FeeAssignment `json:"created"`
	Skipped []uint                 `json:"skipped"` // 已分配或不属于该学校的学生
}

// CreateFee 创建收费项目
func (s *FeeService) CreateFee(input CreateFeeInput) (*models.Fee, error) {
	title := strings.TrimSpace(input.Title)
	amount := models.NewMoneyFromDecimal(input.AmountDue.Decimal)
	if input.SchoolID == 0 || title == "" || input.DueDate.IsZero() {
		return nil, ErrFeeInvalid
	}
	if amount.Decimal.LessThanOrEqual(decimal.Zero) {
		return nil, ErrFeeInvalid
	}
	fee := &models.Fee{
		SchoolID:            input.SchoolID,
		Title:               title,
		Description:         strings.TrimSpace(input.Description),
		Term:                strings.TrimSpace(input.Term),
		AmountDue:           amount,
		DueDate:             input.DueDate,
		AllowPartialPayment: input.AllowPartialPayment,
	}
	if err := s.feeRepo.Create(fee); err != nil {
		return nil, err
	}
	logger.Infow("fee_created", "fee_id", fee.ID, "school_id", fee.SchoolID, "amount_due", amount.String())
	return fee, nil
}

// GetFee 获取收费项目，scopeSchoolID 非 0 时校验归属
func (s *FeeService) GetFee(id, scopeSchoolID uint) (*models.Fee, error) {
	fee, err := s.feeRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if fee == nil {
		return nil, ErrFeeNotFound
	}
	if scopeSchoolID != 0 && fee.SchoolID != scopeSchoolID {
		return nil, ErrForbidden
	}
	return fee, nil
}

// ListFees 收费项目列表
func (s *FeeService) ListFees(filter repository.FeeListFilter) ([]models.Fee, int64, error) {
	return s.feeRepo.List(filter)
}

// AssignFee 将收费项目分配给学生，已存在的分配跳过
func (s *FeeService) AssignFee(feeID, scopeSchoolID uint, studentIDs []uint) (*AssignFeeResult, error) {
	fee, err := s.GetFee(feeID, scopeSchoolID)
	if err != nil {
		return nil, err
	}
	if len(studentIDs) == 0 {
		return nil, ErrInvalidInput
	}
	result := &AssignFeeResult{Created: []models.FeeAssignment{}, Skipped: []uint{}}
	now := time.Now()
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		studentRepo := s.studentRepo.WithTx(tx)
		assignmentRepo := s.assignmentRepo.WithTx(tx)
		seen := make(map[uint]struct{}, len(studentIDs))
		for _, studentID := range studentIDs {
			if _, ok := seen[studentID]; ok {
				continue
			}
			seen[studentID] = struct{}{}
			student, err := studentRepo.GetByID(studentID)
			if err != nil {
				return err
			}
			if student == nil || student.SchoolID != fee.SchoolID {
				result.Skipped = append(result.Skipped, studentID)
				continue
			}
			existing, err := assignmentRepo.GetByStudentAndFee(studentID, fee.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				result.Skipped = append(result.Skipped, studentID)
				continue
			}
			assignment := models.FeeAssignment{
				SchoolID:   fee.SchoolID,
				StudentID:  studentID,
				FeeID:      fee.ID,
				AmountDue:  fee.AmountDue,
				AmountPaid: models.NewMoneyFromDecimal(decimal.Zero),
				DueDate:    fee.DueDate,
				Status:     DeriveFeeAssignmentStatus(decimal.Zero, fee.AmountDue.Decimal, fee.DueDate, now),
			}
			if err := assignmentRepo.Create(&assignment); err != nil {
				return err
			}
			result.Created = append(result.Created, assignment)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("fee_assigned", "fee_id", fee.ID, "created", len(result.Created), "skipped", len(result.Skipped))
	return result, nil
}

// ListAssignments 缴费义务列表
func (s *FeeService) ListAssignments(filter repository.FeeAssignmentListFilter) ([]models.FeeAssignment, int64, error) {
	return s.assignmentRepo.List(filter)
}

// ListStudentAssignments 学生本人的缴费义务
func (s *FeeService) ListStudentAssignments(studentID uint, filter repository.FeeAssignmentListFilter) ([]models.FeeAssignment, int64, error) {
	if studentID == 0 {
		return nil, 0, ErrForbidden
	}
	filter.StudentID = studentID
	filter.SchoolID = 0
	return s.assignmentRepo.List(filter)
}

// RefreshOverdue 将已过截止日期且未缴费的义务置为 overdue
func (s *FeeService) RefreshOverdue(_ context.Context) (int64, error) {
	now := time.Now()
	rows, err := s.assignmentRepo.MarkOverdue(now)
	if err != nil {
		return 0, err
	}
	if rows == 0 {
		return 0, nil
	}
	entry := newTxLog(constants.TxActionFeeAssignmentsOverdue, constants.ActorTypeSystem, 0, RequestMeta{})
	entry.Metadata["count"] = rows
	if err := s.recorder.Record(entry); err != nil {
		logger.Warnw("fee_overdue_tx_log_failed", "error", err)
	}
	logger.Infow("fee_assignments_overdue", "count", rows)
	return rows, nil
}
