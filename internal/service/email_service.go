package service

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/schoolpay-next/internal/config"
	"github.com/schoolpay-next/internal/i18n"
	"github.com/schoolpay-next/internal/models"
)

// EmailService 邮件发送服务
type EmailService struct {
	cfg *config.EmailConfig
}

// NewEmailService 创建邮件服务
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	return &EmailService{cfg: cfg}
}

// Enabled 邮件服务是否可用
func (s *EmailService) Enabled() bool {
	return s != nil && s.cfg != nil && s.cfg.Enabled
}

// PaymentDocumentEmailInput 收据/发票邮件输入
type PaymentDocumentEmailInput struct {
	Kind        string
	Number      string
	StudentName string
	SchoolName  string
	FeeTitle    string
	Reference   string
	Amount      models.Money
	Currency    string
	Status      string
	IssuedAt    time.Time
}

// SendPaymentDocument 发送收据或发票
func (s *EmailService) SendPaymentDocument(toEmail string, input PaymentDocumentEmailInput, locale string) error {
	subject, body := buildPaymentDocumentContent(input, locale)
	return s.sendTextEmail(toEmail, subject, body)
}

// RefundStatusEmailInput 退款状态邮件输入
type RefundStatusEmailInput struct {
	StudentName string
	SchoolName  string
	Reference   string
	Amount      models.Money
	Currency    string
	Status      string
}

// SendRefundStatus 发送退款状态通知
func (s *EmailService) SendRefundStatus(toEmail string, input RefundStatusEmailInput, locale string) error {
	subject, body := buildRefundStatusContent(input, locale)
	return s.sendTextEmail(toEmail, subject, body)
}

func (s *EmailService) sendTextEmail(toEmail, subject, body string) error {
	if !s.Enabled() {
		return ErrEmailServiceDisabled
	}
	if s.cfg.Host == "" || s.cfg.Port == 0 || s.cfg.From == "" {
		return ErrEmailServiceNotConfigured
	}
	if _, err := mail.ParseAddress(toEmail); err != nil {
		return ErrInvalidEmail
	}
	msg := buildEmailMessage(buildFromAddress(s.cfg.From, s.cfg.FromName), toEmail, subject, body)
	return normalizeEmailSendError(s.deliver(toEmail, []byte(msg)))
}

// deliver UseSSL 走隐式 TLS，UseTLS 走 STARTTLS，否则明文
func (s *EmailService) deliver(to string, msg []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	tlsCfg := &tls.Config{ServerName: s.cfg.Host}

	var client *smtp.Client
	if s.cfg.UseSSL {
		conn, err := tls.Dial("tcp", addr, tlsCfg)
		if err != nil {
			return err
		}
		if client, err = smtp.NewClient(conn, s.cfg.Host); err != nil {
			_ = conn.Close()
			return err
		}
	} else {
		var err error
		if client, err = smtp.Dial(addr); err != nil {
			return err
		}
	}
	defer client.Close()

	if s.cfg.UseTLS && !s.cfg.UseSSL {
		if err := client.StartTLS(tlsCfg); err != nil {
			return err
		}
	}
	if s.cfg.Username != "" || s.cfg.Password != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
				return err
			}
		}
	}
	if err := client.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func buildPaymentDocumentContent(input PaymentDocumentEmailInput, locale string) (string, string) {
	locale = i18n.NormalizeLocale(locale)
	kind := strings.ToLower(strings.TrimSpace(input.Kind))
	if kind == "" {
		kind = "receipt"
	}
	statusLabel := translateOrRaw(locale, "payment.status."+strings.ToLower(strings.TrimSpace(input.Status)), input.Status)
	issuedAt := input.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}
	subject := i18n.Sprintf(locale, "email."+kind+".subject", input.SchoolName, input.Number)
	body := i18n.Sprintf(locale, "email."+kind+".body",
		input.StudentName,
		input.FeeTitle,
		input.Number,
		input.Reference,
		input.Amount.String(),
		strings.TrimSpace(input.Currency),
		statusLabel,
		issuedAt.UTC().Format(time.RFC1123),
	)
	return subject, body
}

func buildRefundStatusContent(input RefundStatusEmailInput, locale string) (string, string) {
	locale = i18n.NormalizeLocale(locale)
	statusLabel := translateOrRaw(locale, "refund.status."+strings.ToLower(strings.TrimSpace(input.Status)), input.Status)
	subject := i18n.Sprintf(locale, "email.refund_status.subject", input.SchoolName, statusLabel)
	body := i18n.Sprintf(locale, "email.refund_status.body",
		input.StudentName,
		input.Reference,
		input.Amount.String(),
		strings.TrimSpace(input.Currency),
		statusLabel,
	)
	return subject, body
}

func translateOrRaw(locale, key, raw string) string {
	label := i18n.T(locale, key)
	if label == key {
		return raw
	}
	return label
}

func buildFromAddress(from, name string) string {
	if strings.TrimSpace(name) == "" {
		return from
	}
	encoded := mime.QEncoding.Encode("UTF-8", name)
	return (&mail.Address{Name: encoded, Address: from}).String()
}

func buildEmailMessage(from, to, subject, body string) string {
	var buf bytes.Buffer
	headers := [][2]string{
		{"From", from},
		{"To", to},
		{"Subject", mime.QEncoding.Encode("UTF-8", subject)},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/plain; charset=UTF-8"},
	}
	for _, h := range headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", h[0], h[1])
	}
	buf.WriteString("\r\n")
	buf.WriteString(body)
	return buf.String()
}

func normalizeEmailSendError(err error) error {
	if err == nil {
		return nil
	}
	if isEmailRecipientRejected(err) {
		return ErrEmailRecipientRejected
	}
	return err
}

var (
	recipientRejectedPhrases = []string{
		"no such recipient", "no such user", "recipient not found", "recipient address rejected",
		"invalid recipient", "user unknown", "unknown user", "unknown mailbox", "mailbox unavailable",
	}
	// 550 需同时带收件人相关字样才算拒收
	recipient550Hints = []string{"recipient", "user", "mailbox", "address", "rcpt"}
)

func isEmailRecipientRejected(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	if message == "" {
		return false
	}
	if containsAny(message, recipientRejectedPhrases) {
		return true
	}
	return strings.Contains(message, "550") && containsAny(message, recipient550Hints)
}

func containsAny(s string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
