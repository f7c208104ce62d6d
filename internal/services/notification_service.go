// internal/services/notification_service.go
package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"

	"gorm.io/gorm"

	"github.com/nomadbitcoin/softlaw-market/internal/config"
	"github.com/nomadbitcoin/softlaw-market/internal/models"
)

type NotificationService struct {
	db     *gorm.DB
	config *config.Config
}

type EmailTemplate struct {
	Subject string
	Body    string
}

func NewNotificationService(db *gorm.DB, config *config.Config) *NotificationService {
	return &NotificationService{
		db:     db,
		config: config,
	}
}

// Authentication notifications
func (s *NotificationService) SendWelcomeEmail(user *models.User, verificationToken string) error {
	template := s.getEmailTemplate("welcome")

	data := map[string]interface{}{
		"Username":        user.Username,
		"VerificationURL": fmt.Sprintf("%s/verify-email?token=%s", s.config.Frontend.BaseURL, verificationToken),
		"PlatformName":    "Softlaw Market",
	}

	subject := "Welcome to Softlaw Market"
	body, err := s.renderTemplate(template.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(user.Email, subject, body)
}

func (s *NotificationService) SendPasswordResetEmail(user *models.User, resetToken string) error {
	template := s.getEmailTemplate("password_reset")

	data := map[string]interface{}{
		"Username":  user.Username,
		"ResetURL":  fmt.Sprintf("%s/reset-password?token=%s", s.config.Frontend.BaseURL, resetToken),
		"ExpiresIn": "1 hour",
	}

	subject := "Password Reset Request"
	body, err := s.renderTemplate(template.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(user.Email, subject, body)
}

// License notifications
func (s *NotificationService) SendLicenseMintedNotification(license *models.License) error {
	var holder models.User
	if err := s.db.First(&holder, license.HolderID).Error; err != nil {
		return fmt.Errorf("holder not found: %w", err)
	}

	data := map[string]interface{}{
		"HolderName": holder.Username,
		"LicenseID":  license.ID,
		"LicenseURL": fmt.Sprintf("%s/licenses/%d", s.config.Frontend.BaseURL, license.ID),
	}

	subject := "License Issued"
	template := s.getEmailTemplate("license_minted")
	body, err := s.renderTemplate(template.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(holder.Email, subject, body)
}

func (s *NotificationService) SendLicenseRevokedNotification(license *models.License, reason string) error {
	var holder models.User
	if err := s.db.First(&holder, license.HolderID).Error; err != nil {
		return fmt.Errorf("holder not found: %w", err)
	}

	data := map[string]interface{}{
		"HolderName": holder.Username,
		"LicenseID":  license.ID,
		"Reason":     reason,
	}

	subject := "License Revoked"
	template := s.getEmailTemplate("license_revoked")
	body, err := s.renderTemplate(template.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(holder.Email, subject, body)
}

// Marketplace notifications
func (s *NotificationService) SendSaleNotification(seller *models.User, licenseID int64, amount int64) error {
	data := map[string]interface{}{
		"SellerName": seller.Username,
		"LicenseID":  licenseID,
		"Amount":     amount,
	}

	subject := "License Sold"
	template := s.getEmailTemplate("sale_notification")
	body, err := s.renderTemplate(template.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(seller.Email, subject, body)
}

func (s *NotificationService) SendDisputeResolvedNotification(dispute *models.Dispute, approved bool) error {
	var submitter models.User
	if err := s.db.First(&submitter, dispute.SubmitterID).Error; err != nil {
		return fmt.Errorf("submitter not found: %w", err)
	}

	outcome := "rejected"
	if approved {
		outcome = "approved"
	}

	data := map[string]interface{}{
		"Username":  submitter.Username,
		"DisputeID": dispute.ID,
		"Outcome":   outcome,
		"Reason":    dispute.ResolutionReason,
	}

	subject := "Dispute Resolved"
	template := s.getEmailTemplate("dispute_resolved")
	body, err := s.renderTemplate(template.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(submitter.Email, subject, body)
}

// Helper methods
func (s *NotificationService) sendEmail(to, subject, body string) error {
	if s.config.Email.SMTPHost == "" {
		// Email not configured, just log
		fmt.Printf("Email would be sent to %s: %s\n", to, subject)
		return nil
	}

	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)

	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s", to, subject, body))

	addr := fmt.Sprintf("%s:%s", s.config.Email.SMTPHost, s.config.Email.SMTPPort)
	return smtp.SendMail(addr, auth, s.config.Email.FromEmail, []string{to}, msg)
}

func (s *NotificationService) renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("email").Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *NotificationService) getEmailTemplate(templateType string) EmailTemplate {
	// In a real implementation, these would be loaded from files or database
	templates := map[string]EmailTemplate{
		"welcome": {
			Subject: "Welcome to Softlaw Market",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Welcome {{.Username}}!</h2>
	<p>Thank you for joining Softlaw Market. Please verify your email address by clicking the link below:</p>
	<a href="{{.VerificationURL}}">Verify Email</a>
	<p>Best regards,<br>{{.PlatformName}} Team</p>
</body>
</html>`,
		},
		"license_revoked": {
			Subject: "License Revoked",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>License Revoked</h2>
	<p>Hello {{.HolderName}},</p>
	<p>Your license #{{.LicenseID}} has been revoked.</p>
	<p>Reason: {{.Reason}}</p>
	<p>Best regards,<br>Softlaw Market Team</p>
</body>
</html>`,
		},
		// Add more templates as needed...
	}

	if template, exists := templates[templateType]; exists {
		return template
	}

	// Default template
	return EmailTemplate{
		Subject: "Notification",
		Body:    "<p>{{.Message}}</p>",
	}
}
