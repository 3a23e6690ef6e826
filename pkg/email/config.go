package email

// Config holds outbound email settings. Postmark tokens may be empty in
// development, where DevSender is used instead.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"no-reply@localhost.localdomain"`
	SupportEmail         string `env:"SUPPORT_EMAIL" envDefault:"support@localhost.localdomain"`
	DevOutputDir         string `env:"EMAIL_DEV_DIR" envDefault:".mail"`
}
