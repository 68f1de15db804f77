package postmark

// Config contains Postmark credentials and sender identity with
// environment variable mapping.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN,required"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN,required"`
	SenderEmail          string `env:"EMAIL_SENDER,required"`
	SupportEmail         string `env:"EMAIL_SUPPORT,required"`
}
