package types

type Config struct {
	Environment     string `envconfig:"ENVIRONMENT" default:"development"`
	ServerPort      uint   `envconfig:"SERVER_PORT" default:"8080"`
	DatabaseURL     string `envconfig:"DATABASE_URL"`
	DatabaseSchema  string `envconfig:"DATABASE_SCHEMA" default:"estimator"`
	ReadTimeoutSec  uint   `envconfig:"READ_TIMEOUT_SEC" default:"10"`
	WriteTimeoutSec uint   `envconfig:"WRITE_TIMEOUT_SEC" default:"15"`

	// Document storage
	S3BucketName     string `envconfig:"S3_BUCKET_NAME" default:"estimate-documents"`
	MaxUploadSizeMiB int64  `envconfig:"MAX_UPLOAD_SIZE_MIB" default:"25"`

	// Draft session cookie. Values are base64 encoded.
	// openssl rand -base64 32
	// to generate values
	DraftCookieName string `envconfig:"DRAFT_COOKIE_NAME" default:"estimate_draft"`
	CookieHashKey   string `envconfig:"COOKIE_HASH_KEY"`  // 32 or 64 bytes
	CookieBlockKey  string `envconfig:"COOKIE_BLOCK_KEY"` // 16, 24, or 32 bytes

	// Submission
	SubmitTimeoutSec uint `envconfig:"SUBMIT_TIMEOUT_SEC" default:"30"`
	MaxIDAttempts    int  `envconfig:"MAX_ID_ATTEMPTS" default:"3"`

	// Notifications fired when an estimate is submitted as sent
	NotifyWebhookURL     string `envconfig:"NOTIFY_WEBHOOK_URL"`
	NotifyWebhookTimeout uint   `envconfig:"NOTIFY_WEBHOOK_TIMEOUT_SEC" default:"5"`
}
