// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"
	KeyError   = "error"

	// Authentication
	KeyAuthRequired           = "auth.required"
	KeyAuthInvalidToken       = "auth.invalid_token"
	KeyAuthTokenExpired       = "auth.token_expired"
	KeyAuthInvalidCredentials = "auth.invalid_credentials"
	KeyAuthUserNotFound       = "auth.user_not_found"
	KeyAuthUserExists         = "auth.user_exists"
	KeyAuthAccountInactive    = "auth.account_inactive"
	KeyAuthLoginSuccess       = "auth.login_success"
	KeyAuthRegisterSuccess    = "auth.register_success"

	// Listings
	KeyListingPublished = "listing.published"
	KeyListingUpdated   = "listing.updated"
	KeyListingNotFound  = "listing.not_found"
	KeyListingNotOwner  = "listing.not_owner"

	// Purchases
	KeyPurchaseIntentRecorded = "purchase.intent_recorded"
	KeyPurchaseConfirmed      = "purchase.confirmed"
	KeyPurchaseAlreadyOnList  = "purchase.already_on_list"
	KeyPurchaseCallerIsOwner  = "purchase.caller_is_owner"
	KeyPurchaseNotPending     = "purchase.not_pending"
	KeyPurchaseNotConfirmed   = "purchase.not_confirmed"

	// Access reasons
	KeyAccessOwner        = "access.owner"
	KeyAccessConfirmed    = "access.confirmed"
	KeyAccessPending      = "access.pending"
	KeyAccessUnauthorized = "access.unauthorized"

	// Payments and ledger
	KeyPaymentInsufficientBalance   = "payment.insufficient_balance"
	KeyPaymentInsufficientAllowance = "payment.insufficient_allowance"
	KeyPaymentTransferFailed        = "payment.transfer_failed"
	KeyPaymentReportFailed          = "payment.report_failed"
	KeyLedgerNotInitialized         = "ledger.not_initialized"

	// Verification
	KeyVerificationInvalidCode = "verification.invalid_code"
	KeyVerificationSuccess     = "verification.success"

	// Reports
	KeyReportUnknownSelector = "report.unknown_selector"
	KeyReportForbidden       = "report.forbidden"

	// Storage
	KeyStorageUploadFailed  = "storage.upload_failed"
	KeyStorageInvalidFile   = "storage.invalid_file"
	KeyStorageNotConfigured = "storage.not_configured"

	// Validation
	KeyValidationRequired = "validation.required"
	KeyValidationInvalid  = "validation.invalid"

	// System
	KeySystemError       = "system.error"
	KeySystemRateLimited = "system.rate_limited"
)
