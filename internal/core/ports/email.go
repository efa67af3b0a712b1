package ports

import "context"

// ReceiptMailer delivers the access token to the paying customer.
type ReceiptMailer interface {
	SendAccessToken(ctx context.Context, email, token string) error
}
