package types

import "github.com/storefrontlab/storefront-backend/pkg/enums"

// PaymentSelection records which gateway the buyer picked and the tokenized
// payment source it handed back. Stored as JSONB on the checkout session.
type PaymentSelection struct {
	Provider    enums.PaymentProviderID `json:"provider"`
	SourceToken string                  `json:"source_token"`
}
