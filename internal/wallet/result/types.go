package result

import (
	"context"

	"github/chapool/batch-sender/internal/wallet/transfer"
)

// Sink records transfer outcomes. Append may be called concurrently.
type Sink interface {
	Append(ctx context.Context, outcomes ...transfer.Outcome) error
	Close() error
}

// Message is the text of the message column: the failure reason, or token_id=<id>
// for non-fungible transfers.
func Message(o transfer.Outcome) string {
	tokenID := ""
	if o.Request != nil && o.Request.Asset.Type == transfer.AssetNonFungibleToken && o.Request.Asset.TokenID != nil {
		tokenID = "token_id=" + o.Request.Asset.TokenID.String()
	}

	switch {
	case o.Success:
		return tokenID
	case tokenID == "":
		return o.Reason
	default:
		return tokenID + " " + o.Reason
	}
}

// MultiSink appends to every sink in order and reports the first error.
type MultiSink []Sink

func (m MultiSink) Append(ctx context.Context, outcomes ...transfer.Outcome) error {
	var firstErr error
	for _, s := range m {
		if err := s.Append(ctx, outcomes...); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func (m MultiSink) Close() error {
	var firstErr error
	for _, s := range m {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
