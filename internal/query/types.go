package query

import "time"

// BalanceResponse reports a user's free collateral.
type BalanceResponse struct {
	UserID  string `json:"userId"`
	Balance string `json:"balance"`
}

// PositionResponse reports one market position. Locked is the matched
// quantity, the collateral a merge would currently release.
type PositionResponse struct {
	MarketID   string `json:"marketId"`
	YesHolding string `json:"yesHolding"`
	NoHolding  string `json:"noHolding"`
	Locked     string `json:"locked"`
}

// EntryResponse is one row of a user's audit history.
type EntryResponse struct {
	EntryID      string    `json:"entryId"`
	MarketID     string    `json:"marketId,omitempty"`
	Type         string    `json:"type"`
	Amount       string    `json:"amount"`
	BalanceAfter string    `json:"balanceAfter"`
	YesAfter     string    `json:"yesAfter"`
	NoAfter      string    `json:"noAfter"`
	CreatedAt    time.Time `json:"createdAt"`
}
