package topics

const (
	// Bets
	BetPlaced  = "bet_placed"
	BetSettled = "bet_settled"

	// DLQs
	BetSettledDLQ = "bet_settled_dlq"
)
